package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/restaurant"
)

type (
	seedData struct {
		Users       []seedUser       `yaml:"users"`
		Restaurants []seedRestaurant `yaml:"restaurants"`
	}

	seedUser struct {
		Username string `yaml:"username"`
		Email    string `yaml:"email"`
		Password string `yaml:"password"`
	}

	seedRestaurant struct {
		restaurant.NewRestaurant `yaml:",inline"`

		Sponsorship *restaurant.NewSponsorship `yaml:"sponsorship"`
		Ratings     []seedRating               `yaml:"ratings"`
	}

	seedRating struct {
		Username string `yaml:"username"`
		Rating   int    `yaml:"rating"`
		Comment  string `yaml:"comment"`
	}
)

func readSeedFile(path string) (seedData, error) {
	var data seedData
	raw, err := os.ReadFile(path)
	if err != nil {
		return data, errors.Wrap(err, "reading seed file")
	}
	if err = yaml.Unmarshal(raw, &data); err != nil {
		return data, errors.Wrapf(err, "parsing %s", path)
	}
	return data, nil
}

// seed loads the users first so that ratings can reference them by username.
func (cli *commandLine) seed(path string) error {
	data, err := readSeedFile(path)
	if err != nil {
		return err
	}
	ctx := context.Background()

	for _, su := range data.Users {
		if err = cli.addUser(su.Username, su.Email, su.Password); err != nil {
			return errors.Wrapf(err, "seeding user %q", su.Username)
		}
	}

	for i, sr := range data.Restaurants {
		nr := sr.NewRestaurant
		if err = nr.Validate(cli.validate); err != nil {
			return errors.Wrapf(err, "restaurant #%d", i+1)
		}
		resto, err := cli.restoSvc.Create(ctx, nr)
		if err != nil {
			return errors.Wrapf(err, "creating restaurant #%d", i+1)
		}
		fmt.Fprintf(cli.out, "restaurant %q created (id: %d)\n", resto.Name, resto.ID)

		if sr.Sponsorship != nil {
			ns := *sr.Sponsorship
			ns.RestaurantID = resto.ID
			if err = ns.Validate(cli.validate); err != nil {
				return errors.Wrapf(err, "sponsorship of restaurant #%d", i+1)
			}
			if _, err = cli.restoSvc.CreateSponsorship(ctx, ns); err != nil {
				return errors.Wrapf(err, "creating sponsorship of restaurant #%d", i+1)
			}
		}

		for _, rating := range sr.Ratings {
			if err = cli.rate(ctx, resto.ID, nr.Lang(core.LangArabic), rating); err != nil {
				return errors.Wrapf(err, "rating of restaurant #%d by %q", i+1, rating.Username)
			}
		}
	}
	return nil
}

func (cli *commandLine) rate(ctx context.Context, restaurantID int, lang string, sr seedRating) error {
	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, sr.Username)
	if err != nil {
		return err
	}
	nr := restaurant.NewRating{RatingAmount: sr.Rating, Comment: sr.Comment}
	if err = nr.Validate(cli.validate); err != nil {
		return err
	}
	_, err = cli.restoSvc.Rate(ctx, usr.ID, restaurantID, nr, lang)
	if errors.Is(err, restaurant.ErrAlreadyRated) {
		return nil
	}
	return err
}
