package restaurant

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/restorank/restorank/core"
)

var (
	// errors
	ErrNotFound       = errors.New("restaurant not found")
	ErrReviewNotFound = errors.New("review not found")
	ErrAlreadyRated   = errors.New("you have already submitted this rating")
	ErrPageNotFound   = errors.New("page not found")
)

type (
	Repository interface {
		// QueryRestaurants returns one page of ranked restaurants matching the filter.
		QueryRestaurants(ctx context.Context, filter ListFilter, exec ...core.DBExecutor) ([]Restaurant, error)
		// CountRestaurants counts all the restaurants matching the filter, ignoring pagination.
		CountRestaurants(ctx context.Context, filter ListFilter, exec ...core.DBExecutor) (int, error)
		GetRestaurant(ctx context.Context, id int, lang string, exec ...core.DBExecutor) (Restaurant, error)
		// LockRestaurant returns ErrNotFound if the restaurant does not exist.
		// Within a transaction, concurrent ratings of the same restaurant wait for each other.
		LockRestaurant(ctx context.Context, id int, exec ...core.DBExecutor) error
		GetReview(ctx context.Context, userID, restaurantID int, exec ...core.DBExecutor) (Review, error)
		UpsertReview(ctx context.Context, userID, restaurantID int, nr NewRating, exec ...core.DBExecutor) error
		// RefreshRatingStats recomputes the average rating (2 decimals) and the rating count.
		RefreshRatingStats(ctx context.Context, restaurantID int, exec ...core.DBExecutor) error
		QueryUserReviews(ctx context.Context, userID int, lang string, exec ...core.DBExecutor) ([]HistoryEntry, error)
		QuerySponsorships(ctx context.Context, lang string, exec ...core.DBExecutor) ([]Sponsorship, error)
		QueryTags(ctx context.Context, exec ...core.DBExecutor) ([]Tag, error)
		CreateRestaurant(ctx context.Context, nr NewRestaurant, exec ...core.DBExecutor) (int, error)
		CreateSponsorship(ctx context.Context, ns NewSponsorship, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		List(ctx context.Context, filter ListFilter) (Page, error)
		Get(ctx context.Context, id int, lang string) (Restaurant, error)
		// Rate records the user's rating of a restaurant then refreshes its stats, atomically.
		// The restaurant is returned in lang when translated in it, in another of its languages otherwise.
		Rate(ctx context.Context, userID, restaurantID int, nr NewRating, lang string) (Restaurant, error)
		History(ctx context.Context, userID int, lang string) ([]HistoryEntry, error)
		Sponsors(ctx context.Context, lang string) ([]Sponsorship, error)
		Tags(ctx context.Context) ([]Tag, error)
		Create(ctx context.Context, nr NewRestaurant) (Restaurant, error)
		CreateSponsorship(ctx context.Context, ns NewSponsorship) (int, error)
	}

	service struct {
		repo Repository
		tx   core.Transactor
		conf core.ListingConfig
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, tx core.Transactor, conf core.ListingConfig) Service {
	return &service{repo: repo, tx: tx, conf: conf}
}

func (svc *service) List(ctx context.Context, filter ListFilter) (Page, error) {
	filter.Clean(svc.conf)

	var (
		restos []Restaurant
		total  int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		restos, err = svc.repo.QueryRestaurants(gctx, filter)
		return err
	})
	g.Go(func() (err error) {
		total, err = svc.repo.CountRestaurants(gctx, filter)
		return err
	})
	if err := g.Wait(); err != nil {
		return Page{}, err
	}

	if len(restos) == 0 && filter.Page > 1 {
		return Page{}, ErrPageNotFound
	}
	if restos == nil {
		restos = make([]Restaurant, 0)
	}
	return Page{
		Restaurants: restos,
		TotalPages:  totalPages(total, filter.Limit),
		TotalItems:  total,
	}, nil
}

func (svc *service) Get(ctx context.Context, id int, lang string) (Restaurant, error) {
	return svc.repo.GetRestaurant(ctx, id, core.CleanLang(lang, svc.conf.DefaultLang))
}

func (svc *service) Rate(ctx context.Context, userID, restaurantID int, nr NewRating, lang string) (Restaurant, error) {
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.repo.LockRestaurant(ctx, restaurantID, exec); err != nil {
			return err
		}

		prev, err := svc.repo.GetReview(ctx, userID, restaurantID, exec)
		switch {
		case err == nil:
			if prev.Rating == nr.RatingAmount && prev.Comment == nr.Comment {
				return ErrAlreadyRated
			}
		case !errors.Is(err, ErrReviewNotFound):
			return err
		}

		if err = svc.repo.UpsertReview(ctx, userID, restaurantID, nr, exec); err != nil {
			return err
		}
		return svc.repo.RefreshRatingStats(ctx, restaurantID, exec)
	})
	if err != nil {
		return Restaurant{}, err
	}
	return svc.getTranslated(ctx, restaurantID, lang)
}

// getTranslated reads the restaurant in lang, or in another language when it has no lang translation.
func (svc *service) getTranslated(ctx context.Context, id int, lang string) (Restaurant, error) {
	lang = core.CleanLang(lang, svc.conf.DefaultLang)
	resto, err := svc.repo.GetRestaurant(ctx, id, lang)
	if !errors.Is(err, ErrNotFound) {
		return resto, err
	}
	for _, l := range core.Languages {
		if l == lang {
			continue
		}
		if resto, err = svc.repo.GetRestaurant(ctx, id, l); !errors.Is(err, ErrNotFound) {
			return resto, err
		}
	}
	return Restaurant{}, err
}

func (svc *service) History(ctx context.Context, userID int, lang string) ([]HistoryEntry, error) {
	entries, err := svc.repo.QueryUserReviews(ctx, userID, core.CleanLang(lang, svc.conf.DefaultLang))
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = make([]HistoryEntry, 0)
	}
	return entries, nil
}

func (svc *service) Sponsors(ctx context.Context, lang string) ([]Sponsorship, error) {
	sponsors, err := svc.repo.QuerySponsorships(ctx, core.CleanLang(lang, svc.conf.DefaultLang))
	if err != nil {
		return nil, err
	}
	if sponsors == nil {
		sponsors = make([]Sponsorship, 0)
	}
	return sponsors, nil
}

func (svc *service) Tags(ctx context.Context) ([]Tag, error) {
	tags, err := svc.repo.QueryTags(ctx)
	if err != nil {
		return nil, err
	}
	if tags == nil {
		tags = make([]Tag, 0)
	}
	return tags, nil
}

func (svc *service) Create(ctx context.Context, nr NewRestaurant) (Restaurant, error) {
	var id int
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) (err error) {
		id, err = svc.repo.CreateRestaurant(ctx, nr, exec)
		return err
	})
	if err != nil {
		return Restaurant{}, err
	}
	return svc.getTranslated(ctx, id, nr.Lang(svc.conf.DefaultLang))
}

func (svc *service) CreateSponsorship(ctx context.Context, ns NewSponsorship) (int, error) {
	var id int
	err := svc.tx.WithinTx(ctx, func(exec core.DBExecutor) (err error) {
		if err = svc.repo.LockRestaurant(ctx, ns.RestaurantID, exec); err != nil {
			return err
		}
		id, err = svc.repo.CreateSponsorship(ctx, ns, exec)
		return err
	})
	return id, err
}
