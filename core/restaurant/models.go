package restaurant

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/restorank/restorank/core"
)

const (
	SortAsc  = "ASC"
	SortDesc = "DESC"

	MaxCommentLen = 1300
)

type Restaurant struct {
	ID            int      `json:"id"`
	Name          string   `json:"restaurant_name"`
	Logo          string   `json:"restaurant_logo"`
	Description   string   `json:"description"`
	RatingCount   int      `json:"rating_count"`
	AverageRating float64  `json:"average_rating"`
	Rank          int      `json:"rank"`
	Tags          []string `json:"tags"`
	Reviews       []Review `json:"reviews"` // newest first
}

type ReviewUser struct {
	UserID            int    `json:"userID"`
	Username          string `json:"username"`
	ProfilePictureURL string `json:"profilePictureURL"`
}

type Review struct {
	Comment    string     `json:"comment"`
	Rating     int        `json:"rating"`
	ReviewedAt time.Time  `json:"reviewedAt"`
	User       ReviewUser `json:"user"`
}

// ListFilter selects a page of the ranked restaurants.
// Search and TagIDs narrow the results without changing the ranks.
type ListFilter struct {
	Page   int
	Limit  int
	Search string
	Sort   string // SortAsc | SortDesc, on the average rating
	Lang   string
	TagIDs []int // restaurants must carry all of them
}

// Clean normalizes the filter against the listing settings.
func (f *ListFilter) Clean(conf core.ListingConfig) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = conf.DefaultLimit
	}
	if conf.MaxLimit > 0 && f.Limit > conf.MaxLimit {
		f.Limit = conf.MaxLimit
	}
	if s := strings.ToUpper(core.CleanString(f.Sort)); s == SortAsc {
		f.Sort = SortAsc
	} else {
		f.Sort = SortDesc
	}
	f.Search = core.CleanString(f.Search)
	f.Lang = core.CleanLang(f.Lang, conf.DefaultLang)

	if len(f.TagIDs) > 0 {
		seen := make(map[int]bool, len(f.TagIDs))
		ids := make([]int, 0, len(f.TagIDs))
		for _, id := range f.TagIDs {
			if id > 0 && !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		f.TagIDs = ids
	}
}

func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.Limit
}

func (f ListFilter) Ordering() core.DBOrdering {
	return core.DBOrdering{Field: "average_rating", Ascending: f.Sort == SortAsc}
}

type Page struct {
	Restaurants []Restaurant
	TotalPages  int
	TotalItems  int
}

func totalPages(total, limit int) int {
	if limit < 1 {
		return 0
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}

// NewRating is a user's rating and comment for a restaurant.
type NewRating struct {
	RatingAmount int    `json:"ratingAmount" validate:"rating"`
	Comment      string `json:"comment" validate:"max=1300"`
}

func (nr *NewRating) Validate(validate *validator.Validate) error {
	nr.Comment = core.CleanString(nr.Comment)
	return validate.Struct(nr)
}

type HistoryEntry struct {
	RestaurantID   int       `json:"restaurant_id"`
	Rating         int       `json:"rating"`
	ReviewedAt     time.Time `json:"reviewed_at"`
	Comment        string    `json:"comment"`
	RestaurantName string    `json:"restaurant_name"`
	RestaurantLogo string    `json:"restaurant_logo"`
}

type Sponsorship struct {
	ID             int    `json:"id"`
	RestaurantID   int    `json:"restaurant_id"`
	BannerImageURL string `json:"banner_image_url"`
	RestaurantName string `json:"restaurant_name"`
	RestaurantLogo string `json:"restaurant_logo"`
}

type Tag struct {
	ID      int    `json:"id"`
	TagName string `json:"tagname"`
}

type Translation struct {
	Name        string `json:"name" yaml:"name" validate:"required,max=255"`
	Description string `json:"description" yaml:"description"`
}

// NewRestaurant contains information needed to create a Restaurant.
type NewRestaurant struct {
	Logo         string                 `json:"logo" yaml:"logo"`
	Translations map[string]Translation `json:"translations" yaml:"translations" validate:"required,min=1,dive,keys,lang,endkeys"`
	Tags         []string               `json:"tags" yaml:"tags" validate:"dive,required,max=50"`
}

func (nr *NewRestaurant) Validate(validate *validator.Validate) error {
	nr.Logo = core.CleanString(nr.Logo)
	for i, tag := range nr.Tags {
		nr.Tags[i] = core.CleanString(tag, true /* lower */)
	}
	for lang, tr := range nr.Translations {
		tr.Name = core.CleanString(tr.Name)
		tr.Description = core.CleanString(tr.Description)
		nr.Translations[lang] = tr
	}
	return validate.Struct(nr)
}

type NewSponsorship struct {
	RestaurantID   int    `json:"restaurant_id" yaml:"restaurant_id" validate:"required"`
	BannerImageURL string `json:"banner_image_url" yaml:"banner" validate:"required"`
	IsActive       bool   `json:"is_active" yaml:"active"`
	DisplayOrder   int    `json:"display_order" yaml:"order"`
}

// Lang picks the language the new restaurant is read back in: def when translated, else the first in order.
func (nr NewRestaurant) Lang(def string) string {
	if _, ok := nr.Translations[def]; ok {
		return def
	}
	langs := make([]string, 0, len(nr.Translations))
	for l := range nr.Translations {
		langs = append(langs, l)
	}
	sort.Strings(langs)
	if len(langs) == 0 {
		return def
	}
	return langs[0]
}

func (ns *NewSponsorship) Validate(validate *validator.Validate) error {
	ns.BannerImageURL = core.CleanString(ns.BannerImageURL)
	return validate.Struct(ns)
}
