package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/restaurant"
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type (
	// reviews scans the JSON aggregated reviews column.
	reviews []restaurant.Review

	restaurantRow struct {
		ID            int            `db:"id"`
		Name          string         `db:"restaurant_name"`
		Logo          string         `db:"restaurant_logo"`
		Description   string         `db:"description"`
		RatingCount   int            `db:"rating_count"`
		AverageRating float64        `db:"average_rating"`
		Rank          int            `db:"rank"`
		Tags          pq.StringArray `db:"tags"`
		Reviews       reviews        `db:"reviews"`
	}

	reviewRow struct {
		Rating     int       `db:"rating"`
		Comment    string    `db:"comment"`
		ReviewedAt time.Time `db:"reviewed_at"`
	}

	historyRow struct {
		RestaurantID   int       `db:"restaurant_id"`
		Rating         int       `db:"rating"`
		ReviewedAt     time.Time `db:"reviewed_at"`
		Comment        string    `db:"comment"`
		RestaurantName string    `db:"restaurant_name"`
		RestaurantLogo string    `db:"restaurant_logo"`
	}

	sponsorshipRow struct {
		ID             int    `db:"id"`
		RestaurantID   int    `db:"restaurant_id"`
		BannerImageURL string `db:"banner_image_url"`
		RestaurantName string `db:"restaurant_name"`
		RestaurantLogo string `db:"restaurant_logo"`
	}

	tagRow struct {
		ID      int    `db:"id"`
		TagName string `db:"tagname"`
	}
)

func (rv *reviews) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*rv = make(reviews, 0)
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("unsupported reviews type %T", src)
	}
	return json.Unmarshal(data, (*[]restaurant.Review)(rv))
}

type restaurantRepository struct {
	exec core.DBExecutor
}

var _ restaurant.Repository = (*restaurantRepository)(nil) // interface compliance check

func NewRestaurantRepository(exec core.DBExecutor) *restaurantRepository {
	return &restaurantRepository{exec: exec}
}

func (repo restaurantRepository) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return repo.exec
}

func (repo restaurantRepository) unsqlx(row restaurantRow) restaurant.Restaurant {
	tags := []string(row.Tags)
	if tags == nil {
		tags = make([]string, 0)
	}
	revs := []restaurant.Review(row.Reviews)
	if revs == nil {
		revs = make([]restaurant.Review, 0)
	}
	return restaurant.Restaurant{
		ID:            row.ID,
		Name:          row.Name,
		Logo:          row.Logo,
		Description:   row.Description,
		RatingCount:   row.RatingCount,
		AverageRating: row.AverageRating,
		Rank:          row.Rank,
		Tags:          tags,
		Reviews:       revs,
	}
}

// filterArgs returns the $1..$3 arguments shared by the list and count queries.
func (repo restaurantRepository) filterArgs(filter restaurant.ListFilter) []interface{} {
	tagIDs := make(pq.Int64Array, 0, len(filter.TagIDs))
	for _, id := range filter.TagIDs {
		tagIDs = append(tagIDs, int64(id))
	}
	search := "%" + likeEscaper.Replace(filter.Search) + "%"
	return []interface{}{filter.Lang, search, tagIDs}
}

func (repo restaurantRepository) QueryRestaurants(ctx context.Context, filter restaurant.ListFilter, exec ...core.DBExecutor) ([]restaurant.Restaurant, error) {
	tail := fmt.Sprintf(restaurantsPage, filter.Ordering().String())
	q := fmt.Sprintf(restaurantsQuery, restaurantsFilter, tail)
	args := append(repo.filterArgs(filter), filter.Limit, filter.Offset())

	var rows []restaurantRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying restaurants")
	}

	restos := make([]restaurant.Restaurant, 0, len(rows))
	for _, row := range rows {
		restos = append(restos, repo.unsqlx(row))
	}
	return restos, nil
}

func (repo restaurantRepository) CountRestaurants(ctx context.Context, filter restaurant.ListFilter, exec ...core.DBExecutor) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &count, countRestaurantsQuery, repo.filterArgs(filter)...); err != nil {
		return 0, errors.Wrap(err, "counting restaurants")
	}
	return count, nil
}

func (repo restaurantRepository) GetRestaurant(ctx context.Context, id int, lang string, exec ...core.DBExecutor) (restaurant.Restaurant, error) {
	q := fmt.Sprintf(restaurantsQuery, "r.id = $2", "")

	var row restaurantRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, q, lang, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return restaurant.Restaurant{}, restaurant.ErrNotFound
		}
		return restaurant.Restaurant{}, errors.Wrap(err, "getting restaurant")
	}
	return repo.unsqlx(row), nil
}

func (repo restaurantRepository) LockRestaurant(ctx context.Context, id int, exec ...core.DBExecutor) error {
	var lockedID int
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &lockedID, lockRestaurantQuery, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return restaurant.ErrNotFound
		}
		return errors.Wrap(err, "locking restaurant")
	}
	return nil
}

func (repo restaurantRepository) GetReview(ctx context.Context, userID, restaurantID int, exec ...core.DBExecutor) (restaurant.Review, error) {
	var row reviewRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, getReviewQuery, userID, restaurantID); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return restaurant.Review{}, restaurant.ErrReviewNotFound
		}
		return restaurant.Review{}, errors.Wrap(err, "getting review")
	}
	return restaurant.Review{
		Comment:    row.Comment,
		Rating:     row.Rating,
		ReviewedAt: row.ReviewedAt.UTC(),
		User:       restaurant.ReviewUser{UserID: userID},
	}, nil
}

func (repo restaurantRepository) UpsertReview(ctx context.Context, userID, restaurantID int, nr restaurant.NewRating, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, upsertReviewQuery, userID, restaurantID, nr.RatingAmount, nr.Comment)
	return errors.Wrap(err, "upserting review")
}

func (repo restaurantRepository) RefreshRatingStats(ctx context.Context, restaurantID int, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx, refreshRatingStatsQuery, restaurantID)
	return errors.Wrap(err, "refreshing rating stats")
}

func (repo restaurantRepository) QueryUserReviews(ctx context.Context, userID int, lang string, exec ...core.DBExecutor) ([]restaurant.HistoryEntry, error) {
	var rows []historyRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, userReviewsQuery, userID, lang); err != nil {
		return nil, errors.Wrap(err, "querying user reviews")
	}

	entries := make([]restaurant.HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, restaurant.HistoryEntry{
			RestaurantID:   row.RestaurantID,
			Rating:         row.Rating,
			ReviewedAt:     row.ReviewedAt.UTC(),
			Comment:        row.Comment,
			RestaurantName: row.RestaurantName,
			RestaurantLogo: row.RestaurantLogo,
		})
	}
	return entries, nil
}

func (repo restaurantRepository) QuerySponsorships(ctx context.Context, lang string, exec ...core.DBExecutor) ([]restaurant.Sponsorship, error) {
	var rows []sponsorshipRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, sponsorshipsQuery, lang); err != nil {
		return nil, errors.Wrap(err, "querying sponsorships")
	}

	sponsors := make([]restaurant.Sponsorship, 0, len(rows))
	for _, row := range rows {
		sponsors = append(sponsors, restaurant.Sponsorship(row))
	}
	return sponsors, nil
}

func (repo restaurantRepository) QueryTags(ctx context.Context, exec ...core.DBExecutor) ([]restaurant.Tag, error) {
	var rows []tagRow
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, tagsQuery); err != nil {
		return nil, errors.Wrap(err, "querying tags")
	}

	tags := make([]restaurant.Tag, 0, len(rows))
	for _, row := range rows {
		tags = append(tags, restaurant.Tag(row))
	}
	return tags, nil
}

// CreateRestaurant inserts the restaurant, its translations and its tags (created when missing).
// It should run inside a transaction.
func (repo restaurantRepository) CreateRestaurant(ctx context.Context, nr restaurant.NewRestaurant, exec ...core.DBExecutor) (int, error) {
	exe := repo.getExec(exec)

	var id int
	if err := sqlx.GetContext(ctx, exe, &id, insertRestaurantQuery, nr.Logo); err != nil {
		return 0, errors.Wrap(err, "inserting restaurant")
	}

	for lang, tr := range nr.Translations {
		if _, err := exe.ExecContext(ctx, insertTranslationQuery, id, lang, tr.Name, tr.Description); err != nil {
			return 0, errors.Wrapf(err, "inserting %q translation", lang)
		}
	}

	for _, tagname := range nr.Tags {
		var tagID int
		if err := sqlx.GetContext(ctx, exe, &tagID, upsertTagQuery, tagname); err != nil {
			return 0, errors.Wrapf(err, "upserting tag %q", tagname)
		}
		if _, err := exe.ExecContext(ctx, insertRestaurantTagQuery, id, tagID); err != nil {
			return 0, errors.Wrapf(err, "tagging restaurant with %q", tagname)
		}
	}
	return id, nil
}

func (repo restaurantRepository) CreateSponsorship(ctx context.Context, ns restaurant.NewSponsorship, exec ...core.DBExecutor) (int, error) {
	var id int
	err := sqlx.GetContext(ctx, repo.getExec(exec), &id, insertSponsorshipQuery,
		ns.RestaurantID, ns.BannerImageURL, ns.IsActive, ns.DisplayOrder)
	if err != nil {
		return 0, errors.Wrap(err, "inserting sponsorship")
	}
	return id, nil
}
