package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/restaurant"
)

type restaurantRepository struct {
	db *DB
}

var _ restaurant.Repository = (*restaurantRepository)(nil) // interface compliance check

func NewRestaurantRepository(db *DB) restaurant.Repository {
	return &restaurantRepository{db: db}
}

// ranks mirrors RANK() OVER (ORDER BY average_rating DESC, rating_count DESC): ties share a rank.
// Must be called with the read lock held.
func (repo *restaurantRepository) ranks() map[int]int {
	recs := make([]restaurantRecord, 0, len(repo.db.data.restaurants))
	for _, rec := range repo.db.data.restaurants {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].AverageRating != recs[j].AverageRating {
			return recs[i].AverageRating > recs[j].AverageRating
		}
		return recs[i].RatingCount > recs[j].RatingCount
	})

	ranks := make(map[int]int, len(recs))
	for i, rec := range recs {
		if i > 0 && rec.AverageRating == recs[i-1].AverageRating && rec.RatingCount == recs[i-1].RatingCount {
			ranks[rec.ID] = ranks[recs[i-1].ID]
			continue
		}
		ranks[rec.ID] = i + 1
	}
	return ranks
}

func (repo *restaurantRepository) matches(rec restaurantRecord, filter restaurant.ListFilter) bool {
	tr, ok := rec.Translations[filter.Lang]
	if !ok {
		return false
	}
	if filter.Search != "" && !strings.Contains(strings.ToLower(tr.Name), strings.ToLower(filter.Search)) {
		return false
	}
	for _, wanted := range filter.TagIDs {
		found := false
		for _, id := range rec.TagIDs {
			if id == wanted {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// build assembles the restaurant as the list query returns it. Must be called with the read lock held.
func (repo *restaurantRepository) build(rec restaurantRecord, lang string, rank int) restaurant.Restaurant {
	tr := rec.Translations[lang]

	tags := make([]string, 0, len(rec.TagIDs))
	for _, id := range rec.TagIDs {
		tags = append(tags, repo.db.data.tags[id].TagName)
	}
	sort.Strings(tags)

	revs := make([]restaurant.Review, 0)
	for key, rv := range repo.db.data.reviews {
		if key.restaurantID != rec.ID {
			continue
		}
		usr := repo.db.data.users[key.userID]
		revs = append(revs, restaurant.Review{
			Comment:    rv.Comment,
			Rating:     rv.Rating,
			ReviewedAt: rv.ReviewedAt,
			User: restaurant.ReviewUser{
				UserID:            usr.ID,
				Username:          usr.Username,
				ProfilePictureURL: usr.ProfilePictureURL,
			},
		})
	}
	sort.SliceStable(revs, func(i, j int) bool {
		if !revs[i].ReviewedAt.Equal(revs[j].ReviewedAt) {
			return revs[i].ReviewedAt.After(revs[j].ReviewedAt)
		}
		return revs[i].User.UserID < revs[j].User.UserID
	})

	return restaurant.Restaurant{
		ID:            rec.ID,
		Name:          tr.Name,
		Logo:          rec.Logo,
		Description:   tr.Description,
		RatingCount:   rec.RatingCount,
		AverageRating: rec.AverageRating,
		Rank:          rank,
		Tags:          tags,
		Reviews:       revs,
	}
}

// filtered returns the matching records ordered as the listing expects.
// Must be called with the read lock held.
func (repo *restaurantRepository) filtered(filter restaurant.ListFilter) []restaurantRecord {
	recs := make([]restaurantRecord, 0)
	for _, rec := range repo.db.data.restaurants {
		if repo.matches(rec, filter) {
			recs = append(recs, rec)
		}
	}

	asc := filter.Ordering().Ascending
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.AverageRating != b.AverageRating {
			if asc {
				return a.AverageRating < b.AverageRating
			}
			return a.AverageRating > b.AverageRating
		}
		if a.RatingCount != b.RatingCount {
			return a.RatingCount > b.RatingCount
		}
		return a.ID < b.ID
	})
	return recs
}

func (repo *restaurantRepository) QueryRestaurants(_ context.Context, filter restaurant.ListFilter, _ ...core.DBExecutor) ([]restaurant.Restaurant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := repo.filtered(filter)
	ranks := repo.ranks()

	start := filter.Offset()
	if start >= len(recs) {
		return make([]restaurant.Restaurant, 0), nil
	}
	end := start + filter.Limit
	if end > len(recs) {
		end = len(recs)
	}

	restos := make([]restaurant.Restaurant, 0, end-start)
	for _, rec := range recs[start:end] {
		restos = append(restos, repo.build(rec, filter.Lang, ranks[rec.ID]))
	}
	return restos, nil
}

func (repo *restaurantRepository) CountRestaurants(_ context.Context, filter restaurant.ListFilter, _ ...core.DBExecutor) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.filtered(filter)), nil
}

func (repo *restaurantRepository) GetRestaurant(_ context.Context, id int, lang string, _ ...core.DBExecutor) (restaurant.Restaurant, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rec, ok := repo.db.data.restaurants[id]
	if !ok {
		return restaurant.Restaurant{}, restaurant.ErrNotFound
	}
	if _, ok = rec.Translations[lang]; !ok {
		return restaurant.Restaurant{}, restaurant.ErrNotFound
	}
	return repo.build(rec, lang, repo.ranks()[id]), nil
}

func (repo *restaurantRepository) LockRestaurant(_ context.Context, id int, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if _, ok := repo.db.data.restaurants[id]; !ok {
		return restaurant.ErrNotFound
	}
	return nil
}

func (repo *restaurantRepository) GetReview(_ context.Context, userID, restaurantID int, _ ...core.DBExecutor) (restaurant.Review, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	rv, ok := repo.db.data.reviews[reviewKey{userID: userID, restaurantID: restaurantID}]
	if !ok {
		return restaurant.Review{}, restaurant.ErrReviewNotFound
	}
	return restaurant.Review{
		Comment:    rv.Comment,
		Rating:     rv.Rating,
		ReviewedAt: rv.ReviewedAt,
		User:       restaurant.ReviewUser{UserID: userID},
	}, nil
}

func (repo *restaurantRepository) UpsertReview(_ context.Context, userID, restaurantID int, nr restaurant.NewRating, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.data.restaurants[restaurantID]; !ok {
		return restaurant.ErrNotFound
	}
	repo.db.data.reviews[reviewKey{userID: userID, restaurantID: restaurantID}] = reviewRecord{
		Rating:     nr.RatingAmount,
		Comment:    nr.Comment,
		ReviewedAt: time.Now().UTC(),
	}
	return nil
}

func (repo *restaurantRepository) RefreshRatingStats(_ context.Context, restaurantID int, exec ...core.DBExecutor) error {
	defer repo.db.lockWrite(exec)()

	rec, ok := repo.db.data.restaurants[restaurantID]
	if !ok {
		return restaurant.ErrNotFound
	}

	var sum, count int
	for key, rv := range repo.db.data.reviews {
		if key.restaurantID == restaurantID {
			sum += rv.Rating
			count++
		}
	}
	rec.RatingCount = count
	rec.AverageRating = 0
	if count > 0 {
		// two decimals, half away from zero like NUMERIC(3,2)
		rec.AverageRating = float64((sum*200/count+1)/2) / 100
	}
	repo.db.data.restaurants[restaurantID] = rec
	return nil
}

func (repo *restaurantRepository) QueryUserReviews(_ context.Context, userID int, lang string, _ ...core.DBExecutor) ([]restaurant.HistoryEntry, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	entries := make([]restaurant.HistoryEntry, 0)
	for key, rv := range repo.db.data.reviews {
		if key.userID != userID {
			continue
		}
		rec := repo.db.data.restaurants[key.restaurantID]
		entries = append(entries, restaurant.HistoryEntry{
			RestaurantID:   rec.ID,
			Rating:         rv.Rating,
			ReviewedAt:     rv.ReviewedAt,
			Comment:        rv.Comment,
			RestaurantName: rec.Translations[lang].Name,
			RestaurantLogo: rec.Logo,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].ReviewedAt.Equal(entries[j].ReviewedAt) {
			return entries[i].ReviewedAt.After(entries[j].ReviewedAt)
		}
		return entries[i].RestaurantID < entries[j].RestaurantID
	})
	return entries, nil
}

func (repo *restaurantRepository) QuerySponsorships(_ context.Context, lang string, _ ...core.DBExecutor) ([]restaurant.Sponsorship, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := make([]sponsorshipRecord, 0, len(repo.db.data.sponsorships))
	for _, rec := range repo.db.data.sponsorships {
		if rec.IsActive {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].DisplayOrder != recs[j].DisplayOrder {
			return recs[i].DisplayOrder > recs[j].DisplayOrder
		}
		return recs[i].ID < recs[j].ID
	})

	sponsors := make([]restaurant.Sponsorship, 0, len(recs))
	for _, rec := range recs {
		resto := repo.db.data.restaurants[rec.RestaurantID]
		sponsors = append(sponsors, restaurant.Sponsorship{
			ID:             rec.ID,
			RestaurantID:   rec.RestaurantID,
			BannerImageURL: rec.BannerImageURL,
			RestaurantName: resto.Translations[lang].Name,
			RestaurantLogo: resto.Logo,
		})
	}
	return sponsors, nil
}

func (repo *restaurantRepository) QueryTags(_ context.Context, _ ...core.DBExecutor) ([]restaurant.Tag, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	tags := make([]restaurant.Tag, 0, len(repo.db.data.tags))
	for _, tag := range repo.db.data.tags {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i].TagName < tags[j].TagName })
	return tags, nil
}

func (repo *restaurantRepository) CreateRestaurant(_ context.Context, nr restaurant.NewRestaurant, exec ...core.DBExecutor) (int, error) {
	defer repo.db.lockWrite(exec)()

	rec := restaurantRecord{
		ID:           repo.db.nextID("restaurants"),
		Logo:         nr.Logo,
		Translations: make(map[string]restaurant.Translation, len(nr.Translations)),
	}
	for lang, tr := range nr.Translations {
		rec.Translations[lang] = tr
	}

	seen := make(map[int]bool, len(nr.Tags))
	for _, tagname := range nr.Tags {
		id := repo.upsertTag(tagname)
		if !seen[id] {
			seen[id] = true
			rec.TagIDs = append(rec.TagIDs, id)
		}
	}

	repo.db.data.restaurants[rec.ID] = rec
	return rec.ID, nil
}

// upsertTag must be called with the write lock held.
func (repo *restaurantRepository) upsertTag(tagname string) int {
	for id, tag := range repo.db.data.tags {
		if tag.TagName == tagname {
			return id
		}
	}
	id := repo.db.nextID("tags")
	repo.db.data.tags[id] = restaurant.Tag{ID: id, TagName: tagname}
	return id
}

func (repo *restaurantRepository) CreateSponsorship(_ context.Context, ns restaurant.NewSponsorship, exec ...core.DBExecutor) (int, error) {
	defer repo.db.lockWrite(exec)()

	if _, ok := repo.db.data.restaurants[ns.RestaurantID]; !ok {
		return 0, restaurant.ErrNotFound
	}
	id := repo.db.nextID("sponsorships")
	repo.db.data.sponsorships[id] = sponsorshipRecord{ID: id, NewSponsorship: ns}
	return id, nil
}
