package storage_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/restaurant"
	"github.com/restorank/restorank/core/user"
	"github.com/restorank/restorank/storage"
	"github.com/restorank/restorank/storage/database"
	boiledrepos "github.com/restorank/restorank/storage/database/sqlboiler"
	sqlxrepos "github.com/restorank/restorank/storage/database/sqlx"
	"github.com/restorank/restorank/tests"
)

func stores(t *testing.T) map[string]func(t *testing.T) *storage.Store {
	return map[string]func(t *testing.T) *storage.Store{
		"memory": testutil.NewMemoryStore,
		"postgres": func(t *testing.T) *storage.Store {
			db := testutil.PrepareDB(t)
			return &storage.Store{
				Users:       boiledrepos.NewUserRepository(db),
				Restaurants: sqlxrepos.NewRestaurantRepository(db),
				Tx:          database.NewTransactor(db),
				DB:          db,
			}
		},
	}
}

func TestOpen_memory(t *testing.T) {
	st, err := storage.Open(&core.Config{Database: core.DatabaseConfig{Engine: storage.MemoryEngine}}, true)
	require.NoError(t, err)
	assert.Nil(t, st.DB)
	assert.NotNil(t, st.Users)
	assert.NotNil(t, st.Restaurants)
	assert.NotNil(t, st.Tx)
	assert.NoError(t, st.Close())
}

func TestUserRepository(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			repo := open(t).Users
			ctx := context.Background()

			created := testutil.CreateUser(t, repo, "Amira", "amira@test.lb", "Zaatar&Mint42", time.Now().Add(-time.Hour))
			assert.NotZero(t, created.ID)
			assert.Equal(t, user.DefaultProfilePicture, created.ProfilePictureURL)
			assert.True(t, created.LastLogin.IsZero())

			assert.ErrorIs(t, repo.CheckUniqueness(ctx, "AMIRA", "other@test.lb"), user.ErrUserExists)
			assert.ErrorIs(t, repo.CheckUniqueness(ctx, "other", "Amira@Test.lb"), user.ErrUserExists)
			assert.NoError(t, repo.CheckUniqueness(ctx, "other", "other@test.lb"))

			_, err := repo.CreateUser(ctx, user.User{Username: "amira", Email: "other@test.lb", PasswordHash: []byte("x")})
			assert.ErrorIs(t, err, user.ErrUserExists, "username taken")
			_, err = repo.CreateUser(ctx, user.User{Username: "other", Email: "AMIRA@test.lb", PasswordHash: []byte("x")})
			assert.ErrorIs(t, err, user.ErrUserExists, "email taken")

			for _, filter := range []user.GetFilter{
				{ID: created.ID},
				{Username: "amira"},
				{UsernameOrEmail: "AMIRA@test.lb"},
			} {
				got, err := repo.GetUser(ctx, filter)
				require.NoError(t, err, "%+v", filter)
				assert.Equal(t, created.ID, got.ID)
				assert.NoError(t, got.CheckPassword("Zaatar&Mint42"))
			}
			_, err = repo.GetUser(ctx, user.GetFilter{Username: "nobody"})
			assert.ErrorIs(t, err, user.ErrNotFound)

			login := time.Now().UTC().Truncate(time.Millisecond)
			created.LastLogin = login
			created.ProfilePictureURL = "newPicture-1.png"
			updated, err := repo.UpdateUser(ctx, created)
			require.NoError(t, err)
			assert.True(t, login.Equal(updated.LastLogin), "last login")
			assert.Equal(t, "newPicture-1.png", updated.ProfilePictureURL)

			_, err = repo.UpdateUser(ctx, user.User{ID: created.ID + 100, Username: "ghost", Email: "ghost@test.lb", PasswordHash: []byte("x")})
			assert.ErrorIs(t, err, user.ErrNotFound)
		})
	}
}

func TestRestaurantRepository(t *testing.T) {
	for name, open := range stores(t) {
		t.Run(name, func(t *testing.T) {
			st := open(t)
			repo := st.Restaurants
			ctx := context.Background()

			amira := testutil.CreateUser(t, st.Users, "amira", "amira@test.lb", "")
			karim := testutil.CreateUser(t, st.Users, "karim", "karim@test.lb", "")

			create := func(nr restaurant.NewRestaurant) int {
				var id int
				err := st.Tx.WithinTx(ctx, func(exec core.DBExecutor) (err error) {
					id, err = repo.CreateRestaurant(ctx, nr, exec)
					return err
				})
				require.NoError(t, err)
				return id
			}
			rate := func(userID, restoID, rating int, comment string) {
				err := st.Tx.WithinTx(ctx, func(exec core.DBExecutor) error {
					if err := repo.UpsertReview(ctx, userID, restoID, restaurant.NewRating{RatingAmount: rating, Comment: comment}, exec); err != nil {
						return err
					}
					return repo.RefreshRatingStats(ctx, restoID, exec)
				})
				require.NoError(t, err)
			}

			grill := create(restaurant.NewRestaurant{
				Logo: "grill.png",
				Translations: map[string]restaurant.Translation{
					core.LangArabic:  {Name: "مشاوي البيت"},
					core.LangEnglish: {Name: "Grill 100% House", Description: "Charcoal grill"},
				},
				Tags: []string{"grill", "family"},
			})
			cafe := create(restaurant.NewRestaurant{
				Logo:         "cafe.png",
				Translations: map[string]restaurant.Translation{core.LangEnglish: {Name: "Cafe_Younes"}},
				Tags:         []string{"cafe", "family"},
			})
			bakery := create(restaurant.NewRestaurant{
				Translations: map[string]restaurant.Translation{core.LangEnglish: {Name: "Bakery"}},
			})

			rate(amira.ID, grill, 5, "Best")
			rate(karim.ID, grill, 4, "")
			rate(amira.ID, cafe, 4, "Good coffee")
			rate(karim.ID, cafe, 5, "")
			rate(amira.ID, bakery, 2, "")

			t.Run("stats and ties", func(t *testing.T) {
				g, err := repo.GetRestaurant(ctx, grill, core.LangEnglish)
				require.NoError(t, err)
				c, err := repo.GetRestaurant(ctx, cafe, core.LangEnglish)
				require.NoError(t, err)
				b, err := repo.GetRestaurant(ctx, bakery, core.LangEnglish)
				require.NoError(t, err)

				assert.Equal(t, 4.5, g.AverageRating)
				assert.Equal(t, 2, g.RatingCount)
				assert.Equal(t, 1, g.Rank)
				assert.Equal(t, 1, c.Rank, "same average and count share a rank")
				assert.Equal(t, 3, b.Rank)

				assert.Equal(t, "Grill 100% House", g.Name)
				assert.Equal(t, "Charcoal grill", g.Description)
				assert.Equal(t, "grill.png", g.Logo)
				assert.Equal(t, []string{"family", "grill"}, g.Tags)
				require.Len(t, g.Reviews, 2)
				assert.Equal(t, "karim", g.Reviews[0].User.Username)
				assert.Equal(t, "Best", g.Reviews[1].Comment)
				assert.NotNil(t, b.Tags)

				_, err = repo.GetRestaurant(ctx, cafe, core.LangArabic)
				assert.ErrorIs(t, err, restaurant.ErrNotFound)
				_, err = repo.GetRestaurant(ctx, bakery+10, core.LangEnglish)
				assert.ErrorIs(t, err, restaurant.ErrNotFound)
			})

			t.Run("query and count", func(t *testing.T) {
				tests := []struct {
					name   string
					filter restaurant.ListFilter
					want   []int
					count  int
				}{
					{name: "all", filter: restaurant.ListFilter{Lang: core.LangEnglish}, want: []int{grill, cafe, bakery}, count: 3},
					{name: "asc", filter: restaurant.ListFilter{Lang: core.LangEnglish, Sort: restaurant.SortAsc}, want: []int{bakery, grill, cafe}, count: 3},
					{name: "arabic only", filter: restaurant.ListFilter{Lang: core.LangArabic}, want: []int{grill}, count: 1},
					{name: "page 2", filter: restaurant.ListFilter{Lang: core.LangEnglish, Page: 2, Limit: 2}, want: []int{bakery}, count: 3},
					{name: "search is literal", filter: restaurant.ListFilter{Lang: core.LangEnglish, Search: "100%"}, want: []int{grill}, count: 1},
					{name: "underscore is literal", filter: restaurant.ListFilter{Lang: core.LangEnglish, Search: "e_y"}, want: []int{cafe}, count: 1},
					{name: "no match", filter: restaurant.ListFilter{Lang: core.LangEnglish, Search: "sushi"}, want: []int{}, count: 0},
				}
				for _, tt := range tests {
					t.Run(tt.name, func(t *testing.T) {
						tt.filter.Clean(testutil.NewConfig(t).Listing)
						restos, err := repo.QueryRestaurants(ctx, tt.filter)
						require.NoError(t, err)
						ids := make([]int, 0)
						for _, r := range restos {
							ids = append(ids, r.ID)
						}
						assert.Equal(t, tt.want, ids)

						count, err := repo.CountRestaurants(ctx, tt.filter)
						require.NoError(t, err)
						assert.Equal(t, tt.count, count)
					})
				}
			})

			t.Run("tags", func(t *testing.T) {
				tags, err := repo.QueryTags(ctx)
				require.NoError(t, err)
				names := make([]string, 0, len(tags))
				ids := make(map[string]int)
				for _, tag := range tags {
					names = append(names, tag.TagName)
					ids[tag.TagName] = tag.ID
				}
				assert.Equal(t, []string{"cafe", "family", "grill"}, names)

				filter := restaurant.ListFilter{Lang: core.LangEnglish, TagIDs: []int{ids["family"], ids["cafe"]}}
				filter.Clean(testutil.NewConfig(t).Listing)
				restos, err := repo.QueryRestaurants(ctx, filter)
				require.NoError(t, err)
				require.Len(t, restos, 1)
				assert.Equal(t, cafe, restos[0].ID)
			})

			t.Run("reviews and history", func(t *testing.T) {
				rv, err := repo.GetReview(ctx, amira.ID, cafe)
				require.NoError(t, err)
				assert.Equal(t, 4, rv.Rating)
				assert.Equal(t, "Good coffee", rv.Comment)

				_, err = repo.GetReview(ctx, karim.ID, bakery)
				assert.ErrorIs(t, err, restaurant.ErrReviewNotFound)

				history, err := repo.QueryUserReviews(ctx, amira.ID, core.LangEnglish)
				require.NoError(t, err)
				require.Len(t, history, 3)
				assert.Equal(t, bakery, history[0].RestaurantID, "newest first")
				assert.Equal(t, "Bakery", history[0].RestaurantName)
				assert.Equal(t, grill, history[2].RestaurantID)
				assert.Equal(t, "grill.png", history[2].RestaurantLogo)

				assert.ErrorIs(t, repo.LockRestaurant(ctx, bakery+10), restaurant.ErrNotFound)
				assert.NoError(t, repo.LockRestaurant(ctx, bakery))
			})

			t.Run("sponsorships", func(t *testing.T) {
				for _, ns := range []restaurant.NewSponsorship{
					{RestaurantID: grill, BannerImageURL: "grill.jpg", IsActive: true, DisplayOrder: 1},
					{RestaurantID: cafe, BannerImageURL: "cafe.jpg", IsActive: true, DisplayOrder: 5},
					{RestaurantID: bakery, BannerImageURL: "bakery.jpg", IsActive: false, DisplayOrder: 9},
				} {
					id, err := repo.CreateSponsorship(ctx, ns)
					require.NoError(t, err)
					assert.NotZero(t, id)
				}

				sponsors, err := repo.QuerySponsorships(ctx, core.LangEnglish)
				require.NoError(t, err)
				require.Len(t, sponsors, 2)
				assert.Equal(t, "cafe.jpg", sponsors[0].BannerImageURL)
				assert.Equal(t, "Cafe_Younes", sponsors[0].RestaurantName)
				assert.Equal(t, "grill.jpg", sponsors[1].BannerImageURL)
				assert.Equal(t, "grill.png", sponsors[1].RestaurantLogo)
			})

			t.Run("average rounding", func(t *testing.T) {
				half := create(restaurant.NewRestaurant{
					Translations: map[string]restaurant.Translation{core.LangEnglish: {Name: "Half Way"}},
				})
				// 13 fives and 27 fours: 173 / 40 = 4.325
				for i := 0; i < 40; i++ {
					usr := testutil.CreateUser(t, st.Users, fmt.Sprintf("rater%d", i), fmt.Sprintf("rater%d@test.lb", i), "")
					rating := 4
					if i < 13 {
						rating = 5
					}
					rate(usr.ID, half, rating, "")
				}

				got, err := repo.GetRestaurant(ctx, half, core.LangEnglish)
				require.NoError(t, err)
				assert.Equal(t, 40, got.RatingCount)
				assert.Equal(t, 4.33, got.AverageRating)
			})

			t.Run("rollback", func(t *testing.T) {
				err := st.Tx.WithinTx(ctx, func(exec core.DBExecutor) error {
					if err := repo.UpsertReview(ctx, karim.ID, bakery, restaurant.NewRating{RatingAmount: 5}, exec); err != nil {
						return err
					}
					return restaurant.ErrAlreadyRated
				})
				assert.ErrorIs(t, err, restaurant.ErrAlreadyRated)

				_, err = repo.GetReview(ctx, karim.ID, bakery)
				assert.ErrorIs(t, err, restaurant.ErrReviewNotFound)
			})
		})
	}
}
