package testutil

import (
	"context"
	"io"
	"log"
	"net"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/restaurant"
	"github.com/restorank/restorank/core/user"
	logsvc "github.com/restorank/restorank/services/logger"
	"github.com/restorank/restorank/storage"
	"github.com/restorank/restorank/storage/database"
)

// NewConfig returns a TEST configuration backed by the memory engine, with uploads going to a temp dir.
func NewConfig(t *testing.T) *core.Config {
	t.Helper()
	return &core.Config{
		Env:       "TEST",
		Build:     "test",
		TestMode:  true,
		AppName:   "Restorank",
		SecretKey: "test-secret",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			ReadTimeout:               5 * time.Second,
			WriteTimeout:              5 * time.Second,
			CORSAllowOrigins:          []string{"*"},
		},
		Database: core.DatabaseConfig{Engine: storage.MemoryEngine},
		Upload: core.UploadConfig{
			Dir:       t.TempDir(),
			PublicDir: t.TempDir(),
			MaxSize:   1 << 20,
		},
		Listing: core.ListingConfig{
			DefaultLimit: 10,
			MaxLimit:     50,
			DefaultLang:  core.LangArabic,
		},
	}
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "TEST : ", 0), conf)
}

// NewValidator registers every custom validation of the app.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	restaurant.InitValidators(validate, translator)
	return validate, translator
}

// NewMemoryStore opens a fresh in-memory store.
func NewMemoryStore(t *testing.T) *storage.Store {
	t.Helper()
	st, err := storage.Open(&core.Config{Database: core.DatabaseConfig{Engine: storage.MemoryEngine}}, false)
	if err != nil {
		t.Fatalf("storage.Open() failed: %v", err)
	}
	return st
}

// PrepareDB connects to the TEST PostgreSQL database, migrates it and empties it.
// The test is skipped when the database is unreachable.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	t.Setenv("ENV", "TEST")
	conf := core.NewConfig()

	conn, err := net.DialTimeout("tcp", conf.Database.Address(), time.Second)
	if err != nil {
		t.Skipf("PostgreSQL unavailable: %v", err)
	}
	_ = conn.Close()

	if err = database.CreateIfNotExist(conf); err != nil {
		t.Skipf("PostgreSQL unavailable: %v", err)
	}
	db, err := database.Open(conf)
	if err != nil {
		t.Skipf("PostgreSQL unavailable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db.DB, "up"); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if err = database.Truncate(context.Background(), db); err != nil {
		t.Fatalf("Truncate() failed: %v", err)
	}
	return db
}

func CreateUser(t *testing.T, repo user.Repository, uname, email, pwd string, createdAt ...time.Time) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Username:          uname,
		Email:             email,
		ProfilePictureURL: user.DefaultProfilePicture,
		CreatedAt:         tstamp,
	}
	if pwd == "" {
		usr.PasswordHash = []byte{} // never matches
	} else if err := usr.SetPassword(pwd); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// CreateRestaurant creates a restaurant translated in Arabic and English.
func CreateRestaurant(t *testing.T, svc restaurant.Service, name string, tags ...string) restaurant.Restaurant {
	t.Helper()
	resto, err := svc.Create(context.Background(), restaurant.NewRestaurant{
		Logo: name + ".png",
		Translations: map[string]restaurant.Translation{
			core.LangArabic:  {Name: name + " (ar)", Description: "وصف " + name},
			core.LangEnglish: {Name: name, Description: "About " + name},
		},
		Tags: tags,
	})
	if err != nil {
		t.Fatalf("CreateRestaurant() failed: %v", err)
	}
	return resto
}

func Rate(t *testing.T, svc restaurant.Service, userID, restaurantID, rating int, comment string) restaurant.Restaurant {
	t.Helper()
	resto, err := svc.Rate(context.Background(), userID, restaurantID, restaurant.NewRating{
		RatingAmount: rating,
		Comment:      comment,
	}, "")
	if err != nil {
		t.Fatalf("Rate() failed: %v", err)
	}
	return resto
}
