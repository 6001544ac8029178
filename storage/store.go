package storage

import (
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/restaurant"
	"github.com/restorank/restorank/core/user"
	"github.com/restorank/restorank/storage/database"
	inmemdb "github.com/restorank/restorank/storage/database/inmem"
	boiledrepos "github.com/restorank/restorank/storage/database/sqlboiler"
	sqlxrepos "github.com/restorank/restorank/storage/database/sqlx"
)

// MemoryEngine keeps all the data in process, for demos and tests without PostgreSQL.
const MemoryEngine = "memory"

// Store bundles the repositories of the configured database engine.
type Store struct {
	Users       user.Repository
	Restaurants restaurant.Repository
	Tx          core.Transactor

	// DB is nil for the memory engine.
	DB *sqlx.DB
}

// Open sets up the store of conf.Database.Engine, creating the PostgreSQL database and user when missing.
// Pending migrations are applied when migrate is true.
func Open(conf *core.Config, migrate bool) (*Store, error) {
	if conf.Database.Engine == MemoryEngine {
		db := inmemdb.Open()
		return &Store{
			Users:       inmemdb.NewUserRepository(db),
			Restaurants: inmemdb.NewRestaurantRepository(db),
			Tx:          inmemdb.NewTransactor(db),
		}, nil
	}

	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, errors.Wrap(err, "creating database")
	}
	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err = database.Migrate(db.DB, "up"); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return &Store{
		Users:       boiledrepos.NewUserRepository(db),
		Restaurants: sqlxrepos.NewRestaurantRepository(db),
		Tx:          database.NewTransactor(db),
		DB:          db,
	}, nil
}

func (st *Store) Close() error {
	if st.DB == nil {
		return nil
	}
	return st.DB.Close()
}
