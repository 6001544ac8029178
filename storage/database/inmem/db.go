package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/restorank/restorank/core"
	"github.com/restorank/restorank/core/restaurant"
	"github.com/restorank/restorank/core/user"
)

type (
	// DB is a process-local stand-in for the PostgreSQL schema.
	DB struct {
		sync.RWMutex
		txMu sync.Mutex
		data *tables
	}

	tables struct {
		seq          map[string]int
		users        map[int]user.User
		restaurants  map[int]restaurantRecord
		tags         map[int]restaurant.Tag
		reviews      map[reviewKey]reviewRecord
		sponsorships map[int]sponsorshipRecord
	}

	restaurantRecord struct {
		ID            int
		Logo          string
		AverageRating float64
		RatingCount   int
		Translations  map[string]restaurant.Translation
		TagIDs        []int
	}

	reviewKey struct {
		userID       int
		restaurantID int
	}

	reviewRecord struct {
		Rating     int
		Comment    string
		ReviewedAt time.Time
	}

	sponsorshipRecord struct {
		ID int
		restaurant.NewSponsorship
	}
)

func newTables() *tables {
	return &tables{
		seq:          make(map[string]int),
		users:        make(map[int]user.User),
		restaurants:  make(map[int]restaurantRecord),
		tags:         make(map[int]restaurant.Tag),
		reviews:      make(map[reviewKey]reviewRecord),
		sponsorships: make(map[int]sponsorshipRecord),
	}
}

func Open() *DB {
	return &DB{data: newTables()}
}

// txExec is handed to transaction bodies. It never runs queries: repositories
// only look for it to tell writes made inside the transaction from the others.
type txExec struct {
	core.DBExecutor
}

func inTx(exec []core.DBExecutor) bool {
	if len(exec) == 0 {
		return false
	}
	_, ok := exec[0].(txExec)
	return ok
}

// lockWrite takes the write lock. Writes made outside a transaction also wait
// for the running one to finish, so a rollback never discards them.
func (db *DB) lockWrite(exec []core.DBExecutor) (unlock func()) {
	if inTx(exec) {
		db.Lock()
		return db.Unlock
	}
	db.txMu.Lock()
	db.Lock()
	return func() {
		db.Unlock()
		db.txMu.Unlock()
	}
}

// nextID must be called with the write lock held.
func (db *DB) nextID(table string) int {
	db.data.seq[table]++
	return db.data.seq[table]
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.seq {
		c.seq[k] = v
	}
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.restaurants {
		trs := make(map[string]restaurant.Translation, len(v.Translations))
		for lang, tr := range v.Translations {
			trs[lang] = tr
		}
		v.Translations = trs
		v.TagIDs = append([]int(nil), v.TagIDs...)
		c.restaurants[k] = v
	}
	for k, v := range t.tags {
		c.tags[k] = v
	}
	for k, v := range t.reviews {
		c.reviews[k] = v
	}
	for k, v := range t.sponsorships {
		c.sponsorships[k] = v
	}
	return c
}

type transactor struct {
	db *DB
}

var _ core.Transactor = (*transactor)(nil)

func NewTransactor(db *DB) core.Transactor {
	return &transactor{db: db}
}

// WithinTx runs transactions one at a time and restores the previous state when fn fails.
// Writes inside fn must pass exec to the repositories. Reads outside a
// transaction may observe its uncommitted writes.
func (t *transactor) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	t.db.txMu.Lock()
	defer t.db.txMu.Unlock()

	if err = ctx.Err(); err != nil {
		return err
	}

	t.db.RLock()
	snapshot := t.db.data.clone()
	t.db.RUnlock()

	rollback := func() {
		t.db.Lock()
		t.db.data = snapshot
		t.db.Unlock()
	}
	defer func() {
		if p := recover(); p != nil {
			rollback()
			panic(p)
		}
		if err != nil {
			rollback()
		}
	}()

	return fn(txExec{})
}
