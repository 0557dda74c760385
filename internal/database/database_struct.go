package database

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Database is the PostgreSQL backed document store. Writes are announced on
// the change feed so every process re-runs its subscriptions.
type Database struct {
	db    *gorm.DB
	feed  *ChangeFeed
	log   *zap.Logger
	now   func() time.Time
	newID func() string
}

type Option func(*Database)

func WithLogger(log *zap.Logger) Option {
	return func(d *Database) { d.log = log }
}

func WithClock(now func() time.Time) Option {
	return func(d *Database) { d.now = now }
}

func NewDatabase(db *gorm.DB, feed *ChangeFeed, opts ...Option) *Database {
	d := &Database{
		db:    db,
		feed:  feed,
		log:   zap.NewNop(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}
