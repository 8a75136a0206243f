package cachestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Entry is a cached value persisted in the database.
type Entry struct {
	Key       string    `gorm:"column:cache_key;primaryKey;size:512"`
	Value     string    `gorm:"type:text;not null"`
	ExpiresAt time.Time `gorm:"index;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for the Entry model.
func (Entry) TableName() string {
	return "discovery_cache_entries"
}

// SQL is a Store persisted through gorm.
type SQL struct {
	db  *gorm.DB
	now func() time.Time
}

var _ Store = (*SQL)(nil)

// OpenSQL opens a database for the SQL store. driver is "postgres" or "sqlite".
func OpenSQL(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q (must be 'postgres' or 'sqlite')", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return db, nil
}

// NewSQL creates the store and migrates its table.
func NewSQL(db *gorm.DB) (*SQL, error) {
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate cache table: %w", err)
	}
	return &SQL{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Get implements Store.
func (s *SQL) Get(ctx context.Context, key string) (string, bool, error) {
	var e Entry
	err := s.db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", key, s.now()).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cache entry %q: %w", key, err)
	}
	return e.Value, true, nil
}

// Put implements Store.
func (s *SQL) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	e := Entry{
		Key:       key,
		Value:     value,
		ExpiresAt: s.now().Add(capTTL(ttl)),
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cache_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).
		Create(&e).Error
	if err != nil {
		return fmt.Errorf("failed to write cache entry %q: %w", key, err)
	}
	return nil
}

// Purge deletes expired entries and returns how many were removed.
func (s *SQL) Purge(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", s.now()).
		Delete(&Entry{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to purge cache entries: %w", res.Error)
	}
	return res.RowsAffected, nil
}
