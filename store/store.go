// Package store persists device-scoped key-value state (session id,
// trial flag) across restarts. The Bun-backed store is the durable
// default; MemoryStore backs tests and ephemeral environments.
package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// DeviceStateModel is the Bun model for persisted device state entries.
type DeviceStateModel struct {
	bun.BaseModel `bun:"table:device_state"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BunStore is a durable key-value store backed by Bun.
type BunStore struct {
	db *bun.DB
}

// Open opens (or creates) a sqlite-backed store at path. Use ":memory:"
// for a throwaway database.
func Open(ctx context.Context, path string) (*BunStore, error) {
	sqldb, err := sql.Open(sqliteshim.ShimName, path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open device store")
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())
	s := &BunStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewBunStore wraps an existing Bun handle. The schema is created on
// first use if missing.
func NewBunStore(ctx context.Context, db *bun.DB) (*BunStore, error) {
	s := &BunStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BunStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*DeviceStateModel)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create device_state table")
	}
	return nil
}

// Get returns the value for key; the second return is false when the key
// is absent.
func (s *BunStore) Get(ctx context.Context, key string) (string, bool, error) {
	var model DeviceStateModel
	err := s.db.NewSelect().
		Model(&model).
		Where("key = ?", key).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, errors.Wrap(err, errors.CategoryInternal, "failed to read device state")
	}
	return model.Value, true, nil
}

// Set writes value under key, replacing any previous value.
func (s *BunStore) Set(ctx context.Context, key, value string) error {
	model := &DeviceStateModel{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}

	_, err := s.db.NewInsert().
		Model(model).
		On("CONFLICT (key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to write device state")
	}
	return nil
}

// Close releases the underlying database handle.
func (s *BunStore) Close() error {
	return s.db.Close()
}
