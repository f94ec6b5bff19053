package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"requisition-sync/internal/model"
)

// Collection names.
const (
	Requisitions             = "requisitions"
	BatchApproveRequisitions = "batchApproveRequisitions"
	StatusMessages           = "statusMessages"
	OnlineOnly               = "onlineOnly"
)

// Keyed is a record that knows its storage key.
type Keyed interface {
	Key() string
}

// Collection is a key-indexed local record store. Put is an upsert by key
// and Search makes no ordering promise to callers.
type Collection[T Keyed] interface {
	Name() string
	Get(ctx context.Context, id string) (T, bool, error)
	Search(ctx context.Context, match func(T) bool) ([]T, error)
	Put(ctx context.Context, record T) error
	RemoveBy(ctx context.Context, field, value string) error
}

// gormCollection implements Collection on the local_records table, with a
// go-cache read cache of encoded payloads in front of it.
type gormCollection[T Keyed] struct {
	db    *gorm.DB
	name  string
	cache *cache.Cache
}

// NewGormCollection creates a GORM-backed collection.
func NewGormCollection[T Keyed](db *gorm.DB, name string, cacheTTL time.Duration) Collection[T] {
	return &gormCollection[T]{
		db:    db,
		name:  name,
		cache: cache.New(cacheTTL, 2*cacheTTL),
	}
}

func (c *gormCollection[T]) Name() string {
	return c.name
}

// Get returns the record stored under id. A missing record is not an error.
func (c *gormCollection[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	if payload, found := c.cache.Get(id); found {
		record, err := c.decode(payload.([]byte))
		return record, err == nil, err
	}

	var row model.LocalRecord
	err := c.db.WithContext(ctx).
		Where("collection = ? AND id = ?", c.name, id).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, fmt.Errorf("failed to read %s/%s: %w", c.name, id, err)
	}

	record, err := c.decode(row.Payload)
	if err != nil {
		return zero, false, err
	}
	c.cache.SetDefault(id, row.Payload)
	return record, true, nil
}

// Search returns every record accepted by match. A nil match returns all.
func (c *gormCollection[T]) Search(ctx context.Context, match func(T) bool) ([]T, error) {
	var rows []model.LocalRecord
	if err := c.db.WithContext(ctx).
		Where("collection = ?", c.name).
		Order("id").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", c.name, err)
	}

	var results []T
	for _, row := range rows {
		record, err := c.decode(row.Payload)
		if err != nil {
			return nil, err
		}
		if match == nil || match(record) {
			results = append(results, record)
		}
	}
	return results, nil
}

// Put inserts the record or replaces the one stored under the same key.
func (c *gormCollection[T]) Put(ctx context.Context, record T) error {
	id := record.Key()
	if id == "" {
		return fmt.Errorf("cannot store a record without id in %s", c.name)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", c.name, id, err)
	}

	row := model.LocalRecord{Collection: c.name, ID: id, Payload: payload}
	if err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to store %s/%s: %w", c.name, id, err)
	}

	c.cache.SetDefault(id, payload)
	return nil
}

// RemoveBy deletes every record whose field equals value. Field "id" is the
// storage key; any other field is a dotted path into the stored JSON.
func (c *gormCollection[T]) RemoveBy(ctx context.Context, field, value string) error {
	if field == "id" {
		if err := c.db.WithContext(ctx).
			Where("collection = ? AND id = ?", c.name, value).
			Delete(&model.LocalRecord{}).Error; err != nil {
			return fmt.Errorf("failed to remove %s/%s: %w", c.name, value, err)
		}
		c.cache.Delete(value)
		return nil
	}

	var rows []model.LocalRecord
	if err := c.db.WithContext(ctx).Where("collection = ?", c.name).Find(&rows).Error; err != nil {
		return fmt.Errorf("failed to scan %s: %w", c.name, err)
	}

	var ids []string
	for _, row := range rows {
		var doc map[string]any
		if err := json.Unmarshal(row.Payload, &doc); err != nil {
			return fmt.Errorf("failed to decode %s/%s: %w", c.name, row.ID, err)
		}
		if v, ok := lookup(doc, field); ok && fmt.Sprint(v) == value {
			ids = append(ids, row.ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	if err := c.db.WithContext(ctx).
		Where("collection = ? AND id IN ?", c.name, ids).
		Delete(&model.LocalRecord{}).Error; err != nil {
		return fmt.Errorf("failed to remove from %s by %s: %w", c.name, field, err)
	}
	for _, id := range ids {
		c.cache.Delete(id)
	}
	return nil
}

func (c *gormCollection[T]) decode(payload []byte) (T, error) {
	var record T
	if err := json.Unmarshal(payload, &record); err != nil {
		return record, fmt.Errorf("failed to decode record from %s: %w", c.name, err)
	}
	return record, nil
}

func lookup(doc map[string]any, path string) (any, bool) {
	var current any = doc
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}
