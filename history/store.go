package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 100
)

// Store persists generation records. A nil *Store is valid and drops every write.
type Store struct {
	db *gorm.DB
}

// NewStore migrates the schema and returns a Store. A nil db yields a nil Store.
func NewStore(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, nil
	}
	if err := db.AutoMigrate(&Generation{}); err != nil {
		return nil, fmt.Errorf("history: migrate tables: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Enabled() bool {
	return s != nil && s.db != nil
}

// EncodeProductInfo marshals any product info value for the ProductInfo column.
func EncodeProductInfo(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

// Record inserts gen, assigning an id when it has none.
func (s *Store) Record(ctx context.Context, gen *Generation) error {
	if !s.Enabled() || gen == nil {
		return nil
	}
	if strings.TrimSpace(gen.ID) == "" {
		gen.ID = uuid.NewString()
	}
	if gen.Status == "" {
		gen.Status = StatusFailed
	}
	if !gen.CreatedAt.IsZero() {
		gen.CreatedAt = gen.CreatedAt.UTC()
	}
	if strings.HasPrefix(gen.HostedImageURL, "data:") {
		gen.HostedImageURL = ""
	}
	if err := s.db.WithContext(ctx).Create(gen).Error; err != nil {
		return fmt.Errorf("history: record generation: %w", err)
	}
	return nil
}

// Recent returns the newest generations first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Generation, error) {
	if !s.Enabled() {
		return nil, nil
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	var out []Generation
	if err := s.db.WithContext(ctx).Order("created_at desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("history: list generations: %w", err)
	}
	return out, nil
}

// Get loads one generation by id.
func (s *Store) Get(ctx context.Context, id string) (*Generation, error) {
	if !s.Enabled() {
		return nil, gorm.ErrRecordNotFound
	}
	var gen Generation
	if err := s.db.WithContext(ctx).First(&gen, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &gen, nil
}

// PurgeOlderThan deletes generations created before cutoff and returns them.
func (s *Store) PurgeOlderThan(ctx context.Context, cutoff time.Time) ([]Generation, error) {
	if !s.Enabled() {
		return nil, nil
	}

	var expired []Generation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("created_at < ?", cutoff.UTC()).Find(&expired).Error; err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}
		ids := make([]string, 0, len(expired))
		for _, gen := range expired {
			ids = append(ids, gen.ID)
		}
		return tx.Where("id IN ?", ids).Delete(&Generation{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("history: purge generations: %w", err)
	}
	return expired, nil
}
