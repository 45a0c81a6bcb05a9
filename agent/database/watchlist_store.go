package database

import (
	"context"
	"fmt"
	"sync"

	"mint-sniper/agent/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostgresSnapshotStore keeps the pending watchlist and the seen set in postgres.
// Seen mints already written (or loaded) are remembered so each is inserted once.
type PostgresSnapshotStore struct {
	db *gorm.DB

	mu        sync.Mutex
	persisted map[string]struct{}
}

func NewPostgresSnapshotStore(db *gorm.DB) *PostgresSnapshotStore {
	return &PostgresSnapshotStore{db: db, persisted: make(map[string]struct{})}
}

// unsaved filters seen down to mints not yet written.
func (s *PostgresSnapshotStore) unsaved(seen []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []string
	for _, mint := range seen {
		if _, ok := s.persisted[mint]; !ok {
			fresh = append(fresh, mint)
		}
	}
	return fresh
}

func (s *PostgresSnapshotStore) markPersisted(mints []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, mint := range mints {
		s.persisted[mint] = struct{}{}
	}
}

// Save replaces the stored pending set with entries and appends seen mints
// that were not written by an earlier Save.
func (s *PostgresSnapshotStore) Save(ctx context.Context, entries []models.WatchlistEntry, seen []string) error {
	fresh := s.unsaved(seen)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		mints := make([]string, 0, len(entries))
		rows := make([]models.WatchlistRow, 0, len(entries))
		for _, e := range entries {
			mints = append(mints, e.Mint)
			rows = append(rows, e.ToRow())
		}

		del := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		if len(mints) > 0 {
			del = del.Where("mint NOT IN ?", mints)
		}
		if err := del.Delete(&models.WatchlistRow{}).Error; err != nil {
			return fmt.Errorf("prune watchlist rows: %w", err)
		}

		if len(rows) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "mint"}},
				UpdateAll: true,
			}).Create(&rows).Error; err != nil {
				return fmt.Errorf("upsert watchlist rows: %w", err)
			}
		}

		if len(fresh) > 0 {
			seenRows := make([]models.SeenMint, 0, len(fresh))
			for _, mint := range fresh {
				seenRows = append(seenRows, models.SeenMint{Mint: mint})
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seenRows).Error; err != nil {
				return fmt.Errorf("insert seen mints: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.markPersisted(fresh)
	return nil
}

func (s *PostgresSnapshotStore) Load(ctx context.Context) ([]models.WatchlistEntry, []string, error) {
	var rows []models.WatchlistRow
	if err := s.db.WithContext(ctx).Order("added_at").Find(&rows).Error; err != nil {
		return nil, nil, fmt.Errorf("load watchlist rows: %w", err)
	}
	var seenRows []models.SeenMint
	if err := s.db.WithContext(ctx).Order("mint").Find(&seenRows).Error; err != nil {
		return nil, nil, fmt.Errorf("load seen mints: %w", err)
	}

	entries := make([]models.WatchlistEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, r.ToEntry())
	}
	seen := make([]string, 0, len(seenRows))
	for _, r := range seenRows {
		seen = append(seen, r.Mint)
	}
	s.markPersisted(seen)
	return entries, seen, nil
}
