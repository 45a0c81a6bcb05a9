package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"mint-sniper/agent/internal/models"
	"mint-sniper/shared/logger"
)

type waitlistFile struct {
	Waitlist map[string]models.WatchlistEntry `json:"waitlist"`
	Seen     []string                         `json:"seen"`
}

// FileSnapshotStore keeps the watchlist in a single JSON file for deployments
// without postgres.
type FileSnapshotStore struct {
	mu   sync.Mutex
	path string
	log  *logger.Logger
}

func NewFileSnapshotStore(path string, appLogger *logger.Logger) *FileSnapshotStore {
	if appLogger == nil {
		appLogger = logger.NewNop()
	}
	return &FileSnapshotStore{path: path, log: appLogger}
}

// Save writes to a temp file and renames it over the old snapshot.
func (s *FileSnapshotStore) Save(ctx context.Context, entries []models.WatchlistEntry, seen []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := waitlistFile{Waitlist: make(map[string]models.WatchlistEntry, len(entries)), Seen: seen}
	for _, e := range entries {
		doc.Waitlist[e.Mint] = e
	}
	if doc.Seen == nil {
		doc.Seen = []string{}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode waitlist: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create waitlist dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".waitlist-*.json")
	if err != nil {
		return fmt.Errorf("create temp waitlist: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp waitlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp waitlist: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace waitlist: %w", err)
	}
	return nil
}

// Load returns the stored state. A missing, empty or corrupt file is a fresh start.
func (s *FileSnapshotStore) Load(ctx context.Context) ([]models.WatchlistEntry, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read waitlist: %w", err)
	}
	if len(data) == 0 {
		return nil, nil, nil
	}

	var doc waitlistFile
	if err := json.Unmarshal(data, &doc); err != nil {
		s.log.Warn("Waitlist file is corrupt, starting fresh", "path", s.path, "error", err)
		return nil, nil, nil
	}

	entries := make([]models.WatchlistEntry, 0, len(doc.Waitlist))
	for mint, e := range doc.Waitlist {
		if e.Mint == "" {
			e.Mint = mint
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].AddedAt.Before(entries[j].AddedAt) })
	return entries, doc.Seen, nil
}
