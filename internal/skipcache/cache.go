package skipcache

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"reviewharvest/internal/fileutil"
	"reviewharvest/internal/logging"
)

// Entry is one cached negative outcome.
type Entry struct {
	ID       string    `json:"id"`
	Reason   string    `json:"reason"`
	CachedAt time.Time `json:"cached_at"`
}

// Cache is a persisted map of natural ID to negative outcome. Every mutation
// rewrites the backing file atomically before returning.
type Cache struct {
	path    string
	logger  *slog.Logger
	entries map[string]Entry
	now     func() time.Time
}

// Open loads the cache at path. A missing file yields an empty cache; a
// corrupt one is an error so it is never silently overwritten.
func Open(path string, logger *slog.Logger) (*Cache, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("skip cache path is empty")
	}
	c := &Cache{
		path:    path,
		logger:  logging.NewComponentLogger(logger, "skipcache"),
		entries: make(map[string]Entry),
		now:     time.Now,
	}
	var entries []Entry
	found, err := fileutil.ReadJSON(path, &entries)
	if err != nil {
		return nil, fmt.Errorf("load skip cache: %w", err)
	}
	if found {
		for _, entry := range entries {
			if id := strings.TrimSpace(entry.ID); id != "" {
				c.entries[id] = entry
			}
		}
		c.logger.Debug("loaded skip cache",
			logging.Int("entry_count", len(c.entries)),
			logging.String("path", path))
	}
	return c, nil
}

// Path returns the backing file.
func (c *Cache) Path() string {
	return c.path
}

// Lookup returns the cached negative for id, if any.
func (c *Cache) Lookup(id string) (Entry, bool) {
	entry, ok := c.entries[strings.TrimSpace(id)]
	return entry, ok
}

// RecordNegative marks id with reason and persists immediately, so a crash
// after this call never repeats the request. An id already cached keeps its
// first reason and timestamp.
func (c *Cache) RecordNegative(id, reason string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if _, ok := c.entries[id]; ok {
		return nil
	}
	c.entries[id] = Entry{ID: id, Reason: strings.TrimSpace(reason), CachedAt: c.now().UTC()}
	if err := c.save(); err != nil {
		return fmt.Errorf("persist skip cache: %w", err)
	}
	c.logger.Debug("recorded negative outcome",
		logging.String(logging.FieldVideoID, id),
		logging.String("reason", reason))
	return nil
}

// Remove deletes id so the next run asks the API again.
func (c *Cache) Remove(id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("id cannot be empty")
	}
	if _, ok := c.entries[id]; !ok {
		return fmt.Errorf("id %q not found in skip cache", id)
	}
	delete(c.entries, id)
	if err := c.save(); err != nil {
		return fmt.Errorf("persist skip cache: %w", err)
	}
	return nil
}

// Clear drops every entry and persists the empty cache.
func (c *Cache) Clear() error {
	c.entries = make(map[string]Entry)
	if err := c.save(); err != nil {
		return fmt.Errorf("persist skip cache: %w", err)
	}
	return nil
}

// List returns all entries, newest first.
func (c *Cache) List() []Entry {
	entries := make([]Entry, 0, len(c.entries))
	for _, entry := range c.entries {
		entries = append(entries, entry)
	}
	sortEntries(entries)
	return entries
}

// Count returns the number of cached negatives.
func (c *Cache) Count() int {
	return len(c.entries)
}

func (c *Cache) save() error {
	return fileutil.WriteJSONAtomic(c.path, c.List())
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CachedAt.Equal(entries[j].CachedAt) {
			return entries[i].ID < entries[j].ID
		}
		return entries[i].CachedAt.After(entries[j].CachedAt)
	})
}
