package storage

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrInvalidCacheName indicates an empty cache name.
	ErrInvalidCacheName = errors.New("cache name must not be empty")
	// ErrNotFound is returned when a cache or an entry does not exist.
	ErrNotFound = errors.New("cache entry not found")
)

// Entry is one cached response body.
type Entry struct {
	Path            string
	ContentType     string
	ContentLanguage string
	Vary            string
	Body            []byte
	StoredAt        time.Time
}

// Storage keeps named caches of entries keyed by request path.
type Storage interface {
	Open(name string) error
	Put(name string, entry Entry) error
	Replace(name string, entries []Entry) error
	Match(name, path string) (Entry, error)
	Names() []string
	Delete(name string) bool
}

// MemoryStorage keeps caches in-memory and guards access with a RWMutex.
type MemoryStorage struct {
	mu     sync.RWMutex
	caches map[string]map[string]Entry
}

// NewMemoryStorage returns an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		caches: make(map[string]map[string]Entry),
	}
}

// Open creates the named cache if it does not exist yet.
func (s *MemoryStorage) Open(name string) error {
	if name == "" {
		return ErrInvalidCacheName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.caches[name]; !ok {
		s.caches[name] = make(map[string]Entry)
	}
	return nil
}

// Put stores a defensive copy of entry in the named cache, opening it when needed.
func (s *MemoryStorage) Put(name string, entry Entry) error {
	if name == "" {
		return ErrInvalidCacheName
	}

	entry = cloneEntry(entry)

	s.mu.Lock()
	defer s.mu.Unlock()
	cache, ok := s.caches[name]
	if !ok {
		cache = make(map[string]Entry)
		s.caches[name] = cache
	}
	cache[entry.Path] = entry
	return nil
}

// Replace swaps the whole content of the named cache for entries in one step,
// so paths missing from entries are no longer matched.
func (s *MemoryStorage) Replace(name string, entries []Entry) error {
	if name == "" {
		return ErrInvalidCacheName
	}

	cache := make(map[string]Entry, len(entries))
	for _, entry := range entries {
		cache[entry.Path] = cloneEntry(entry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.caches[name] = cache
	return nil
}

// Match returns a copy of the entry stored for path.
func (s *MemoryStorage) Match(name, path string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cache, ok := s.caches[name]
	if !ok {
		return Entry{}, ErrNotFound
	}
	entry, ok := cache[path]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return cloneEntry(entry), nil
}

// Names returns the cache names in sorted order.
func (s *MemoryStorage) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.caches))
	for name := range s.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Delete drops the named cache and reports whether it existed.
func (s *MemoryStorage) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.caches[name]; !ok {
		return false
	}
	delete(s.caches, name)
	return true
}

func cloneEntry(src Entry) Entry {
	out := src
	if src.Body != nil {
		out.Body = make([]byte, len(src.Body))
		copy(out.Body, src.Body)
	}
	return out
}
