package requestlog

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultCapacity is the ring buffer size used when none is configured.
const DefaultCapacity = 500

// MemoryStore is a Store backed by a fixed-size ring buffer. When full, each
// new entry overwrites the oldest one.
type MemoryStore struct {
	mu     sync.RWMutex
	buf    []*Entry
	start  int // index of the oldest entry
	size   int
	nextID int64

	subMu       sync.RWMutex
	subscribers map[Subscriber]struct{}
}

// NewMemoryStore creates a MemoryStore holding up to capacity entries.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		buf:         make([]*Entry, capacity),
		subscribers: make(map[Subscriber]struct{}),
	}
}

// Capacity returns the maximum number of entries kept.
func (s *MemoryStore) Capacity() int {
	return len(s.buf)
}

// Log records an entry, evicting the oldest one when full.
func (s *MemoryStore) Log(entry *Entry) {
	if entry == nil {
		return
	}

	s.mu.Lock()
	s.nextID++
	if entry.ID == "" {
		entry.ID = "req-" + strconv.FormatInt(s.nextID, 36)
	}
	if entry.Timestamp == "" {
		entry.Timestamp = FormatTimestamp(time.Now())
	}
	if s.size < len(s.buf) {
		s.buf[(s.start+s.size)%len(s.buf)] = entry
		s.size++
	} else {
		s.buf[s.start] = entry
		s.start = (s.start + 1) % len(s.buf)
	}
	s.mu.Unlock()

	s.subMu.RLock()
	for sub := range s.subscribers {
		select {
		case sub <- entry:
		default:
			// Drop if subscriber is slow
		}
	}
	s.subMu.RUnlock()
}

// Get retrieves an entry by ID.
func (s *MemoryStore) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := 0; i < s.size; i++ {
		if e := s.at(i); e.ID == id {
			return e
		}
	}
	return nil
}

// List returns entries newest first.
func (s *MemoryStore) List(filter *Filter) []*Entry {
	s.mu.RLock()
	result := make([]*Entry, 0, s.size)
	for i := s.size - 1; i >= 0; i-- {
		e := s.at(i)
		if filter != nil && !matchesFilter(e, filter) {
			continue
		}
		result = append(result, e)
	}
	s.mu.RUnlock()

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(result) {
				return []*Entry{}
			}
			result = result[filter.Offset:]
		}
		if filter.Limit > 0 && filter.Limit < len(result) {
			result = result[:filter.Limit]
		}
	}
	return result
}

// Clear removes all entries.
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.buf)
	s.start, s.size = 0, 0
}

// Count returns the number of entries.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Subscribe registers a subscriber for new entries. Slow subscribers miss
// entries rather than block logging.
func (s *MemoryStore) Subscribe() (Subscriber, func()) {
	ch := make(Subscriber, 100)

	s.subMu.Lock()
	s.subscribers[ch] = struct{}{}
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subscribers, ch)
			s.subMu.Unlock()
			close(ch)
		})
	}
}

// at returns the i-th oldest entry. Callers hold mu.
func (s *MemoryStore) at(i int) *Entry {
	return s.buf[(s.start+i)%len(s.buf)]
}

func matchesFilter(e *Entry, f *Filter) bool {
	if f.Method != "" && !strings.EqualFold(e.Method, f.Method) {
		return false
	}
	if f.Path != "" && !matchesPath(f.Path, e.Path) {
		return false
	}
	if f.StatusCode != 0 && e.StatusCode != f.StatusCode {
		return false
	}
	if f.Matched != nil && e.Matched != *f.Matched {
		return false
	}
	if f.APIName != "" && e.APIName != f.APIName {
		return false
	}
	return true
}

func matchesPath(pattern, path string) bool {
	if strings.ContainsAny(pattern, "*?[{") {
		ok, err := doublestar.Match(pattern, path)
		return err == nil && ok
	}
	return strings.HasPrefix(path, pattern)
}

// Ensure MemoryStore implements Store.
var _ Store = (*MemoryStore)(nil)
