package syncqueue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when no item exists for a key
var ErrNotFound = errors.New("queue item not found")

// StoreReader provides read access to queue items
type StoreReader interface {
	Get(ctx context.Context, key string) (Item, error)
	List(ctx context.Context) ([]Item, error)
}

// StoreWriter provides write access to queue items
type StoreWriter interface {
	/* Claim atomically moves the item for ev into Processing and counts the attempt
	 * It refuses, returning the existing item and false, when the item is
	 * in a final state or Processing with a claim younger than claimTTL
	 */
	Claim(ctx context.Context, ev Event, now time.Time, claimTTL time.Duration) (Item, bool, error)
	Save(ctx context.Context, it Item) error
	Delete(ctx context.Context, key string) error
}

// Store is the queue item repository
type Store interface {
	StoreReader
	StoreWriter
}

// ClaimItem computes the claim transition for implementations of Store.
// existing is ignored when found is false. A Processing item whose claim
// is older than claimTTL is taken over as a new attempt.
func ClaimItem(existing Item, found bool, ev Event, now time.Time, claimTTL time.Duration) (Item, bool) {
	if found && (existing.Status.IsFinal() || (existing.Status == Processing && !existing.ClaimExpired(now, claimTTL))) {
		return existing, false
	}

	it := existing
	if !found {
		it = Item{
			Key:       ev.Key(),
			Status:    Pending,
			CreatedAt: now,
		}
	}
	it.Event = ev
	it.Status = Processing
	it.Attempts++
	it.LastAttemptAt = now
	it.NextRetryAt = time.Time{}
	it.UpdatedAt = now
	return it, true
}

/* MemoryStore keeps items in a process-local map
 * Items do not survive a restart; use the Redis store for durability
 */
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]Item
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Item)}
}

// Get implements StoreReader
func (s *MemoryStore) Get(_ context.Context, key string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[key]
	if !ok {
		return Item{}, ErrNotFound
	}
	return it, nil
}

// List returns every item ordered by creation time
func (s *MemoryStore) List(_ context.Context) ([]Item, error) {
	s.mu.Lock()
	items := make([]Item, 0, len(s.items))
	for _, it := range s.items {
		items = append(items, it)
	}
	s.mu.Unlock()

	SortItems(items)
	return items, nil
}

// Claim implements StoreWriter
func (s *MemoryStore) Claim(_ context.Context, ev Event, now time.Time, claimTTL time.Duration) (Item, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, found := s.items[ev.Key()]
	it, claimed := ClaimItem(existing, found, ev, now, claimTTL)
	if claimed {
		s.items[it.Key] = it
	}
	return it, claimed, nil
}

// Save implements StoreWriter
func (s *MemoryStore) Save(_ context.Context, it Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[it.Key] = it
	return nil
}

// Delete implements StoreWriter
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// SortItems orders items by creation time then key
func SortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].Key < items[j].Key
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}
