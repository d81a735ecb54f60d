// Package memory provides an in-memory implementation of storage.ThreadStore
// and storage.ModelStore for testing and lightweight deployments. Threads are
// lost when the process restarts. Optional LRU eviction limits memory usage.
package memory

import (
	"container/list"
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/llmarena/arena/pkg/api"
	"github.com/llmarena/arena/pkg/storage"
)

// entry holds a stored thread and its position in the LRU list.
type entry struct {
	thread  *api.Thread
	lruElem *list.Element
}

// Store is an in-memory thread and model store with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited

	models map[string]api.ModelConfig

	now func() time.Time
}

var (
	_ storage.ThreadStore = (*Store)(nil)
	_ storage.ModelStore  = (*Store)(nil)
)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used thread is evicted
// when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
		models:  make(map[string]api.ModelConfig),
		now:     time.Now,
	}
}

// GetThread returns a copy of the thread. Scoped by owner when an owner is
// present in the context.
func (s *Store) GetThread(ctx context.Context, id string) (*api.Thread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	s.lruList.MoveToFront(e.lruElem)
	return e.thread.Clone(), nil
}

// CreateOrAssign creates the thread or fills in an empty assignment.
func (s *Store) CreateOrAssign(ctx context.Context, id string, modelIDs []string, ownerID, category string, initial *api.InitialContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.entries[id]
	if !ok {
		if s.maxSize > 0 && len(s.entries) >= s.maxSize {
			s.evictOldest()
		}
		th := &api.Thread{
			ID:             id,
			OwnerID:        ownerID,
			CreatedAt:      now,
			UpdatedAt:      now,
			Category:       category,
			SelectedModels: slices.Clone(modelIDs),
		}
		if initial != nil {
			ic := *initial
			th.InitialContext = &ic
		}
		s.entries[id] = &entry{thread: th, lruElem: s.lruList.PushFront(id)}
		return nil
	}

	th := e.thread
	if th.OwnerID != "" && ownerID != "" && th.OwnerID != ownerID {
		return nil
	}
	if !th.Assigned() {
		th.SelectedModels = slices.Clone(modelIDs)
	}
	if th.OwnerID == "" {
		th.OwnerID = ownerID
	}
	if th.Category == "" {
		th.Category = category
	}
	if th.InitialContext == nil && initial != nil {
		ic := *initial
		th.InitialContext = &ic
	}
	if th.CreatedAt.IsZero() {
		th.CreatedAt = now
	}
	th.UpdatedAt = now
	s.lruList.MoveToFront(e.lruElem)
	return nil
}

// AppendMessage appends msg to the log of the side modelID answers on.
func (s *Store) AppendMessage(ctx context.Context, id, modelID string, msg api.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}
	side, ok := e.thread.SideOf(modelID)
	if !ok {
		return storage.ErrModelNotAssigned
	}
	e.thread.Append(side, msg)
	e.thread.UpdatedAt = s.now()
	return nil
}

// ListModels returns all directory records ordered by model id.
func (s *Store) ListModels(_ context.Context) ([]api.ModelConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.ModelConfig, 0, len(s.models))
	for _, m := range s.models {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b api.ModelConfig) int {
		return strings.Compare(a.Model, b.Model)
	})
	return out, nil
}

// UpsertModel stores cfg keyed by its model id.
func (s *Store) UpsertModel(_ context.Context, cfg api.ModelConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.models[cfg.Model] = cfg
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored threads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// lookup finds an entry and applies owner scoping.
// Must be called with s.mu held.
func (s *Store) lookup(ctx context.Context, id string) (*entry, error) {
	e, ok := s.entries[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if owner := storage.GetOwner(ctx); owner != "" && e.thread.OwnerID != owner {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}
