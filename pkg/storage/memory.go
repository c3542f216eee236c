package storage

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/absmach/fedanomaly/pkg/errors"
	"github.com/absmach/fedanomaly/pkg/results"
)

// memoryStore holds entities of one type keyed by ID. list returns them in
// the order defined by compare.
type memoryStore[T any] struct {
	mu      sync.RWMutex
	items   map[string]T
	id      func(T) string
	compare func(a, b T) int
}

func newMemoryStore[T any](id func(T) string, compare func(a, b T) int) *memoryStore[T] {
	return &memoryStore[T]{
		items:   make(map[string]T),
		id:      id,
		compare: compare,
	}
}

func (s *memoryStore[T]) create(item T) error {
	id := s.id(item)
	if id == "" {
		return errors.ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[id]; ok {
		return errors.ErrEntityExists
	}
	s.items[id] = item

	return nil
}

func (s *memoryStore[T]) get(id string) (T, error) {
	var zero T
	if id == "" {
		return zero, errors.ErrEmptyKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return zero, errors.ErrNotFound
	}

	return item, nil
}

// list pages through the entities that match. The total counts every match.
func (s *memoryStore[T]) list(match func(T) bool, offset, limit uint64) ([]T, uint64) {
	s.mu.RLock()
	matched := make([]T, 0, len(s.items))
	for _, item := range s.items {
		if match(item) {
			matched = append(matched, item)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, s.compare)

	total := uint64(len(matched))
	if offset >= total {
		return []T{}, total
	}

	return matched[offset:min(offset+limit, total)], total
}

type memoryRoundRepo struct {
	store *memoryStore[results.Round]
}

func newMemoryRoundRepository() RoundRepository {
	return memoryRoundRepo{
		store: newMemoryStore(func(r results.Round) string { return r.ID }, func(a, b results.Round) int {
			return cmp.Or(
				cmp.Compare(a.ClientID, b.ClientID),
				cmp.Compare(a.Round, b.Round),
				cmp.Compare(a.ID, b.ID),
			)
		}),
	}
}

func (r memoryRoundRepo) Create(_ context.Context, rd results.Round) error {
	return r.store.create(rd)
}

func (r memoryRoundRepo) Get(_ context.Context, id string) (results.Round, error) {
	return r.store.get(id)
}

func (r memoryRoundRepo) List(_ context.Context, clientID string, offset, limit uint64) ([]results.Round, uint64, error) {
	items, total := r.store.list(func(rd results.Round) bool {
		return clientID == "" || rd.ClientID == clientID
	}, offset, limit)

	return items, total, nil
}

type memoryReportRepo struct {
	store *memoryStore[results.Report]
}

func newMemoryReportRepository() ReportRepository {
	return memoryReportRepo{
		store: newMemoryStore(func(r results.Report) string { return r.ID }, func(a, b results.Report) int {
			return cmp.Or(
				cmp.Compare(a.ClientID, b.ClientID),
				cmp.Compare(a.Round, b.Round),
				cmp.Compare(a.Detector, b.Detector),
				cmp.Compare(a.ID, b.ID),
			)
		}),
	}
}

func (r memoryReportRepo) Create(_ context.Context, rp results.Report) error {
	return r.store.create(rp)
}

func (r memoryReportRepo) Get(_ context.Context, id string) (results.Report, error) {
	return r.store.get(id)
}

func (r memoryReportRepo) List(_ context.Context, clientID string, offset, limit uint64) ([]results.Report, uint64, error) {
	items, total := r.store.list(func(rp results.Report) bool {
		return clientID == "" || rp.ClientID == clientID
	}, offset, limit)

	return items, total, nil
}
