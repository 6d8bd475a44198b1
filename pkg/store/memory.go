// Package store provides the durable implementations of ledger.Store:
// an in-memory store for tests and development, and a SQL store
// working over SQLite or Postgres through database/sql.
package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/chainlogistics/provenance/pkg/ledger"
)

// MemoryStore is a mutex-guarded in-memory ledger.Store. Tests supply
// one isolated instance per case.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]ledger.Product
	events   map[string]map[ledger.Stream][]ledger.TrackingEvent
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]ledger.Product),
		events:   make(map[string]map[ledger.Stream][]ledger.TrackingEvent),
	}
}

func (m *MemoryStore) GetProduct(ctx context.Context, id string) (ledger.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return ledger.Product{}, fmt.Errorf("%w: %s", ledger.ErrNotFound, id)
	}
	return copyProduct(p), nil
}

func (m *MemoryStore) HasProduct(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.products[id]
	return ok, nil
}

func (m *MemoryStore) GetEvent(ctx context.Context, productID string, stream ledger.Stream, seq uint64) (ledger.TrackingEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	byStream, ok := m.events[productID]
	if !ok {
		return ledger.TrackingEvent{}, fmt.Errorf("%w: %s/%d", ledger.ErrEventNotFound, productID, seq)
	}
	events := byStream[stream]
	if seq >= uint64(len(events)) {
		return ledger.TrackingEvent{}, fmt.Errorf("%w: %s/%d", ledger.ErrEventNotFound, productID, seq)
	}
	return events[seq], nil
}

func (m *MemoryStore) ListEvents(ctx context.Context, productID string, stream ledger.Stream, r ledger.Range) ([]ledger.TrackingEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := m.events[productID][stream]
	if r.Start >= uint64(len(events)) {
		return []ledger.TrackingEvent{}, nil
	}
	events = events[r.Start:]
	if r.Limit > 0 && r.Limit < len(events) {
		events = events[:r.Limit]
	}
	out := make([]ledger.TrackingEvent, len(events))
	copy(out, events)
	return out, nil
}

func (m *MemoryStore) Commit(ctx context.Context, mut ledger.Mutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Validate the whole write set before touching stored state so a
	// failed commit leaves nothing behind.
	existing := m.events[mut.Product.ID]
	next := make(map[ledger.Stream]uint64)
	for _, ev := range mut.Events {
		if _, ok := next[ev.Stream]; !ok {
			next[ev.Stream] = uint64(len(existing[ev.Stream]))
		}
		if ev.Sequence != next[ev.Stream] {
			return fmt.Errorf("sequence %d out of order for %s/%s", ev.Sequence, ev.ProductID, ev.Stream)
		}
		next[ev.Stream]++
	}

	if existing == nil {
		existing = make(map[ledger.Stream][]ledger.TrackingEvent)
		m.events[mut.Product.ID] = existing
	}
	for _, ev := range mut.Events {
		existing[ev.Stream] = append(existing[ev.Stream], ev)
	}
	m.products[mut.Product.ID] = copyProduct(mut.Product)
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// copyProduct detaches the record's slices and map so callers cannot
// alias stored state.
func copyProduct(p ledger.Product) ledger.Product {
	out := p
	out.AuthorizedActors = append([]string(nil), p.AuthorizedActors...)
	out.Tags = append([]string(nil), p.Tags...)
	out.Certifications = append([]string(nil), p.Certifications...)
	out.MediaHashes = append([]string(nil), p.MediaHashes...)
	if p.Custom != nil {
		out.Custom = make(map[string]string, len(p.Custom))
		for k, v := range p.Custom {
			out.Custom[k] = v
		}
	}
	return out
}
