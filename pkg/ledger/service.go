package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chainlogistics/provenance/pkg/audit"
)

// Service executes ledger operations against an injected Store. Each
// operation runs as one serialized transaction per product: a
// per-product lock guards the read-modify-write of the product record
// and its sequence counters, and the store's Commit makes the write
// set visible atomically. No caller ever observes intermediate state.
type Service struct {
	store    Store
	audit    audit.Logger
	tags     *TagRegistry
	clock    func() time.Time
	batchCap int

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the ledger clock for testing.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) { s.clock = clock }
}

// WithAuditLogger sets the operational audit sink.
func WithAuditLogger(l audit.Logger) Option {
	return func(s *Service) { s.audit = l }
}

// WithBatchCap overrides the maximum batch size.
func WithBatchCap(n int) Option {
	return func(s *Service) { s.batchCap = n }
}

// NewService creates a Service over the given store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:    store,
		audit:    audit.Nop(),
		tags:     NewTagRegistry(),
		clock:    time.Now,
		batchCap: DefaultBatchCap,
		locks:    make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tags returns the event-type tag registry.
func (s *Service) Tags() *TagRegistry { return s.tags }

// lockProduct serializes operations touching one product. The lock
// table grows with the product universe; entries are never reclaimed,
// matching the ledger's no-delete lifecycle.
func (s *Service) lockProduct(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// RegisterProduct creates a product record. The caller becomes the
// initial owner, and the authorized-actor set starts containing only
// the owner. Fails with ErrDuplicateID if the id is taken.
func (s *Service) RegisterProduct(ctx context.Context, np NewProduct) (Product, error) {
	if err := validateNewProduct(np); err != nil {
		return Product{}, err
	}

	lock := s.lockProduct(np.ID)
	lock.Lock()
	defer lock.Unlock()

	exists, err := s.store.HasProduct(ctx, np.ID)
	if err != nil {
		return Product{}, err
	}
	if exists {
		return Product{}, fmt.Errorf("%w: %s", ErrDuplicateID, np.ID)
	}

	p := Product{
		ID:               np.ID,
		Name:             np.Name,
		Description:      np.Description,
		Origin:           np.Origin,
		Category:         np.Category,
		Owner:            np.Owner,
		AuthorizedActors: []string{np.Owner},
		Active:           true,
		Tags:             np.Tags,
		Certifications:   np.Certifications,
		MediaHashes:      np.MediaHashes,
		Custom:           np.Custom,
		CreatedAt:        s.clock().UTC(),
		ChainHead:        genesisHash,
		GovChainHead:     genesisHash,
	}

	if err := s.store.Commit(ctx, Mutation{Product: p}); err != nil {
		return Product{}, err
	}

	_ = s.audit.Record(ctx, np.Owner, audit.EventMutation, "register_product", p.ID, nil)
	return p, nil
}

// GetProduct returns a product by id or ErrNotFound.
func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	return s.store.GetProduct(ctx, id)
}

// AddTrackingEvent appends one custody event and returns the stored
// record with its assigned sequence and timestamp.
func (s *Service) AddTrackingEvent(ctx context.Context, productID, actor string, in EventInput) (TrackingEvent, error) {
	if actor == "" {
		return TrackingEvent{}, ErrInvalidActor
	}
	if err := validateEventInput(in); err != nil {
		return TrackingEvent{}, err
	}

	lock := s.lockProduct(productID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return TrackingEvent{}, err
	}
	if !p.Active {
		return TrackingEvent{}, ErrProductInactive
	}
	if !canAppend(p, actor) {
		return TrackingEvent{}, fmt.Errorf("%w: %s may not append to %s", ErrUnauthorized, actor, productID)
	}

	ev, err := s.buildCustodyEvent(&p, actor, in)
	if err != nil {
		return TrackingEvent{}, err
	}

	if err := s.store.Commit(ctx, Mutation{Product: p, Events: []TrackingEvent{ev}}); err != nil {
		return TrackingEvent{}, err
	}

	_ = s.audit.Record(ctx, actor, audit.EventMutation, "add_tracking_event", productID, map[string]any{
		"sequence":   ev.Sequence,
		"event_type": ev.EventType,
	})
	return ev, nil
}

// AddTrackingEventsBatch appends an ordered list of custody events
// all-or-nothing. Authorization is checked once; every input is
// validated before any write. On success the events hold strictly
// increasing sequences in the order supplied and become visible as a
// contiguous block.
func (s *Service) AddTrackingEventsBatch(ctx context.Context, productID, actor string, inputs []EventInput) ([]TrackingEvent, error) {
	if len(inputs) > s.batchCap {
		return nil, fmt.Errorf("%w: %d events, cap %d", ErrBatchTooLarge, len(inputs), s.batchCap)
	}
	if actor == "" {
		return nil, ErrInvalidActor
	}

	lock := s.lockProduct(productID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ErrProductInactive
	}
	if !canAppend(p, actor) {
		return nil, fmt.Errorf("%w: %s may not append to %s", ErrUnauthorized, actor, productID)
	}

	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidBatch)
	}
	for i, in := range inputs {
		if err := validateEventInput(in); err != nil {
			return nil, fmt.Errorf("%w: input %d: %v", ErrInvalidBatch, i, err)
		}
	}

	// All inputs valid; buffer the full write set, then commit once.
	events := make([]TrackingEvent, 0, len(inputs))
	for _, in := range inputs {
		ev, err := s.buildCustodyEvent(&p, actor, in)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	if err := s.store.Commit(ctx, Mutation{Product: p, Events: events}); err != nil {
		return nil, err
	}

	_ = s.audit.Record(ctx, actor, audit.EventMutation, "add_tracking_events_batch", productID, map[string]any{
		"count":          len(events),
		"first_sequence": events[0].Sequence,
	})
	return events, nil
}

// GetTrackingEvents returns the custody events of a product in
// ascending sequence order, restricted by r. The read is restartable:
// callers paginate by advancing r.Start.
func (s *Service) GetTrackingEvents(ctx context.Context, productID string, r Range) ([]TrackingEvent, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, productID, StreamCustody, r)
}

// GetGovernanceEvents returns the governance trail of a product in
// ascending sequence order, restricted by r.
func (s *Service) GetGovernanceEvents(ctx context.Context, productID string, r Range) ([]TrackingEvent, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, productID, StreamGovernance, r)
}

// GetEvent returns one custody event by sequence, or ErrEventNotFound.
func (s *Service) GetEvent(ctx context.Context, productID string, seq uint64) (TrackingEvent, error) {
	if _, err := s.store.GetProduct(ctx, productID); err != nil {
		return TrackingEvent{}, err
	}
	return s.store.GetEvent(ctx, productID, StreamCustody, seq)
}

// IsAuthorized reports whether actor may append custody events to the
// product.
func (s *Service) IsAuthorized(ctx context.Context, productID, actor string) (bool, error) {
	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	return canAppend(p, actor), nil
}

// TransferOwnership replaces the product's owner. The previous owner
// loses membership in the authorized set unless explicitly re-added;
// the new owner is added the same way registration seeds the set.
func (s *Service) TransferOwnership(ctx context.Context, productID, currentOwner, newOwner string) error {
	if newOwner == "" {
		return ErrInvalidOwner
	}

	lock := s.lockProduct(productID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !isOwner(p, currentOwner) {
		return fmt.Errorf("%w: %s is not the owner of %s", ErrUnauthorized, currentOwner, productID)
	}
	if newOwner == currentOwner {
		return nil
	}

	p.AuthorizedActors = removeActor(p.AuthorizedActors, currentOwner)
	if !containsActor(p.AuthorizedActors, newOwner) {
		p.AuthorizedActors = append(p.AuthorizedActors, newOwner)
	}
	p.Owner = newOwner

	ev, err := s.buildGovernanceEvent(&p, currentOwner, TagOwnershipTransfer, map[string]string{
		"from": currentOwner,
		"to":   newOwner,
	})
	if err != nil {
		return err
	}

	if err := s.store.Commit(ctx, Mutation{Product: p, Events: []TrackingEvent{ev}}); err != nil {
		return err
	}

	_ = s.audit.Record(ctx, currentOwner, audit.EventMutation, "transfer_ownership", productID, map[string]any{
		"new_owner": newOwner,
	})
	return nil
}

// AddAuthorizedActor grants actor append access. Adding an actor that
// is already present is an idempotent success: no write, no
// governance event.
func (s *Service) AddAuthorizedActor(ctx context.Context, productID, owner, actor string) error {
	if actor == "" {
		return ErrInvalidActor
	}

	lock := s.lockProduct(productID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !isOwner(p, owner) {
		return fmt.Errorf("%w: only the owner may grant access to %s", ErrUnauthorized, productID)
	}
	if containsActor(p.AuthorizedActors, actor) {
		return nil
	}

	p.AuthorizedActors = append(p.AuthorizedActors, actor)

	ev, err := s.buildGovernanceEvent(&p, owner, TagAccessGranted, map[string]string{"actor": actor})
	if err != nil {
		return err
	}

	if err := s.store.Commit(ctx, Mutation{Product: p, Events: []TrackingEvent{ev}}); err != nil {
		return err
	}

	_ = s.audit.Record(ctx, owner, audit.EventMutation, "add_authorized_actor", productID, map[string]any{
		"actor": actor,
	})
	return nil
}

// RemoveAuthorizedActor revokes actor's append access. Removing an
// absent actor is an idempotent success. Removing the owner from the
// set is allowed but has no effect on access: ownership is always
// implicitly authorized.
func (s *Service) RemoveAuthorizedActor(ctx context.Context, productID, owner, actor string) error {
	if actor == "" {
		return ErrInvalidActor
	}

	lock := s.lockProduct(productID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !isOwner(p, owner) {
		return fmt.Errorf("%w: only the owner may revoke access to %s", ErrUnauthorized, productID)
	}
	if !containsActor(p.AuthorizedActors, actor) {
		return nil
	}

	p.AuthorizedActors = removeActor(p.AuthorizedActors, actor)

	ev, err := s.buildGovernanceEvent(&p, owner, TagAccessRevoked, map[string]string{"actor": actor})
	if err != nil {
		return err
	}

	if err := s.store.Commit(ctx, Mutation{Product: p, Events: []TrackingEvent{ev}}); err != nil {
		return err
	}

	_ = s.audit.Record(ctx, owner, audit.EventMutation, "remove_authorized_actor", productID, map[string]any{
		"actor": actor,
	})
	return nil
}

// SetProductActive toggles whether a product accepts new custody
// events. Setting the current state again is an idempotent success.
func (s *Service) SetProductActive(ctx context.Context, productID, owner string, active bool) error {
	lock := s.lockProduct(productID)
	lock.Lock()
	defer lock.Unlock()

	p, err := s.store.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if !isOwner(p, owner) {
		return fmt.Errorf("%w: only the owner may activate or deactivate %s", ErrUnauthorized, productID)
	}
	if p.Active == active {
		return nil
	}

	p.Active = active
	tag := TagProductDeactivated
	if active {
		tag = TagProductActivated
	}

	ev, err := s.buildGovernanceEvent(&p, owner, tag, nil)
	if err != nil {
		return err
	}

	if err := s.store.Commit(ctx, Mutation{Product: p, Events: []TrackingEvent{ev}}); err != nil {
		return err
	}

	_ = s.audit.Record(ctx, owner, audit.EventMutation, "set_product_active", productID, map[string]any{
		"active": active,
	})
	return nil
}

// buildCustodyEvent assigns the next custody sequence, stamps the
// ledger time, and links the event into the product's hash chain. The
// product record is updated in place; nothing is persisted here.
func (s *Service) buildCustodyEvent(p *Product, actor string, in EventInput) (TrackingEvent, error) {
	ev := TrackingEvent{
		ProductID: p.ID,
		Stream:    StreamCustody,
		Sequence:  p.NextSeq,
		Actor:     actor,
		EventType: in.EventType,
		Location:  in.Location,
		Metadata:  in.Metadata,
		Timestamp: s.clock().UTC(),
		PrevHash:  p.ChainHead,
	}
	hash, err := contentHash(ev)
	if err != nil {
		return TrackingEvent{}, err
	}
	ev.ContentHash = hash

	p.NextSeq++
	p.ChainHead = hash
	return ev, nil
}

// buildGovernanceEvent is the governance-stream counterpart of
// buildCustodyEvent. Detail is serialized into the event metadata.
func (s *Service) buildGovernanceEvent(p *Product, actor, tag string, detail map[string]string) (TrackingEvent, error) {
	metadata := ""
	if len(detail) > 0 {
		raw, err := json.Marshal(detail)
		if err != nil {
			return TrackingEvent{}, fmt.Errorf("marshal governance detail: %w", err)
		}
		metadata = string(raw)
	}

	ev := TrackingEvent{
		ProductID: p.ID,
		Stream:    StreamGovernance,
		Sequence:  p.GovNextSeq,
		Actor:     actor,
		EventType: tag,
		Metadata:  metadata,
		Timestamp: s.clock().UTC(),
		PrevHash:  p.GovChainHead,
	}
	hash, err := contentHash(ev)
	if err != nil {
		return TrackingEvent{}, err
	}
	ev.ContentHash = hash

	p.GovNextSeq++
	p.GovChainHead = hash
	return ev, nil
}
