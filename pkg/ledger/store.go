package ledger

import "context"

// Store is the durable mapping behind the ledger. Implementations
// live in pkg/store (memory, sqlite, postgres).
//
// Reads of an absent key return ErrNotFound / ErrEventNotFound, never
// a zero value. Commit applies a Mutation as a single atomic unit:
// either the product record write and every event append become
// visible together, or none do.
type Store interface {
	// GetProduct returns the product record or ErrNotFound.
	GetProduct(ctx context.Context, id string) (Product, error)

	// HasProduct reports whether a product record exists.
	HasProduct(ctx context.Context, id string) (bool, error)

	// GetEvent returns one event by stream and sequence, or
	// ErrEventNotFound.
	GetEvent(ctx context.Context, productID string, stream Stream, seq uint64) (TrackingEvent, error)

	// ListEvents returns events of one stream in ascending sequence
	// order, restricted by r.
	ListEvents(ctx context.Context, productID string, stream Stream, r Range) ([]TrackingEvent, error)

	// Commit atomically writes the product record and appends the
	// events, in order. Events carry pre-assigned sequences; the
	// store never renumbers them.
	Commit(ctx context.Context, m Mutation) error

	// Close releases underlying resources.
	Close() error
}

// Mutation is the write set of one ledger operation. The product
// record is always written whole; there are no partial updates.
type Mutation struct {
	Product Product
	Events  []TrackingEvent
}
