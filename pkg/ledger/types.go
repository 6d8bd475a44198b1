// Package ledger implements the provenance ledger core: product
// registration, append-only tracking event history, and ownership /
// access-list management.
//
// The ledger records two streams per product:
//   - custody events appended by authorized actors
//   - governance events recording ownership and access-list changes
//
// Both streams are append-only and hash-chained; no operation mutates
// or removes an entry once written.
package ledger

import (
	"time"
)

// Stream separates the custody history from the governance trail.
type Stream string

const (
	StreamCustody    Stream = "custody"
	StreamGovernance Stream = "governance"
)

// Reserved event types for the governance stream.
const (
	TagOwnershipTransfer  = "OWNERSHIP_TRANSFER"
	TagAccessGranted      = "ACCESS_GRANTED"
	TagAccessRevoked      = "ACCESS_REVOKED"
	TagProductActivated   = "PRODUCT_ACTIVATED"
	TagProductDeactivated = "PRODUCT_DEACTIVATED"
)

// genesisHash seeds each product's event hash chains.
const genesisHash = "genesis"

// Product is a registered physical item. ID, Name, Origin and the
// descriptive fields are immutable after registration; Owner and
// AuthorizedActors change only through their dedicated operations.
type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Origin      string `json:"origin"`
	Category    string `json:"category,omitempty"`

	Owner            string   `json:"owner"`
	AuthorizedActors []string `json:"authorized_actors"`
	Active           bool     `json:"active"`

	Tags           []string          `json:"tags,omitempty"`
	Certifications []string          `json:"certifications,omitempty"`
	MediaHashes    []string          `json:"media_hashes,omitempty"`
	Custom         map[string]string `json:"custom,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// Per-stream sequence counters and chain heads. Stored on the
	// record so append cost stays independent of history length.
	NextSeq      uint64 `json:"next_seq"`
	ChainHead    string `json:"chain_head"`
	GovNextSeq   uint64 `json:"gov_next_seq"`
	GovChainHead string `json:"gov_chain_head"`
}

// TrackingEvent is one immutable record in a product's history.
// Sequence is assigned by the ledger, starts at 0 per product and
// stream, and is never reused.
type TrackingEvent struct {
	ProductID   string    `json:"product_id"`
	Stream      Stream    `json:"stream"`
	Sequence    uint64    `json:"sequence"`
	Actor       string    `json:"actor"`
	EventType   string    `json:"event_type"`
	Location    string    `json:"location,omitempty"`
	Metadata    string    `json:"metadata,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	PrevHash    string    `json:"prev_hash"`
	ContentHash string    `json:"content_hash"`
}

// EventInput is a caller-supplied custody event before the ledger
// assigns sequence, timestamp and chain hashes.
type EventInput struct {
	EventType string `json:"event_type"`
	Location  string `json:"location,omitempty"`
	Metadata  string `json:"metadata,omitempty"`
}

// Range selects a sub-range of a product's event stream for paginated
// reads. Start is the first sequence to return; Limit caps the number
// of events returned, 0 meaning no cap. The zero Range reads the
// whole stream.
type Range struct {
	Start uint64
	Limit int
}

// NewProduct carries the caller-supplied fields for registration.
type NewProduct struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Description    string            `json:"description,omitempty"`
	Origin         string            `json:"origin"`
	Category       string            `json:"category,omitempty"`
	Owner          string            `json:"owner"`
	Tags           []string          `json:"tags,omitempty"`
	Certifications []string          `json:"certifications,omitempty"`
	MediaHashes    []string          `json:"media_hashes,omitempty"`
	Custom         map[string]string `json:"custom,omitempty"`
}
