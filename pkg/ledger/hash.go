package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gowebpki/jcs"
)

// contentHash computes the chain hash of an event over its canonical
// JSON form (RFC 8785), so independently stored copies hash
// identically regardless of field order or whitespace.
func contentHash(ev TrackingEvent) (string, error) {
	input := struct {
		ProductID string `json:"product_id"`
		Stream    Stream `json:"stream"`
		Sequence  uint64 `json:"sequence"`
		Actor     string `json:"actor"`
		EventType string `json:"event_type"`
		Location  string `json:"location"`
		Metadata  string `json:"metadata"`
		Timestamp string `json:"timestamp"`
		PrevHash  string `json:"prev_hash"`
	}{
		ProductID: ev.ProductID,
		Stream:    ev.Stream,
		Sequence:  ev.Sequence,
		Actor:     ev.Actor,
		EventType: ev.EventType,
		Location:  ev.Location,
		Metadata:  ev.Metadata,
		Timestamp: ev.Timestamp.UTC().Format(time.RFC3339Nano),
		PrevHash:  ev.PrevHash,
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("marshal event for hashing: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize event: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// VerifyChain recomputes the hash chain of one event stream and
// reports the first break, if any. Events must be the complete stream
// in ascending sequence order.
func VerifyChain(events []TrackingEvent) error {
	prev := genesisHash
	for i, ev := range events {
		if ev.Sequence != uint64(i) {
			return fmt.Errorf("sequence gap at index %d: got %d", i, ev.Sequence)
		}
		if ev.PrevHash != prev {
			return fmt.Errorf("chain broken at sequence %d: expected prev %s, got %s", ev.Sequence, prev, ev.PrevHash)
		}
		computed, err := contentHash(ev)
		if err != nil {
			return err
		}
		if computed != ev.ContentHash {
			return fmt.Errorf("hash mismatch at sequence %d", ev.Sequence)
		}
		prev = ev.ContentHash
	}
	return nil
}
