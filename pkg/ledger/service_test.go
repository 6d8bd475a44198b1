package ledger_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainlogistics/provenance/pkg/ledger"
	"github.com/chainlogistics/provenance/pkg/store"
)

func newService(t *testing.T, opts ...ledger.Option) *ledger.Service {
	t.Helper()
	return ledger.NewService(store.NewMemoryStore(), opts...)
}

func registerProduct(t *testing.T, svc *ledger.Service, id, owner string) ledger.Product {
	t.Helper()
	p, err := svc.RegisterProduct(context.Background(), ledger.NewProduct{
		ID:     id,
		Name:   "Single-Origin Arabica",
		Origin: "Huila, Colombia",
		Owner:  owner,
	})
	require.NoError(t, err)
	return p
}

// TestRegisterProduct_Duplicate verifies registration succeeds once
// and fails the second time for the same id.
func TestRegisterProduct_Duplicate(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	p := registerProduct(t, svc, "PROD-1", "alice")
	assert.Equal(t, "alice", p.Owner)
	assert.Equal(t, []string{"alice"}, p.AuthorizedActors)
	assert.True(t, p.Active)
	assert.Zero(t, p.NextSeq)

	_, err := svc.RegisterProduct(ctx, ledger.NewProduct{
		ID: "PROD-1", Name: "Other", Origin: "Elsewhere", Owner: "bob",
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateID)

	// The original registration is untouched.
	got, err := svc.GetProduct(ctx, "PROD-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Owner)
}

func TestRegisterProduct_Validation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()

	cases := []struct {
		name string
		np   ledger.NewProduct
		want error
	}{
		{"empty id", ledger.NewProduct{Name: "n", Origin: "o", Owner: "a"}, ledger.ErrInvalidProductID},
		{"long id", ledger.NewProduct{ID: strings.Repeat("x", 65), Name: "n", Origin: "o", Owner: "a"}, ledger.ErrProductIDTooLong},
		{"empty name", ledger.NewProduct{ID: "p", Origin: "o", Owner: "a"}, ledger.ErrInvalidProductName},
		{"empty origin", ledger.NewProduct{ID: "p", Name: "n", Owner: "a"}, ledger.ErrInvalidOrigin},
		{"empty owner", ledger.NewProduct{ID: "p", Name: "n", Origin: "o"}, ledger.ErrInvalidOwner},
		{"long description", ledger.NewProduct{ID: "p", Name: "n", Origin: "o", Owner: "a", Description: strings.Repeat("d", 2049)}, ledger.ErrDescriptionTooLong},
		{"too many tags", ledger.NewProduct{ID: "p", Name: "n", Origin: "o", Owner: "a", Tags: make([]string, 21)}, ledger.ErrTooManyTags},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.RegisterProduct(ctx, tc.np)
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ledger.ErrInvalidInput)
		})
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	svc := newService(t)
	_, err := svc.GetProduct(context.Background(), "missing")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// TestAddTrackingEvent_SequenceOrder verifies events come back in the
// exact order submitted with strictly increasing sequences from 0.
func TestAddTrackingEvent_SequenceOrder(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	for i := 0; i < 5; i++ {
		ev, err := svc.AddTrackingEvent(ctx, "PROD-1", "alice", ledger.EventInput{
			EventType: "HARVEST",
			Location:  fmt.Sprintf("lot-%d", i),
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(i), ev.Sequence)
		assert.NotEmpty(t, ev.ContentHash)
		assert.False(t, ev.Timestamp.IsZero())
	}

	events, err := svc.GetTrackingEvents(ctx, "PROD-1", ledger.Range{})
	require.NoError(t, err)
	require.Len(t, events, 5)
	for i, ev := range events {
		assert.Equal(t, uint64(i), ev.Sequence)
		assert.Equal(t, fmt.Sprintf("lot-%d", i), ev.Location)
	}

	// The hash chain over the stream is intact.
	assert.NoError(t, ledger.VerifyChain(events))
}

func TestAddTrackingEvent_ProductNotFound(t *testing.T) {
	svc := newService(t)
	_, err := svc.AddTrackingEvent(context.Background(), "missing", "alice", ledger.EventInput{EventType: "HARVEST"})
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// TestAuthorization_Monotonic verifies the grant/revoke cycle: an
// unauthorized actor can never write; granting makes the same call
// succeed; revoking makes it fail again.
func TestAuthorization_Monotonic(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	in := ledger.EventInput{EventType: "PROCESSING"}

	_, err := svc.AddTrackingEvent(ctx, "PROD-1", "bob", in)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	require.NoError(t, svc.AddAuthorizedActor(ctx, "PROD-1", "alice", "bob"))
	_, err = svc.AddTrackingEvent(ctx, "PROD-1", "bob", in)
	assert.NoError(t, err)

	require.NoError(t, svc.RemoveAuthorizedActor(ctx, "PROD-1", "alice", "bob"))
	_, err = svc.AddTrackingEvent(ctx, "PROD-1", "bob", in)
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

// TestAccessList_OwnerOnly verifies authorized actors cannot grant or
// revoke access for others.
func TestAccessList_OwnerOnly(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")
	require.NoError(t, svc.AddAuthorizedActor(ctx, "PROD-1", "alice", "bob"))

	assert.ErrorIs(t, svc.AddAuthorizedActor(ctx, "PROD-1", "bob", "carol"), ledger.ErrUnauthorized)
	assert.ErrorIs(t, svc.RemoveAuthorizedActor(ctx, "PROD-1", "bob", "alice"), ledger.ErrUnauthorized)
	assert.ErrorIs(t, svc.TransferOwnership(ctx, "PROD-1", "bob", "carol"), ledger.ErrUnauthorized)
}

// TestAccessList_Idempotent encodes the chosen policy: re-adding a
// present actor and removing an absent one are successes with no
// governance event recorded.
func TestAccessList_Idempotent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	require.NoError(t, svc.AddAuthorizedActor(ctx, "PROD-1", "alice", "bob"))
	require.NoError(t, svc.AddAuthorizedActor(ctx, "PROD-1", "alice", "bob"))
	require.NoError(t, svc.RemoveAuthorizedActor(ctx, "PROD-1", "alice", "ghost"))

	gov, err := svc.GetGovernanceEvents(ctx, "PROD-1", ledger.Range{})
	require.NoError(t, err)
	require.Len(t, gov, 1)
	assert.Equal(t, ledger.TagAccessGranted, gov[0].EventType)
}

// TestBatch_Atomicity verifies a batch whose last input is invalid
// writes nothing.
func TestBatch_Atomicity(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	batch := []ledger.EventInput{
		{EventType: "HARVEST"},
		{EventType: "PROCESSING"},
		{EventType: ""}, // structurally invalid
	}
	_, err := svc.AddTrackingEventsBatch(ctx, "PROD-1", "alice", batch)
	assert.ErrorIs(t, err, ledger.ErrInvalidBatch)

	events, err := svc.GetTrackingEvents(ctx, "PROD-1", ledger.Range{})
	require.NoError(t, err)
	assert.Empty(t, events)

	// The sequence counter did not advance either.
	ev, err := svc.AddTrackingEvent(ctx, "PROD-1", "alice", ledger.EventInput{EventType: "HARVEST"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), ev.Sequence)
}

// TestBatch_Success verifies three valid events commit with
// contiguous sequences in submitted order.
func TestBatch_Success(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	batch := []ledger.EventInput{
		{EventType: "HARVEST", Location: "farm"},
		{EventType: "PROCESSING", Location: "mill"},
		{EventType: "SHIPPING", Location: "port"},
	}
	events, err := svc.AddTrackingEventsBatch(ctx, "PROD-1", "alice", batch)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, uint64(i), ev.Sequence)
		assert.Equal(t, batch[i].EventType, ev.EventType)
	}

	stored, err := svc.GetTrackingEvents(ctx, "PROD-1", ledger.Range{})
	require.NoError(t, err)
	assert.Equal(t, events, stored)
	assert.NoError(t, ledger.VerifyChain(stored))
}

// TestBatch_TooLarge verifies the cap rejects before any content
// validation or write.
func TestBatch_TooLarge(t *testing.T) {
	svc := newService(t, ledger.WithBatchCap(100))
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	batch := make([]ledger.EventInput, 101)
	for i := range batch {
		batch[i] = ledger.EventInput{EventType: "HARVEST"}
	}
	_, err := svc.AddTrackingEventsBatch(ctx, "PROD-1", "alice", batch)
	assert.ErrorIs(t, err, ledger.ErrBatchTooLarge)

	events, err := svc.GetTrackingEvents(ctx, "PROD-1", ledger.Range{})
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestBatch_Empty(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	_, err := svc.AddTrackingEventsBatch(ctx, "PROD-1", "alice", nil)
	assert.ErrorIs(t, err, ledger.ErrInvalidBatch)
}

func TestBatch_Unauthorized(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	_, err := svc.AddTrackingEventsBatch(ctx, "PROD-1", "mallory", []ledger.EventInput{{EventType: "HARVEST"}})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)
}

// TestTransferOwnership_RevokesPreviousOwner verifies the previous
// owner loses implicit write access after transfer.
func TestTransferOwnership_RevokesPreviousOwner(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	require.NoError(t, svc.TransferOwnership(ctx, "PROD-1", "alice", "bob"))

	p, err := svc.GetProduct(ctx, "PROD-1")
	require.NoError(t, err)
	assert.Equal(t, "bob", p.Owner)
	assert.NotContains(t, p.AuthorizedActors, "alice")

	_, err = svc.AddTrackingEvent(ctx, "PROD-1", "alice", ledger.EventInput{EventType: "SHIPPING"})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	_, err = svc.AddTrackingEvent(ctx, "PROD-1", "bob", ledger.EventInput{EventType: "SHIPPING"})
	assert.NoError(t, err)

	// Governance trail recorded the transfer.
	gov, err := svc.GetGovernanceEvents(ctx, "PROD-1", ledger.Range{})
	require.NoError(t, err)
	require.Len(t, gov, 1)
	assert.Equal(t, ledger.TagOwnershipTransfer, gov[0].EventType)
	assert.Equal(t, "alice", gov[0].Actor)
	assert.NoError(t, ledger.VerifyChain(gov))
}

func TestTransferOwnership_SelfTransferIsNoop(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	require.NoError(t, svc.TransferOwnership(ctx, "PROD-1", "alice", "alice"))

	gov, err := svc.GetGovernanceEvents(ctx, "PROD-1", ledger.Range{})
	require.NoError(t, err)
	assert.Empty(t, gov)
}

// TestScenario_GrantThenAppend runs the end-to-end custody scenario:
// owner appends, outsider fails, grant, outsider appends with
// sequence 1, history holds exactly two events in order.
func TestScenario_GrantThenAppend(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "A")

	ev0, err := svc.AddTrackingEvent(ctx, "PROD-1", "A", ledger.EventInput{EventType: "HARVEST"})
	require.NoError(t, err)
	assert.Equal(t, uint64(0), ev0.Sequence)

	_, err = svc.AddTrackingEvent(ctx, "PROD-1", "B", ledger.EventInput{EventType: "SHIPPING"})
	assert.ErrorIs(t, err, ledger.ErrUnauthorized)

	require.NoError(t, svc.AddAuthorizedActor(ctx, "PROD-1", "A", "B"))

	ev1, err := svc.AddTrackingEvent(ctx, "PROD-1", "B", ledger.EventInput{EventType: "SHIPPING"})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), ev1.Sequence)

	events, err := svc.GetTrackingEvents(ctx, "PROD-1", ledger.Range{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "HARVEST", events[0].EventType)
	assert.Equal(t, "A", events[0].Actor)
	assert.Equal(t, uint64(0), events[0].Sequence)
	assert.Equal(t, "B", events[1].Actor)
	assert.Equal(t, uint64(1), events[1].Sequence)
}

// TestGetTrackingEvents_Pagination verifies sub-range reads are
// restartable and preserve order.
func TestGetTrackingEvents_Pagination(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	for i := 0; i < 10; i++ {
		_, err := svc.AddTrackingEvent(ctx, "PROD-1", "alice", ledger.EventInput{EventType: "QUALITY_CHECK"})
		require.NoError(t, err)
	}

	var all []ledger.TrackingEvent
	for start := uint64(0); ; {
		page, err := svc.GetTrackingEvents(ctx, "PROD-1", ledger.Range{Start: start, Limit: 3})
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		start = page[len(page)-1].Sequence + 1
	}

	require.Len(t, all, 10)
	for i, ev := range all {
		assert.Equal(t, uint64(i), ev.Sequence)
	}

	// Out-of-range start yields an empty page, not an error.
	page, err := svc.GetTrackingEvents(ctx, "PROD-1", ledger.Range{Start: 99})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestGetEvent(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	want, err := svc.AddTrackingEvent(ctx, "PROD-1", "alice", ledger.EventInput{EventType: "HARVEST"})
	require.NoError(t, err)

	got, err := svc.GetEvent(ctx, "PROD-1", 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.GetEvent(ctx, "PROD-1", 1)
	assert.ErrorIs(t, err, ledger.ErrEventNotFound)
}

func TestIsAuthorized(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	ok, err := svc.IsAuthorized(ctx, "PROD-1", "alice")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.IsAuthorized(ctx, "PROD-1", "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.IsAuthorized(ctx, "missing", "alice")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

// TestSetProductActive verifies inactive products refuse custody
// events and the toggle is recorded in the governance trail.
func TestSetProductActive(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	require.NoError(t, svc.SetProductActive(ctx, "PROD-1", "alice", false))

	_, err := svc.AddTrackingEvent(ctx, "PROD-1", "alice", ledger.EventInput{EventType: "HARVEST"})
	assert.ErrorIs(t, err, ledger.ErrProductInactive)

	// Idempotent: deactivating again records nothing new.
	require.NoError(t, svc.SetProductActive(ctx, "PROD-1", "alice", false))

	require.NoError(t, svc.SetProductActive(ctx, "PROD-1", "alice", true))
	_, err = svc.AddTrackingEvent(ctx, "PROD-1", "alice", ledger.EventInput{EventType: "HARVEST"})
	assert.NoError(t, err)

	gov, err := svc.GetGovernanceEvents(ctx, "PROD-1", ledger.Range{})
	require.NoError(t, err)
	require.Len(t, gov, 2)
	assert.Equal(t, ledger.TagProductDeactivated, gov[0].EventType)
	assert.Equal(t, ledger.TagProductActivated, gov[1].EventType)

	assert.ErrorIs(t, svc.SetProductActive(ctx, "PROD-1", "bob", false), ledger.ErrUnauthorized)
}

// TestClockInjection verifies the ledger stamps entries with the
// injected clock.
func TestClockInjection(t *testing.T) {
	frozen := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	svc := ledger.NewService(store.NewMemoryStore(), ledger.WithClock(func() time.Time { return frozen }))
	ctx := context.Background()

	p, err := svc.RegisterProduct(ctx, ledger.NewProduct{ID: "PROD-1", Name: "n", Origin: "o", Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, frozen, p.CreatedAt)

	ev, err := svc.AddTrackingEvent(ctx, "PROD-1", "alice", ledger.EventInput{EventType: "HARVEST"})
	require.NoError(t, err)
	assert.Equal(t, frozen, ev.Timestamp)
}

// TestEventInput_Validation checks the structural bounds on single
// appends.
func TestEventInput_Validation(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	cases := []struct {
		name string
		in   ledger.EventInput
		want error
	}{
		{"empty type", ledger.EventInput{}, ledger.ErrInvalidEventType},
		{"long type", ledger.EventInput{EventType: strings.Repeat("t", 65)}, ledger.ErrEventTypeTooLong},
		{"long location", ledger.EventInput{EventType: "HARVEST", Location: strings.Repeat("l", 257)}, ledger.ErrLocationTooLong},
		{"oversized metadata", ledger.EventInput{EventType: "HARVEST", Metadata: strings.Repeat("m", 4097)}, ledger.ErrMetadataTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddTrackingEvent(ctx, "PROD-1", "alice", tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

// TestMetadataOpaque verifies metadata is stored byte-for-byte, never
// parsed or normalized.
func TestMetadataOpaque(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	registerProduct(t, svc, "PROD-1", "alice")

	blob := `{"weight_kg": 12.5, "trailing": }` // not valid JSON, still accepted
	ev, err := svc.AddTrackingEvent(ctx, "PROD-1", "alice", ledger.EventInput{
		EventType: "WEIGHING",
		Metadata:  blob,
	})
	require.NoError(t, err)
	assert.Equal(t, blob, ev.Metadata)

	got, err := svc.GetEvent(ctx, "PROD-1", ev.Sequence)
	require.NoError(t, err)
	assert.Equal(t, blob, got.Metadata)
}
