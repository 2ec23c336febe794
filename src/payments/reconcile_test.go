package payments

import (
	"context"
	"encoding/json"
	"prestar/src/models"
	"prestar/src/types"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRail struct {
	kind      types.ProviderKind
	statuses  map[string]types.PaymentStatus
	verifyErr error
}

type stubEvent struct {
	EventID      string `json:"event_id"`
	Reference    string `json:"reference"`
	AltReference string `json:"alt_reference"`
	Status       string `json:"status"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

func (r *stubRail) Kind() types.ProviderKind { return r.kind }

func (r *stubRail) Parse(body []byte, hdr Header) (*RawEvent, error) {
	var ev stubEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return nil, ErrParse
	}
	return &RawEvent{
		Provider:          r.kind,
		ExternalEventID:   ev.EventID,
		ExternalReference: ev.Reference,
		AltReference:      ev.AltReference,
		NativeStatus:      ev.Status,
		Amount:            ev.Amount,
		Currency:          ev.Currency,
		Raw:               body,
	}, nil
}

func (r *stubRail) Verify(ctx context.Context, ev *RawEvent) error { return r.verifyErr }

func (r *stubRail) StatusMap() map[string]types.PaymentStatus {
	if r.statuses != nil {
		return r.statuses
	}
	return map[string]types.PaymentStatus{
		"PAID":      types.PAYMENT_COMPLETED,
		"PENDING":   types.PAYMENT_PROCESSING,
		"REJECTED":  types.PAYMENT_FAILED,
		"CANCELLED": types.PAYMENT_CANCELLED,
		"REFUNDED":  types.PAYMENT_REFUNDED,
	}
}

var testClock = func() time.Time { return time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC) }

func newTestEngine(repo Repository) *Engine {
	flatFee := func(ctx context.Context, t types.PaymentType) int64 { return 500 }
	return NewEngineWithClock(repo, flatFee, testClock, &stubRail{kind: types.PROVIDER_LOCAL_PROCESSOR})
}

func seedPayment(repo *MemoryRepository, status types.PaymentStatus, ptype types.PaymentType, amount int64) (*models.Payment, *models.Booking) {
	booking := &models.Booking{
		ID:        uuid.New(),
		Status:    types.BOOKING_PENDING,
		ItemTitle: "Taladro industrial",
		PayerID:   1,
		PayeeID:   2,
	}
	repo.Bookings[booking.ID] = booking
	payment := &models.Payment{
		ID:                uuid.New(),
		BookingID:         booking.ID,
		Type:              ptype,
		Provider:          types.PROVIDER_LOCAL_PROCESSOR,
		ExternalReference: "ref-" + uuid.NewString()[:8],
		Amount:            amount,
		Currency:          "COP",
		Status:            status,
	}
	repo.Payments[payment.ID] = payment
	return payment, booking
}

func processStub(t *testing.T, e *Engine, ev stubEvent) *Outcome {
	t.Helper()
	body, err := json.Marshal(ev)
	require.NoError(t, err)
	outcome, err := e.Process(context.Background(), types.PROVIDER_LOCAL_PROCESSOR, body, Header{})
	require.NoError(t, err)
	return outcome
}

func TestTransitionTable(t *testing.T) {
	for _, terminal := range []types.PaymentStatus{types.PAYMENT_FAILED, types.PAYMENT_CANCELLED, types.PAYMENT_REFUNDED} {
		for _, to := range []types.PaymentStatus{types.PAYMENT_PENDING, types.PAYMENT_PROCESSING, types.PAYMENT_COMPLETED, types.PAYMENT_FAILED, types.PAYMENT_CANCELLED, types.PAYMENT_REFUNDED} {
			assert.False(t, ValidTransition(terminal, to), "%s -> %s", terminal, to)
		}
	}
	assert.True(t, ValidTransition(types.PAYMENT_PENDING, types.PAYMENT_COMPLETED))
	assert.True(t, ValidTransition(types.PAYMENT_PENDING, types.PAYMENT_CANCELLED))
	assert.True(t, ValidTransition(types.PAYMENT_PROCESSING, types.PAYMENT_REFUNDED))
	assert.True(t, ValidTransition(types.PAYMENT_COMPLETED, types.PAYMENT_REFUNDED))
	assert.False(t, ValidTransition(types.PAYMENT_PENDING, types.PAYMENT_REFUNDED))
	assert.False(t, ValidTransition(types.PAYMENT_PROCESSING, types.PAYMENT_CANCELLED))
	assert.False(t, ValidTransition(types.PAYMENT_COMPLETED, types.PAYMENT_PENDING))
}

func TestCompletedPaymentSettlesFeesAndBooking(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo)
	payment, booking := seedPayment(repo, types.PAYMENT_PENDING, types.PAYMENT_TYPE_RENTAL, 10000)

	outcome := processStub(t, engine, stubEvent{
		EventID: "evt-1", Reference: payment.ExternalReference, Status: "PAID", Amount: 10000, Currency: "COP",
	})
	assert.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, types.PAYMENT_PENDING, outcome.From)
	assert.Equal(t, types.PAYMENT_COMPLETED, outcome.To)

	stored := repo.Payments[payment.ID]
	assert.Equal(t, types.PAYMENT_COMPLETED, stored.Status)
	assert.Equal(t, int64(500), stored.MarketplaceFee)
	assert.Equal(t, int64(9500), stored.PayeeAmount)
	require.NotNil(t, stored.PaidAt)
	assert.Equal(t, testClock().UTC(), *stored.PaidAt)
	assert.False(t, stored.NeedsReview)

	assert.Equal(t, types.BOOKING_CONFIRMED, repo.Bookings[booking.ID].Status)
	require.NotNil(t, repo.Bookings[booking.ID].ConfirmedAt)

	// payee and payer each get notified
	assert.Len(t, repo.Notifications, 2)
	require.Len(t, repo.Outbox, 1)
	assert.Equal(t, OutboxTopicEvents, repo.Outbox[0].Topic)
}

func TestDuplicateEventIsAbsorbed(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo)
	payment, _ := seedPayment(repo, types.PAYMENT_PENDING, types.PAYMENT_TYPE_RENTAL, 10000)

	ev := stubEvent{EventID: "evt-dup", Reference: payment.ExternalReference, Status: "PAID", Amount: 10000}
	first := processStub(t, engine, ev)
	second := processStub(t, engine, ev)

	assert.Equal(t, OutcomeApplied, first.Kind)
	assert.Equal(t, OutcomeDuplicate, second.Kind)
	assert.Len(t, repo.Outbox, 1)
	assert.Len(t, repo.Notifications, 2)
	assert.Equal(t, types.PAYMENT_COMPLETED, repo.Payments[payment.ID].Status)
}

func TestSameStatusFromDistinctEventIsDuplicate(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo)
	payment, _ := seedPayment(repo, types.PAYMENT_PENDING, types.PAYMENT_TYPE_RENTAL, 10000)

	processStub(t, engine, stubEvent{EventID: "evt-a", Reference: payment.ExternalReference, Status: "PAID", Amount: 10000})
	outcome := processStub(t, engine, stubEvent{EventID: "evt-b", Reference: payment.ExternalReference, Status: "PAID", Amount: 10000})

	assert.Equal(t, OutcomeDuplicate, outcome.Kind)
	assert.False(t, repo.Payments[payment.ID].NeedsReview)
	assert.Len(t, repo.Outbox, 1)
}

func TestLateProcessingAfterCompletionIsRejected(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo)
	payment, _ := seedPayment(repo, types.PAYMENT_COMPLETED, types.PAYMENT_TYPE_RENTAL, 10000)

	outcome := processStub(t, engine, stubEvent{
		EventID: "evt-late", Reference: payment.ExternalReference, Status: "PENDING", Amount: 10000,
	})
	assert.Equal(t, OutcomeInvalidTransition, outcome.Kind)

	stored := repo.Payments[payment.ID]
	assert.Equal(t, types.PAYMENT_COMPLETED, stored.Status)
	assert.True(t, stored.NeedsReview)
	require.NotNil(t, stored.ReviewReason)
	require.Len(t, repo.Outbox, 1)
	assert.Equal(t, OutboxTopicReview, repo.Outbox[0].Topic)
}

func TestRefundAfterCompletion(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo)
	payment, booking := seedPayment(repo, types.PAYMENT_COMPLETED, types.PAYMENT_TYPE_RENTAL, 10000)
	booking.Status = types.BOOKING_CONFIRMED

	outcome := processStub(t, engine, stubEvent{
		EventID: "evt-refund", Reference: payment.ExternalReference, Status: "REFUNDED", Amount: 10000,
	})
	assert.Equal(t, OutcomeApplied, outcome.Kind)
	stored := repo.Payments[payment.ID]
	assert.Equal(t, types.PAYMENT_REFUNDED, stored.Status)
	// refunds never rewrite booking history, they go to operators
	assert.Equal(t, types.BOOKING_CONFIRMED, repo.Bookings[booking.ID].Status)
	assert.True(t, stored.NeedsReview)
	assert.Len(t, repo.Notifications, 2)

	var reviewTopics int
	for _, m := range repo.Outbox {
		if m.Topic == OutboxTopicReview {
			reviewTopics++
		}
	}
	assert.Equal(t, 1, reviewTopics)
}

func TestUnknownReferenceIsAcknowledged(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo)

	outcome := processStub(t, engine, stubEvent{
		EventID: "evt-stray", Reference: "no-such-payment", Status: "PAID", Amount: 500,
	})
	assert.Equal(t, OutcomeUnknownReference, outcome.Kind)
	// the delivery is still recorded so a redelivery dedupes
	assert.Len(t, repo.Events, 1)
	assert.Empty(t, repo.Outbox)
}

func TestUnmappedNativeStatusParksForReview(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo)
	payment, _ := seedPayment(repo, types.PAYMENT_PROCESSING, types.PAYMENT_TYPE_RENTAL, 10000)

	outcome := processStub(t, engine, stubEvent{
		EventID: "evt-weird", Reference: payment.ExternalReference, Status: "IN_DISPUTE", Amount: 10000,
	})
	assert.Equal(t, OutcomeApplied, outcome.Kind)
	assert.Equal(t, outcome.From, outcome.To)

	stored := repo.Payments[payment.ID]
	assert.Equal(t, types.PAYMENT_PROCESSING, stored.Status)
	assert.True(t, stored.NeedsReview)
	require.Len(t, repo.Outbox, 1)
	assert.Equal(t, OutboxTopicReview, repo.Outbox[0].Topic)
}

func TestAmountMismatchAppliesWithStoredAmount(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo)
	payment, _ := seedPayment(repo, types.PAYMENT_PENDING, types.PAYMENT_TYPE_SERVICE, 10000)

	outcome := processStub(t, engine, stubEvent{
		EventID: "evt-mismatch", Reference: payment.ExternalReference, Status: "PAID", Amount: 9000,
	})
	assert.Equal(t, OutcomeApplied, outcome.Kind)

	stored := repo.Payments[payment.ID]
	assert.Equal(t, types.PAYMENT_COMPLETED, stored.Status)
	// fees come from the stored amount, not the provider's claim
	assert.Equal(t, int64(500), stored.MarketplaceFee)
	assert.True(t, stored.NeedsReview)
}

func TestAltReferenceRebindsPayment(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo)
	payment, _ := seedPayment(repo, types.PAYMENT_PENDING, types.PAYMENT_TYPE_RENTAL, 10000)

	outcome := processStub(t, engine, stubEvent{
		EventID:      "evt-chain",
		Reference:    "42",
		AltReference: payment.ExternalReference,
		Status:       "PENDING",
		Amount:       10000,
	})
	assert.Equal(t, OutcomeApplied, outcome.Kind)

	stored := repo.Payments[payment.ID]
	assert.Equal(t, "42", stored.ExternalReference)
	assert.Equal(t, types.PAYMENT_PROCESSING, stored.Status)
}

func TestFailureCancelsBookingOnlyWhenLastPaymentDies(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo)
	payment, booking := seedPayment(repo, types.PAYMENT_PENDING, types.PAYMENT_TYPE_RENTAL, 10000)

	// a second live payment on the same booking
	other := &models.Payment{
		ID:                uuid.New(),
		BookingID:         booking.ID,
		Type:              types.PAYMENT_TYPE_RENTAL,
		Provider:          types.PROVIDER_LOCAL_PROCESSOR,
		ExternalReference: "other-ref",
		Amount:            10000,
		Status:            types.PAYMENT_PROCESSING,
	}
	repo.Payments[other.ID] = other

	processStub(t, engine, stubEvent{EventID: "evt-f1", Reference: payment.ExternalReference, Status: "REJECTED", Amount: 10000})
	assert.Equal(t, types.BOOKING_PENDING, repo.Bookings[booking.ID].Status)

	processStub(t, engine, stubEvent{EventID: "evt-f2", Reference: other.ExternalReference, Status: "REJECTED", Amount: 10000})
	assert.Equal(t, types.BOOKING_CANCELLED, repo.Bookings[booking.ID].Status)
}

func TestEventWithoutReferenceTouchesNobody(t *testing.T) {
	repo := NewMemoryRepository()
	engine := newTestEngine(repo)
	payment, _ := seedPayment(repo, types.PAYMENT_PENDING, types.PAYMENT_TYPE_RENTAL, 10000)

	outcome := processStub(t, engine, stubEvent{
		EventID: "evt-anon", Reference: "", Status: "PAID", Amount: 10000,
	})
	assert.Equal(t, OutcomeUnknownReference, outcome.Kind)
	assert.Equal(t, types.PAYMENT_PENDING, repo.Payments[payment.ID].Status)
	assert.False(t, repo.Payments[payment.ID].NeedsReview)
	assert.Empty(t, repo.Outbox)
}

// racingRepo fails the first compare-and-update and lets a competing status
// land underneath, the way a concurrent delivery wins the row in postgres.
type racingRepo struct {
	Repository
	inner     *MemoryRepository
	winner    types.PaymentStatus
	preempted bool
}

func (r *racingRepo) InTx(ctx context.Context, fn func(tx Repository) error) error {
	return fn(r)
}

func (r *racingRepo) CASPaymentStatus(ctx context.Context, id uuid.UUID, from types.PaymentStatus, updates map[string]any) (bool, error) {
	if !r.preempted {
		r.preempted = true
		r.inner.Payments[id].Status = r.winner
		return false, nil
	}
	return r.inner.CASPaymentStatus(ctx, id, from, updates)
}

func TestRaceLoserReappliesAgainstWinner(t *testing.T) {
	inner := NewMemoryRepository()
	repo := &racingRepo{Repository: inner, inner: inner, winner: types.PAYMENT_PROCESSING}
	engine := newTestEngine(repo)
	payment, _ := seedPayment(inner, types.PAYMENT_PENDING, types.PAYMENT_TYPE_RENTAL, 10000)

	outcome := processStub(t, engine, stubEvent{
		EventID: "evt-race-win", Reference: payment.ExternalReference, Status: "PAID", Amount: 10000,
	})
	assert.Equal(t, OutcomeApplied, outcome.Kind)
	// the loser re-read the row and judged the event against the
	// interleaved PROCESSING, not its stale PENDING
	assert.Equal(t, types.PAYMENT_PROCESSING, outcome.From)
	stored := inner.Payments[payment.ID]
	assert.Equal(t, types.PAYMENT_COMPLETED, stored.Status)
	assert.Equal(t, int64(500), stored.MarketplaceFee)
	assert.Equal(t, int64(9500), stored.PayeeAmount)
}

func TestRaceLoserRejectedAgainstWinner(t *testing.T) {
	inner := NewMemoryRepository()
	repo := &racingRepo{Repository: inner, inner: inner, winner: types.PAYMENT_COMPLETED}
	engine := newTestEngine(repo)
	payment, _ := seedPayment(inner, types.PAYMENT_PROCESSING, types.PAYMENT_TYPE_RENTAL, 10000)

	outcome := processStub(t, engine, stubEvent{
		EventID: "evt-race-lose", Reference: payment.ExternalReference, Status: "REJECTED", Amount: 10000,
	})
	assert.Equal(t, OutcomeInvalidTransition, outcome.Kind)
	assert.Equal(t, types.PAYMENT_COMPLETED, outcome.From)
	stored := inner.Payments[payment.ID]
	assert.Equal(t, types.PAYMENT_COMPLETED, stored.Status)
	assert.True(t, stored.NeedsReview)
	require.Len(t, inner.Outbox, 1)
	assert.Equal(t, OutboxTopicReview, inner.Outbox[0].Topic)
}

func TestOrderIndependentFinalStatus(t *testing.T) {
	deliver := func(order []stubEvent) types.PaymentStatus {
		repo := NewMemoryRepository()
		engine := newTestEngine(repo)
		payment, _ := seedPayment(repo, types.PAYMENT_PENDING, types.PAYMENT_TYPE_RENTAL, 10000)
		for i := range order {
			order[i].Reference = payment.ExternalReference
			processStub(t, engine, order[i])
		}
		return repo.Payments[payment.ID].Status
	}

	processing := stubEvent{EventID: "evt-oi-a", Status: "PENDING", Amount: 10000}
	completed := stubEvent{EventID: "evt-oi-b", Status: "PAID", Amount: 10000}

	forward := deliver([]stubEvent{processing, completed})
	reversed := deliver([]stubEvent{completed, processing})
	assert.Equal(t, types.PAYMENT_COMPLETED, forward)
	assert.Equal(t, forward, reversed)
}
