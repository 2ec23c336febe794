package payments

import "prestar/src/types"

// Normalize maps a verified raw event into the canonical PaymentEvent using
// the rail's status table. An unmapped native status is a money-relevant
// signal we do not understand yet: it becomes PENDING with NeedsReview set
// so an operator sees it.
func Normalize(rail Rail, ev *RawEvent) PaymentEvent {
	status, ok := rail.StatusMap()[ev.NativeStatus]
	pe := PaymentEvent{
		Provider:          ev.Provider,
		ExternalEventID:   ev.ExternalEventID,
		ExternalReference: ev.ExternalReference,
		AltReference:      ev.AltReference,
		NativeStatus:      ev.NativeStatus,
		Amount:            ev.Amount,
		Currency:          ev.Currency,
		OccurredAt:        ev.OccurredAt,
		PayloadHash:       hashPayload(ev.Raw),
	}
	if !ok {
		pe.Status = types.PAYMENT_PENDING
		pe.NeedsReview = true
		return pe
	}
	pe.Status = status
	return pe
}
