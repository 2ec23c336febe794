package payments

import (
	"context"
	"fmt"
	"prestar/src/models"
	"prestar/src/types"
)

// transitions is the only legal walk through payment statuses. Money-settled
// state never regresses: anything not listed here is rejected without
// mutating state and surfaced for manual reconciliation.
var transitions = map[types.PaymentStatus][]types.PaymentStatus{
	types.PAYMENT_PENDING:    {types.PAYMENT_PROCESSING, types.PAYMENT_COMPLETED, types.PAYMENT_FAILED, types.PAYMENT_CANCELLED},
	types.PAYMENT_PROCESSING: {types.PAYMENT_COMPLETED, types.PAYMENT_FAILED, types.PAYMENT_REFUNDED},
	types.PAYMENT_COMPLETED:  {types.PAYMENT_REFUNDED},
	types.PAYMENT_FAILED:     {},
	types.PAYMENT_CANCELLED:  {},
	types.PAYMENT_REFUNDED:   {},
}

func ValidTransition(from, to types.PaymentStatus) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

const casAttempts = 3

func (e *Engine) apply(ctx context.Context, tx Repository, pe PaymentEvent) (*Outcome, error) {
	admitted, err := tx.AdmitEvent(ctx, &models.ExternalEventRecord{
		Provider:        pe.Provider,
		ExternalEventID: pe.ExternalEventID,
		PayloadHash:     pe.PayloadHash,
	})
	if err != nil {
		return nil, err
	}
	if !admitted {
		return &Outcome{Kind: OutcomeDuplicate}, nil
	}

	p, err := e.lookupPayment(ctx, tx, pe)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return &Outcome{Kind: OutcomeUnknownReference}, nil
	}

	if pe.NeedsReview {
		reason := fmt.Sprintf("unknown native status %q from %s", pe.NativeStatus, pe.Provider)
		if err := tx.FlagPaymentForReview(ctx, p.ID, reason); err != nil {
			return nil, err
		}
		if err := e.stageReview(ctx, tx, p, reason); err != nil {
			return nil, err
		}
		return &Outcome{Kind: OutcomeApplied, Payment: p, From: p.Status, To: p.Status}, nil
	}

	for attempt := 0; attempt < casAttempts; attempt++ {
		from := p.Status
		if from == pe.Status {
			// A second notification for the state we are already in
			// carries no new information.
			return &Outcome{Kind: OutcomeDuplicate, Payment: p, From: from, To: pe.Status}, nil
		}
		if !ValidTransition(from, pe.Status) {
			return e.rejectTransition(ctx, tx, p, from, pe)
		}

		updates := map[string]any{"status": pe.Status}
		if pe.Status == types.PAYMENT_COMPLETED {
			fees := ComputeFeeFor(ctx, e.fees, p.Type, p.Amount)
			updates["marketplace_fee"] = fees.MarketplaceFee
			updates["payee_amount"] = fees.PayeeAmount
			if p.PaidAt == nil {
				updates["paid_at"] = e.clock().UTC()
			}
		}

		ok, err := tx.CASPaymentStatus(ctx, p.ID, from, updates)
		if err != nil {
			return nil, err
		}
		if ok {
			applyPaymentUpdates(p, updates)
			if from == types.PAYMENT_COMPLETED {
				// Reversing settled money is authoritative but never
				// silent. Operators decide what happens to the booking.
				reason := fmt.Sprintf("%s reported after settlement", pe.Status)
				if err := tx.FlagPaymentForReview(ctx, p.ID, reason); err != nil {
					return nil, err
				}
				if err := e.stageReview(ctx, tx, p, reason); err != nil {
					return nil, err
				}
				p.NeedsReview = true
			}
			if pe.Amount != 0 && pe.Amount != p.Amount {
				reason := fmt.Sprintf("provider reported %d, payment holds %d", pe.Amount, p.Amount)
				if err := tx.FlagPaymentForReview(ctx, p.ID, reason); err != nil {
					return nil, err
				}
				p.NeedsReview = true
			}
			if err := e.applyBookingEffects(ctx, tx, p, pe.Status); err != nil {
				return nil, err
			}
			if err := e.stageSideEffects(ctx, tx, p, from, pe.Status); err != nil {
				return nil, err
			}
			return &Outcome{Kind: OutcomeApplied, Payment: p, From: from, To: pe.Status}, nil
		}

		// Another delivery won the compare-and-update. Re-read and judge
		// the event against the state that actually stuck.
		p, err = tx.GetPayment(ctx, p.ID)
		if err != nil {
			return nil, err
		}
	}
	return e.rejectTransition(ctx, tx, p, p.Status, pe)
}

func (e *Engine) lookupPayment(ctx context.Context, tx Repository, pe PaymentEvent) (*models.Payment, error) {
	// A provider can report a payment that was never created here, for
	// example a MercadoPago resource with no external_reference. Such an
	// event names nobody and must not be matched to anybody.
	if pe.ExternalReference == "" {
		return nil, nil
	}
	p, err := tx.FindPaymentByReference(ctx, pe.Provider, pe.ExternalReference)
	if err == nil {
		return p, nil
	}
	if err != ErrNotFound {
		return nil, err
	}
	if pe.AltReference == "" {
		return nil, nil
	}
	// The escrow rail assigns its deal id on chain; the payment row was
	// created under the marketplace reference and is rebound on first
	// contact.
	p, err = tx.FindPaymentByReference(ctx, pe.Provider, pe.AltReference)
	if err == ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := tx.UpdatePaymentReference(ctx, p.ID, pe.ExternalReference); err != nil {
		return nil, err
	}
	p.ExternalReference = pe.ExternalReference
	return p, nil
}

func (e *Engine) rejectTransition(ctx context.Context, tx Repository, p *models.Payment, from types.PaymentStatus, pe PaymentEvent) (*Outcome, error) {
	reason := fmt.Sprintf("transition %s -> %s not allowed", from, pe.Status)
	if err := tx.FlagPaymentForReview(ctx, p.ID, reason); err != nil {
		return nil, err
	}
	if err := e.stageReview(ctx, tx, p, reason); err != nil {
		return nil, err
	}
	return &Outcome{Kind: OutcomeInvalidTransition, Payment: p, From: from, To: pe.Status}, nil
}

// applyBookingEffects derives the booking's externally visible state from
// its payments. The booking is never written outside this function.
func (e *Engine) applyBookingEffects(ctx context.Context, tx Repository, p *models.Payment, to types.PaymentStatus) error {
	switch to {
	case types.PAYMENT_COMPLETED:
		switch p.Type {
		case types.PAYMENT_TYPE_RENTAL:
			booking, err := tx.GetBooking(ctx, p.BookingID)
			if err != nil {
				if err == ErrNotFound {
					return nil
				}
				return err
			}
			if booking.Status == types.BOOKING_PENDING {
				return tx.UpdateBooking(ctx, booking.ID, map[string]any{
					"status":       types.BOOKING_CONFIRMED,
					"confirmed_at": e.clock().UTC(),
				})
			}
		case types.PAYMENT_TYPE_SERVICE:
			return tx.UpdateBooking(ctx, p.BookingID, map[string]any{"service_paid": true})
		case types.PAYMENT_TYPE_MATERIAL:
			return tx.UpdateBooking(ctx, p.BookingID, map[string]any{"materials_paid": true})
		}
	case types.PAYMENT_FAILED, types.PAYMENT_CANCELLED:
		remaining, err := tx.CountNonTerminalPayments(ctx, p.BookingID, p.ID)
		if err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}
		booking, err := tx.GetBooking(ctx, p.BookingID)
		if err != nil {
			if err == ErrNotFound {
				return nil
			}
			return err
		}
		if booking.Status == types.BOOKING_PENDING {
			return tx.UpdateBooking(ctx, booking.ID, map[string]any{"status": types.BOOKING_CANCELLED})
		}
	}
	return nil
}
