package payments

import (
	"context"
	"fmt"
	"prestar/src/models"
	"prestar/src/types"
)

// OutboxTopicEvents carries committed payment transitions; the relay in
// src/common publishes them and delivers the staged notifications.
// OutboxTopicReview carries invalid transitions and unmapped statuses for
// the operator queue.
const (
	OutboxTopicEvents = "payment-events"
	OutboxTopicReview = "payment-review"
)

type recipient int

const (
	toPayer recipient = iota
	toPayee
)

type effect struct {
	kind  types.NotificationKind
	who   recipient
	title string
	body  string
}

// effectsFor is the full notification matrix. Each (from, to, payment type)
// triple yields a fixed set; transitions absent here notify nobody. The
// booking title is interpolated into the copy by the stager.
func effectsFor(to types.PaymentStatus, ptype types.PaymentType) []effect {
	switch to {
	case types.PAYMENT_COMPLETED:
		switch ptype {
		case types.PAYMENT_TYPE_RENTAL:
			return []effect{
				{types.NOTIFY_PAYMENT_RECEIVED, toPayee, "Payment received", "You have received the payment for %q"},
				{types.NOTIFY_BOOKING_CONFIRMED, toPayer, "Booking confirmed", "Your payment was processed and your booking of %q is confirmed"},
			}
		case types.PAYMENT_TYPE_SERVICE:
			return []effect{
				{types.NOTIFY_SERVICE_PAYMENT_COMPLETED, toPayee, "Service payment completed", "The service payment for %q has been completed"},
				{types.NOTIFY_PAYMENT_RECEIVED, toPayer, "Payment completed", "Your service payment for %q was processed successfully"},
			}
		case types.PAYMENT_TYPE_MATERIAL:
			return []effect{
				{types.NOTIFY_MATERIAL_PAYMENT_COMPLETED, toPayee, "Materials payment completed", "The materials payment for %q has been completed"},
				{types.NOTIFY_PAYMENT_RECEIVED, toPayer, "Payment completed", "Your materials payment for %q was processed successfully"},
			}
		}
	case types.PAYMENT_FAILED:
		return []effect{
			{types.NOTIFY_PAYMENT_FAILED, toPayer, "Payment failed", "Your payment for %q could not be processed"},
		}
	case types.PAYMENT_REFUNDED:
		return []effect{
			{types.NOTIFY_PAYMENT_REFUNDED, toPayer, "Payment refunded", "Your payment for %q has been refunded"},
			{types.NOTIFY_PAYMENT_REFUNDED, toPayee, "Payment refunded", "The payment for %q has been refunded to the payer"},
		}
	}
	return nil
}

// stageSideEffects writes the notification rows and the outbox message for
// a committed transition inside the reconciler's transaction. Nothing is
// delivered here; the relay picks up the outbox after commit, so a crash
// between commit and delivery can only delay a notification, never invent
// one for a transition that did not happen.
func (e *Engine) stageSideEffects(ctx context.Context, tx Repository, p *models.Payment, from, to types.PaymentStatus) error {
	booking, err := tx.GetBooking(ctx, p.BookingID)
	if err != nil {
		if err == ErrNotFound {
			booking = &models.Booking{ID: p.BookingID}
		} else {
			return err
		}
	}

	notificationIds := make([]string, 0, 2)
	for _, ef := range effectsFor(to, p.Type) {
		userId := booking.PayerID
		if ef.who == toPayee {
			userId = booking.PayeeID
		}
		n := &models.Notification{
			UserID:         userId,
			Kind:           ef.kind,
			Title:          ef.title,
			Body:           fmt.Sprintf(ef.body, booking.ItemTitle),
			ReferenceType:  "Payment",
			ReferenceValue: p.ID.String(),
			ReferenceBody: &types.JSONB{
				"payment_id": p.ID.String(),
				"booking_id": p.BookingID.String(),
				"amount":     p.Amount,
				"currency":   p.Currency,
			},
		}
		if err := tx.CreateNotification(ctx, n); err != nil {
			return err
		}
		notificationIds = append(notificationIds, n.ID.String())
	}

	return tx.CreateOutboxMessage(ctx, &models.OutboxMessage{
		Topic: OutboxTopicEvents,
		Payload: types.JSONB{
			"payment_id":    p.ID.String(),
			"booking_id":    p.BookingID.String(),
			"provider":      string(p.Provider),
			"type":          string(p.Type),
			"from":          string(from),
			"to":            string(to),
			"amount":        p.Amount,
			"currency":      p.Currency,
			"notifications": notificationIds,
		},
	})
}

func (e *Engine) stageReview(ctx context.Context, tx Repository, p *models.Payment, reason string) error {
	return tx.CreateOutboxMessage(ctx, &models.OutboxMessage{
		Topic: OutboxTopicReview,
		Payload: types.JSONB{
			"payment_id": p.ID.String(),
			"booking_id": p.BookingID.String(),
			"provider":   string(p.Provider),
			"status":     string(p.Status),
			"reason":     reason,
		},
	})
}
