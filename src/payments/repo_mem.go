package payments

import (
	"context"
	"prestar/src/models"
	"prestar/src/types"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is an in-memory Repository used by tests. The mutex
// gives AdmitEvent and CASPaymentStatus the same atomicity the database
// constraints give the real one.
type MemoryRepository struct {
	mu            sync.Mutex
	Payments      map[uuid.UUID]*models.Payment
	Bookings      map[uuid.UUID]*models.Booking
	Events        map[string]*models.ExternalEventRecord
	Notifications []*models.Notification
	Outbox        []*models.OutboxMessage
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		Payments: make(map[uuid.UUID]*models.Payment),
		Bookings: make(map[uuid.UUID]*models.Booking),
		Events:   make(map[string]*models.ExternalEventRecord),
	}
}

func (r *MemoryRepository) InTx(ctx context.Context, fn func(tx Repository) error) error {
	return fn(r)
}

func eventKey(provider types.ProviderKind, id string) string {
	return string(provider) + "|" + id
}

func (r *MemoryRepository) AdmitEvent(ctx context.Context, rec *models.ExternalEventRecord) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := eventKey(rec.Provider, rec.ExternalEventID)
	if _, seen := r.Events[key]; seen {
		return false, nil
	}
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	r.Events[key] = rec
	return true, nil
}

func (r *MemoryRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	r.Payments[p.ID] = &cp
	return nil
}

func (r *MemoryRepository) FindPaymentByReference(ctx context.Context, provider types.ProviderKind, ref string) (*models.Payment, error) {
	if ref == "" {
		return nil, ErrNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.Payments {
		if p.Provider == provider && p.ExternalReference == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *MemoryRepository) ListPayments(ctx context.Context, f types.PaymentQueryFilters) ([]models.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Payment
	for _, p := range r.Payments {
		if f.BookingID != "" && p.BookingID.String() != f.BookingID {
			continue
		}
		if f.Provider != "" && string(p.Provider) != f.Provider {
			continue
		}
		if f.Status != "" && string(p.Status) != f.Status {
			continue
		}
		if f.NeedsReview != nil && p.NeedsReview != *f.NeedsReview {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *MemoryRepository) CASPaymentStatus(ctx context.Context, id uuid.UUID, from types.PaymentStatus, updates map[string]any) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.Payments[id]
	if !ok || p.Status != from {
		return false, nil
	}
	applyPaymentUpdates(p, updates)
	return true, nil
}

func applyPaymentUpdates(p *models.Payment, updates map[string]any) {
	for k, v := range updates {
		switch k {
		case "status":
			p.Status = v.(types.PaymentStatus)
		case "marketplace_fee":
			p.MarketplaceFee = v.(int64)
		case "payee_amount":
			p.PayeeAmount = v.(int64)
		case "paid_at":
			t := v.(time.Time)
			p.PaidAt = &t
		case "amount":
			p.Amount = v.(int64)
		case "needs_review":
			p.NeedsReview = v.(bool)
		case "review_reason":
			s := v.(string)
			p.ReviewReason = &s
		}
	}
}

func (r *MemoryRepository) UpdatePaymentReference(ctx context.Context, id uuid.UUID, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.Payments[id]; ok {
		p.ExternalReference = ref
	}
	return nil
}

func (r *MemoryRepository) FlagPaymentForReview(ctx context.Context, id uuid.UUID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.Payments[id]; ok {
		p.NeedsReview = true
		p.ReviewReason = &reason
	}
	return nil
}

func (r *MemoryRepository) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.Bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (r *MemoryRepository) UpdateBooking(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.Bookings[id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range updates {
		switch k {
		case "status":
			b.Status = v.(types.BookingStatus)
		case "confirmed_at":
			t := v.(time.Time)
			b.ConfirmedAt = &t
		case "service_paid":
			b.ServicePaid = v.(bool)
		case "materials_paid":
			b.MaterialsPaid = v.(bool)
		}
	}
	return nil
}

func (r *MemoryRepository) CountNonTerminalPayments(ctx context.Context, bookingID uuid.UUID, exclude uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, p := range r.Payments {
		if p.BookingID == bookingID && p.ID != exclude && !p.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.Notifications = append(r.Notifications, n)
	return nil
}

func (r *MemoryRepository) CreateOutboxMessage(ctx context.Context, m *models.OutboxMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	r.Outbox = append(r.Outbox, m)
	return nil
}
