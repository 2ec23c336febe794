package payments

import (
	"context"
	"errors"
	"prestar/src/models"
	"prestar/src/types"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrNotFound = errors.New("record not found")

// Repository is the persistence port of the reconciliation engine. Every
// component receives it explicitly; nothing in this package touches a
// global database handle. InTx runs fn against a transactional view so the
// idempotency insert, the payment compare-and-update, the booking
// derivation and the staged side effects commit or roll back together.
type Repository interface {
	InTx(ctx context.Context, fn func(tx Repository) error) error

	// AdmitEvent atomically records the (provider, externalEventID) pair.
	// It returns false when the pair was already recorded, which is the
	// sole duplicate-delivery signal.
	AdmitEvent(ctx context.Context, rec *models.ExternalEventRecord) (bool, error)

	CreatePayment(ctx context.Context, p *models.Payment) error
	FindPaymentByReference(ctx context.Context, provider types.ProviderKind, ref string) (*models.Payment, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	ListPayments(ctx context.Context, f types.PaymentQueryFilters) ([]models.Payment, error)

	// CASPaymentStatus updates the payment only when its current status
	// still equals from. Returns false when another writer won the race.
	CASPaymentStatus(ctx context.Context, id uuid.UUID, from types.PaymentStatus, updates map[string]any) (bool, error)
	UpdatePaymentReference(ctx context.Context, id uuid.UUID, ref string) error
	FlagPaymentForReview(ctx context.Context, id uuid.UUID, reason string) error

	GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	UpdateBooking(ctx context.Context, id uuid.UUID, updates map[string]any) error
	CountNonTerminalPayments(ctx context.Context, bookingID uuid.UUID, exclude uuid.UUID) (int64, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	CreateOutboxMessage(ctx context.Context, m *models.OutboxMessage) error
}

type gormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) InTx(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) AdmitEvent(ctx context.Context, rec *models.ExternalEventRecord) (bool, error) {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "external_event_id"}},
			DoNothing: true,
		}).
		Create(rec)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) CreatePayment(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *gormRepository) FindPaymentByReference(ctx context.Context, provider types.ProviderKind, ref string) (*models.Payment, error) {
	// Struct conditions drop zero-value fields, which would turn an empty
	// reference into a provider-wide match. Both predicates stay explicit.
	if ref == "" {
		return nil, ErrNotFound
	}
	var p models.Payment
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("provider = ? AND external_reference = ?", provider, ref).
		First(&p).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) GetPayment(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		First(&p).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormRepository) ListPayments(ctx context.Context, f types.PaymentQueryFilters) ([]models.Payment, error) {
	q := r.db.WithContext(ctx).Model(&models.Payment{})
	if f.BookingID != "" {
		q = q.Where("booking_id = ?", f.BookingID)
	}
	if f.Provider != "" {
		q = q.Where("provider = ?", f.Provider)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.NeedsReview != nil {
		q = q.Where("needs_review = ?", *f.NeedsReview)
	}
	var out []models.Payment
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *gormRepository) CASPaymentStatus(ctx context.Context, id uuid.UUID, from types.PaymentStatus, updates map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *gormRepository) UpdatePaymentReference(ctx context.Context, id uuid.UUID, ref string) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Update("external_reference", ref).
		Error
}

func (r *gormRepository) FlagPaymentForReview(ctx context.Context, id uuid.UUID, reason string) error {
	return r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"needs_review":  true,
			"review_reason": reason,
		}).
		Error
}

func (r *gormRepository) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	err := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Preload("Payer").
		Preload("Payee").
		Where("id = ?", id).
		First(&b).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &b, nil
}

func (r *gormRepository) UpdateBooking(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ?", id).
		Updates(updates).
		Error
}

func (r *gormRepository) CountNonTerminalPayments(ctx context.Context, bookingID uuid.UUID, exclude uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("booking_id = ? AND id <> ?", bookingID, exclude).
		Where("status NOT IN ?", []types.PaymentStatus{
			types.PAYMENT_FAILED,
			types.PAYMENT_CANCELLED,
			types.PAYMENT_REFUNDED,
		}).
		Count(&count).
		Error
	return count, err
}

func (r *gormRepository) CreateNotification(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *gormRepository) CreateOutboxMessage(ctx context.Context, m *models.OutboxMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}
