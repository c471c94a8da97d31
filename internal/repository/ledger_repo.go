package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/domain"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/service"
)

// LedgerRepo is the gorm-backed service.Store. Every ForUpdate read inside
// Atomic takes a SELECT ... FOR UPDATE row lock so concurrent transitions on
// the same payment/booking serialize at the database.
type LedgerRepo struct{ db *gorm.DB }

func NewLedgerRepo(db *gorm.DB) *LedgerRepo { return &LedgerRepo{db: db} }

func (r *LedgerRepo) Migrate() error {
	return r.db.AutoMigrate(
		&domain.Booking{},
		&domain.Payment{},
		&domain.Payout{},
		&domain.Provider{},
		&domain.WebhookEvent{},
	)
}

func (r *LedgerRepo) Atomic(ctx context.Context, fn func(tx service.Tx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{db: tx})
	})
}

func (r *LedgerRepo) BookingByID(ctx context.Context, id string) (*domain.Booking, error) {
	var b domain.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (r *LedgerRepo) PaymentByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := r.db.WithContext(ctx).First(&p, "booking_id = ?", bookingID).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *LedgerRepo) PayoutsByPaymentID(ctx context.Context, paymentID string) ([]domain.Payout, error) {
	var out []domain.Payout
	err := r.db.WithContext(ctx).
		Where("payment_id = ?", paymentID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (r *LedgerRepo) ProviderByID(ctx context.Context, id string) (*domain.Provider, error) {
	var p domain.Provider
	if err := r.db.WithContext(ctx).First(&p, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (r *LedgerRepo) StalePayments(ctx context.Context, statuses []domain.PaymentStatus, before time.Time, limit int) ([]domain.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []domain.Payment
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ? AND review_flagged = ?", statuses, before, false).
		Order("updated_at ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

type ledgerTx struct{ db *gorm.DB }

func (t *ledgerTx) lock() *gorm.DB {
	return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
}

func (t *ledgerTx) BookingForUpdate(id string) (*domain.Booking, error) {
	var b domain.Booking
	if err := t.lock().First(&b, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &b, nil
}

func (t *ledgerTx) PaymentForUpdate(id string) (*domain.Payment, error) {
	var p domain.Payment
	if err := t.lock().First(&p, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (t *ledgerTx) PaymentByBookingForUpdate(bookingID string) (*domain.Payment, error) {
	var p domain.Payment
	if err := t.lock().First(&p, "booking_id = ?", bookingID).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (t *ledgerTx) PaymentByGatewayRefForUpdate(ref string) (*domain.Payment, error) {
	if ref == "" {
		return nil, service.ErrNotFound
	}
	var p domain.Payment
	if err := t.lock().First(&p, "gateway_ref = ?", ref).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (t *ledgerTx) PayoutForUpdate(id string) (*domain.Payout, error) {
	var p domain.Payout
	if err := t.lock().First(&p, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (t *ledgerTx) PayoutByTransferRefForUpdate(ref string) (*domain.Payout, error) {
	if ref == "" {
		return nil, service.ErrNotFound
	}
	var p domain.Payout
	if err := t.lock().First(&p, "transfer_ref = ?", ref).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (t *ledgerTx) LatestPayoutForUpdate(paymentID string) (*domain.Payout, error) {
	var p domain.Payout
	err := t.lock().
		Where("payment_id = ?", paymentID).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (t *ledgerTx) ProviderForUpdate(id string) (*domain.Provider, error) {
	var p domain.Provider
	if err := t.lock().First(&p, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (t *ledgerTx) CreateBooking(b *domain.Booking) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return t.db.Create(b).Error
}

func (t *ledgerTx) CreatePayment(p *domain.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return t.db.Create(p).Error
}

func (t *ledgerTx) CreatePayout(p *domain.Payout) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return t.db.Create(p).Error
}

func (t *ledgerTx) SaveBooking(b *domain.Booking) error   { return t.db.Save(b).Error }
func (t *ledgerTx) SavePayment(p *domain.Payment) error   { return t.db.Save(p).Error }
func (t *ledgerTx) SavePayout(p *domain.Payout) error     { return t.db.Save(p).Error }
func (t *ledgerTx) SaveProvider(p *domain.Provider) error { return t.db.Save(p).Error }

func (t *ledgerTx) EventProcessed(eventID string) (bool, error) {
	var n int64
	err := t.db.Model(&domain.WebhookEvent{}).
		Where("id = ? AND processed = ?", eventID, true).
		Count(&n).Error
	return n > 0, err
}

func (t *ledgerTx) MarkEventProcessed(ev *domain.WebhookEvent) error {
	return t.db.Create(ev).Error
}

func mapErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return service.ErrNotFound
	}
	return err
}
