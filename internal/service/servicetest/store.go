// Package servicetest provides in-memory fakes of the store and gateway
// contracts for tests across the service, reconciler and HTTP packages.
package servicetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Molemo21/ConnectSA-k9-sub007/internal/domain"
	"github.com/Molemo21/ConnectSA-k9-sub007/internal/service"
)

// MemStore implements service.Store with copy-on-read, write-on-save
// semantics and full rollback when an Atomic callback errors, mirroring what
// the database transaction gives the real repository.
type MemStore struct {
	mu        sync.Mutex
	seq       int
	Bookings  map[string]*domain.Booking
	Payments  map[string]*domain.Payment
	Payouts   map[string]*domain.Payout
	Providers map[string]*domain.Provider
	Events    map[string]*domain.WebhookEvent
}

func NewMemStore() *MemStore {
	return &MemStore{
		Bookings:  map[string]*domain.Booking{},
		Payments:  map[string]*domain.Payment{},
		Payouts:   map[string]*domain.Payout{},
		Providers: map[string]*domain.Provider{},
		Events:    map[string]*domain.WebhookEvent{},
	}
}

func (s *MemStore) Atomic(ctx context.Context, fn func(tx service.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(&memTx{s: s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *MemStore) BookingByID(ctx context.Context, id string) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.Bookings[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *MemStore) PaymentByBookingID(ctx context.Context, bookingID string) (*domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.Payments {
		if p.BookingID == bookingID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, service.ErrNotFound
}

func (s *MemStore) PayoutsByPaymentID(ctx context.Context, paymentID string) ([]domain.Payout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Payout
	for _, p := range s.Payouts {
		if p.PaymentID == paymentID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *MemStore) ProviderByID(ctx context.Context, id string) (*domain.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Providers[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemStore) StalePayments(ctx context.Context, statuses []domain.PaymentStatus, before time.Time, limit int) ([]domain.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Payment
	for _, p := range s.Payments {
		if p.ReviewFlagged || !p.UpdatedAt.Before(before) {
			continue
		}
		for _, st := range statuses {
			if p.Status == st {
				out = append(out, *p)
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

type snapshot struct {
	bookings  map[string]domain.Booking
	payments  map[string]domain.Payment
	payouts   map[string]domain.Payout
	providers map[string]domain.Provider
	events    map[string]domain.WebhookEvent
}

func (s *MemStore) snapshot() snapshot {
	sn := snapshot{
		bookings:  map[string]domain.Booking{},
		payments:  map[string]domain.Payment{},
		payouts:   map[string]domain.Payout{},
		providers: map[string]domain.Provider{},
		events:    map[string]domain.WebhookEvent{},
	}
	for k, v := range s.Bookings {
		sn.bookings[k] = *v
	}
	for k, v := range s.Payments {
		sn.payments[k] = *v
	}
	for k, v := range s.Payouts {
		sn.payouts[k] = *v
	}
	for k, v := range s.Providers {
		sn.providers[k] = *v
	}
	for k, v := range s.Events {
		sn.events[k] = *v
	}
	return sn
}

func (s *MemStore) restore(sn snapshot) {
	s.Bookings = map[string]*domain.Booking{}
	for k := range sn.bookings {
		v := sn.bookings[k]
		s.Bookings[k] = &v
	}
	s.Payments = map[string]*domain.Payment{}
	for k := range sn.payments {
		v := sn.payments[k]
		s.Payments[k] = &v
	}
	s.Payouts = map[string]*domain.Payout{}
	for k := range sn.payouts {
		v := sn.payouts[k]
		s.Payouts[k] = &v
	}
	s.Providers = map[string]*domain.Provider{}
	for k := range sn.providers {
		v := sn.providers[k]
		s.Providers[k] = &v
	}
	s.Events = map[string]*domain.WebhookEvent{}
	for k := range sn.events {
		v := sn.events[k]
		s.Events[k] = &v
	}
}

func (s *MemStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

type memTx struct{ s *MemStore }

func (t *memTx) BookingForUpdate(id string) (*domain.Booking, error) {
	b, ok := t.s.Bookings[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (t *memTx) PaymentForUpdate(id string) (*domain.Payment, error) {
	p, ok := t.s.Payments[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) PaymentByBookingForUpdate(bookingID string) (*domain.Payment, error) {
	for _, p := range t.s.Payments {
		if p.BookingID == bookingID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, service.ErrNotFound
}

func (t *memTx) PaymentByGatewayRefForUpdate(ref string) (*domain.Payment, error) {
	if ref == "" {
		return nil, service.ErrNotFound
	}
	for _, p := range t.s.Payments {
		if p.GatewayRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, service.ErrNotFound
}

func (t *memTx) PayoutForUpdate(id string) (*domain.Payout, error) {
	p, ok := t.s.Payouts[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) PayoutByTransferRefForUpdate(ref string) (*domain.Payout, error) {
	if ref == "" {
		return nil, service.ErrNotFound
	}
	for _, p := range t.s.Payouts {
		if p.TransferRef == ref {
			cp := *p
			return &cp, nil
		}
	}
	return nil, service.ErrNotFound
}

func (t *memTx) LatestPayoutForUpdate(paymentID string) (*domain.Payout, error) {
	var latest *domain.Payout
	for _, p := range t.s.Payouts {
		if p.PaymentID != paymentID {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	if latest == nil {
		return nil, service.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (t *memTx) ProviderForUpdate(id string) (*domain.Provider, error) {
	p, ok := t.s.Providers[id]
	if !ok {
		return nil, service.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) CreateBooking(b *domain.Booking) error {
	if b.ID == "" {
		b.ID = t.s.nextID("bk")
	}
	b.CreatedAt = time.Now().UTC()
	b.UpdatedAt = b.CreatedAt
	cp := *b
	t.s.Bookings[b.ID] = &cp
	return nil
}

func (t *memTx) CreatePayment(p *domain.Payment) error {
	if p.ID == "" {
		p.ID = t.s.nextID("pay")
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	t.s.Payments[p.ID] = &cp
	return nil
}

func (t *memTx) CreatePayout(p *domain.Payout) error {
	if p.ID == "" {
		p.ID = t.s.nextID("po")
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	t.s.Payouts[p.ID] = &cp
	return nil
}

func (t *memTx) SaveBooking(b *domain.Booking) error {
	b.UpdatedAt = time.Now().UTC()
	cp := *b
	t.s.Bookings[b.ID] = &cp
	return nil
}

func (t *memTx) SavePayment(p *domain.Payment) error {
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	t.s.Payments[p.ID] = &cp
	return nil
}

func (t *memTx) SavePayout(p *domain.Payout) error {
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	t.s.Payouts[p.ID] = &cp
	return nil
}

func (t *memTx) SaveProvider(p *domain.Provider) error {
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	t.s.Providers[p.ID] = &cp
	return nil
}

func (t *memTx) EventProcessed(eventID string) (bool, error) {
	ev, ok := t.s.Events[eventID]
	return ok && ev.Processed, nil
}

func (t *memTx) MarkEventProcessed(ev *domain.WebhookEvent) error {
	if _, ok := t.s.Events[ev.ID]; ok {
		return errors.New("duplicate key: webhook_events.id")
	}
	cp := *ev
	t.s.Events[ev.ID] = &cp
	return nil
}
