package mocks

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// MockCRM implements domain.ProfileFetcher.
type MockCRM struct {
	mu      sync.Mutex
	Profile *domain.Profile
	Err     error
	Delay   time.Duration
	Panic   any

	Calls atomic.Int64
}

// SetResult swaps the next response.
func (m *MockCRM) SetResult(p *domain.Profile, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Profile, m.Err = p, err
}

func (m *MockCRM) FetchProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	m.Calls.Add(1)
	if err := sleepCtx(ctx, m.Delay); err != nil {
		return nil, err
	}
	if m.Panic != nil {
		panic(m.Panic)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Profile == nil {
		return nil, nil
	}
	p := *m.Profile
	return &p, nil
}

// MockPayments implements the subscription and invoice fetchers.
type MockPayments struct {
	mu              sync.Mutex
	Subscription    *domain.Subscription
	Invoices        []domain.Invoice
	SubscriptionErr error
	InvoicesErr     error
	Delay           time.Duration

	SubscriptionCalls atomic.Int64
	InvoiceCalls      atomic.Int64
}

// SetSubscription swaps the next subscription response.
func (m *MockPayments) SetSubscription(s *domain.Subscription, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subscription, m.SubscriptionErr = s, err
}

// SetInvoices swaps the next invoices response.
func (m *MockPayments) SetInvoices(list []domain.Invoice, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Invoices, m.InvoicesErr = list, err
}

func (m *MockPayments) FetchSubscription(ctx context.Context, tenantID, userID string) (*domain.Subscription, error) {
	m.SubscriptionCalls.Add(1)
	if err := sleepCtx(ctx, m.Delay); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubscriptionErr != nil {
		return nil, m.SubscriptionErr
	}
	if m.Subscription == nil {
		return nil, nil
	}
	s := *m.Subscription
	return &s, nil
}

func (m *MockPayments) FetchInvoices(ctx context.Context, tenantID, userID string) ([]domain.Invoice, error) {
	m.InvoiceCalls.Add(1)
	if err := sleepCtx(ctx, m.Delay); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InvoicesErr != nil {
		return nil, m.InvoicesErr
	}
	return append([]domain.Invoice(nil), m.Invoices...), nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
