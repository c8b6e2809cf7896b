package upstream

import (
	"context"
	"errors"
	"net/url"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/config"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// PaymentsClient reads subscriptions and invoices from the payments service.
type PaymentsClient struct {
	*Client
}

type invoiceList struct {
	Data []domain.Invoice `json:"data"`
}

// NewPaymentsClient creates the payments client from the upstream config.
func NewPaymentsClient(cfgProvider config.Provider, logger domain.Logger) *PaymentsClient {
	return &PaymentsClient{Client: NewClient("payments", cfgProvider.Get().Upstream.Payments, logger)}
}

func userPath(tenantID, userID, resource string) string {
	return "/v1/tenants/" + url.PathEscape(tenantID) + "/users/" + url.PathEscape(userID) + "/" + resource
}

// FetchSubscription returns nil without error when the user has no subscription.
func (c *PaymentsClient) FetchSubscription(ctx context.Context, tenantID, userID string) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := c.getJSON(ctx, userPath(tenantID, userID, "subscription"), &sub)
	if errors.Is(err, errNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// FetchInvoices returns the user's invoices; an unknown user has none.
func (c *PaymentsClient) FetchInvoices(ctx context.Context, tenantID, userID string) ([]domain.Invoice, error) {
	var list invoiceList
	err := c.getJSON(ctx, userPath(tenantID, userID, "invoices"), &list)
	if errors.Is(err, errNotFound) {
		return []domain.Invoice{}, nil
	}
	if err != nil {
		return nil, err
	}
	if list.Data == nil {
		list.Data = []domain.Invoice{}
	}
	return list.Data, nil
}

var (
	_ domain.SubscriptionFetcher = (*PaymentsClient)(nil)
	_ domain.InvoiceFetcher      = (*PaymentsClient)(nil)
)
