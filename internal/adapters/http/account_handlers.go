package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"gitlab.com/timkado/api/account-cache-service/internal/application"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// AccountReader is the read side of the account cache used by the handlers.
type AccountReader interface {
	GetProfile(ctx context.Context, tenantID, userID string) (domain.Profile, error)
	GetSubscription(ctx context.Context, tenantID, userID string) (*domain.Subscription, error)
	GetInvoices(ctx context.Context, tenantID, userID string) ([]domain.Invoice, error)
	RefreshDomain(ctx context.Context, cacheDomain domain.CacheDomain, tenantID, userID string) (domain.RefreshOutcome, error)
}

// SubscriptionResponse wraps the optional subscription so that "no subscription" is an explicit null.
type SubscriptionResponse struct {
	Subscription *domain.Subscription `json:"subscription"`
}

// RefreshResponse reports how a forced refresh settled.
type RefreshResponse struct {
	Outcome domain.RefreshOutcome `json:"outcome"`
}

// InvoicesResponse lists the user's invoices.
type InvoicesResponse struct {
	Data []domain.Invoice `json:"data"`
}

// AccountHandlers serves cached account data over HTTP.
type AccountHandlers struct {
	accounts AccountReader
	logger   domain.Logger
}

// NewAccountHandlers creates the account handlers.
func NewAccountHandlers(accounts AccountReader, logger domain.Logger) *AccountHandlers {
	if accounts == nil || logger == nil {
		panic("accounts and logger are required in NewAccountHandlers")
	}
	return &AccountHandlers{accounts: accounts, logger: logger}
}

// Register mounts the account routes on mux, each wrapped with wrap.
func (h *AccountHandlers) Register(mux *http.ServeMux, wrap func(http.Handler) http.Handler) {
	mux.Handle("GET /v1/tenants/{tenantID}/users/{userID}/profile", wrap(http.HandlerFunc(h.GetProfile)))
	mux.Handle("GET /v1/tenants/{tenantID}/users/{userID}/subscription", wrap(http.HandlerFunc(h.GetSubscription)))
	mux.Handle("GET /v1/tenants/{tenantID}/users/{userID}/invoices", wrap(http.HandlerFunc(h.GetInvoices)))
	mux.Handle("POST /v1/tenants/{tenantID}/users/{userID}/refresh/{domain}", wrap(http.HandlerFunc(h.RefreshDomain)))
}

func (h *AccountHandlers) GetProfile(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := h.accountIDs(w, r)
	if !ok {
		return
	}
	profile, err := h.accounts.GetProfile(r.Context(), tenantID, userID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *AccountHandlers) GetSubscription(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := h.accountIDs(w, r)
	if !ok {
		return
	}
	sub, err := h.accounts.GetSubscription(r.Context(), tenantID, userID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SubscriptionResponse{Subscription: sub})
}

func (h *AccountHandlers) GetInvoices(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := h.accountIDs(w, r)
	if !ok {
		return
	}
	list, err := h.accounts.GetInvoices(r.Context(), tenantID, userID)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InvoicesResponse{Data: list})
}

// RefreshDomain forces a refresh of one cache domain and answers 202 once it has settled.
func (h *AccountHandlers) RefreshDomain(w http.ResponseWriter, r *http.Request) {
	tenantID, userID, ok := h.accountIDs(w, r)
	if !ok {
		return
	}
	cacheDomain := domain.CacheDomain(r.PathValue("domain"))
	if !cacheDomain.Valid() {
		domain.NewErrorResponse(domain.ErrNotFound, "Unknown cache domain", string(cacheDomain)).WriteJSON(w, http.StatusNotFound)
		return
	}
	outcome, err := h.accounts.RefreshDomain(r.Context(), cacheDomain, tenantID, userID)
	if err != nil {
		if errors.Is(err, application.ErrUnknownCacheDomain) {
			domain.NewErrorResponse(domain.ErrNotFound, "Unknown cache domain", string(cacheDomain)).WriteJSON(w, http.StatusNotFound)
			return
		}
		h.writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, RefreshResponse{Outcome: outcome})
}

func (h *AccountHandlers) accountIDs(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	tenantID := strings.TrimSpace(r.PathValue("tenantID"))
	userID := strings.TrimSpace(r.PathValue("userID"))
	if tenantID == "" || userID == "" {
		h.logger.Warn(r.Context(), "Missing account identifiers", "path", r.URL.Path)
		domain.NewErrorResponse(domain.ErrBadRequest, "tenantID and userID are required", "").WriteJSON(w, http.StatusBadRequest)
		return "", "", false
	}
	return tenantID, userID, true
}

func (h *AccountHandlers) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error(r.Context(), "Failed to read account cache", "path", r.URL.Path, "error", err)
	domain.NewErrorResponse(domain.ErrInternal, "Account data is temporarily unavailable", "").WriteJSON(w, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
