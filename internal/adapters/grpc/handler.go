package grpc

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"gitlab.com/timkado/api/account-cache-service/internal/application"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// AccountReader is the account cache API served over gRPC.
type AccountReader interface {
	GetProfile(ctx context.Context, tenantID, userID string) (domain.Profile, error)
	GetSubscription(ctx context.Context, tenantID, userID string) (*domain.Subscription, error)
	GetInvoices(ctx context.Context, tenantID, userID string) ([]domain.Invoice, error)
	RefreshDomain(ctx context.Context, cacheDomain domain.CacheDomain, tenantID, userID string) (domain.RefreshOutcome, error)
}

// AccountCacheHandler implements AccountCacheServer on top of the account cache.
type AccountCacheHandler struct {
	accounts AccountReader
	logger   domain.Logger
}

// NewAccountCacheHandler creates the gRPC handler.
func NewAccountCacheHandler(accounts AccountReader, logger domain.Logger) *AccountCacheHandler {
	if accounts == nil || logger == nil {
		panic("accounts and logger are required in NewAccountCacheHandler")
	}
	return &AccountCacheHandler{accounts: accounts, logger: logger}
}

var _ AccountCacheServer = (*AccountCacheHandler)(nil)

func (h *AccountCacheHandler) GetProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, userID, err := accountIDs(req)
	if err != nil {
		return nil, err
	}
	profile, err := h.accounts.GetProfile(ctx, tenantID, userID)
	if err != nil {
		return nil, h.internal(ctx, MethodGetProfile, err)
	}
	return h.respond(ctx, MethodGetProfile, map[string]any{"profile": profile})
}

func (h *AccountCacheHandler) GetSubscription(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, userID, err := accountIDs(req)
	if err != nil {
		return nil, err
	}
	sub, err := h.accounts.GetSubscription(ctx, tenantID, userID)
	if err != nil {
		return nil, h.internal(ctx, MethodGetSubscription, err)
	}
	return h.respond(ctx, MethodGetSubscription, map[string]any{"subscription": sub})
}

func (h *AccountCacheHandler) GetInvoices(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, userID, err := accountIDs(req)
	if err != nil {
		return nil, err
	}
	list, err := h.accounts.GetInvoices(ctx, tenantID, userID)
	if err != nil {
		return nil, h.internal(ctx, MethodGetInvoices, err)
	}
	return h.respond(ctx, MethodGetInvoices, map[string]any{"data": list})
}

func (h *AccountCacheHandler) RefreshDomain(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	tenantID, userID, err := accountIDs(req)
	if err != nil {
		return nil, err
	}
	cacheDomain := domain.CacheDomain(stringField(req, "domain"))
	if !cacheDomain.Valid() {
		return nil, status.Errorf(codes.NotFound, "unknown cache domain %q", cacheDomain)
	}
	outcome, err := h.accounts.RefreshDomain(ctx, cacheDomain, tenantID, userID)
	if err != nil {
		if errors.Is(err, application.ErrUnknownCacheDomain) {
			return nil, status.Errorf(codes.NotFound, "unknown cache domain %q", cacheDomain)
		}
		return nil, h.internal(ctx, MethodRefreshDomain, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"outcome": structpb.NewStringValue(string(outcome)),
	}}, nil
}

func (h *AccountCacheHandler) respond(ctx context.Context, method string, v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, h.internal(ctx, method, err)
	}
	return out, nil
}

func (h *AccountCacheHandler) internal(ctx context.Context, method string, err error) error {
	h.logger.Error(ctx, "gRPC account cache call failed", "method", method, "error", err)
	return status.Error(codes.Internal, "account data is temporarily unavailable")
}

func accountIDs(req *structpb.Struct) (string, string, error) {
	tenantID := stringField(req, "tenant_id")
	userID := stringField(req, "user_id")
	if tenantID == "" || userID == "" {
		return "", "", status.Error(codes.InvalidArgument, "tenant_id and user_id are required")
	}
	return tenantID, userID, nil
}

func stringField(req *structpb.Struct, name string) string {
	if req == nil {
		return ""
	}
	return strings.TrimSpace(req.GetFields()[name].GetStringValue())
}
