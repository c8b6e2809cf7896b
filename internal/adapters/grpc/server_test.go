package grpc

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"gitlab.com/timkado/api/account-cache-service/benchmarks/mocks"
	"gitlab.com/timkado/api/account-cache-service/internal/application"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

const bufSize = 1024 * 1024

type grpcFixture struct {
	client   *Client
	conn     *grpc.ClientConn
	crm      *mocks.MockCRM
	payments *mocks.MockPayments
	subs     *mocks.MockCacheRecordStore[domain.Subscription]
}

func newGRPCFixture(t *testing.T) *grpcFixture {
	t.Helper()
	logger := mocks.NewMockLogger()
	f := &grpcFixture{
		crm:      &mocks.MockCRM{},
		payments: &mocks.MockPayments{},
		subs:     mocks.NewMockCacheRecordStore[domain.Subscription](),
	}
	cfgProvider := mocks.NewMockConfigProvider()
	svc := application.NewAccountCacheService(logger, cfgProvider, application.NewCoordinator(logger),
		application.CacheStores{
			Profiles:      mocks.NewMockCacheRecordStore[domain.Profile](),
			Subscriptions: f.subs,
			Invoices:      mocks.NewMockCacheRecordStore[[]domain.Invoice](),
		}, f.crm, f.payments)

	ctx, cancel := context.WithCancel(context.Background())
	srv := NewServer(ctx, logger, cfgProvider, NewAccountCacheHandler(svc, logger))
	lis := bufconn.Listen(bufSize)
	srv.Serve(lis)

	conn, err := grpc.DialContext(context.Background(), "bufnet", //nolint:staticcheck // Required for bufconn testing
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		srv.GracefulStop()
		cancel()
	})
	f.conn = conn
	f.client = NewClient(conn)
	return f
}

func authed() context.Context {
	return metadata.AppendToOutgoingContext(context.Background(), apiKeyMetadata, "test-api-key")
}

func TestGRPCGetProfile(t *testing.T) {
	f := newGRPCFixture(t)
	f.crm.SetResult(&domain.Profile{UserID: "u1", Email: "a@example.com"}, nil)

	out, err := f.client.Call(authed(), MethodGetProfile, map[string]any{"tenant_id": "t1", "user_id": "u1"})
	require.NoError(t, err)
	profile := out.GetFields()["profile"].GetStructValue()
	require.NotNil(t, profile)
	assert.Equal(t, "a@example.com", profile.GetFields()["email"].GetStringValue())
}

func TestGRPCGetSubscriptionNone(t *testing.T) {
	f := newGRPCFixture(t)

	out, err := f.client.Call(authed(), MethodGetSubscription, map[string]any{"tenant_id": "t1", "user_id": "u1"})
	require.NoError(t, err)
	_, isNull := out.GetFields()["subscription"].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull)
}

func TestGRPCGetInvoices(t *testing.T) {
	f := newGRPCFixture(t)
	f.payments.SetInvoices([]domain.Invoice{{ID: "in_1"}, {ID: "in_2"}}, nil)

	out, err := f.client.Call(authed(), MethodGetInvoices, map[string]any{"tenant_id": "t1", "user_id": "u1"})
	require.NoError(t, err)
	assert.Len(t, out.GetFields()["data"].GetListValue().GetValues(), 2)
}

func TestGRPCRefreshDomain(t *testing.T) {
	f := newGRPCFixture(t)
	f.payments.SetSubscription(&domain.Subscription{ID: "sub_1", Status: "active"}, nil)

	out, err := f.client.Call(authed(), MethodRefreshDomain, map[string]any{"tenant_id": "t1", "user_id": "u1", "domain": "billing-subscription"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.subs.Len())
	assert.Equal(t, "updated", out.GetFields()["outcome"].GetStringValue())

	_, err = f.client.Call(authed(), MethodRefreshDomain, map[string]any{"tenant_id": "t1", "user_id": "u1", "domain": "loyalty"})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestGRPCValidationAndErrors(t *testing.T) {
	f := newGRPCFixture(t)

	_, err := f.client.Call(authed(), MethodGetProfile, map[string]any{"tenant_id": "t1"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	f.subs.FindErr = errors.New("redis down")
	_, err = f.client.Call(authed(), MethodGetSubscription, map[string]any{"tenant_id": "t1", "user_id": "u1"})
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.NotContains(t, err.Error(), "redis down")
}

func TestGRPCRequiresAPIKey(t *testing.T) {
	f := newGRPCFixture(t)

	_, err := f.client.Call(context.Background(), MethodGetProfile, map[string]any{"tenant_id": "t1", "user_id": "u1"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	wrong := metadata.AppendToOutgoingContext(context.Background(), apiKeyMetadata, "nope")
	_, err = f.client.Call(wrong, MethodGetProfile, map[string]any{"tenant_id": "t1", "user_id": "u1"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
}

func TestGRPCHealthIsOpen(t *testing.T) {
	f := newGRPCFixture(t)

	resp, err := healthpb.NewHealthClient(f.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
