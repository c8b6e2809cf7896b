package grpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified name of the account cache service.
const ServiceName = "accountcache.v1.AccountCache"

// Method names of the account cache service.
const (
	MethodGetProfile      = "GetProfile"
	MethodGetSubscription = "GetSubscription"
	MethodGetInvoices     = "GetInvoices"
	MethodRefreshDomain   = "RefreshDomain"
)

// AccountCacheServer is the server API of accountcache.v1.AccountCache. Requests carry "tenant_id",
// "user_id" and, for RefreshDomain, "domain".
type AccountCacheServer interface {
	GetProfile(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetSubscription(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetInvoices(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	RefreshDomain(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv AccountCacheServer, ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AccountCacheServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: FullMethod(method),
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(AccountCacheServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// AccountCacheServiceDesc describes accountcache.v1.AccountCache for grpc.Server.RegisterService.
var AccountCacheServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccountCacheServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodGetProfile, Handler: unaryHandler(MethodGetProfile, AccountCacheServer.GetProfile)},
		{MethodName: MethodGetSubscription, Handler: unaryHandler(MethodGetSubscription, AccountCacheServer.GetSubscription)},
		{MethodName: MethodGetInvoices, Handler: unaryHandler(MethodGetInvoices, AccountCacheServer.GetInvoices)},
		{MethodName: MethodRefreshDomain, Handler: unaryHandler(MethodRefreshDomain, AccountCacheServer.RefreshDomain)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "accountcache/v1/account_cache.proto",
}

// FullMethod returns the wire name of a method, e.g. "/accountcache.v1.AccountCache/GetProfile".
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Client calls accountcache.v1.AccountCache over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a Client on cc.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with the given request fields.
func (c *Client) Call(ctx context.Context, method string, fields map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("invalid request fields: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// toStruct converts a JSON-serialisable value into a Struct by way of its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return structpb.NewStruct(m)
}
