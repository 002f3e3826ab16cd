package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const serviceName = "matchbook.v1.Matchbook"

const (
	methodExecute    = "/" + serviceName + "/Execute"
	methodFund       = "/" + serviceName + "/Fund"
	methodGetAccount = "/" + serviceName + "/GetAccount"
	methodGetBalance = "/" + serviceName + "/GetBalance"
)

// MatchbookServer is the RPC surface. Requests and replies are protobuf
// well-known wrappers around the wire encodings in codec.go.
type MatchbookServer interface {
	// Execute takes a marshalled Transaction and returns a marshalled receipt.
	Execute(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// Fund takes a marshalled fund request and returns the journal sequence.
	Fund(context.Context, *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error)
	// GetAccount takes a 32 byte address and returns the raw record.
	GetAccount(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// GetBalance takes mint||holder and returns the custody balance.
	GetBalance(context.Context, *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error)
}

func RegisterMatchbookServer(s grpc.ServiceRegistrar, srv MatchbookServer) {
	s.RegisterService(&serviceDesc, srv)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*MatchbookServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: unary(methodExecute, MatchbookServer.Execute)},
		{MethodName: "Fund", Handler: unary(methodFund, MatchbookServer.Fund)},
		{MethodName: "GetAccount", Handler: unary(methodGetAccount, MatchbookServer.GetAccount)},
		{MethodName: "GetBalance", Handler: unary(methodGetBalance, MatchbookServer.GetBalance)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "matchbook/v1/matchbook.proto",
}

// unary builds the method handler the code generator would emit for a
// request of type *Req.
func unary[Req any, Resp any](fullMethod string, call func(MatchbookServer, context.Context, *Req) (Resp, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MatchbookServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MatchbookServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
