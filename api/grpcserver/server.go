// Package grpcserver exposes the market service over gRPC and provides the
// matching client.
package grpcserver

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gagliardetto/solana-go"
	"github.com/streamingfast/logging"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"matchbook/domain/instruction"
	"matchbook/domain/market"
	"matchbook/service"
)

var zlog, tracer = logging.PackageLogger("grpcserver", "matchbook/api/grpcserver")

// Server adapts MarketService to gRPC.
type Server struct {
	svc *service.MarketService
}

func NewServer(svc *service.MarketService) *Server {
	return &Server{svc: svc}
}

// NewGRPCServer returns a grpc.Server with the matchbook and health
// services registered.
func NewGRPCServer(svc *service.MarketService, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(logUnary))
	s := grpc.NewServer(opts...)
	RegisterMatchbookServer(s, NewServer(svc))

	hs := health.NewServer()
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s
}

// -------------------- Commands --------------------

func (s *Server) Execute(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	tx, err := instruction.UnmarshalTransaction(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	r, err := s.svc.Execute(ctx, tx)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(marshalReceipt(r)), nil
}

func (s *Server) Fund(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error) {
	f, err := unmarshalFund(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	seq, err := s.svc.Fund(ctx, f.Mint, f.Owner, f.Amount)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(seq), nil
}

// -------------------- Queries --------------------

func (s *Server) GetAccount(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	addr, err := toKey(req.GetValue())
	if err != nil {
		return nil, toStatus(err)
	}
	data, err := s.svc.Account(addr)
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bytes(data), nil
}

func (s *Server) GetBalance(ctx context.Context, req *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error) {
	b := req.GetValue()
	if len(b) != 2*solana.PublicKeyLength {
		return nil, status.Errorf(codes.InvalidArgument, "balance request of %d bytes", len(b))
	}
	v, err := s.svc.Balance(solana.PublicKeyFromBytes(b[:32]), solana.PublicKeyFromBytes(b[32:]))
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.UInt64(v), nil
}

// -------------------- Errors --------------------

var statusCodes = []struct {
	err  error
	code codes.Code
}{
	{market.ErrCapacityExceeded, codes.ResourceExhausted},
	{market.ErrInsufficientFunds, codes.FailedPrecondition},
	{market.ErrRecordNotFound, codes.NotFound},
	{market.ErrInvalidState, codes.InvalidArgument},
	{instruction.ErrUnknownOpcode, codes.InvalidArgument},
	{context.Canceled, codes.Canceled},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
}

func toStatus(err error) error {
	for _, m := range statusCodes {
		if errors.Is(err, m.err) {
			return status.Error(m.code, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

// fromStatus turns a status back into the domain error it was mapped from
// so callers can keep using errors.Is.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.ResourceExhausted:
		return errors.Wrap(market.ErrCapacityExceeded, st.Message())
	case codes.FailedPrecondition:
		return errors.Wrap(market.ErrInsufficientFunds, st.Message())
	case codes.NotFound:
		return errors.Wrap(market.ErrRecordNotFound, st.Message())
	case codes.InvalidArgument:
		return errors.Wrap(market.ErrInvalidState, st.Message())
	}
	return err
}

func logUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		zlog.Info("rpc failed",
			zap.String("method", info.FullMethod),
			zap.Stringer("code", status.Code(err)),
			zap.Error(err),
		)
	} else if tracer.Enabled() {
		zlog.Debug("rpc served", zap.String("method", info.FullMethod), zap.Duration("elapsed", time.Since(start)))
	}
	return resp, err
}
