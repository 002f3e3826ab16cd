package grpcserver

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"matchbook/domain/instruction"
	"matchbook/service"
)

// Client calls a matchbook server. Domain errors come back as the
// market sentinels.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Dial connects to addr without transport security.
func Dial(addr string, opts ...grpc.DialOption) (*Client, *grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, nil, err
	}
	return NewClient(conn), conn, nil
}

func (c *Client) Execute(ctx context.Context, tx *instruction.Transaction) (*service.Receipt, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, methodExecute, wrapperspb.Bytes(tx.Marshal()), out); err != nil {
		return nil, fromStatus(err)
	}
	return unmarshalReceipt(out.GetValue())
}

func (c *Client) Fund(ctx context.Context, mint, owner solana.PublicKey, amount uint64) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	in := wrapperspb.Bytes(marshalFund(fundRequest{Mint: mint, Owner: owner, Amount: amount}))
	if err := c.conn.Invoke(ctx, methodFund, in, out); err != nil {
		return 0, fromStatus(err)
	}
	return out.GetValue(), nil
}

func (c *Client) Account(ctx context.Context, addr solana.PublicKey) ([]byte, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.conn.Invoke(ctx, methodGetAccount, wrapperspb.Bytes(addr[:]), out); err != nil {
		return nil, fromStatus(err)
	}
	return out.GetValue(), nil
}

func (c *Client) Balance(ctx context.Context, mint, holder solana.PublicKey) (uint64, error) {
	out := new(wrapperspb.UInt64Value)
	in := wrapperspb.Bytes(append(append([]byte{}, mint[:]...), holder[:]...))
	if err := c.conn.Invoke(ctx, methodGetBalance, in, out); err != nil {
		return 0, fromStatus(err)
	}
	return out.GetValue(), nil
}
