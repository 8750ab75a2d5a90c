package grpcserver

import (
	"context"

	"google.golang.org/grpc"

	"staypay/internal/app/dto"
)

// Client calls staypay.v1.Calculation using the JSON codec.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Quote(ctx context.Context, req *QuoteRequest, opts ...grpc.CallOption) (*dto.Quote, error) {
	out := new(dto.Quote)
	if err := c.invoke(ctx, "Quote", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Confirm(ctx context.Context, req *ConfirmRequest, opts ...grpc.CallOption) (*dto.ConfirmedBooking, error) {
	out := new(dto.ConfirmedBooking)
	if err := c.invoke(ctx, "Confirm", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Revise(ctx context.Context, req *ReviseRequest, opts ...grpc.CallOption) (*dto.RevisedBooking, error) {
	out := new(dto.RevisedBooking)
	if err := c.invoke(ctx, "Revise", req, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...)
}
