package handler

import (
	"context"

	"google.golang.org/grpc"
)

// CartServiceClient calls CartServiceDesc over the JSON codec.
type CartServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewCartServiceClient(cc grpc.ClientConnInterface) *CartServiceClient {
	return &CartServiceClient{cc: cc}
}

func (c *CartServiceClient) AddItem(ctx context.Context, in *ItemRequest, opts ...grpc.CallOption) (*CartDTO, error) {
	return invoke[CartDTO](ctx, c.cc, "AddItem", in, opts)
}

func (c *CartServiceClient) SetQuantity(ctx context.Context, in *ItemRequest, opts ...grpc.CallOption) (*CartDTO, error) {
	return invoke[CartDTO](ctx, c.cc, "SetQuantity", in, opts)
}

func (c *CartServiceClient) RemoveItem(ctx context.Context, in *ItemRequest, opts ...grpc.CallOption) (*CartDTO, error) {
	return invoke[CartDTO](ctx, c.cc, "RemoveItem", in, opts)
}

func (c *CartServiceClient) ClearCart(ctx context.Context, in *CartRequest, opts ...grpc.CallOption) (*CartDTO, error) {
	return invoke[CartDTO](ctx, c.cc, "ClearCart", in, opts)
}

func (c *CartServiceClient) GetCart(ctx context.Context, in *CartRequest, opts ...grpc.CallOption) (*CartDTO, error) {
	return invoke[CartDTO](ctx, c.cc, "GetCart", in, opts)
}

func (c *CartServiceClient) Checkout(ctx context.Context, in *GRPCCheckoutRequest, opts ...grpc.CallOption) (*OrderDTO, error) {
	return invoke[OrderDTO](ctx, c.cc, "Checkout", in, opts)
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(jsonCodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+cartServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
