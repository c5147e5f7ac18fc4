package handler

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"

	"github.com/rl1809/oms-cart/internal/core/domain"
	"github.com/rl1809/oms-cart/internal/core/service"
)

const (
	cartServiceName = "omscart.v1.CartService"
	jsonCodecName   = "json"
)

// jsonCodec carries the plain Go message structs below as JSON. Clients
// select it with grpc.CallContentSubtype(jsonCodecName).
type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return jsonCodecName }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type CartRequest struct {
	SessionID string `json:"session_id"`
}

type ItemRequest struct {
	SessionID string `json:"session_id"`
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type GRPCCheckoutRequest struct {
	SessionID string      `json:"session_id"`
	RequestID string      `json:"request_id"`
	Customer  CustomerDTO `json:"customer"`
}

type CartServiceServer interface {
	AddItem(context.Context, *ItemRequest) (*CartDTO, error)
	SetQuantity(context.Context, *ItemRequest) (*CartDTO, error)
	RemoveItem(context.Context, *ItemRequest) (*CartDTO, error)
	ClearCart(context.Context, *CartRequest) (*CartDTO, error)
	GetCart(context.Context, *CartRequest) (*CartDTO, error)
	Checkout(context.Context, *GRPCCheckoutRequest) (*OrderDTO, error)
}

var CartServiceDesc = grpc.ServiceDesc{
	ServiceName: cartServiceName,
	HandlerType: (*CartServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("AddItem", CartServiceServer.AddItem),
		unary("SetQuantity", CartServiceServer.SetQuantity),
		unary("RemoveItem", CartServiceServer.RemoveItem),
		unary("ClearCart", CartServiceServer.ClearCart),
		unary("GetCart", CartServiceServer.GetCart),
		unary("Checkout", CartServiceServer.Checkout),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "omscart/v1/cart",
}

func unary[Req, Resp any](method string, call func(CartServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(CartServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + cartServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(CartServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func RegisterCartServiceServer(s grpc.ServiceRegistrar, srv CartServiceServer) {
	s.RegisterService(&CartServiceDesc, srv)
}

type GRPCHandler struct {
	carts *service.CartService
	log   *zap.Logger
}

func NewGRPCHandler(carts *service.CartService, log *zap.Logger) *GRPCHandler {
	return &GRPCHandler{carts: carts, log: log}
}

// AddItem treats a zero quantity as an omitted field and adds one unit.
func (h *GRPCHandler) AddItem(ctx context.Context, req *ItemRequest) (*CartDTO, error) {
	quantity := int(req.Quantity)
	if quantity == 0 {
		quantity = 1
	}
	return h.cart(h.carts.AddItem(ctx, req.SessionID, req.ProductID, quantity))
}

func (h *GRPCHandler) SetQuantity(ctx context.Context, req *ItemRequest) (*CartDTO, error) {
	return h.cart(h.carts.SetQuantity(ctx, req.SessionID, req.ProductID, int(req.Quantity)))
}

func (h *GRPCHandler) RemoveItem(ctx context.Context, req *ItemRequest) (*CartDTO, error) {
	return h.cart(h.carts.RemoveItem(ctx, req.SessionID, req.ProductID))
}

func (h *GRPCHandler) ClearCart(ctx context.Context, req *CartRequest) (*CartDTO, error) {
	return h.cart(h.carts.Clear(ctx, req.SessionID))
}

func (h *GRPCHandler) GetCart(ctx context.Context, req *CartRequest) (*CartDTO, error) {
	return h.cart(h.carts.Snapshot(ctx, req.SessionID))
}

func (h *GRPCHandler) Checkout(ctx context.Context, req *GRPCCheckoutRequest) (*OrderDTO, error) {
	order, err := h.carts.Checkout(ctx, req.SessionID, req.RequestID, req.Customer.toDomain())
	if err != nil {
		return nil, h.status(err)
	}
	dto := toOrderDTO(order)
	return &dto, nil
}

func (h *GRPCHandler) cart(snap domain.Snapshot, err error) (*CartDTO, error) {
	if err != nil {
		return nil, h.status(err)
	}
	dto := toCartDTO(snap)
	return &dto, nil
}

func (h *GRPCHandler) status(err error) error {
	if m, ok := lookupError(err); ok {
		return status.Error(m.code, err.Error())
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.FromContextError(err).Err()
	}
	h.log.Error("grpc request failed", zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}
