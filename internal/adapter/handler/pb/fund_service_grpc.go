package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	FundService_Subscribe_FullMethodName        = "/fundengine.v1.FundService/Subscribe"
	FundService_Cancel_FullMethodName           = "/fundengine.v1.FundService/Cancel"
	FundService_GetBalance_FullMethodName       = "/fundengine.v1.FundService/GetBalance"
	FundService_ListTransactions_FullMethodName = "/fundengine.v1.FundService/ListTransactions"
	FundService_ListFunds_FullMethodName        = "/fundengine.v1.FundService/ListFunds"
)

type FundServiceClient interface {
	Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (*TransactionResponse, error)
	Cancel(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*TransactionResponse, error)
	GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error)
	ListTransactions(ctx context.Context, in *ListTransactionsRequest, opts ...grpc.CallOption) (*ListTransactionsResponse, error)
	ListFunds(ctx context.Context, in *ListFundsRequest, opts ...grpc.CallOption) (*ListFundsResponse, error)
}

type fundServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewFundServiceClient(cc grpc.ClientConnInterface) FundServiceClient {
	return &fundServiceClient{cc}
}

func (c *fundServiceClient) invoke(ctx context.Context, method string, in, out any, opts []grpc.CallOption) error {
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	return c.cc.Invoke(ctx, method, in, out, opts...)
}

func (c *fundServiceClient) Subscribe(ctx context.Context, in *SubscribeRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	out := new(TransactionResponse)
	if err := c.invoke(ctx, FundService_Subscribe_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fundServiceClient) Cancel(ctx context.Context, in *CancelRequest, opts ...grpc.CallOption) (*TransactionResponse, error) {
	out := new(TransactionResponse)
	if err := c.invoke(ctx, FundService_Cancel_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fundServiceClient) GetBalance(ctx context.Context, in *GetBalanceRequest, opts ...grpc.CallOption) (*BalanceResponse, error) {
	out := new(BalanceResponse)
	if err := c.invoke(ctx, FundService_GetBalance_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fundServiceClient) ListTransactions(ctx context.Context, in *ListTransactionsRequest, opts ...grpc.CallOption) (*ListTransactionsResponse, error) {
	out := new(ListTransactionsResponse)
	if err := c.invoke(ctx, FundService_ListTransactions_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *fundServiceClient) ListFunds(ctx context.Context, in *ListFundsRequest, opts ...grpc.CallOption) (*ListFundsResponse, error) {
	out := new(ListFundsResponse)
	if err := c.invoke(ctx, FundService_ListFunds_FullMethodName, in, out, opts); err != nil {
		return nil, err
	}
	return out, nil
}

// FundServiceServer is the server API for fundengine.v1.FundService.
// Implementations must embed UnimplementedFundServiceServer.
type FundServiceServer interface {
	Subscribe(context.Context, *SubscribeRequest) (*TransactionResponse, error)
	Cancel(context.Context, *CancelRequest) (*TransactionResponse, error)
	GetBalance(context.Context, *GetBalanceRequest) (*BalanceResponse, error)
	ListTransactions(context.Context, *ListTransactionsRequest) (*ListTransactionsResponse, error)
	ListFunds(context.Context, *ListFundsRequest) (*ListFundsResponse, error)
	mustEmbedUnimplementedFundServiceServer()
}

type UnimplementedFundServiceServer struct{}

func (UnimplementedFundServiceServer) Subscribe(context.Context, *SubscribeRequest) (*TransactionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Subscribe not implemented")
}
func (UnimplementedFundServiceServer) Cancel(context.Context, *CancelRequest) (*TransactionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Cancel not implemented")
}
func (UnimplementedFundServiceServer) GetBalance(context.Context, *GetBalanceRequest) (*BalanceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetBalance not implemented")
}
func (UnimplementedFundServiceServer) ListTransactions(context.Context, *ListTransactionsRequest) (*ListTransactionsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListTransactions not implemented")
}
func (UnimplementedFundServiceServer) ListFunds(context.Context, *ListFundsRequest) (*ListFundsResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListFunds not implemented")
}
func (UnimplementedFundServiceServer) mustEmbedUnimplementedFundServiceServer() {}

func RegisterFundServiceServer(s grpc.ServiceRegistrar, srv FundServiceServer) {
	s.RegisterService(&FundService_ServiceDesc, srv)
}

func unaryHandler[Req any](method string, call func(FundServiceServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FundServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FundServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var FundService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "fundengine.v1.FundService",
	HandlerType: (*FundServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Subscribe",
			Handler: unaryHandler(FundService_Subscribe_FullMethodName, func(s FundServiceServer, ctx context.Context, in *SubscribeRequest) (any, error) {
				return s.Subscribe(ctx, in)
			}),
		},
		{
			MethodName: "Cancel",
			Handler: unaryHandler(FundService_Cancel_FullMethodName, func(s FundServiceServer, ctx context.Context, in *CancelRequest) (any, error) {
				return s.Cancel(ctx, in)
			}),
		},
		{
			MethodName: "GetBalance",
			Handler: unaryHandler(FundService_GetBalance_FullMethodName, func(s FundServiceServer, ctx context.Context, in *GetBalanceRequest) (any, error) {
				return s.GetBalance(ctx, in)
			}),
		},
		{
			MethodName: "ListTransactions",
			Handler: unaryHandler(FundService_ListTransactions_FullMethodName, func(s FundServiceServer, ctx context.Context, in *ListTransactionsRequest) (any, error) {
				return s.ListTransactions(ctx, in)
			}),
		},
		{
			MethodName: "ListFunds",
			Handler: unaryHandler(FundService_ListFunds_FullMethodName, func(s FundServiceServer, ctx context.Context, in *ListFundsRequest) (any, error) {
				return s.ListFunds(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fundengine/v1/fund_service.proto",
}
