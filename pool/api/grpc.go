package api

import (
	"context"

	"google.golang.org/grpc"

	cmnGrpc "github.com/MLY0813/NEST-Oracle-V3.5/common/grpc"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/pubsub"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/quantity"
)

var (
	// serviceName is the gRPC service name.
	serviceName = cmnGrpc.NewServiceName("Pool")

	// methodBalanceOf is the BalanceOf method.
	methodBalanceOf = serviceName.NewMethod("BalanceOf")
	// methodFrozenBalanceOf is the FrozenBalanceOf method.
	methodFrozenBalanceOf = serviceName.NewMethod("FrozenBalanceOf")
	// methodAccount is the Account method.
	methodAccount = serviceName.NewMethod("Account")
	// methodAccounts is the Accounts method.
	methodAccounts = serviceName.NewMethod("Accounts")
	// methodMinedProtocolTokens is the MinedProtocolTokens method.
	methodMinedProtocolTokens = serviceName.NewMethod("MinedProtocolTokens")
	// methodResolveDerivative is the ResolveDerivative method.
	methodResolveDerivative = serviceName.NewMethod("ResolveDerivative")
	// methodAssets is the Assets method.
	methodAssets = serviceName.NewMethod("Assets")
	// methodRoles is the Roles method.
	methodRoles = serviceName.NewMethod("Roles")
	// methodParameters is the Parameters method.
	methodParameters = serviceName.NewMethod("Parameters")
	// methodStateToGenesis is the StateToGenesis method.
	methodStateToGenesis = serviceName.NewMethod("StateToGenesis")

	// methodWatchEvents is the WatchEvents method.
	methodWatchEvents = serviceName.NewMethod("WatchEvents")

	// serviceDesc is the gRPC service descriptor.
	serviceDesc = grpc.ServiceDesc{
		ServiceName: string(serviceName),
		HandlerType: (*Backend)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: methodBalanceOf.ShortName(),
				Handler:    handlerBalanceOf,
			},
			{
				MethodName: methodFrozenBalanceOf.ShortName(),
				Handler:    handlerFrozenBalanceOf,
			},
			{
				MethodName: methodAccount.ShortName(),
				Handler:    handlerAccount,
			},
			{
				MethodName: methodAccounts.ShortName(),
				Handler:    handlerAccounts,
			},
			{
				MethodName: methodMinedProtocolTokens.ShortName(),
				Handler:    handlerMinedProtocolTokens,
			},
			{
				MethodName: methodResolveDerivative.ShortName(),
				Handler:    handlerResolveDerivative,
			},
			{
				MethodName: methodAssets.ShortName(),
				Handler:    handlerAssets,
			},
			{
				MethodName: methodRoles.ShortName(),
				Handler:    handlerRoles,
			},
			{
				MethodName: methodParameters.ShortName(),
				Handler:    handlerParameters,
			},
			{
				MethodName: methodStateToGenesis.ShortName(),
				Handler:    handlerStateToGenesis,
			},
		},
		Streams: []grpc.StreamDesc{
			{
				StreamName:    methodWatchEvents.ShortName(),
				Handler:       handlerWatchEvents,
				ServerStreams: true,
			},
		},
	}
)

func handlerBalanceOf( // nolint: golint
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	var query BalanceQuery
	if err := dec(&query); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Backend).BalanceOf(ctx, &query)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodBalanceOf.FullName(),
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Backend).BalanceOf(ctx, req.(*BalanceQuery))
	}
	return interceptor(ctx, &query, info, handler)
}

func handlerFrozenBalanceOf( // nolint: golint
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	var query BalanceQuery
	if err := dec(&query); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Backend).FrozenBalanceOf(ctx, &query)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodFrozenBalanceOf.FullName(),
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Backend).FrozenBalanceOf(ctx, req.(*BalanceQuery))
	}
	return interceptor(ctx, &query, info, handler)
}

func handlerAccount( // nolint: golint
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	var query OwnerQuery
	if err := dec(&query); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Backend).Account(ctx, &query)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodAccount.FullName(),
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Backend).Account(ctx, req.(*OwnerQuery))
	}
	return interceptor(ctx, &query, info, handler)
}

func handlerAccounts( // nolint: golint
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	if interceptor == nil {
		return srv.(Backend).Accounts(ctx)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodAccounts.FullName(),
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Backend).Accounts(ctx)
	}
	return interceptor(ctx, nil, info, handler)
}

func handlerMinedProtocolTokens( // nolint: golint
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	if interceptor == nil {
		return srv.(Backend).MinedProtocolTokens(ctx)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodMinedProtocolTokens.FullName(),
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Backend).MinedProtocolTokens(ctx)
	}
	return interceptor(ctx, nil, info, handler)
}

func handlerResolveDerivative( // nolint: golint
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	var query DerivativeQuery
	if err := dec(&query); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(Backend).ResolveDerivative(ctx, &query)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodResolveDerivative.FullName(),
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Backend).ResolveDerivative(ctx, req.(*DerivativeQuery))
	}
	return interceptor(ctx, &query, info, handler)
}

func handlerAssets( // nolint: golint
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	if interceptor == nil {
		return srv.(Backend).Assets(ctx)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodAssets.FullName(),
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Backend).Assets(ctx)
	}
	return interceptor(ctx, nil, info, handler)
}

func handlerRoles( // nolint: golint
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	if interceptor == nil {
		return srv.(Backend).Roles(ctx)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodRoles.FullName(),
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Backend).Roles(ctx)
	}
	return interceptor(ctx, nil, info, handler)
}

func handlerParameters( // nolint: golint
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	if interceptor == nil {
		return srv.(Backend).Parameters(ctx)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodParameters.FullName(),
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Backend).Parameters(ctx)
	}
	return interceptor(ctx, nil, info, handler)
}

func handlerStateToGenesis( // nolint: golint
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	if interceptor == nil {
		return srv.(Backend).StateToGenesis(ctx)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: methodStateToGenesis.FullName(),
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(Backend).StateToGenesis(ctx)
	}
	return interceptor(ctx, nil, info, handler)
}

func handlerWatchEvents(srv interface{}, stream grpc.ServerStream) error {
	if err := stream.RecvMsg(nil); err != nil {
		return err
	}

	ctx := stream.Context()
	ch, sub, err := srv.(Backend).WatchEvents(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return nil
			}

			if err := stream.SendMsg(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RegisterService registers a new pool backend service with the given gRPC server.
func RegisterService(server *grpc.Server, service Backend) {
	server.RegisterService(&serviceDesc, service)
}

type poolClient struct {
	conn *grpc.ClientConn
}

func (c *poolClient) BalanceOf(ctx context.Context, query *BalanceQuery) (*quantity.Quantity, error) {
	var rsp quantity.Quantity
	if err := c.conn.Invoke(ctx, methodBalanceOf.FullName(), query, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *poolClient) FrozenBalanceOf(ctx context.Context, query *BalanceQuery) (*quantity.Quantity, error) {
	var rsp quantity.Quantity
	if err := c.conn.Invoke(ctx, methodFrozenBalanceOf.FullName(), query, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *poolClient) Account(ctx context.Context, query *OwnerQuery) (*Account, error) {
	var rsp Account
	if err := c.conn.Invoke(ctx, methodAccount.FullName(), query, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *poolClient) Accounts(ctx context.Context) ([]Address, error) {
	var rsp []Address
	if err := c.conn.Invoke(ctx, methodAccounts.FullName(), nil, &rsp); err != nil {
		return nil, err
	}
	return rsp, nil
}

func (c *poolClient) MinedProtocolTokens(ctx context.Context) (*quantity.Quantity, error) {
	var rsp quantity.Quantity
	if err := c.conn.Invoke(ctx, methodMinedProtocolTokens.FullName(), nil, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *poolClient) ResolveDerivative(ctx context.Context, query *DerivativeQuery) (*AssetID, error) {
	var rsp AssetID
	if err := c.conn.Invoke(ctx, methodResolveDerivative.FullName(), query, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *poolClient) Assets(ctx context.Context) ([]*AssetEntry, error) {
	var rsp []*AssetEntry
	if err := c.conn.Invoke(ctx, methodAssets.FullName(), nil, &rsp); err != nil {
		return nil, err
	}
	return rsp, nil
}

func (c *poolClient) Roles(ctx context.Context) (*Roles, error) {
	var rsp Roles
	if err := c.conn.Invoke(ctx, methodRoles.FullName(), nil, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *poolClient) Parameters(ctx context.Context) (*Parameters, error) {
	var rsp Parameters
	if err := c.conn.Invoke(ctx, methodParameters.FullName(), nil, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *poolClient) StateToGenesis(ctx context.Context) (*Genesis, error) {
	var rsp Genesis
	if err := c.conn.Invoke(ctx, methodStateToGenesis.FullName(), nil, &rsp); err != nil {
		return nil, err
	}
	return &rsp, nil
}

func (c *poolClient) WatchEvents(ctx context.Context) (<-chan *Event, pubsub.ClosableSubscription, error) {
	ctx, sub := pubsub.NewContextSubscription(ctx)

	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], methodWatchEvents.FullName())
	if err != nil {
		sub.Close()
		return nil, nil, err
	}
	if err = stream.SendMsg(nil); err != nil {
		sub.Close()
		return nil, nil, err
	}
	if err = stream.CloseSend(); err != nil {
		sub.Close()
		return nil, nil, err
	}

	ch := make(chan *Event)
	go func() {
		defer close(ch)

		for {
			var ev Event
			if serr := stream.RecvMsg(&ev); serr != nil {
				return
			}

			select {
			case ch <- &ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, sub, nil
}

func (c *poolClient) Cleanup() {
}

// NewPoolClient creates a new gRPC pool client service.
func NewPoolClient(c *grpc.ClientConn) Backend {
	return &poolClient{c}
}
