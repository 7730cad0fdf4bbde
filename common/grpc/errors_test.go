package grpc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
)

var errTest = errors.New("test/grpc/errors", 1, "just testing errors")

type ErrorTestRequest struct{}

type ErrorTestResponse struct{}

type ErrorTestService interface {
	ErrorTest(context.Context, *ErrorTestRequest) (*ErrorTestResponse, error)
}

type errorTestServer struct{}

func (s *errorTestServer) ErrorTest(ctx context.Context, req *ErrorTestRequest) (*ErrorTestResponse, error) {
	return &ErrorTestResponse{}, errTest
}

type errorTestClient struct {
	cc *grpc.ClientConn
}

func (c *errorTestClient) ErrorTest(ctx context.Context, req *ErrorTestRequest) (*ErrorTestResponse, error) {
	rsp := new(ErrorTestResponse)
	if err := c.cc.Invoke(ctx, "/ErrorTestService/ErrorTest", req, rsp); err != nil {
		return nil, err
	}
	return rsp, nil
}

var errorTestServiceDesc = grpc.ServiceDesc{
	ServiceName: "ErrorTestService",
	HandlerType: (*ErrorTestService)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ErrorTest",
			Handler:    handlerErrorTest,
		},
	},
	Streams: []grpc.StreamDesc{},
}

func handlerErrorTest( // nolint: golint
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	interceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	req := new(ErrorTestRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ErrorTestService).ErrorTest(ctx, req)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/ErrorTestService/ErrorTest",
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ErrorTestService).ErrorTest(ctx, req.(*ErrorTestRequest))
	}
	return interceptor(ctx, req, info, handler)
}

func TestErrorMapping(t *testing.T) {
	require := require.New(t)

	grpcServer, err := NewServer(&ServerConfig{
		Name:    "error-test",
		Address: "127.0.0.1:0",
	})
	require.NoError(err, "NewServer")

	grpcServer.Server().RegisterService(&errorTestServiceDesc, &errorTestServer{})

	err = grpcServer.Start()
	require.NoError(err, "Start")
	defer func() {
		grpcServer.Stop()
		grpcServer.Cleanup()
	}()

	conn, err := Dial(grpcServer.Addr().String())
	require.NoError(err, "Dial")
	defer conn.Close()
	client := &errorTestClient{conn}

	_, err = client.ErrorTest(context.Background(), &ErrorTestRequest{})
	require.Error(err, "ErrorTest should return an error")
	require.Equal(errTest, err, "errors should be properly mapped")
}

func TestServiceName(t *testing.T) {
	require := require.New(t)

	sn := NewServiceName("Test")
	require.EqualValues("nest-pool.Test", sn)

	md := sn.NewMethod("Query")
	require.Equal("Query", md.ShortName())
	require.Equal("/nest-pool.Test/Query", md.FullName())

	require.Panics(func() { NewServiceName("a/b") })
	require.Panics(func() { sn.NewMethod("a/b") })
}
