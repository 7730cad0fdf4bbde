package grpc

import (
	"context"

	spb "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/anypb"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/cbor"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
)

// IsErrorCode returns true if the given error represents a specific gRPC error code.
func IsErrorCode(err error, code codes.Code) bool {
	var grpcError interface {
		error
		GRPCStatus() *status.Status
	}
	if !errors.As(err, &grpcError) {
		return false
	}

	return grpcError.GRPCStatus().Code() == code
}

// grpcError is a serializable error.
type grpcError struct {
	Module string `json:"module,omitempty"`
	Code   uint32 `json:"code,omitempty"`
}

func errorToGrpc(err error) error {
	if err == nil {
		return nil
	}

	module, code := errors.Code(err)
	if module == errors.UnknownModule {
		return err
	}

	// The status detail carries the CBOR-encoded module/code pair so that the
	// client can map it back to the registered error.
	return status.FromProto(&spb.Status{
		Code:    int32(status.Code(err)),
		Message: err.Error(),
		Details: []*anypb.Any{
			{
				Value: cbor.Marshal(&grpcError{Module: module, Code: code}),
			},
		},
	}).Err()
}

func errorFromGrpc(err error) error {
	if err == nil {
		return nil
	}

	if s, ok := status.FromError(err); ok {
		sp := s.Proto()
		if len(sp.Details) != 1 {
			return err
		}
		var ge grpcError
		if cerr := cbor.Unmarshal(sp.Details[0].Value, &ge); cerr != nil {
			return err
		}

		if mappedErr := errors.FromCode(ge.Module, ge.Code, s.Message()); mappedErr != nil {
			return mappedErr
		}
	}

	return err
}

func serverUnaryErrorMapper(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	rsp, err := handler(ctx, req)
	return rsp, errorToGrpc(err)
}

func serverStreamErrorMapper(
	srv interface{},
	ss grpc.ServerStream,
	info *grpc.StreamServerInfo,
	handler grpc.StreamHandler,
) error {
	return errorToGrpc(handler(srv, ss))
}

func clientUnaryErrorMapper(
	ctx context.Context,
	method string,
	req, rsp interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return errorFromGrpc(invoker(ctx, method, req, rsp, cc, opts...))
}

func clientStreamErrorMapper(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	cs, err := streamer(ctx, desc, cc, method, opts...)
	return cs, errorFromGrpc(err)
}
