package rpc

import (
	"github.com/fekuna/omnipos-sales-service/internal/apperror"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Status converts a usecase error into a gRPC status error.
func Status(err error) error {
	if err == nil {
		return nil
	}
	var code codes.Code
	switch apperror.Code(err) {
	case apperror.EVALIDATION:
		code = codes.InvalidArgument
	case apperror.ENOTFOUND:
		code = codes.NotFound
	case apperror.EINSUFFICIENTSTOCK, apperror.EOUTOFSTOCK, apperror.EINVALIDTRANSITION:
		code = codes.FailedPrecondition
	case apperror.ECONFLICT:
		code = codes.Aborted
	default:
		code = codes.Internal
	}
	return status.Error(code, apperror.Message(err))
}
