// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Map converts domain/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}

	var v *ValidationError

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, ErrAccessDenied):
		return status.Error(codes.PermissionDenied, "admin access required")

	case errors.Is(err, ErrInvalidState), errors.Is(err, ErrBanned):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, ErrAlreadyPending):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.As(err, &v):
		return status.Error(codes.InvalidArgument, v.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		// store failures surface as a generic retry-later
		return status.Error(codes.Internal, "internal error, retry later")
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}
