package grpc

import (
	"errors"

	"github.com/dmitrijs2005/tubeaccounts/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// toStatus turns a service error into the status the caller sees. Details
// of authentication failures stay in the server log; callers only learn
// that the request was unauthorized, or that the token expired.
func toStatus(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, common.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, "username or email is taken")
	case errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
	case errors.Is(err, common.ErrorUnauthorized):
		return status.Error(codes.Unauthenticated, common.ErrorUnauthorized.Error())
	case errors.Is(err, common.ErrRateLimited):
		return status.Error(codes.ResourceExhausted, common.ErrRateLimited.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

func isCallerFault(err error) bool {
	return errors.Is(err, common.ErrValidation) ||
		errors.Is(err, common.ErrAlreadyExists) ||
		errors.Is(err, common.ErrorUnauthorized) ||
		errors.Is(err, common.ErrRateLimited)
}
