package api

import (
	"errors"

	"github.com/matheus3301/wppbot/internal/assistant"
	"github.com/matheus3301/wppbot/internal/conversation"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
)

// toStatus maps domain errors to gRPC status errors.
func toStatus(op string, err error) error {
	var (
		verr *conversation.ValidationError
		nf   *conversation.NotFoundError
		tr   *conversation.InvalidTransitionError
		up   *assistant.UpstreamError
	)
	switch {
	case errors.As(err, &verr):
		return grpcstatus.Errorf(codes.InvalidArgument, "%s: %v", op, err)
	case errors.As(err, &nf):
		return grpcstatus.Errorf(codes.NotFound, "%s: %v", op, err)
	case errors.As(err, &tr), errors.Is(err, assistant.ErrNothingToAnswer):
		return grpcstatus.Errorf(codes.FailedPrecondition, "%s: %v", op, err)
	case errors.Is(err, assistant.ErrStopped):
		return grpcstatus.Errorf(codes.Unavailable, "%s: %v", op, err)
	case errors.As(err, &up):
		return grpcstatus.Errorf(codes.Unavailable, "%s: %v", op, err)
	default:
		return grpcstatus.Errorf(codes.Internal, "%s: %v", op, err)
	}
}
