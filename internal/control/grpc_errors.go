package control

import (
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/robot-arena/internal/battle"
	"github.com/signalsfoundry/robot-arena/internal/sim/state"
)

var (
	// ErrInvalidArgument is used for malformed control requests.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrFinished is returned for commands sent to a battle that has ended.
	ErrFinished = errors.New("battle finished")
	// ErrNotFinished is returned when a result is requested too early.
	ErrNotFinished = errors.New("battle not finished")
)

// ToStatusError maps battle and control errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, state.ErrAgentNotFound),
		errors.Is(err, state.ErrTeamNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, ErrFinished),
		errors.Is(err, ErrNotFinished),
		errors.Is(err, battle.ErrAlreadyRunning):
		return status.Error(codes.FailedPrecondition, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
