package api

import (
	"context"
	"errors"

	"github.com/signalsfoundry/carecascade-simulator/core"
	"github.com/signalsfoundry/carecascade-simulator/kb"
	"github.com/signalsfoundry/carecascade-simulator/model"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidRequest is returned when a request payload cannot be decoded.
var ErrInvalidRequest = errors.New("invalid request")

// ToStatusError maps simulator errors onto gRPC status codes.
func ToStatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, kb.ErrDiseaseNotFound),
		errors.Is(err, kb.ErrHealthSystemNotFound),
		errors.Is(err, kb.ErrCountryNotFound),
		errors.Is(err, kb.ErrInterventionNotFound):
		return status.Error(codes.NotFound, err.Error())

	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, core.ErrInvalidCongestion),
		errors.Is(err, core.ErrInvalidMagnitude),
		errors.Is(err, core.ErrNegativeParameter),
		errors.Is(err, core.ErrInvalidParameter),
		errors.Is(err, core.ErrInvalidComorbidity),
		errors.Is(err, core.ErrInvalidHorizon),
		errors.Is(err, core.ErrInvalidPopulation),
		errors.Is(err, core.ErrInvalidSetting),
		errors.Is(err, core.ErrInvalidState),
		errors.Is(err, core.ErrInvalidScenario),
		errors.Is(err, core.ErrNoDiseases),
		errors.Is(err, model.ErrUnknownParameter),
		errors.Is(err, model.ErrUnknownIntervention),
		errors.Is(err, kb.ErrInvalidEntry):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, kb.ErrDuplicate):
		return status.Error(codes.AlreadyExists, err.Error())

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())

	default:
		return status.Error(codes.Internal, err.Error())
	}
}
