package model

import "errors"

var (
	// ErrUnknownParameter indicates a parameter name that the model does not know.
	ErrUnknownParameter = errors.New("unknown parameter")
	// ErrUnknownIntervention indicates an AI intervention name that is not in the catalog.
	ErrUnknownIntervention = errors.New("unknown AI intervention")
)
