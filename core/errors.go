package core

import "errors"

var (
	// ErrInvalidCongestion indicates a congestion level outside [0,1].
	ErrInvalidCongestion = errors.New("congestion must lie in [0,1]")
	// ErrInvalidMagnitude indicates an AI effect magnitude outside [0,2].
	ErrInvalidMagnitude = errors.New("effect magnitude must lie in [0,2]")
	// ErrNegativeParameter indicates a resolved parameter below zero.
	ErrNegativeParameter = errors.New("resolved parameter is negative")
	// ErrInvalidParameter indicates a resolved parameter that is not a finite number.
	ErrInvalidParameter = errors.New("resolved parameter is not finite")
	// ErrInvalidComorbidity indicates comorbidity adjustments pointing the wrong way.
	ErrInvalidComorbidity = errors.New("invalid comorbidity adjustment")
	// ErrInvalidHorizon indicates a non-positive number of weeks.
	ErrInvalidHorizon = errors.New("simulation horizon must be positive")
	// ErrInvalidPopulation indicates a non-positive catchment population.
	ErrInvalidPopulation = errors.New("population must be positive")
	// ErrInvalidState indicates an initial state with negative compartments.
	ErrInvalidState = errors.New("compartment state has negative values")
	// ErrInvalidSetting indicates a country setting other than urban or rural.
	ErrInvalidSetting = errors.New("setting must be urban or rural")
	// ErrNoDiseases indicates a multi-disease run without diseases.
	ErrNoDiseases = errors.New("no diseases selected")
	// ErrInvalidScenario indicates a scenario file that cannot be decoded.
	ErrInvalidScenario = errors.New("invalid scenario file")
	// ErrRunPanicked wraps a panic recovered inside a simulation run.
	ErrRunPanicked = errors.New("simulation run panicked")
)
