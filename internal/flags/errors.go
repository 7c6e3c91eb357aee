package flags

import (
	"errors"
	"fmt"
)

var (
	// ErrPathTooShort means the pathing provider produced no capturable flag.
	ErrPathTooShort = errors.New("flag path shorter than minimum")
	// ErrAlreadyStarted is returned by Start on a service that is not stopped.
	ErrAlreadyStarted = errors.New("flag service already started")
	// ErrNotActive is returned by operations that need a running rotation.
	ErrNotActive = errors.New("flag service not active")
	// ErrUnknownFlag is returned when a flag name is not in the rotation.
	ErrUnknownFlag = errors.New("unknown flag")
	// ErrUnknownMode is returned for an unsupported flags.mode.
	ErrUnknownMode = errors.New("unknown flag mode")
	// ErrMissingMain is returned when a team has no main base zone.
	ErrMissingMain = errors.New("team main zone not found")
	// ErrNotEnoughTeams is returned when fewer than two valid teams exist.
	ErrNotEnoughTeams = errors.New("flag rotation needs two valid teams")
	// ErrInvalidSetting is returned for out of range numeric settings.
	ErrInvalidSetting = errors.New("invalid setting")
)

// ConfigurationError is a fatal startup failure caused by settings or map
// data. The service stays stopped; fix the configuration and start again.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("flag configuration %s: %v", e.Setting, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func configErr(setting string, err error) error {
	return &ConfigurationError{Setting: setting, Err: err}
}
