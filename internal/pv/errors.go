package pv

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownDevice marks lookups of identifiers the registry does not know.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrInvalidConfig marks analysis settings that cannot be applied.
	ErrInvalidConfig = errors.New("invalid analysis configuration")
)

// IncompleteMetadeviceError reports a metadevice with unresolvable junctions.
type IncompleteMetadeviceError struct {
	DeviceID string
	Missing  []string
}

func (e *IncompleteMetadeviceError) Error() string {
	return fmt.Sprintf("metadevice %s incomplete: missing junctions %s", e.DeviceID, strings.Join(e.Missing, ", "))
}

// NoValidDataError reports a device whose daily series has no valid day.
type NoValidDataError struct {
	DeviceID string
}

func (e *NoValidDataError) Error() string {
	return fmt.Sprintf("device %s has no valid daily data", e.DeviceID)
}

// InputCategory names the kind of collaborator input that failed.
type InputCategory string

const (
	InputRawData        InputCategory = "raw-data"
	InputModuleMetadata InputCategory = "module-metadata"
	InputSiteMetadata   InputCategory = "site-metadata"
	InputEphemeris      InputCategory = "ephemeris"
	InputDevice         InputCategory = "device"
)

// InputError reports a malformed or missing input for one device.
type InputError struct {
	DeviceID string
	Category InputCategory
	Err      error
}

func (e *InputError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("device %s: %s input missing", e.DeviceID, e.Category)
	}
	return fmt.Sprintf("device %s: %s input: %v", e.DeviceID, e.Category, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// NewInputError wraps err as an InputError. A nil err yields a "missing"
// failure.
func NewInputError(deviceID string, category InputCategory, err error) error {
	return &InputError{DeviceID: deviceID, Category: category, Err: err}
}

// IsIncomplete reports whether err carries an IncompleteMetadeviceError.
func IsIncomplete(err error) bool {
	var target *IncompleteMetadeviceError
	return errors.As(err, &target)
}
