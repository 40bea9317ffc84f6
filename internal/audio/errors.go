package audio

import (
	"errors"
	"fmt"
)

// DeviceErrorKind tags the closed set of device failures.
type DeviceErrorKind string

const (
	ErrEnumeration       DeviceErrorKind = "enumeration_failed"
	ErrNoInputDevice     DeviceErrorKind = "no_input_device"
	ErrAccessDenied      DeviceErrorKind = "access_denied"
	ErrUnsupportedConfig DeviceErrorKind = "unsupported_config"
)

// DeviceError reports a failure of the audio subsystem or a specific device.
type DeviceError struct {
	Kind   DeviceErrorKind
	Device *Device // nil when no device is involved
	Err    error   // underlying subsystem error, may be nil
}

func (e *DeviceError) Error() string {
	msg := "device error: " + string(e.Kind)
	if e.Device != nil {
		msg += fmt.Sprintf(" (%q)", e.Device.Name)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DeviceError) Unwrap() error { return e.Err }

// IsDeviceError reports whether err is a DeviceError of the given kind.
func IsDeviceError(err error, kind DeviceErrorKind) bool {
	var de *DeviceError
	return errors.As(err, &de) && de.Kind == kind
}
