//go:build !linux

package feeder

import "errors"

// ErrNoJoystickSupport is returned on platforms without joystick access.
var ErrNoJoystickSupport = errors.New("joystick not supported on this platform")

// JoystickPath returns the device path of joystick index.
func JoystickPath(index int) string {
	return ""
}

// OpenJoystick is not supported on this platform.
func OpenJoystick(path string) (Joystick, error) {
	return nil, ErrNoJoystickSupport
}

// DetectJoystick is not supported on this platform.
func DetectJoystick() (Joystick, error) {
	return nil, ErrNoJoystickSupport
}
