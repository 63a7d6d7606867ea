package crsf

import (
	"errors"
	"fmt"
)

var (
	// ErrFrameTooShort indicates a frame without room for type and crc.
	ErrFrameTooShort = errors.New("frame too short")
	// ErrFrameTooLarge indicates a frame exceeding MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrCRCMismatch indicates the trailing crc doesn't match the content.
	ErrCRCMismatch = errors.New("crc mismatch")
	// ErrPayloadSize indicates a payload has unexpected size for its type.
	ErrPayloadSize = errors.New("invalid payload size")
	// ErrNotTiming indicates a radio ID frame doesn't carry timing correction.
	ErrNotTiming = errors.New("not a timing frame")
)

// LengthError reports a length field inconsistent with received bytes.
type LengthError struct {
	Declared int
	Received int
}

// Error implements error.
func (e *LengthError) Error() string {
	return fmt.Sprintf("length mismatch: declared %d, received %d", e.Declared, e.Received)
}
