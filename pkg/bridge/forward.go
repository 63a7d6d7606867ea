package bridge

import "github.com/robotalks/crsfbridge/pkg/crsf"

// Forwarder passes a frame to the other link. The frame must be copied if
// retained. The result reports whether the frame was accepted.
type Forwarder interface {
	Forward(crsf.Frame) bool
}

// ForwardFunc is func type of Forwarder.
type ForwardFunc func(crsf.Frame) bool

// Forward implements Forwarder.
func (f ForwardFunc) Forward(frame crsf.Frame) bool {
	return f(frame)
}
