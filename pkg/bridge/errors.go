package bridge

import "errors"

var (
	// ErrBusy indicates the bridge can't take more input right now.
	ErrBusy = errors.New("bridge busy")
)
