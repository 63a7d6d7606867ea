package transport

import "errors"

var (
	// ErrNoData indicates no received byte is available.
	ErrNoData = errors.New("no data")
	// ErrBusy indicates a transmission is in progress.
	ErrBusy = errors.New("transmission in progress")
	// ErrNotStarted indicates Begin hasn't been called.
	ErrNotStarted = errors.New("not started")
)
