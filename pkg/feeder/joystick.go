package feeder

import "io"

// Event is a joystick axis or button change.
type Event struct {
	// Init marks events reporting the initial state after open.
	Init   bool
	Button bool
	Number int
	// Value is the raw axis position, or 0/1 for buttons.
	Value int
}

// Joystick is an opened joystick device.
type Joystick interface {
	io.Closer
	Name() string
	AxisCount() int
	ButtonCount() int
	// ReadEvent blocks until the next event.
	ReadEvent() (Event, error)
}

// AxisMax is the raw axis value at full deflection.
const AxisMax = 32767

// State is the current position of all axes, normalized to [-1, 1], and
// all buttons.
type State struct {
	Axes    []float64
	Buttons []bool
}

// NewState creates a State for a device.
func NewState(axes, buttons int) *State {
	return &State{Axes: make([]float64, axes), Buttons: make([]bool, buttons)}
}

// Apply updates the state with an event. Events for unknown axes or
// buttons grow the state.
func (s *State) Apply(ev Event) {
	if ev.Number < 0 {
		return
	}
	if ev.Button {
		for len(s.Buttons) <= ev.Number {
			s.Buttons = append(s.Buttons, false)
		}
		s.Buttons[ev.Number] = ev.Value != 0
		return
	}
	for len(s.Axes) <= ev.Number {
		s.Axes = append(s.Axes, 0)
	}
	s.Axes[ev.Number] = float64(ev.Value) / AxisMax
}

// Axis returns axis n, 0 if absent.
func (s *State) Axis(n int) float64 {
	if n < 0 || n >= len(s.Axes) {
		return 0
	}
	return s.Axes[n]
}

// Button returns button n, false if absent.
func (s *State) Button(n int) bool {
	if n < 0 || n >= len(s.Buttons) {
		return false
	}
	return s.Buttons[n]
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	return &State{
		Axes:    append([]float64(nil), s.Axes...),
		Buttons: append([]bool(nil), s.Buttons...),
	}
}
