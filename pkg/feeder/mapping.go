package feeder

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/robotalks/crsfbridge/pkg/crsf"
)

// Source selects what drives a channel.
type Source string

// Channel sources.
const (
	SourceNone   Source = "none"
	SourceAxis   Source = "axis"
	SourceButton Source = "button"
	SourceConst  Source = "const"
)

// Rotary stop limits.
const (
	MinRotaryStops = 3
	MaxRotaryStops = 6
)

// axisSnap snaps nearly full deflection to full deflection.
const axisSnap = 0.002

// ChannelMapping maps one joystick input to a channel, in microseconds.
type ChannelMapping struct {
	Name   string `yaml:"name,omitempty"`
	Src    Source `yaml:"src"`
	Index  int    `yaml:"idx"`
	Invert bool   `yaml:"inv"`
	// Toggle flips the output on each button press.
	Toggle bool `yaml:"toggle,omitempty"`
	// Rotary steps through RotaryStops evenly spaced values on each
	// button press.
	Rotary      bool `yaml:"rotary,omitempty"`
	RotaryStops int  `yaml:"rotary_stops,omitempty"`
	Min         int  `yaml:"min"`
	Center      int  `yaml:"center"`
	Max         int  `yaml:"max"`
}

// DefaultChannelMapping is an unmapped channel.
var DefaultChannelMapping = ChannelMapping{
	Src:         SourceNone,
	RotaryStops: MinRotaryStops,
	Min:         crsf.MicrosLow,
	Center:      crsf.MicrosCenter,
	Max:         crsf.MicrosHigh,
}

// UnmarshalYAML implements yaml.Unmarshaler. Missing fields keep their
// defaults.
func (m *ChannelMapping) UnmarshalYAML(value *yaml.Node) error {
	type plain ChannelMapping
	p := plain(DefaultChannelMapping)
	if err := value.Decode(&p); err != nil {
		return err
	}
	*m = ChannelMapping(p)
	return nil
}

// Validate checks the mapping is usable.
func (m *ChannelMapping) Validate() error {
	switch m.Src {
	case SourceNone, SourceAxis, SourceButton, SourceConst:
	default:
		return fmt.Errorf("unknown source %q", m.Src)
	}
	if m.Index < 0 {
		return fmt.Errorf("negative index %d", m.Index)
	}
	if m.Min > m.Center || m.Center > m.Max {
		return fmt.Errorf("range %d/%d/%d not ordered", m.Min, m.Center, m.Max)
	}
	return nil
}

// Mapping is the channel mapping document.
type Mapping struct {
	Channels []ChannelMapping `yaml:"channels"`
}

// DefaultMapping returns a mapping with all channels unmapped.
func DefaultMapping() *Mapping {
	m := &Mapping{Channels: make([]ChannelMapping, crsf.NumChannels)}
	for n := range m.Channels {
		m.Channels[n] = DefaultChannelMapping
	}
	return m
}

// LoadMapping reads a mapping from a YAML file. Missing channels are
// unmapped and extra channels are ignored.
func LoadMapping(path string) (*Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := &Mapping{}
	if err = yaml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("mapping %s: %w", path, err)
	}
	for len(m.Channels) < crsf.NumChannels {
		m.Channels = append(m.Channels, DefaultChannelMapping)
	}
	m.Channels = m.Channels[:crsf.NumChannels]
	for n := range m.Channels {
		if err = m.Channels[n].Validate(); err != nil {
			return nil, fmt.Errorf("mapping %s: channel %d: %w", path, n+1, err)
		}
	}
	return m, nil
}

// Save writes the mapping as YAML.
func (m *Mapping) Save(path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// MapAxis maps an axis position in [-1, 1] to [lo, hi], linear on each
// side of center.
func MapAxis(v float64, invert bool, lo, center, hi int) int {
	if invert {
		v = -v
	}
	v = math.Max(-1, math.Min(1, v))
	if math.Abs(math.Abs(v)-1) < axisSnap {
		v = math.Copysign(1, v)
	}
	var out float64
	if v >= 0 {
		out = float64(center) + v*float64(hi-center)
	} else {
		out = float64(center) + v*float64(center-lo)
	}
	r := int(math.Round(out))
	if r < lo {
		return lo
	}
	if r > hi {
		return hi
	}
	return r
}

type buttonState struct {
	last   bool
	toggle bool
	rotary int
}

// Mapper computes channels from joystick state. Toggle and rotary
// channels keep state between calls.
type Mapper struct {
	channels []ChannelMapping
	buttons  []buttonState
}

// NewMapper creates a Mapper.
func NewMapper(m *Mapping) *Mapper {
	mp := &Mapper{
		channels: append([]ChannelMapping(nil), m.Channels...),
		buttons:  make([]buttonState, len(m.Channels)),
	}
	return mp
}

// Micros computes each mapped channel in microseconds.
func (mp *Mapper) Micros(s *State) []int {
	out := make([]int, len(mp.channels))
	for n := range mp.channels {
		out[n] = mp.channel(n, s)
	}
	return out
}

// Channels computes the channel frame values.
func (mp *Mapper) Channels(s *State) crsf.Channels {
	return MicrosToChannels(mp.Micros(s))
}

// MicrosToChannels converts pulse widths to wire values. Missing channels
// are centered.
func MicrosToChannels(micros []int) crsf.Channels {
	ch := crsf.CenteredChannels()
	for n, us := range micros {
		if n < crsf.NumChannels {
			ch[n] = crsf.MicrosToChannel(us)
		}
	}
	return ch
}

func (mp *Mapper) channel(n int, s *State) int {
	m := &mp.channels[n]
	switch m.Src {
	case SourceAxis:
		return MapAxis(s.Axis(m.Index), m.Invert, m.Min, m.Center, m.Max)
	case SourceButton:
		bs := &mp.buttons[n]
		pressed := s.Button(m.Index)
		edge := pressed && !bs.last
		bs.last = pressed
		switch {
		case m.Rotary:
			stops := m.RotaryStops
			if stops < MinRotaryStops {
				stops = MinRotaryStops
			} else if stops > MaxRotaryStops {
				stops = MaxRotaryStops
			}
			if edge {
				bs.rotary = (bs.rotary + 1) % stops
			}
			return m.Min + int(float64(bs.rotary)*float64(m.Max-m.Min)/float64(stops-1))
		case m.Toggle:
			if edge {
				bs.toggle = !bs.toggle
			}
			pressed = bs.toggle
		}
		if pressed != m.Invert {
			return m.Max
		}
		return m.Min
	}
	return m.Min
}
