package bridge

import "github.com/robotalks/crsfbridge/pkg/crsf"

// ChannelState is the channel set sent to the module.
type ChannelState struct {
	ch crsf.Channels
}

// NewChannelState creates a ChannelState with all channels centered.
func NewChannelState() *ChannelState {
	return &ChannelState{ch: crsf.CenteredChannels()}
}

// Set replaces all channels.
func (s *ChannelState) Set(ch crsf.Channels) {
	s.ch = ch
}

// Channels returns a copy of all channels.
func (s *ChannelState) Channels() crsf.Channels {
	return s.ch
}
