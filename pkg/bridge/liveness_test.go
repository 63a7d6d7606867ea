package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/robotalks/crsfbridge/pkg/crsf"
)

func TestMonitorFailsafe(t *testing.T) {
	var m Monitor
	assert.True(t, m.IsFailsafe(0))
	assert.True(t, m.IsFailsafe(1000000))

	const at = 5000000
	m.MarkUpdate(at)
	assert.False(t, m.IsFailsafe(at))
	assert.False(t, m.IsFailsafe(at+FailsafeTimeout))
	assert.True(t, m.IsFailsafe(at+FailsafeTimeout+1))
}

func TestMonitorUpdateAtZero(t *testing.T) {
	var m Monitor
	m.MarkUpdate(0)
	assert.False(t, m.IsFailsafe(10))
}

func TestMonitorCustomTimeout(t *testing.T) {
	m := Monitor{Timeout: 20000}
	m.MarkUpdate(100)
	assert.False(t, m.IsFailsafe(20100))
	assert.True(t, m.IsFailsafe(20101))
}

func TestChannelState(t *testing.T) {
	s := NewChannelState()
	assert.Equal(t, crsf.CenteredChannels(), s.Channels())
	var ch crsf.Channels
	ch[0], ch[15] = crsf.Channel1000, crsf.Channel2000
	s.Set(ch)
	assert.Equal(t, ch, s.Channels())
}
