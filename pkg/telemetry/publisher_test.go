package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/crsfbridge/pkg/bridge"
	"github.com/robotalks/crsfbridge/pkg/crsf"
)

type fakeSource struct {
	injected [][]byte
	err      error
}

func (s *fakeSource) Status() bridge.Status {
	return bridge.Status{}
}

func (s *fakeSource) InjectHostFrame(p []byte) error {
	if s.err != nil {
		return s.err
	}
	s.injected = append(s.injected, append([]byte(nil), p...))
	return nil
}

func TestDecodeFrame(t *testing.T) {
	ping := crsf.PingFrame(crsf.AddrBroadcast, crsf.AddrRadio)

	frame, err := DecodeFrame(ping)
	require.NoError(t, err)
	assert.Equal(t, ping, frame)

	frame, err = DecodeFrame([]byte("c8 04 28 00 ea 54\n"))
	require.NoError(t, err)
	assert.Equal(t, crsf.Frame{0xc8, 0x04, 0x28, 0x00, 0xea, 0x54}, frame)

	_, err = DecodeFrame([]byte("zz"))
	assert.Error(t, err)
}

func TestPublisherInjectsFrames(t *testing.T) {
	src := &fakeSource{}
	p := &Publisher{Queue: &Queue{TopicPrefix: "crsf/"}, Source: src, DeviceID: "dev"}
	p.Queue.Sub(p.Topic(TopicFramesIn), p.handleFrame)

	ping := crsf.PingFrame(crsf.AddrBroadcast, crsf.AddrRadio)
	assert.Equal(t, 1, p.Queue.deliver("dev/frames/in", ping))
	assert.Equal(t, 1, p.Queue.deliver("dev/frames/in", []byte("zz")))
	src.err = bridge.ErrBusy
	p.Queue.deliver("dev/frames/in", ping)
	assert.Equal(t, [][]byte{ping}, src.injected)
}

func TestPublisherKeepsLatestLink(t *testing.T) {
	p := NewPublisher(&Queue{}, &fakeSource{}, 0)
	assert.NotEmpty(t, p.DeviceID)
	assert.Equal(t, p.DeviceID+"/status", p.Topic(TopicStatus))

	p.LinkStatistics(crsf.LinkStatistics{UplinkLQ: 50})
	p.LinkStatistics(crsf.LinkStatistics{UplinkLQ: 60})
	require.Len(t, p.linkCh, 1)
	assert.Equal(t, byte(60), (<-p.linkCh).UplinkLQ)
}
