package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/crsfbridge/pkg/crsf"
)

type fakeClock struct {
	now uint64
}

func (c *fakeClock) Micros() uint64 {
	return c.now
}

type frameRecorder struct {
	frames []crsf.Frame
	accept bool
}

func (r *frameRecorder) Forward(f crsf.Frame) bool {
	r.frames = append(r.frames, f.Clone())
	return r.accept
}

type hostLinkFixture struct {
	clock    fakeClock
	channels *ChannelState
	liveness Monitor
	toModule frameRecorder
	rx       *crsf.Receiver
	link     *HostLink
}

func newHostLinkFixture() *hostLinkFixture {
	f := &hostLinkFixture{channels: NewChannelState()}
	f.toModule.accept = true
	f.link = &HostLink{
		Channels: f.channels,
		Liveness: &f.liveness,
		ToModule: &f.toModule,
		Clock:    &f.clock,
	}
	f.rx = crsf.NewReceiver(f.link, crsf.LinkAddresses...)
	f.link.Stats = &f.rx.Stats
	return f
}

func (f *hostLinkFixture) feed(p []byte) {
	for _, b := range p {
		f.rx.Feed(b)
	}
}

func TestHostLinkPingForwarded(t *testing.T) {
	f := newHostLinkFixture()
	ping := crsf.Frame{0xC8, 0x04, 0x28, 0x00, 0xEA, crsf.CRC8([]byte{0x28, 0x00, 0xEA}, 0)}
	f.feed(ping)
	require.Len(t, f.toModule.frames, 1)
	assert.Equal(t, ping, f.toModule.frames[0])
	assert.Equal(t, crsf.StatsSnapshot{FramesReceived: 1, Forwarded: 1}, f.rx.Stats.Snapshot())
}

func TestHostLinkCorruptPingDropped(t *testing.T) {
	f := newHostLinkFixture()
	ping := crsf.PingFrame(crsf.AddrBroadcast, crsf.AddrRadio)
	ping[len(ping)-1] ^= 0x01
	f.feed(ping)
	assert.Empty(t, f.toModule.frames)
	assert.Equal(t, crsf.StatsSnapshot{CRCErrors: 1}, f.rx.Stats.Snapshot())
}

func TestHostLinkForwardRejected(t *testing.T) {
	f := newHostLinkFixture()
	f.toModule.accept = false
	f.feed(crsf.ParamReadFrame(crsf.AddrModule, crsf.AddrRadio, 1, 0))
	assert.Len(t, f.toModule.frames, 1)
	assert.Equal(t, uint32(0), f.rx.Stats.Forwarded())
}

func TestHostLinkForwardedTypes(t *testing.T) {
	f := newHostLinkFixture()
	write, err := crsf.ParamWriteFrame(crsf.AddrModule, crsf.AddrRadio, 2, []byte{1})
	require.NoError(t, err)
	command, err := crsf.NewFrame(crsf.AddrSync, crsf.TypeCommand, []byte{0xEE, 0xEA, 0x10, 0x01})
	require.NoError(t, err)
	battery, err := crsf.NewFrame(crsf.AddrSync, crsf.TypeBattery, make([]byte, 8))
	require.NoError(t, err)

	for _, frame := range []crsf.Frame{write, command, battery} {
		f.feed(frame)
	}
	require.Len(t, f.toModule.frames, 2)
	assert.Equal(t, write, f.toModule.frames[0])
	assert.Equal(t, command, f.toModule.frames[1])
	assert.Equal(t, crsf.StatsSnapshot{FramesReceived: 3, Forwarded: 2}, f.rx.Stats.Snapshot())
}

func TestHostLinkChannels(t *testing.T) {
	f := newHostLinkFixture()
	var ch crsf.Channels
	for n := range ch {
		ch[n] = uint16(100 * n)
	}
	f.clock.now = 12345
	assert.True(t, f.liveness.IsFailsafe(f.clock.now))
	f.feed(crsf.ChannelsFrame(crsf.AddrSync, &ch))

	assert.Equal(t, ch, f.channels.Channels())
	assert.False(t, f.liveness.IsFailsafe(f.clock.now+FailsafeTimeout))
	assert.True(t, f.liveness.IsFailsafe(f.clock.now+FailsafeTimeout+1))
	assert.Equal(t, crsf.StatsSnapshot{FramesReceived: 1, ChannelUpdates: 1}, f.rx.Stats.Snapshot())
	assert.Empty(t, f.toModule.frames)
}

func TestHostLinkShortChannelsIgnored(t *testing.T) {
	f := newHostLinkFixture()
	short, err := crsf.NewFrame(crsf.AddrSync, crsf.TypeRCChannels, make([]byte, 20))
	require.NoError(t, err)
	f.feed(short)
	assert.Equal(t, crsf.CenteredChannels(), f.channels.Channels())
	assert.True(t, f.liveness.IsFailsafe(0))
	assert.Equal(t, uint32(0), f.rx.Stats.ChannelUpdates())
}

type moduleLinkFixture struct {
	clock  fakeClock
	sync   Synchronizer
	toHost frameRecorder
	link   *ModuleLink
	stats  crsf.Stats
	ls     []crsf.LinkStatistics
	infos  []crsf.DeviceInfo
}

func newModuleLinkFixture() *moduleLinkFixture {
	f := &moduleLinkFixture{}
	f.toHost.accept = true
	f.link = &ModuleLink{
		Sync:             &f.sync,
		ToHost:           &f.toHost,
		Clock:            &f.clock,
		Stats:            &f.stats,
		OnLinkStatistics: func(ls crsf.LinkStatistics) { f.ls = append(f.ls, ls) },
		OnDeviceInfo:     func(info crsf.DeviceInfo) { f.infos = append(f.infos, info) },
	}
	return f
}

func TestModuleLinkTiming(t *testing.T) {
	f := newModuleLinkFixture()
	f.clock.now = 777
	f.link.HandleFrame(crsf.TimingFrame(crsf.AddrModule, 2000, 150))
	assert.Empty(t, f.toHost.frames)
	assert.True(t, f.sync.IsValid())
	assert.Equal(t, int32(2000), f.sync.Refresh())
	assert.Equal(t, int32(150), f.sync.Offset())
	assert.Equal(t, int32(2150), f.sync.AdjustedPeriod())
}

func TestModuleLinkTimingOutOfRange(t *testing.T) {
	f := newModuleLinkFixture()
	f.link.HandleFrame(crsf.TimingFrame(crsf.AddrModule, 100, 0))
	assert.False(t, f.sync.IsValid())
	assert.Empty(t, f.toHost.frames)
}

func TestModuleLinkRadioIDNotTimingForwarded(t *testing.T) {
	f := newModuleLinkFixture()
	other, err := crsf.NewFrame(crsf.AddrRadio, crsf.TypeRadioID, []byte{0xEA, 0xEE, 0x11, 0, 0, 0, 0, 0, 0, 0, 0})
	require.NoError(t, err)
	f.link.HandleFrame(other)
	require.Len(t, f.toHost.frames, 1)
	assert.False(t, f.sync.IsValid())
}

func TestModuleLinkForwardsTelemetry(t *testing.T) {
	f := newModuleLinkFixture()
	ls := crsf.LinkStatistics{UplinkRSSI1: -60, UplinkLQ: 100, DownlinkLQ: 98}
	lsFrame, err := crsf.NewFrame(crsf.AddrRadio, crsf.TypeLinkStatistics, ls.Bytes())
	require.NoError(t, err)
	info := crsf.DeviceInfo{Dest: crsf.AddrRadio, Origin: crsf.AddrModule, Name: "TX", ParamCount: 3}
	infoFrame, err := crsf.NewFrame(crsf.AddrRadio, crsf.TypeDeviceInfo, info.Bytes())
	require.NoError(t, err)
	gps, err := crsf.NewFrame(crsf.AddrRadio, crsf.TypeGPS, make([]byte, 15))
	require.NoError(t, err)

	for _, frame := range []crsf.Frame{lsFrame, infoFrame, gps} {
		f.link.HandleFrame(frame)
	}
	require.Len(t, f.toHost.frames, 3)
	assert.Equal(t, []crsf.LinkStatistics{ls}, f.ls)
	assert.Equal(t, []crsf.DeviceInfo{info}, f.infos)
	assert.Equal(t, uint32(3), f.stats.Forwarded())
}
