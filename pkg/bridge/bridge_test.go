package bridge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/crsfbridge/pkg/crsf"
	fx "github.com/robotalks/crsfbridge/pkg/framework"
	"github.com/robotalks/crsfbridge/pkg/transport"
)

type observed struct {
	dir   Direction
	frame crsf.Frame
}

type bridgeFixture struct {
	clock    fakeClock
	port     *transport.Fake
	bridge   *Bridge
	observed []observed
}

func newBridgeFixture(t *testing.T) *bridgeFixture {
	f := &bridgeFixture{}
	f.port = transport.NewFake(400000, f.clock.Micros)
	f.bridge = New(&bytes.Buffer{}, f.port)
	f.bridge.Clock = &f.clock
	f.bridge.StatusInterval = time.Microsecond
	f.bridge.AddObserver(ObserveFrameFunc(func(dir Direction, frame crsf.Frame) {
		f.observed = append(f.observed, observed{dir: dir, frame: frame.Clone()})
	}))
	require.NoError(t, f.bridge.Begin())
	return f
}

// hostBytes delivers p from the host in chunks of n bytes.
func (f *bridgeFixture) hostBytes(p []byte, n int) {
	for len(p) > 0 {
		if n > len(p) {
			n = len(p)
		}
		f.bridge.hostIn <- append([]byte(nil), p[:n]...)
		p = p[n:]
	}
}

func (f *bridgeFixture) pollAt(now uint64) {
	f.clock.now = now
	f.bridge.Poll(context.Background())
}

func (f *bridgeFixture) hostOutput() (frames []crsf.Frame) {
	for {
		select {
		case p := <-f.bridge.hostOut:
			frames = append(frames, crsf.Frame(p))
		default:
			return
		}
	}
}

func (f *bridgeFixture) directions() (dirs []Direction) {
	for _, o := range f.observed {
		dirs = append(dirs, o.dir)
	}
	return
}

func centeredChannelsFrame() crsf.Frame {
	ch := crsf.CenteredChannels()
	return crsf.ChannelsFrame(crsf.AddrSync, &ch)
}

func TestBridgeForwardsPing(t *testing.T) {
	f := newBridgeFixture(t)
	ping := crsf.Frame{0xC8, 0x04, 0x28, 0x00, 0xEA, crsf.CRC8([]byte{0x28, 0x00, 0xEA}, 0)}
	f.hostBytes(centeredChannelsFrame(), 7)
	f.hostBytes(ping, 1)

	f.pollAt(10)
	assert.Empty(t, f.port.Sent)
	f.pollAt(DefaultPeriod)
	require.Len(t, f.port.Sent, 1)
	assert.Equal(t, []byte(ping), f.port.Sent[0])

	st := f.bridge.Status()
	assert.Equal(t, crsf.StatsSnapshot{FramesReceived: 2, ChannelUpdates: 1, Forwarded: 1}, st.Host)
	assert.Equal(t, uint32(1), st.Task.QueuedFramesSent)
	assert.False(t, st.Failsafe)
	assert.Equal(t, []Direction{HostRx, HostRx, ModuleTx}, f.directions())
}

func TestBridgeDropsCorruptPing(t *testing.T) {
	f := newBridgeFixture(t)
	ping := crsf.PingFrame(crsf.AddrBroadcast, crsf.AddrRadio)
	ping[len(ping)-1]++
	f.hostBytes(centeredChannelsFrame(), 26)
	f.hostBytes(ping, 2)

	f.pollAt(10)
	f.pollAt(DefaultPeriod)
	require.Len(t, f.port.Sent, 1)
	assert.Equal(t, crsf.TypeRCChannels, crsf.Frame(f.port.Sent[0]).Type())

	st := f.bridge.Status()
	assert.Equal(t, crsf.StatsSnapshot{FramesReceived: 1, CRCErrors: 1, ChannelUpdates: 1}, st.Host)
}

func TestBridgeFailsafeWithoutHost(t *testing.T) {
	f := newBridgeFixture(t)
	f.pollAt(DefaultPeriod)
	f.pollAt(2 * DefaultPeriod)
	assert.Empty(t, f.port.Sent)
	st := f.bridge.Status()
	assert.True(t, st.Failsafe)
	assert.Equal(t, uint32(2), st.Task.FailsafeCycles)
}

func TestBridgeModuleToHost(t *testing.T) {
	f := newBridgeFixture(t)
	var reported []crsf.LinkStatistics
	f.bridge.OnLinkStatistics = func(ls crsf.LinkStatistics) {
		reported = append(reported, ls)
	}
	ls := crsf.LinkStatistics{UplinkRSSI1: -48, UplinkLQ: 100, RFMode: 4}
	lsFrame, err := crsf.NewFrame(crsf.AddrRadio, crsf.TypeLinkStatistics, ls.Bytes())
	require.NoError(t, err)
	info := crsf.DeviceInfo{Dest: crsf.AddrRadio, Origin: crsf.AddrModule, Name: "ELRS TX", ParamCount: 20, ProtocolVersion: 1}
	infoFrame, err := crsf.NewFrame(crsf.AddrRadio, crsf.TypeDeviceInfo, info.Bytes())
	require.NoError(t, err)
	f.port.Inject(lsFrame...)
	f.port.Inject(infoFrame...)
	f.port.Inject(crsf.TimingFrame(crsf.AddrModule, 2000, 0)...)

	f.pollAt(10)
	out := f.hostOutput()
	require.Len(t, out, 2)
	assert.Equal(t, lsFrame, out[0])
	assert.Equal(t, infoFrame, out[1])
	assert.Equal(t, []crsf.LinkStatistics{ls}, reported)

	st := f.bridge.Status()
	require.NotNil(t, st.Link)
	assert.Equal(t, ls, *st.Link)
	assert.Equal(t, []crsf.DeviceInfo{info}, st.Devices)
	assert.Equal(t, crsf.StatsSnapshot{FramesReceived: 3, Forwarded: 2}, st.Module)
	assert.True(t, st.Timing.Valid)
	assert.Equal(t, int32(2000), st.Timing.Refresh)
	assert.Equal(t, []Direction{ModuleRx, HostTx, ModuleRx, HostTx, ModuleRx}, f.directions())

	// the new period applies from the next cycle
	f.hostBytes(centeredChannelsFrame(), 26)
	f.pollAt(DefaultPeriod)
	assert.Equal(t, uint64(2000), f.bridge.Status().PeriodUs)
}

func TestBridgeHostOutputFull(t *testing.T) {
	f := newBridgeFixture(t)
	gps, err := crsf.NewFrame(crsf.AddrRadio, crsf.TypeGPS, make([]byte, 15))
	require.NoError(t, err)
	for n := 0; n < hostQueueSize+1; n++ {
		f.port.Inject(gps...)
	}
	f.pollAt(10)
	assert.Len(t, f.hostOutput(), hostQueueSize)
	st := f.bridge.Status()
	assert.Equal(t, uint32(hostQueueSize+1), st.Module.FramesReceived)
	assert.Equal(t, uint32(hostQueueSize), st.Module.Forwarded)
}

func TestBridgeInjectHostFrame(t *testing.T) {
	f := newBridgeFixture(t)
	ping := crsf.PingFrame(crsf.AddrBroadcast, crsf.AddrRadio)
	bad := ping.Clone()
	bad[len(bad)-1]++
	assert.Equal(t, crsf.ErrCRCMismatch, f.bridge.InjectHostFrame(bad))

	require.NoError(t, f.bridge.InjectHostFrame(centeredChannelsFrame()))
	require.NoError(t, f.bridge.InjectHostFrame(ping))
	f.pollAt(10)
	f.pollAt(DefaultPeriod)
	require.Len(t, f.port.Sent, 1)
	assert.Equal(t, []byte(ping), f.port.Sent[0])

	for n := 0; n < injectQueueSize; n++ {
		require.NoError(t, f.bridge.InjectHostFrame(ping))
	}
	assert.Equal(t, ErrBusy, f.bridge.InjectHostFrame(ping))
}

func TestBridgeResetStats(t *testing.T) {
	f := newBridgeFixture(t)
	f.hostBytes(centeredChannelsFrame(), 26)
	f.pollAt(10)
	assert.Equal(t, uint32(1), f.bridge.Status().Host.ChannelUpdates)
	f.bridge.ResetStats()
	f.pollAt(20)
	assert.Equal(t, crsf.StatsSnapshot{}, f.bridge.Status().Host)
}

type chanWriter struct {
	io.Reader
	ch chan []byte
}

func (w *chanWriter) Write(p []byte) (int, error) {
	w.ch <- append([]byte(nil), p...)
	return len(p), nil
}

func TestBridgeHostReaderWriter(t *testing.T) {
	channels := centeredChannelsFrame()
	host := &chanWriter{Reader: bytes.NewReader(channels), ch: make(chan []byte, 1)}
	b := New(host, transport.NewFake(400000, SystemClock().Micros))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Equal(t, io.EOF, b.readHost(ctx))
	assert.Equal(t, []byte(channels), <-b.hostIn)

	done := make(chan error, 1)
	go func() { done <- b.writeHost(ctx) }()
	ping := crsf.PingFrame(crsf.AddrBroadcast, crsf.AddrModule)
	require.True(t, b.forwardToHost(ping))
	assert.Equal(t, []byte(ping), <-host.ch)
	cancel()
	assert.Equal(t, context.Canceled, <-done)
}

func TestBridgeStopsOnModuleFailure(t *testing.T) {
	hostIn, hostFeed := io.Pipe()
	defer hostFeed.Close()
	port := transport.NewFake(400000, SystemClock().Micros)
	b := New(&chanWriter{Reader: hostIn, ch: make(chan []byte, 1)}, port)
	require.NoError(t, b.Begin())

	loop := fx.NewLoop().Add(b)
	loop.Interval = time.Millisecond
	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()

	port.Fail(io.ErrUnexpectedEOF)
	var err error
	select {
	case err = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop still running after module failure")
	}
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	var runErr *fx.RunnableError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, "module-link", runErr.Name)
}
