package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robotalks/crsfbridge/pkg/crsf"
	"github.com/robotalks/crsfbridge/pkg/transport"
)

type taskFixture struct {
	clock    fakeClock
	port     *transport.Fake
	received []crsf.Frame
	task     *Task
}

func newTaskFixture() *taskFixture {
	f := &taskFixture{}
	f.port = transport.NewFake(400000, f.clock.Micros)
	f.task = &Task{
		Transport: f.port,
		Receiver: crsf.NewReceiver(crsf.HandleFrameFunc(func(frame crsf.Frame) {
			f.received = append(f.received, frame.Clone())
		}), crsf.LinkAddresses...),
		Sync:     &Synchronizer{},
		Liveness: &Monitor{},
		Channels: NewChannelState(),
		Clock:    &f.clock,
		Address:  crsf.AddrModule,
	}
	return f
}

func (f *taskFixture) begin(t *testing.T) {
	require.NoError(t, f.task.Begin())
}

func (f *taskFixture) tickAt(now uint64) {
	f.clock.now = now
	f.task.Tick()
}

func TestTaskSendsChannels(t *testing.T) {
	f := newTaskFixture()
	f.begin(t)
	assert.Equal(t, uint64(DefaultPeriod), f.task.Period())
	f.task.Liveness.MarkUpdate(0)
	ch := crsf.CenteredChannels()
	ch[0] = crsf.MicrosToChannel(2000)
	f.task.Channels.Set(ch)

	f.tickAt(DefaultPeriod - 1)
	assert.Empty(t, f.port.Sent)

	f.tickAt(DefaultPeriod)
	require.Len(t, f.port.Sent, 1)
	sent := crsf.Frame(f.port.LastSent())
	require.NoError(t, sent.Validate())
	assert.Equal(t, crsf.AddrModule, sent.Address())
	assert.Equal(t, crsf.TypeRCChannels, sent.Type())
	ch, err := crsf.UnpackChannels(sent.Payload())
	require.NoError(t, err)
	assert.Equal(t, uint16(crsf.Channel2000), ch[0])
	assert.Equal(t, uint16(crsf.ChannelMid), ch[1])
	assert.Equal(t, uint32(1), f.task.Stats.Snapshot().RCFramesSent)
}

func TestTaskQueuedFrameFirst(t *testing.T) {
	f := newTaskFixture()
	f.begin(t)
	f.task.Liveness.MarkUpdate(0)
	ping := crsf.PingFrame(crsf.AddrBroadcast, crsf.AddrRadio)
	require.True(t, f.task.QueueOutputFrame(ping))
	assert.True(t, f.task.Pending())

	f.tickAt(4000)
	assert.Equal(t, []byte(ping), f.port.LastSent())
	assert.False(t, f.task.Pending())

	f.tickAt(5000)
	assert.False(t, f.port.IsTransmitting())
	assert.Len(t, f.port.Sent, 1)

	f.tickAt(8000)
	require.Len(t, f.port.Sent, 2)
	assert.Equal(t, crsf.TypeRCChannels, crsf.Frame(f.port.LastSent()).Type())
	snapshot := f.task.Stats.Snapshot()
	assert.Equal(t, uint32(1), snapshot.QueuedFramesSent)
	assert.Equal(t, uint32(1), snapshot.RCFramesSent)
}

func TestTaskOutputSlot(t *testing.T) {
	f := newTaskFixture()
	assert.False(t, f.task.QueueOutputFrame(make([]byte, crsf.MaxFrameSize+1)))
	assert.True(t, f.task.QueueOutputFrame(make([]byte, crsf.MaxFrameSize)))
	assert.False(t, f.task.QueueOutputFrame(crsf.PingFrame(crsf.AddrBroadcast, crsf.AddrRadio)))
}

func TestTaskQueuedFrameCopied(t *testing.T) {
	f := newTaskFixture()
	f.begin(t)
	f.task.Liveness.MarkUpdate(0)
	ping := crsf.PingFrame(crsf.AddrBroadcast, crsf.AddrRadio)
	expected := ping.Clone()
	require.True(t, f.task.QueueOutputFrame(ping))
	ping[3] = 0xFF

	f.tickAt(4000)
	assert.Equal(t, []byte(expected), f.port.LastSent())
}

func TestTaskFailsafe(t *testing.T) {
	f := newTaskFixture()
	f.begin(t)

	f.tickAt(4000)
	assert.Empty(t, f.port.Sent)
	assert.Equal(t, uint32(1), f.task.Stats.Snapshot().FailsafeCycles)

	// the cycle still advances
	f.tickAt(7999)
	assert.Equal(t, uint32(1), f.task.Stats.Snapshot().FailsafeCycles)
	f.tickAt(8000)
	assert.Equal(t, uint32(2), f.task.Stats.Snapshot().FailsafeCycles)

	f.task.Liveness.MarkUpdate(8000)
	f.tickAt(12000)
	assert.Len(t, f.port.Sent, 1)

	f.tickAt(12000 + FailsafeTimeout + DefaultPeriod)
	assert.Len(t, f.port.Sent, 1)
}

func TestTaskQueuedFrameHeldInFailsafe(t *testing.T) {
	f := newTaskFixture()
	f.begin(t)
	require.True(t, f.task.QueueOutputFrame(crsf.PingFrame(crsf.AddrBroadcast, crsf.AddrRadio)))
	f.tickAt(4000)
	assert.Empty(t, f.port.Sent)
	assert.True(t, f.task.Pending())
}

func TestTaskDrainsReceived(t *testing.T) {
	f := newTaskFixture()
	f.begin(t)
	ls := crsf.LinkStatistics{UplinkRSSI1: -70, UplinkLQ: 99}
	frame, err := crsf.NewFrame(crsf.AddrRadio, crsf.TypeLinkStatistics, ls.Bytes())
	require.NoError(t, err)
	f.port.Inject(frame...)

	f.tickAt(100)
	require.Len(t, f.received, 1)
	assert.Equal(t, frame, f.received[0])
	assert.Zero(t, f.port.Available())
}

func TestTaskWaitsForTransmission(t *testing.T) {
	f := newTaskFixture()
	f.port.Echo = true
	f.begin(t)
	f.task.Liveness.MarkUpdate(0)

	f.tickAt(4000)
	require.True(t, f.port.IsTransmitting())
	txTime := f.port.TxTime(crsf.ChannelsFrameSize)

	// echo stays in the buffer until the transmission ends
	f.tickAt(4000 + txTime - 1)
	assert.True(t, f.port.IsTransmitting())
	assert.Equal(t, crsf.ChannelsFrameSize, f.port.Available())

	f.tickAt(4000 + txTime)
	assert.False(t, f.port.IsTransmitting())
	assert.Equal(t, 1, f.port.SwitchCalls)
	assert.Empty(t, f.received)
	assert.Equal(t, uint32(0), f.task.Receiver.Stats.FramesReceived())
}

func TestTaskFollowsModuleTiming(t *testing.T) {
	f := newTaskFixture()
	f.task.Sync.Update(0, 2000, 500)
	f.begin(t)
	assert.Equal(t, uint64(2500), f.task.Period())
	f.task.Liveness.MarkUpdate(0)

	f.tickAt(2500)
	assert.Len(t, f.port.Sent, 1)
	assert.Equal(t, uint64(2000), f.task.Period())

	f.tickAt(4499)
	assert.Len(t, f.port.Sent, 1)
	f.tickAt(4500)
	assert.Len(t, f.port.Sent, 2)
}

func TestTaskLosesModuleTiming(t *testing.T) {
	f := newTaskFixture()
	f.task.Sync.Update(0, 2000, 0)
	f.begin(t)

	now := uint64(SyncTimeout + 1000)
	f.task.Liveness.MarkUpdate(now)
	f.tickAt(now)
	assert.False(t, f.task.Sync.IsValid())
	assert.Equal(t, uint64(DefaultPeriod), f.task.Period())
	assert.Len(t, f.port.Sent, 1)
}

func TestTaskTransmitError(t *testing.T) {
	f := newTaskFixture()
	f.task.Liveness.MarkUpdate(0)
	// transport never started
	f.tickAt(0)
	assert.Empty(t, f.port.Sent)
	assert.Equal(t, uint32(1), f.task.Stats.Snapshot().TxErrors)
	assert.Equal(t, uint32(0), f.task.Stats.Snapshot().RCFramesSent)
}
