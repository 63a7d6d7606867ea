package bridge

import (
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/robotalks/crsfbridge/pkg/crsf"
)

// Transport is the half-duplex link to the module. None of the methods
// may block.
type Transport interface {
	// Begin prepares the link in receive mode.
	Begin() error
	// IsTransmitting indicates the link is in transmit mode.
	IsTransmitting() bool
	// Transmit switches to transmit mode and starts sending p.
	// p is not retained after Transmit returns.
	Transmit(p []byte) error
	// IsTxComplete indicates all bytes of the last Transmit left the wire.
	IsTxComplete() bool
	// SwitchToReceive returns to receive mode and discards self-echo.
	SwitchToReceive()
	// Available returns the number of received bytes ready to read.
	Available() int
	// ReadByte reads one received byte.
	ReadByte() (byte, error)
}

// FailingTransport is a Transport which can stop in the background, e.g.
// when the serial device is unplugged.
type FailingTransport interface {
	Transport
	// Done is closed when the link stopped.
	Done() <-chan struct{}
	// Err returns why the link stopped.
	Err() error
}

// TaskStats counts transmit decisions.
type TaskStats struct {
	rcFramesSent     atomic.Uint32
	queuedFramesSent atomic.Uint32
	failsafeCycles   atomic.Uint32
	txErrors         atomic.Uint32
}

// TaskStatsSnapshot is a copy of TaskStats.
type TaskStatsSnapshot struct {
	RCFramesSent     uint32 `json:"rcFramesSent"`
	QueuedFramesSent uint32 `json:"queuedFramesSent"`
	FailsafeCycles   uint32 `json:"failsafeCycles"`
	TxErrors         uint32 `json:"txErrors"`
}

// Snapshot copies all counters.
func (s *TaskStats) Snapshot() TaskStatsSnapshot {
	return TaskStatsSnapshot{
		RCFramesSent:     s.rcFramesSent.Load(),
		QueuedFramesSent: s.queuedFramesSent.Load(),
		FailsafeCycles:   s.failsafeCycles.Load(),
		TxErrors:         s.txErrors.Load(),
	}
}

// Reset clears all counters.
func (s *TaskStats) Reset() {
	s.rcFramesSent.Store(0)
	s.queuedFramesSent.Store(0)
	s.failsafeCycles.Store(0)
	s.txErrors.Store(0)
}

// Task owns the module link. On each Tick it switches link direction,
// drains received bytes and decides what to transmit.
type Task struct {
	Transport Transport
	Receiver  *crsf.Receiver
	Sync      *Synchronizer
	Liveness  *Monitor
	Channels  *ChannelState
	Clock     Clock
	// Address of outgoing channel frames.
	Address crsf.Address
	// OnTransmit observes every transmitted frame.
	OnTransmit func(crsf.Frame)

	Stats TaskStats

	pending  bool
	out      [crsf.MaxFrameSize]byte
	outLen   int
	rcBuf    [crsf.ChannelsFrameSize]byte
	lastSend uint64
	period   uint64
}

// Begin starts the transport and the first send cycle.
func (t *Task) Begin() error {
	if err := t.Transport.Begin(); err != nil {
		return err
	}
	t.lastSend = t.Clock.Micros()
	t.period = uint64(t.Sync.AdjustedPeriod())
	return nil
}

// QueueOutputFrame places a frame in the single output slot. It fails when
// a frame is already pending or p exceeds the maximum frame size.
func (t *Task) QueueOutputFrame(p []byte) bool {
	if t.pending || len(p) > crsf.MaxFrameSize {
		return false
	}
	t.outLen = copy(t.out[:], p)
	t.pending = true
	return true
}

// Pending indicates a frame is waiting in the output slot.
func (t *Task) Pending() bool {
	return t.pending
}

// Period returns the current send period in microseconds.
func (t *Task) Period() uint64 {
	return t.period
}

// Tick runs one scheduling step.
func (t *Task) Tick() {
	tr := t.Transport
	if tr.IsTransmitting() && tr.IsTxComplete() {
		tr.SwitchToReceive()
	}
	if tr.IsTransmitting() {
		return
	}

	for tr.Available() > 0 {
		b, err := tr.ReadByte()
		if err != nil {
			break
		}
		if err := t.Receiver.Feed(b); err != nil {
			glog.V(2).Infof("module: dropped frame: %v", err)
		}
	}

	now := t.Clock.Micros()
	if now-t.lastSend < t.period {
		return
	}
	if t.Sync.Expire(now) {
		glog.Warning("module timing lost, using default period")
	}
	switch {
	case t.Liveness.IsFailsafe(now):
		t.Stats.failsafeCycles.Add(1)
	case t.pending:
		t.pending = false
		if t.transmit(crsf.Frame(t.out[:t.outLen])) {
			t.Stats.queuedFramesSent.Add(1)
		}
	default:
		ch := t.Channels.Channels()
		if t.transmit(crsf.PutChannelsFrame(t.rcBuf[:], t.Address, &ch)) {
			t.Stats.rcFramesSent.Add(1)
		}
	}
	t.lastSend = now
	t.period = uint64(t.Sync.AdjustedPeriod())
}

func (t *Task) transmit(f crsf.Frame) bool {
	if err := t.Transport.Transmit(f); err != nil {
		t.Stats.txErrors.Add(1)
		glog.Warningf("module: transmit %d bytes: %v", len(f), err)
		return false
	}
	if fn := t.OnTransmit; fn != nil {
		fn(f)
	}
	return true
}
