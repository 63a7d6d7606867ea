package crsf

import "sync/atomic"

// FrameHandler is called with each valid frame.
type FrameHandler interface {
	HandleFrame(Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(frame Frame) {
	f(frame)
}

// Stats counts frames on a link. All counters are safe to read from
// other goroutines.
type Stats struct {
	framesReceived atomic.Uint32
	crcErrors      atomic.Uint32
	channelUpdates atomic.Uint32
	forwarded      atomic.Uint32
}

// StatsSnapshot is a copy of Stats counters.
type StatsSnapshot struct {
	FramesReceived uint32 `json:"framesReceived"`
	CRCErrors      uint32 `json:"crcErrors"`
	ChannelUpdates uint32 `json:"channelUpdates"`
	Forwarded      uint32 `json:"forwarded"`
}

// FramesReceived is the number of frames passing validation.
func (s *Stats) FramesReceived() uint32 { return s.framesReceived.Load() }

// CRCErrors is the number of frames dropped for crc mismatch.
func (s *Stats) CRCErrors() uint32 { return s.crcErrors.Load() }

// ChannelUpdates is the number of RC channels frames applied.
func (s *Stats) ChannelUpdates() uint32 { return s.channelUpdates.Load() }

// Forwarded is the number of frames accepted by a forwarder.
func (s *Stats) Forwarded() uint32 { return s.forwarded.Load() }

// AddChannelUpdate counts an applied channels frame.
func (s *Stats) AddChannelUpdate() { s.channelUpdates.Add(1) }

// AddForwarded counts a forwarded frame.
func (s *Stats) AddForwarded() { s.forwarded.Add(1) }

// Snapshot copies all counters.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		FramesReceived: s.FramesReceived(),
		CRCErrors:      s.CRCErrors(),
		ChannelUpdates: s.ChannelUpdates(),
		Forwarded:      s.Forwarded(),
	}
}

// Reset clears all counters.
func (s *Stats) Reset() {
	s.framesReceived.Store(0)
	s.crcErrors.Store(0)
	s.channelUpdates.Store(0)
	s.forwarded.Store(0)
}

// Receiver assembles bytes from one link and dispatches valid frames.
type Receiver struct {
	Handler FrameHandler
	Stats   Stats

	asm Assembler
}

// NewReceiver creates a Receiver accepting frames starting with addrs.
func NewReceiver(h FrameHandler, addrs ...Address) *Receiver {
	r := &Receiver{Handler: h}
	r.asm.Accept(addrs...)
	return r
}

// Assembler exposes the underlying assembler.
func (r *Receiver) Assembler() *Assembler {
	return &r.asm
}

// Feed consumes one byte. The returned error reports a completed frame
// failing validation.
func (r *Receiver) Feed(b byte) error {
	if frame := r.asm.Parse(b); frame != nil {
		return r.Dispatch(frame)
	}
	return nil
}

// Write implements io.Writer by feeding all bytes. Invalid frames are
// counted, not returned as errors.
func (r *Receiver) Write(p []byte) (int, error) {
	for _, b := range p {
		r.Feed(b)
	}
	return len(p), nil
}

// Dispatch validates a complete frame and passes it to Handler.
func (r *Receiver) Dispatch(frame Frame) error {
	if err := frame.Validate(); err != nil {
		if err == ErrCRCMismatch {
			r.Stats.crcErrors.Add(1)
		}
		return err
	}
	r.Stats.framesReceived.Add(1)
	if h := r.Handler; h != nil {
		h.HandleFrame(frame)
	}
	return nil
}
