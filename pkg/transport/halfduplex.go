package transport

import (
	"io"
	"sync"
	"time"

	"github.com/golang/glog"
)

const (
	// rxBufferSize bounds received bytes waiting for the poll loop.
	rxBufferSize = 1024
	// bitsPerByte on the wire: start, 8 data and stop bits.
	bitsPerByte = 10
	// echoGuard keeps dropping echo briefly after transmission completes.
	echoGuard = 200 * time.Microsecond
	// echoWindow is how long after transmission the echo is still expected,
	// covering USB serial adapter latency.
	echoWindow = 50 * time.Millisecond
)

// HalfDuplex is a half-duplex link over a byte stream where transmitted
// bytes are echoed back on the receive side, e.g. a single-wire UART.
// Reading happens in the background so that Available and ReadByte never
// block.
type HalfDuplex struct {
	rw   io.ReadWriteCloser
	baud int

	lock         sync.Mutex
	rx           []byte
	transmitting bool
	txDone       time.Time
	echoUntil    time.Time
	echo         []byte
	echoExpiry   time.Time
	readErr      error
	started      bool
	done         chan struct{}
}

// NewHalfDuplex wraps a stream running at baud.
func NewHalfDuplex(rw io.ReadWriteCloser, baud int) *HalfDuplex {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return &HalfDuplex{
		rw:   rw,
		baud: baud,
		rx:   make([]byte, 0, rxBufferSize),
		echo: make([]byte, 0, rxBufferSize),
		done: make(chan struct{}),
	}
}

// Begin implements bridge.Transport.
func (h *HalfDuplex) Begin() error {
	h.lock.Lock()
	defer h.lock.Unlock()
	if !h.started {
		h.started = true
		go h.readLoop()
	}
	return nil
}

// IsTransmitting implements bridge.Transport.
func (h *HalfDuplex) IsTransmitting() bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.transmitting
}

// Transmit implements bridge.Transport. The echo of p is expected back
// and discarded by content, whenever it arrives within echoWindow.
func (h *HalfDuplex) Transmit(p []byte) error {
	h.lock.Lock()
	if h.transmitting {
		h.lock.Unlock()
		return ErrBusy
	}
	h.transmitting = true
	h.echo = append(h.echo[:0], p...)
	h.lock.Unlock()

	start := time.Now()
	_, err := h.rw.Write(p)

	h.lock.Lock()
	h.txDone = start.Add(h.txTime(len(p)))
	h.echoExpiry = h.txDone.Add(echoWindow)
	h.lock.Unlock()
	return err
}

// IsTxComplete implements bridge.Transport.
func (h *HalfDuplex) IsTxComplete() bool {
	h.lock.Lock()
	defer h.lock.Unlock()
	return !h.transmitting || !time.Now().Before(h.txDone)
}

// SwitchToReceive implements bridge.Transport.
func (h *HalfDuplex) SwitchToReceive() {
	h.lock.Lock()
	defer h.lock.Unlock()
	if !h.transmitting {
		return
	}
	h.transmitting = false
	h.echoUntil = time.Now().Add(echoGuard)
	h.rx = h.rx[:0]
}

// Available implements bridge.Transport.
func (h *HalfDuplex) Available() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.rx)
}

// ReadByte implements bridge.Transport and io.ByteReader.
func (h *HalfDuplex) ReadByte() (byte, error) {
	h.lock.Lock()
	defer h.lock.Unlock()
	if len(h.rx) == 0 {
		if h.readErr != nil {
			return 0, h.readErr
		}
		return 0, ErrNoData
	}
	b := h.rx[0]
	h.rx = h.rx[:copy(h.rx, h.rx[1:])]
	return b, nil
}

// Done is closed when background reading stops, with the reason in Err.
func (h *HalfDuplex) Done() <-chan struct{} {
	return h.done
}

// Err returns the error which stopped background reading.
func (h *HalfDuplex) Err() error {
	h.lock.Lock()
	defer h.lock.Unlock()
	return h.readErr
}

// Close implements io.Closer.
func (h *HalfDuplex) Close() error {
	return h.rw.Close()
}

func (h *HalfDuplex) txTime(n int) time.Duration {
	return time.Duration(n*bitsPerByte) * time.Second / time.Duration(h.baud)
}

func (h *HalfDuplex) readLoop() {
	defer close(h.done)
	buf := make([]byte, 256)
	for {
		n, err := h.rw.Read(buf)
		if n > 0 {
			h.received(buf[:n], time.Now())
		}
		if err != nil {
			glog.Warningf("module link read: %v", err)
			h.lock.Lock()
			h.readErr = err
			h.lock.Unlock()
			return
		}
	}
}

func (h *HalfDuplex) received(p []byte, at time.Time) {
	h.lock.Lock()
	defer h.lock.Unlock()
	p = h.consumeEcho(p, at)
	if len(p) == 0 || h.transmitting || at.Before(h.echoUntil) {
		return
	}
	if over := len(h.rx) + len(p) - rxBufferSize; over > 0 {
		if over >= len(h.rx) {
			p = p[over-len(h.rx):]
			h.rx = h.rx[:0]
		} else {
			h.rx = h.rx[:copy(h.rx, h.rx[over:])]
		}
	}
	h.rx = append(h.rx, p...)
}

// consumeEcho strips the expected echo from the front of p. A mismatch
// means the line doesn't echo, so the rest of the expected echo is
// abandoned and p is kept.
func (h *HalfDuplex) consumeEcho(p []byte, at time.Time) []byte {
	if len(h.echo) > 0 && !h.transmitting && at.After(h.echoExpiry) {
		h.echo = h.echo[:0]
	}
	n := 0
	for n < len(p) && n < len(h.echo) && p[n] == h.echo[n] {
		n++
	}
	if n < len(h.echo) && n < len(p) {
		glog.V(2).Infof("module link: no echo after %d bytes", n)
		h.echo = h.echo[:0]
		return p[n:]
	}
	h.echo = h.echo[:copy(h.echo, h.echo[n:])]
	return p[n:]
}
