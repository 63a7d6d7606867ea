package transport

// Fake is an in-memory half-duplex transport driven by a microsecond
// clock. Transmission takes the time the bytes need on the wire at Baud.
type Fake struct {
	Baud int
	Now  func() uint64
	// Echo copies transmitted bytes into the receive buffer as a
	// single-wire link does.
	Echo bool

	Sent        [][]byte
	BeginCalls  int
	SwitchCalls int

	started      bool
	transmitting bool
	txStart      uint64
	txLen        int
	rx           []byte
	err          error
	done         chan struct{}
}

// NewFake creates a Fake.
func NewFake(baud int, now func() uint64) *Fake {
	return &Fake{Baud: baud, Now: now, done: make(chan struct{})}
}

// Begin implements bridge.Transport.
func (f *Fake) Begin() error {
	f.BeginCalls++
	f.started, f.transmitting = true, false
	return nil
}

// IsTransmitting implements bridge.Transport.
func (f *Fake) IsTransmitting() bool {
	return f.transmitting
}

// Transmit implements bridge.Transport.
func (f *Fake) Transmit(p []byte) error {
	if !f.started {
		return ErrNotStarted
	}
	if f.transmitting {
		return ErrBusy
	}
	f.Sent = append(f.Sent, append([]byte(nil), p...))
	f.transmitting = true
	f.txStart, f.txLen = f.Now(), len(p)
	if f.Echo {
		f.rx = append(f.rx, p...)
	}
	return nil
}

// IsTxComplete implements bridge.Transport.
func (f *Fake) IsTxComplete() bool {
	if !f.transmitting {
		return false
	}
	return f.Now()-f.txStart >= f.TxTime(f.txLen)
}

// TxTime returns microseconds needed to send n bytes.
func (f *Fake) TxTime(n int) uint64 {
	return uint64(n*bitsPerByte) * 1000000 / uint64(f.Baud)
}

// SwitchToReceive implements bridge.Transport.
func (f *Fake) SwitchToReceive() {
	if !f.transmitting {
		return
	}
	f.SwitchCalls++
	f.transmitting = false
	f.rx = f.rx[:0]
}

// Available implements bridge.Transport.
func (f *Fake) Available() int {
	return len(f.rx)
}

// ReadByte implements bridge.Transport.
func (f *Fake) ReadByte() (byte, error) {
	if len(f.rx) == 0 {
		return 0, ErrNoData
	}
	b := f.rx[0]
	f.rx = f.rx[1:]
	return b, nil
}

// Fail stops the link with err, as a lost device does.
func (f *Fake) Fail(err error) {
	f.err = err
	close(f.done)
}

// Done is closed by Fail.
func (f *Fake) Done() <-chan struct{} {
	return f.done
}

// Err returns the error passed to Fail.
func (f *Fake) Err() error {
	select {
	case <-f.done:
		return f.err
	default:
		return nil
	}
}

// Inject makes bytes available for reading.
func (f *Fake) Inject(p ...byte) {
	f.rx = append(f.rx, p...)
}

// LastSent returns the last transmitted bytes, nil if none.
func (f *Fake) LastSent() []byte {
	if len(f.Sent) == 0 {
		return nil
	}
	return f.Sent[len(f.Sent)-1]
}
