package crsf

// AssemblerState is the state of frame assembling.
type AssemblerState int

const (
	StateAwaitSync   AssemblerState = iota // waiting for an accepted address
	StateAwaitLength                       // waiting for the length byte
	StateAccumulate                        // receiving type, payload and crc
)

// Assembler assembles frames from bytes received on one link.
type Assembler struct {
	state  AssemblerState
	accept [256]bool
	buf    [MaxFrameSize]byte
	pos    int
	size   int
}

// NewAssembler creates an Assembler accepting frames starting with addrs.
func NewAssembler(addrs ...Address) *Assembler {
	a := &Assembler{}
	a.Accept(addrs...)
	return a
}

// Accept adds addresses to the whitelist of frame start bytes.
func (a *Assembler) Accept(addrs ...Address) {
	for _, addr := range addrs {
		a.accept[addr] = true
	}
}

// State gets the current state.
func (a *Assembler) State() AssemblerState {
	return a.state
}

// Reset discards any partial frame.
func (a *Assembler) Reset() {
	a.state, a.pos, a.size = StateAwaitSync, 0, 0
}

// Parse consumes one byte. When the byte completes a frame, the frame is
// returned. It aliases the internal buffer and is only valid until the
// next call to Parse.
func (a *Assembler) Parse(b byte) Frame {
	switch a.state {
	case StateAwaitSync:
		if a.accept[b] {
			a.buf[0], a.pos = b, 1
			a.state = StateAwaitLength
		}
	case StateAwaitLength:
		if b < MinFrameLength || b > MaxFrameLength {
			a.Reset()
			return nil
		}
		a.buf[1], a.pos = b, 2
		a.size = int(b) + 2
		a.state = StateAccumulate
	case StateAccumulate:
		a.buf[a.pos] = b
		a.pos++
		if a.pos >= a.size {
			frame := Frame(a.buf[:a.pos])
			a.Reset()
			return frame
		}
	}
	return nil
}
