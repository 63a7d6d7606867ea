package crsf

import (
	"encoding/binary"
	"fmt"
)

// Frame size limits.
const (
	MaxFrameSize   = 64
	MinFrameLength = 2 // type and crc
	MaxFrameLength = MaxFrameSize - 2
	MaxPayloadSize = MaxFrameSize - 4

	// ChannelsFrameSize is the total size of an RC channels frame.
	ChannelsFrameSize = ChannelsPayloadSize + 4

	// TimingSubcommand selects timing correction inside a radio ID frame.
	TimingSubcommand byte = 0x10
)

// Frame is a complete frame including address, length and crc.
type Frame []byte

// Address returns the address byte.
func (f Frame) Address() Address {
	return Address(f[0])
}

// Type returns the frame type.
func (f Frame) Type() FrameType {
	return FrameType(f[2])
}

// Payload returns the bytes between type and crc.
func (f Frame) Payload() []byte {
	return f[3 : len(f)-1]
}

// CRC returns the trailing crc byte.
func (f Frame) CRC() byte {
	return f[len(f)-1]
}

// Dest returns the destination of an extended frame.
func (f Frame) Dest() Address {
	if !f.Type().IsExtended() || len(f) < 6 {
		return AddrBroadcast
	}
	return Address(f[3])
}

// Origin returns the origin of an extended frame.
func (f Frame) Origin() Address {
	if !f.Type().IsExtended() || len(f) < 6 {
		return AddrBroadcast
	}
	return Address(f[4])
}

// Validate checks size, length consistency and crc.
func (f Frame) Validate() error {
	if len(f) < 4 {
		return ErrFrameTooShort
	}
	if len(f) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	if declared := int(f[1]) + 2; declared != len(f) {
		return &LengthError{Declared: declared, Received: len(f)}
	}
	if CRC8(f[2:len(f)-1], 0) != f.CRC() {
		return ErrCRCMismatch
	}
	return nil
}

// Clone copies the frame out of a shared buffer.
func (f Frame) Clone() Frame {
	return append(Frame(nil), f...)
}

func (f Frame) String() string {
	if len(f) < 4 {
		return fmt.Sprintf("frame[% x]", []byte(f))
	}
	return fmt.Sprintf("%s->%s[% x]", f.Type(), f.Address(), f.Payload())
}

// AppendFrame encodes a frame and appends it to buf.
func AppendFrame(buf []byte, addr Address, typ FrameType, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadSize {
		return buf, ErrFrameTooLarge
	}
	start := len(buf)
	buf = append(buf, byte(addr), byte(len(payload)+2), byte(typ))
	buf = append(buf, payload...)
	return append(buf, CRC8(buf[start+2:], 0)), nil
}

// NewFrame encodes a frame.
func NewFrame(addr Address, typ FrameType, payload []byte) (Frame, error) {
	buf, err := AppendFrame(make([]byte, 0, len(payload)+4), addr, typ, payload)
	return Frame(buf), err
}

// ChannelsFrame encodes an RC channels frame.
func ChannelsFrame(addr Address, ch *Channels) Frame {
	var buf [ChannelsFrameSize]byte
	return PutChannelsFrame(buf[:], addr, ch)
}

// PutChannelsFrame encodes an RC channels frame into buf, which must be
// at least ChannelsFrameSize bytes, and returns the written part.
func PutChannelsFrame(buf []byte, addr Address, ch *Channels) Frame {
	payload := ch.Pack()
	buf[0], buf[1], buf[2] = byte(addr), ChannelsPayloadSize+2, byte(TypeRCChannels)
	copy(buf[3:], payload[:])
	buf[ChannelsFrameSize-1] = CRC8(buf[2:ChannelsFrameSize-1], 0)
	return Frame(buf[:ChannelsFrameSize])
}

// PingFrame encodes a device ping.
func PingFrame(dest, origin Address) Frame {
	f, _ := NewFrame(AddrSync, TypePing, []byte{byte(dest), byte(origin)})
	return f
}

// ParamReadFrame encodes a parameter read request.
func ParamReadFrame(dest, origin Address, index, chunk byte) Frame {
	f, _ := NewFrame(AddrSync, TypeParamRead, []byte{byte(dest), byte(origin), index, chunk})
	return f
}

// ParamWriteFrame encodes a parameter write.
func ParamWriteFrame(dest, origin Address, index byte, value []byte) (Frame, error) {
	payload := append([]byte{byte(dest), byte(origin), index}, value...)
	return NewFrame(AddrSync, TypeParamWrite, payload)
}

// TimingFrame encodes a timing correction as sent by a module.
// interval and offset are in microseconds.
func TimingFrame(origin Address, interval, offset int32) Frame {
	payload := make([]byte, 11)
	payload[0], payload[1], payload[2] = byte(AddrRadio), byte(origin), TimingSubcommand
	binary.BigEndian.PutUint32(payload[3:], uint32(interval*10))
	binary.BigEndian.PutUint32(payload[7:], uint32(offset*10))
	f, _ := NewFrame(AddrRadio, TypeRadioID, payload)
	return f
}
