package crsf

// Channel value bounds on the wire.
const (
	NumChannels         = 16
	ChannelsPayloadSize = 22 // 16 * 11 bits

	ChannelBits  = 11
	ChannelMask  = 1<<ChannelBits - 1
	ChannelMin   = 172
	ChannelMid   = 992
	ChannelMax   = 1811
	Channel1000  = 191  // value for 1000us
	Channel2000  = 1792 // value for 2000us
	MicrosLow    = 1000
	MicrosHigh   = 2000
	MicrosCenter = 1500
)

// Channels holds the wire values of all channels.
type Channels [NumChannels]uint16

// CenteredChannels returns all channels at ChannelMid.
func CenteredChannels() (ch Channels) {
	for n := range ch {
		ch[n] = ChannelMid
	}
	return
}

// Pack packs channels LSB first into the 22-byte payload.
func (ch *Channels) Pack() (out [ChannelsPayloadSize]byte) {
	var bits uint32
	var count uint
	pos := 0
	for _, v := range ch {
		bits |= uint32(v&ChannelMask) << count
		count += ChannelBits
		for count >= 8 {
			out[pos] = byte(bits)
			pos++
			bits >>= 8
			count -= 8
		}
	}
	return
}

// UnpackChannels extracts channels from a packed payload.
func UnpackChannels(payload []byte) (ch Channels, err error) {
	if len(payload) != ChannelsPayloadSize {
		return ch, ErrPayloadSize
	}
	var bits uint32
	var count uint
	pos := 0
	for n := range ch {
		for count < ChannelBits {
			bits |= uint32(payload[pos]) << count
			pos++
			count += 8
		}
		ch[n] = uint16(bits & ChannelMask)
		bits >>= ChannelBits
		count -= ChannelBits
	}
	return ch, nil
}

// MicrosToChannel converts a pulse width to a wire value, clamped to
// [ChannelMin, ChannelMax].
func MicrosToChannel(us int) uint16 {
	// bound the input first so the product below can't overflow
	us = clamp(us, 0, 2*MicrosHigh)
	v := Channel1000 + (us-MicrosLow)*(Channel2000-Channel1000)/(MicrosHigh-MicrosLow)
	return uint16(clamp(v, ChannelMin, ChannelMax))
}

// ChannelToMicros converts a wire value back to a pulse width.
func ChannelToMicros(v uint16) int {
	val := clamp(int(v), ChannelMin, ChannelMax)
	return MicrosLow + (val-Channel1000)*(MicrosHigh-MicrosLow)/(Channel2000-Channel1000)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
