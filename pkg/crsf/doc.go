// Package crsf provides CRSF frame codec and assembling support.
package crsf

// CRSF is the serial protocol spoken between a radio transmitter (the
// handset, or a host acting as one) and a transmitter module. Both the
// host link and the module link carry the same framing:
//
//   [address][length][type][payload...][crc]
//
// length counts type, payload and crc, so a frame occupies length+2 bytes
// and never exceeds MaxFrameSize. crc is CRC-8/DVB-S2 (polynomial 0xD5)
// computed over type and payload.
//
// Frames are assembled byte by byte without allocation. A frame handed to
// a FrameHandler aliases the assembler buffer and must be copied if it is
// retained after HandleFrame returns.
