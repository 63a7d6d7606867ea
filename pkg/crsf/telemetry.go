package crsf

import (
	"bytes"
	"encoding/binary"
)

// Timing is a timing correction reported by a module, in microseconds.
type Timing struct {
	Interval int32
	Offset   int32
}

// ParseTiming decodes a timing correction from a radio ID frame payload.
// Values on the wire are in 0.1us.
func ParseTiming(payload []byte) (Timing, error) {
	if len(payload) < 11 {
		return Timing{}, ErrPayloadSize
	}
	if payload[2] != TimingSubcommand {
		return Timing{}, ErrNotTiming
	}
	return Timing{
		Interval: int32(binary.BigEndian.Uint32(payload[3:])) / 10,
		Offset:   int32(binary.BigEndian.Uint32(payload[7:])) / 10,
	}, nil
}

// LinkStatistics is the payload of a link statistics frame.
// RSSI values are in dBm.
type LinkStatistics struct {
	UplinkRSSI1   int  `json:"uplinkRSSI1"`
	UplinkRSSI2   int  `json:"uplinkRSSI2"`
	UplinkLQ      byte `json:"uplinkLQ"`
	UplinkSNR     int8 `json:"uplinkSNR"`
	ActiveAntenna byte `json:"activeAntenna"`
	RFMode        byte `json:"rfMode"`
	UplinkTxPower byte `json:"uplinkTxPower"`
	DownlinkRSSI  int  `json:"downlinkRSSI"`
	DownlinkLQ    byte `json:"downlinkLQ"`
	DownlinkSNR   int8 `json:"downlinkSNR"`
}

// LinkStatisticsSize is the payload size of a link statistics frame.
const LinkStatisticsSize = 10

// ParseLinkStatistics decodes a link statistics payload.
func ParseLinkStatistics(payload []byte) (ls LinkStatistics, err error) {
	if len(payload) < LinkStatisticsSize {
		return ls, ErrPayloadSize
	}
	ls.UplinkRSSI1 = -int(payload[0])
	ls.UplinkRSSI2 = -int(payload[1])
	ls.UplinkLQ = payload[2]
	ls.UplinkSNR = int8(payload[3])
	ls.ActiveAntenna = payload[4]
	ls.RFMode = payload[5]
	ls.UplinkTxPower = payload[6]
	ls.DownlinkRSSI = -int(payload[7])
	ls.DownlinkLQ = payload[8]
	ls.DownlinkSNR = int8(payload[9])
	return
}

// Bytes encodes the link statistics payload.
func (ls *LinkStatistics) Bytes() []byte {
	return []byte{
		byte(-ls.UplinkRSSI1), byte(-ls.UplinkRSSI2), ls.UplinkLQ, byte(ls.UplinkSNR),
		ls.ActiveAntenna, ls.RFMode, ls.UplinkTxPower,
		byte(-ls.DownlinkRSSI), ls.DownlinkLQ, byte(ls.DownlinkSNR),
	}
}

// DeviceInfo is the payload of a device info frame.
type DeviceInfo struct {
	Dest            Address `json:"dest"`
	Origin          Address `json:"origin"`
	Name            string  `json:"name"`
	SerialNumber    uint32  `json:"serialNumber"`
	HardwareVersion uint32  `json:"hardwareVersion"`
	SoftwareVersion uint32  `json:"softwareVersion"`
	ParamCount      byte    `json:"paramCount"`
	ProtocolVersion byte    `json:"protocolVersion"`
}

// ParseDeviceInfo decodes a device info payload.
func ParseDeviceInfo(payload []byte) (info DeviceInfo, err error) {
	if len(payload) < 3 {
		return info, ErrPayloadSize
	}
	info.Dest, info.Origin = Address(payload[0]), Address(payload[1])
	rest := payload[2:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return info, ErrPayloadSize
	}
	info.Name = string(rest[:end])
	rest = rest[end+1:]
	if len(rest) < 14 {
		return info, ErrPayloadSize
	}
	info.SerialNumber = binary.BigEndian.Uint32(rest[0:])
	info.HardwareVersion = binary.BigEndian.Uint32(rest[4:])
	info.SoftwareVersion = binary.BigEndian.Uint32(rest[8:])
	info.ParamCount = rest[12]
	info.ProtocolVersion = rest[13]
	return
}

// Bytes encodes the device info payload.
func (d *DeviceInfo) Bytes() []byte {
	buf := make([]byte, 0, len(d.Name)+17)
	buf = append(buf, byte(d.Dest), byte(d.Origin))
	buf = append(buf, d.Name...)
	buf = append(buf, 0)
	buf = binary.BigEndian.AppendUint32(buf, d.SerialNumber)
	buf = binary.BigEndian.AppendUint32(buf, d.HardwareVersion)
	buf = binary.BigEndian.AppendUint32(buf, d.SoftwareVersion)
	return append(buf, d.ParamCount, d.ProtocolVersion)
}
