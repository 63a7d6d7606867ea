package telemetry

import (
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/crsfbridge/pkg/bridge"
	"github.com/robotalks/crsfbridge/pkg/crsf"
)

// LinkCounters are frame counters of one link.
type LinkCounters struct {
	FramesReceived uint32 `protobuf:"varint,1,opt,name=frames_received,proto3" json:"frames_received,omitempty"`
	CrcErrors      uint32 `protobuf:"varint,2,opt,name=crc_errors,proto3" json:"crc_errors,omitempty"`
	ChannelUpdates uint32 `protobuf:"varint,3,opt,name=channel_updates,proto3" json:"channel_updates,omitempty"`
	Forwarded      uint32 `protobuf:"varint,4,opt,name=forwarded,proto3" json:"forwarded,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *LinkCounters) ProtoMessage() {}

// Reset implements proto.Message.
func (m *LinkCounters) Reset() { *m = LinkCounters{} }

// String implements proto.Message.
func (m *LinkCounters) String() string { return proto.CompactTextString(m) }

// StatusMessage is published periodically on the status topic.
type StatusMessage struct {
	TimeMs           int64         `protobuf:"varint,1,opt,name=time_ms,proto3" json:"time_ms,omitempty"`
	Failsafe         bool          `protobuf:"varint,2,opt,name=failsafe,proto3" json:"failsafe,omitempty"`
	Host             *LinkCounters `protobuf:"bytes,3,opt,name=host,proto3" json:"host,omitempty"`
	Module           *LinkCounters `protobuf:"bytes,4,opt,name=module,proto3" json:"module,omitempty"`
	RcFramesSent     uint32        `protobuf:"varint,5,opt,name=rc_frames_sent,proto3" json:"rc_frames_sent,omitempty"`
	QueuedFramesSent uint32        `protobuf:"varint,6,opt,name=queued_frames_sent,proto3" json:"queued_frames_sent,omitempty"`
	FailsafeCycles   uint32        `protobuf:"varint,7,opt,name=failsafe_cycles,proto3" json:"failsafe_cycles,omitempty"`
	TxErrors         uint32        `protobuf:"varint,8,opt,name=tx_errors,proto3" json:"tx_errors,omitempty"`
	Channels         []uint32      `protobuf:"varint,9,rep,packed,name=channels,proto3" json:"channels,omitempty"`
	PeriodUs         uint64        `protobuf:"varint,10,opt,name=period_us,proto3" json:"period_us,omitempty"`
	TimingValid      bool          `protobuf:"varint,11,opt,name=timing_valid,proto3" json:"timing_valid,omitempty"`
	RefreshUs        int32         `protobuf:"varint,12,opt,name=refresh_us,proto3" json:"refresh_us,omitempty"`
	OffsetUs         int32         `protobuf:"zigzag32,13,opt,name=offset_us,proto3" json:"offset_us,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *StatusMessage) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StatusMessage) Reset() { *m = StatusMessage{} }

// String implements proto.Message.
func (m *StatusMessage) String() string { return proto.CompactTextString(m) }

// LinkMessage carries link statistics reported by the module.
type LinkMessage struct {
	UplinkRssi1   int32  `protobuf:"zigzag32,1,opt,name=uplink_rssi1,proto3" json:"uplink_rssi1,omitempty"`
	UplinkRssi2   int32  `protobuf:"zigzag32,2,opt,name=uplink_rssi2,proto3" json:"uplink_rssi2,omitempty"`
	UplinkLq      uint32 `protobuf:"varint,3,opt,name=uplink_lq,proto3" json:"uplink_lq,omitempty"`
	UplinkSnr     int32  `protobuf:"zigzag32,4,opt,name=uplink_snr,proto3" json:"uplink_snr,omitempty"`
	ActiveAntenna uint32 `protobuf:"varint,5,opt,name=active_antenna,proto3" json:"active_antenna,omitempty"`
	RfMode        uint32 `protobuf:"varint,6,opt,name=rf_mode,proto3" json:"rf_mode,omitempty"`
	UplinkTxPower uint32 `protobuf:"varint,7,opt,name=uplink_tx_power,proto3" json:"uplink_tx_power,omitempty"`
	DownlinkRssi  int32  `protobuf:"zigzag32,8,opt,name=downlink_rssi,proto3" json:"downlink_rssi,omitempty"`
	DownlinkLq    uint32 `protobuf:"varint,9,opt,name=downlink_lq,proto3" json:"downlink_lq,omitempty"`
	DownlinkSnr   int32  `protobuf:"zigzag32,10,opt,name=downlink_snr,proto3" json:"downlink_snr,omitempty"`
}

// ProtoMessage implements proto.Message.
func (m *LinkMessage) ProtoMessage() {}

// Reset implements proto.Message.
func (m *LinkMessage) Reset() { *m = LinkMessage{} }

// String implements proto.Message.
func (m *LinkMessage) String() string { return proto.CompactTextString(m) }

func linkCounters(s crsf.StatsSnapshot) *LinkCounters {
	return &LinkCounters{
		FramesReceived: s.FramesReceived,
		CrcErrors:      s.CRCErrors,
		ChannelUpdates: s.ChannelUpdates,
		Forwarded:      s.Forwarded,
	}
}

// NewStatusMessage converts a bridge status.
func NewStatusMessage(st *bridge.Status) *StatusMessage {
	m := &StatusMessage{
		TimeMs:           st.Time.UnixMilli(),
		Failsafe:         st.Failsafe,
		Host:             linkCounters(st.Host),
		Module:           linkCounters(st.Module),
		RcFramesSent:     st.Task.RCFramesSent,
		QueuedFramesSent: st.Task.QueuedFramesSent,
		FailsafeCycles:   st.Task.FailsafeCycles,
		TxErrors:         st.Task.TxErrors,
		Channels:         make([]uint32, len(st.Channels)),
		PeriodUs:         st.PeriodUs,
		TimingValid:      st.Timing.Valid,
		RefreshUs:        st.Timing.Refresh,
		OffsetUs:         st.Timing.Offset,
	}
	for n, v := range st.Channels {
		m.Channels[n] = uint32(v)
	}
	return m
}

// NewLinkMessage converts link statistics.
func NewLinkMessage(ls *crsf.LinkStatistics) *LinkMessage {
	return &LinkMessage{
		UplinkRssi1:   int32(ls.UplinkRSSI1),
		UplinkRssi2:   int32(ls.UplinkRSSI2),
		UplinkLq:      uint32(ls.UplinkLQ),
		UplinkSnr:     int32(ls.UplinkSNR),
		ActiveAntenna: uint32(ls.ActiveAntenna),
		RfMode:        uint32(ls.RFMode),
		UplinkTxPower: uint32(ls.UplinkTxPower),
		DownlinkRssi:  int32(ls.DownlinkRSSI),
		DownlinkLq:    uint32(ls.DownlinkLQ),
		DownlinkSnr:   int32(ls.DownlinkSNR),
	}
}
