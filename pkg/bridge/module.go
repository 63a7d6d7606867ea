package bridge

import (
	"github.com/golang/glog"

	"github.com/robotalks/crsfbridge/pkg/crsf"
)

// ModuleLink handles frames received from the transmitter module.
// Timing corrections are consumed locally, everything else goes to the host.
type ModuleLink struct {
	Sync   *Synchronizer
	ToHost Forwarder
	Clock  Clock
	Stats  *crsf.Stats

	// Optional observers of decoded telemetry.
	OnLinkStatistics func(crsf.LinkStatistics)
	OnDeviceInfo     func(crsf.DeviceInfo)
}

// HandleFrame implements crsf.FrameHandler.
func (l *ModuleLink) HandleFrame(f crsf.Frame) {
	switch f.Type() {
	case crsf.TypeRadioID:
		if tm, err := crsf.ParseTiming(f.Payload()); err == nil {
			l.applyTiming(tm)
			return
		}
	case crsf.TypeLinkStatistics:
		if fn := l.OnLinkStatistics; fn != nil {
			if ls, err := crsf.ParseLinkStatistics(f.Payload()); err == nil {
				fn(ls)
			}
		}
	case crsf.TypeDeviceInfo:
		if fn := l.OnDeviceInfo; fn != nil {
			if info, err := crsf.ParseDeviceInfo(f.Payload()); err == nil {
				fn(info)
			} else {
				glog.V(2).Infof("module: bad device info: %v", err)
			}
		}
	}
	if l.ToHost != nil && l.ToHost.Forward(f) && l.Stats != nil {
		l.Stats.AddForwarded()
	}
}

func (l *ModuleLink) applyTiming(tm crsf.Timing) {
	if tm.Interval < MinRefresh || tm.Interval > MaxPeriod {
		glog.V(2).Infof("module: timing interval %dus out of range, ignored", tm.Interval)
		return
	}
	glog.V(3).Infof("module: timing interval=%dus offset=%dus", tm.Interval, tm.Offset)
	l.Sync.Update(l.Clock.Micros(), tm.Interval, tm.Offset)
}
