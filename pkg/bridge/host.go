package bridge

import (
	"github.com/golang/glog"

	"github.com/robotalks/crsfbridge/pkg/crsf"
)

// HostLink handles frames received from the host.
// Channel updates are applied locally. Device commands are forwarded to the
// module and all other frames are accepted without action.
type HostLink struct {
	Channels *ChannelState
	Liveness *Monitor
	ToModule Forwarder
	Clock    Clock
	Stats    *crsf.Stats
}

// IsForwardable indicates frame types the host may send to the module.
func IsForwardable(t crsf.FrameType) bool {
	switch t {
	case crsf.TypePing, crsf.TypeParamRead, crsf.TypeParamWrite, crsf.TypeCommand:
		return true
	}
	return false
}

// HandleFrame implements crsf.FrameHandler.
func (l *HostLink) HandleFrame(f crsf.Frame) {
	switch t := f.Type(); {
	case t == crsf.TypeRCChannels:
		ch, err := crsf.UnpackChannels(f.Payload())
		if err != nil {
			glog.V(2).Infof("host: channels frame: %v", err)
			return
		}
		l.Channels.Set(ch)
		l.Stats.AddChannelUpdate()
		l.Liveness.MarkUpdate(l.Clock.Micros())
	case IsForwardable(t):
		if l.ToModule != nil && l.ToModule.Forward(f) {
			l.Stats.AddForwarded()
		} else {
			glog.V(2).Infof("host: %s not forwarded, output busy", t)
		}
	default:
		glog.V(2).Infof("host: unhandled frame type %s", t)
	}
}
