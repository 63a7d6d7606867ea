package feeder

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/crsfbridge/pkg/crsf"
	fx "github.com/robotalks/crsfbridge/pkg/framework"
)

// Defaults of Feeder.
const (
	DefaultInterval      = 4 * time.Millisecond
	DefaultPingInterval  = time.Second
	DefaultRetryInterval = time.Second
)

// Feeder reads a joystick and sends channel frames to the bridge host
// link. It pings for devices until one answers and logs telemetry
// coming back.
type Feeder struct {
	Link   io.ReadWriter
	Mapper *Mapper
	// OpenJoystick opens the input device, DetectJoystick by default.
	OpenJoystick func() (Joystick, error)

	Interval      time.Duration
	PingInterval  time.Duration
	RetryInterval time.Duration

	frames chan crsf.Frame

	lock    sync.RWMutex
	devices map[crsf.Address]crsf.DeviceInfo
	link    *crsf.LinkStatistics
	micros  []int
}

// New creates a Feeder.
func New(link io.ReadWriter, m *Mapping) *Feeder {
	return &Feeder{
		Link:          link,
		Mapper:        NewMapper(m),
		OpenJoystick:  DetectJoystick,
		Interval:      DefaultInterval,
		PingInterval:  DefaultPingInterval,
		RetryInterval: DefaultRetryInterval,
		frames:        make(chan crsf.Frame, 16),
		devices:       make(map[crsf.Address]crsf.DeviceInfo),
	}
}

// Devices returns devices which answered pings.
func (f *Feeder) Devices() []crsf.DeviceInfo {
	f.lock.RLock()
	defer f.lock.RUnlock()
	devices := make([]crsf.DeviceInfo, 0, len(f.devices))
	for _, info := range f.devices {
		devices = append(devices, info)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Origin < devices[j].Origin })
	return devices
}

// LinkStatistics returns the last link statistics, nil if none.
func (f *Feeder) LinkStatistics() *crsf.LinkStatistics {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return f.link
}

// Micros returns the last sent channel values in microseconds.
func (f *Feeder) Micros() []int {
	f.lock.RLock()
	defer f.lock.RUnlock()
	return append([]int(nil), f.micros...)
}

// Name implements framework.Named.
func (f *Feeder) Name() string {
	return "feeder"
}

// Run implements framework.Runnable. It returns when the link fails.
func (f *Feeder) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	linkErr := make(chan error, 1)
	go func() {
		linkErr <- f.readLink(ctx)
	}()

	var (
		js     Joystick
		events chan Event
		state  *State
		frame  [crsf.ChannelsFrameSize]byte
	)

	reopen := time.After(0)
	send := time.NewTicker(f.Interval)
	defer send.Stop()
	ping := time.NewTicker(f.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-linkErr:
			return err
		case <-reopen:
			reopen = nil
			var err error
			if js, err = f.OpenJoystick(); err != nil {
				glog.Warningf("joystick: %v", err)
			} else if js == nil {
				glog.V(2).Info("joystick: none detected")
			}
			if js == nil {
				reopen = time.After(f.RetryInterval)
				continue
			}
			glog.Infof("joystick %q opened, %d axes, %d buttons", js.Name(), js.AxisCount(), js.ButtonCount())
			state = NewState(js.AxisCount(), js.ButtonCount())
			events = make(chan Event, 16)
			go pollJoystick(ctx, js, events)
		case ev, ok := <-events:
			if !ok {
				glog.Warningf("joystick %q lost", js.Name())
				js, events, state = nil, nil, nil
				reopen = time.After(f.RetryInterval)
				continue
			}
			state.Apply(ev)
		case <-send.C:
			// nothing is sent without input so the bridge enters failsafe
			if state == nil {
				continue
			}
			micros := f.Mapper.Micros(state)
			ch := MicrosToChannels(micros)
			if _, err := f.Link.Write(crsf.PutChannelsFrame(frame[:], crsf.AddrSync, &ch)); err != nil {
				return err
			}
			f.lock.Lock()
			f.micros = micros
			f.lock.Unlock()
		case <-ping.C:
			if len(f.Devices()) > 0 {
				continue
			}
			if _, err := f.Link.Write(crsf.PingFrame(crsf.AddrBroadcast, crsf.AddrRadio)); err != nil {
				return err
			}
		case fr := <-f.frames:
			f.handleFrame(fr)
		}
	}
}

// pollJoystick forwards events until js fails or ctx is done, then closes
// js and events.
func pollJoystick(ctx context.Context, js Joystick, events chan<- Event) {
	defer close(events)
	err := fx.RunWithContextCloser(ctx, js, func() error {
		for {
			ev, err := js.ReadEvent()
			if err != nil {
				return err
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})
	glog.V(2).Infof("joystick %q: %v", js.Name(), err)
}

func (f *Feeder) readLink(ctx context.Context) error {
	rx := crsf.NewReceiver(crsf.HandleFrameFunc(func(fr crsf.Frame) {
		select {
		case f.frames <- fr.Clone():
		default:
		}
	}), crsf.LinkAddresses...)
	return fx.RunWithContext(ctx, func() error {
		buf := make([]byte, 256)
		for {
			n, err := f.Link.Read(buf)
			rx.Write(buf[:n])
			if err != nil {
				return err
			}
		}
	})
}

func (f *Feeder) handleFrame(fr crsf.Frame) {
	switch fr.Type() {
	case crsf.TypeDeviceInfo:
		info, err := crsf.ParseDeviceInfo(fr.Payload())
		if err != nil {
			glog.V(2).Infof("device info: %v", err)
			return
		}
		f.lock.Lock()
		if _, known := f.devices[info.Origin]; !known {
			glog.Infof("device %q at %s, %d parameters", info.Name, info.Origin, info.ParamCount)
		}
		f.devices[info.Origin] = info
		f.lock.Unlock()
	case crsf.TypeLinkStatistics:
		ls, err := crsf.ParseLinkStatistics(fr.Payload())
		if err != nil {
			return
		}
		f.lock.Lock()
		f.link = &ls
		f.lock.Unlock()
		glog.V(2).Infof("link: rssi %d/%d dBm lq %d%%", ls.UplinkRSSI1, ls.UplinkRSSI2, ls.UplinkLQ)
	default:
		glog.V(3).Infof("rx %s", fr)
	}
}
