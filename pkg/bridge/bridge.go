package bridge

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

// Direction tells where a frame travels relative to the bridge.
type Direction int

const (
	HostRx   Direction = iota // received from host
	HostTx                    // sent to host
	ModuleRx                  // received from module
	ModuleTx                  // sent to module
)

var directionNames = [...]string{"host-rx", "host-tx", "module-rx", "module-tx"}

func (d Direction) String() string {
	if d >= 0 && int(d) < len(directionNames) {
		return directionNames[d]
	}
	return "unknown"
}

// FrameObserver is notified of frames passing the bridge, on the loop
// goroutine. The frame must be copied if retained.
type FrameObserver interface {
	ObserveFrame(Direction, crsf.Frame)
}

// ObserveFrameFunc is func type of FrameObserver.
type ObserveFrameFunc func(Direction, crsf.Frame)

// ObserveFrame implements FrameObserver.
func (f ObserveFrameFunc) ObserveFrame(dir Direction, frame crsf.Frame) {
	f(dir, frame)
}

// Status is a snapshot of the bridge state.
type Status struct {
	Time     time.Time            `json:"time"`
	Failsafe bool                 `json:"failsafe"`
	Host     crsf.StatsSnapshot   `json:"host"`
	Module   crsf.StatsSnapshot   `json:"module"`
	Task     TaskStatsSnapshot    `json:"task"`
	Channels crsf.Channels        `json:"channels"`
	PeriodUs uint64               `json:"periodUs"`
	Timing   TimingStatus         `json:"timing"`
	Link     *crsf.LinkStatistics `json:"link,omitempty"`
	Devices  []crsf.DeviceInfo    `json:"devices,omitempty"`
}

const (
	hostQueueSize   = 64
	injectQueueSize = 8
	// DefaultStatusInterval is how often Status is refreshed by default.
	DefaultStatusInterval = 20 * time.Millisecond
)

// Bridge connects the host link to the module transport. All protocol
// state is owned by the loop goroutine calling Poll. Other goroutines
// interact through InjectHostFrame, ResetStats and Status.
type Bridge struct {
	Host   io.ReadWriter
	Module Transport
	Clock  Clock
	// StatusInterval is how often Status is refreshed.
	StatusInterval time.Duration
	// OnLinkStatistics is called on the loop goroutine for each link
	// statistics frame from the module.
	OnLinkStatistics func(crsf.LinkStatistics)

	channels   ChannelState
	timing     Synchronizer
	liveness   Monitor
	hostRx     *crsf.Receiver
	moduleRx   *crsf.Receiver
	hostLink   HostLink
	moduleLink ModuleLink
	task       Task
	observers  []FrameObserver

	hostIn   chan []byte
	injectIn chan crsf.Frame
	hostOut  chan []byte

	link       *crsf.LinkStatistics
	devices    map[crsf.Address]crsf.DeviceInfo
	lastStatus uint64

	statusLock sync.RWMutex
	status     Status
}

// New creates a Bridge between host and module.
func New(host io.ReadWriter, module Transport) *Bridge {
	b := &Bridge{
		Host:           host,
		Module:         module,
		Clock:          SystemClock(),
		StatusInterval: DefaultStatusInterval,
		channels:       ChannelState{ch: crsf.CenteredChannels()},
		hostIn:         make(chan []byte, hostQueueSize),
		injectIn:       make(chan crsf.Frame, injectQueueSize),
		hostOut:        make(chan []byte, hostQueueSize),
		devices:        make(map[crsf.Address]crsf.DeviceInfo),
	}
	clock := ClockFunc(b.micros)

	b.hostRx = crsf.NewReceiver(crsf.HandleFrameFunc(b.handleHostFrame), crsf.LinkAddresses...)
	b.moduleRx = crsf.NewReceiver(crsf.HandleFrameFunc(b.handleModuleFrame), crsf.LinkAddresses...)

	b.hostLink = HostLink{
		Channels: &b.channels,
		Liveness: &b.liveness,
		ToModule: ForwardFunc(b.forwardToModule),
		Clock:    clock,
		Stats:    &b.hostRx.Stats,
	}
	b.moduleLink = ModuleLink{
		Sync:             &b.timing,
		ToHost:           ForwardFunc(b.forwardToHost),
		Clock:            clock,
		Stats:            &b.moduleRx.Stats,
		OnLinkStatistics: b.linkStatistics,
		OnDeviceInfo:     b.deviceInfo,
	}
	b.task = Task{
		Transport:  module,
		Receiver:   b.moduleRx,
		Sync:       &b.timing,
		Liveness:   &b.liveness,
		Channels:   &b.channels,
		Clock:      clock,
		Address:    crsf.AddrModule,
		OnTransmit: b.transmitted,
	}
	return b
}

// SetFailsafeTimeout changes the liveness timeout. Call before Begin.
func (b *Bridge) SetFailsafeTimeout(d time.Duration) {
	b.liveness.Timeout = uint64(d / time.Microsecond)
}

// AddObserver adds frame observers. Call before Begin.
func (b *Bridge) AddObserver(observers ...FrameObserver) {
	b.observers = append(b.observers, observers...)
}

// Begin starts the module transport.
func (b *Bridge) Begin() error {
	if err := b.task.Begin(); err != nil {
		return err
	}
	b.publishStatus(b.micros())
	return nil
}

// AddToLoop implements framework.LoopAdder.
func (b *Bridge) AddToLoop(loop *fx.Loop) {
	loop.AddPoller(b)
	loop.AddRunnable(
		fx.NamedRun("host-reader", fx.RunFunc(b.readHost)),
		fx.NamedRun("host-writer", fx.RunFunc(b.writeHost)),
	)
	if _, ok := b.Module.(FailingTransport); ok {
		loop.AddRunnable(fx.NamedRun("module-link", fx.RunFunc(b.watchModule)))
	}
}

// Poll implements framework.Poller. It feeds host input and runs one
// scheduler step.
func (b *Bridge) Poll(ctx context.Context) {
	b.drainHost()
	b.task.Tick()
	if now := b.micros(); now-b.lastStatus >= uint64(b.StatusInterval/time.Microsecond) {
		b.publishStatus(now)
	}
}

// InjectHostFrame submits a frame as if received from the host.
func (b *Bridge) InjectHostFrame(p []byte) error {
	frame := crsf.Frame(p).Clone()
	if err := frame.Validate(); err != nil {
		return err
	}
	select {
	case b.injectIn <- frame:
		return nil
	default:
		return ErrBusy
	}
}

// ResetStats clears all counters.
func (b *Bridge) ResetStats() {
	b.hostRx.Stats.Reset()
	b.moduleRx.Stats.Reset()
	b.task.Stats.Reset()
}

// Status returns the latest snapshot.
func (b *Bridge) Status() Status {
	b.statusLock.RLock()
	defer b.statusLock.RUnlock()
	return b.status
}

// Close closes both links.
func (b *Bridge) Close() error {
	var errs fx.AggregatedError
	if c, ok := b.Host.(io.Closer); ok {
		errs.Add(c.Close())
	}
	if c, ok := b.Module.(io.Closer); ok {
		errs.Add(c.Close())
	}
	return errs.Aggregate()
}

func (b *Bridge) micros() uint64 {
	return b.Clock.Micros()
}

func (b *Bridge) drainHost() {
	for {
		select {
		case p := <-b.hostIn:
			b.hostRx.Write(p)
		case frame := <-b.injectIn:
			b.hostRx.Dispatch(frame)
		default:
			return
		}
	}
}

func (b *Bridge) observe(dir Direction, f crsf.Frame) {
	if glog.V(2) {
		glog.Infof("%s %s", dir, f)
	}
	for _, o := range b.observers {
		o.ObserveFrame(dir, f)
	}
}

func (b *Bridge) handleHostFrame(f crsf.Frame) {
	b.observe(HostRx, f)
	b.hostLink.HandleFrame(f)
}

func (b *Bridge) handleModuleFrame(f crsf.Frame) {
	b.observe(ModuleRx, f)
	b.moduleLink.HandleFrame(f)
}

func (b *Bridge) forwardToModule(f crsf.Frame) bool {
	return b.task.QueueOutputFrame(f)
}

func (b *Bridge) forwardToHost(f crsf.Frame) bool {
	select {
	case b.hostOut <- f.Clone():
		b.observe(HostTx, f)
		return true
	default:
		glog.V(2).Infof("host output full, dropped %s", f.Type())
		return false
	}
}

func (b *Bridge) transmitted(f crsf.Frame) {
	b.observe(ModuleTx, f)
}

func (b *Bridge) linkStatistics(ls crsf.LinkStatistics) {
	b.link = &ls
	if fn := b.OnLinkStatistics; fn != nil {
		fn(ls)
	}
}

func (b *Bridge) deviceInfo(info crsf.DeviceInfo) {
	if _, known := b.devices[info.Origin]; !known {
		glog.Infof("discovered device %q at %s", info.Name, info.Origin)
	}
	b.devices[info.Origin] = info
}

func (b *Bridge) publishStatus(now uint64) {
	b.lastStatus = now
	st := Status{
		Time:     time.Now(),
		Failsafe: b.liveness.IsFailsafe(now),
		Host:     b.hostRx.Stats.Snapshot(),
		Module:   b.moduleRx.Stats.Snapshot(),
		Task:     b.task.Stats.Snapshot(),
		Channels: b.channels.Channels(),
		PeriodUs: b.task.Period(),
		Timing:   b.timing.Status(now),
	}
	if b.link != nil {
		ls := *b.link
		st.Link = &ls
	}
	if len(b.devices) > 0 {
		st.Devices = make([]crsf.DeviceInfo, 0, len(b.devices))
		for _, info := range b.devices {
			st.Devices = append(st.Devices, info)
		}
		sort.Slice(st.Devices, func(i, j int) bool {
			return st.Devices[i].Origin < st.Devices[j].Origin
		})
	}
	b.statusLock.Lock()
	b.status = st
	b.statusLock.Unlock()
}

func (b *Bridge) readHost(ctx context.Context) error {
	return fx.RunWithContext(ctx, func() error {
		buf := make([]byte, 256)
		for {
			n, err := b.Host.Read(buf)
			if n > 0 {
				select {
				case b.hostIn <- append([]byte(nil), buf[:n]...):
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if err != nil {
				return err
			}
		}
	})
}

// watchModule returns the module link failure, which stops the loop.
func (b *Bridge) watchModule(ctx context.Context) error {
	module, ok := b.Module.(FailingTransport)
	if !ok {
		<-ctx.Done()
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-module.Done():
		if err := module.Err(); err != nil {
			return err
		}
		return io.EOF
	}
}

func (b *Bridge) writeHost(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p := <-b.hostOut:
			if _, err := b.Host.Write(p); err != nil {
				return err
			}
		}
	}
}
