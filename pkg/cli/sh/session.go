package sh

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/crsfbridge/pkg/crsf"
)

// ErrClosed indicates the session link is gone.
var ErrClosed = errors.New("session closed")

// Session is a connection to a CRSF link. Received frames are dispatched
// to watchers from a background reader.
type Session struct {
	Name string

	rw     io.ReadWriteCloser
	closed chan struct{}
	err    error

	lock     sync.Mutex
	watchers map[int]func(crsf.Frame)
	nextID   int
	devices  map[crsf.Address]crsf.DeviceInfo
	link     *crsf.LinkStatistics
}

// NewSession starts a session over rw.
func NewSession(name string, rw io.ReadWriteCloser) *Session {
	s := &Session{
		Name:     name,
		rw:       rw,
		closed:   make(chan struct{}),
		watchers: make(map[int]func(crsf.Frame)),
		devices:  make(map[crsf.Address]crsf.DeviceInfo),
	}
	go s.read()
	return s
}

// Close closes the link.
func (s *Session) Close() error {
	err := s.rw.Close()
	<-s.closed
	return err
}

// Err returns the error stopping the reader, after the session closed.
func (s *Session) Err() error {
	select {
	case <-s.closed:
		return s.err
	default:
		return nil
	}
}

// Send writes a frame.
func (s *Session) Send(f crsf.Frame) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	_, err := s.rw.Write(f)
	return err
}

// Watch calls fn with each received frame, on the reader goroutine, until
// the returned func is called.
func (s *Session) Watch(fn func(crsf.Frame)) func() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = fn
	return func() {
		s.lock.Lock()
		delete(s.watchers, id)
		s.lock.Unlock()
	}
}

// Request sends f and waits for the first frame satisfying match.
func (s *Session) Request(ctx context.Context, f crsf.Frame, match func(crsf.Frame) bool) (crsf.Frame, error) {
	replyCh := make(chan crsf.Frame, 1)
	unwatch := s.Watch(func(reply crsf.Frame) {
		if match(reply) {
			select {
			case replyCh <- reply.Clone():
			default:
			}
		}
	})
	defer unwatch()
	if err := s.Send(f); err != nil {
		return nil, err
	}
	select {
	case reply := <-replyCh:
		return reply, nil
	case <-s.closed:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Collect sends f and gathers frames satisfying match until ctx is done.
func (s *Session) Collect(ctx context.Context, f crsf.Frame, match func(crsf.Frame) bool) ([]crsf.Frame, error) {
	var (
		lock   sync.Mutex
		frames []crsf.Frame
	)
	unwatch := s.Watch(func(reply crsf.Frame) {
		if match(reply) {
			lock.Lock()
			frames = append(frames, reply.Clone())
			lock.Unlock()
		}
	})
	defer unwatch()
	if err := s.Send(f); err != nil {
		return nil, err
	}
	select {
	case <-s.closed:
	case <-ctx.Done():
	}
	lock.Lock()
	defer lock.Unlock()
	return frames, nil
}

// Devices returns devices seen on the link.
func (s *Session) Devices() []crsf.DeviceInfo {
	s.lock.Lock()
	defer s.lock.Unlock()
	devices := make([]crsf.DeviceInfo, 0, len(s.devices))
	for _, info := range s.devices {
		devices = append(devices, info)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Origin < devices[j].Origin })
	return devices
}

// LinkStatistics returns the last link statistics seen, nil if none.
func (s *Session) LinkStatistics() *crsf.LinkStatistics {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.link
}

func (s *Session) read() {
	defer close(s.closed)
	rx := crsf.NewReceiver(crsf.HandleFrameFunc(s.dispatch), crsf.LinkAddresses...)
	buf := make([]byte, 256)
	for {
		n, err := s.rw.Read(buf)
		rx.Write(buf[:n])
		if err != nil {
			glog.V(2).Infof("%s: read: %v", s.Name, err)
			s.err = err
			return
		}
	}
}

func (s *Session) dispatch(f crsf.Frame) {
	s.lock.Lock()
	switch f.Type() {
	case crsf.TypeDeviceInfo:
		if info, err := crsf.ParseDeviceInfo(f.Payload()); err == nil {
			s.devices[info.Origin] = info
		}
	case crsf.TypeLinkStatistics:
		if ls, err := crsf.ParseLinkStatistics(f.Payload()); err == nil {
			s.link = &ls
		}
	}
	watchers := make([]func(crsf.Frame), 0, len(s.watchers))
	for _, fn := range s.watchers {
		watchers = append(watchers, fn)
	}
	s.lock.Unlock()
	for _, fn := range watchers {
		fn(f)
	}
}
