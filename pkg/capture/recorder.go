// Package capture logs frames passing the bridge to text files.
package capture

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/lestrrat-go/strftime"

	"github.com/robotalks/crsfbridge/pkg/bridge"
	"github.com/robotalks/crsfbridge/pkg/crsf"
)

// TimeFormat is the time stamp of each line.
const TimeFormat = "2006-01-02T15:04:05.000000Z07:00"

const queueSize = 256

type record struct {
	time  time.Time
	dir   bridge.Direction
	frame crsf.Frame
}

// Recorder writes one line per frame: time, direction and frame bytes in
// hex. The file name is a strftime pattern; a new file is started when
// the formatted name changes, e.g. "crsf-%Y%m%d-%H.log" rotates hourly.
type Recorder struct {
	Now func() time.Time

	pattern *strftime.Strftime
	records chan record
	dropped atomic.Uint32

	name string
	file *os.File
	w    *bufio.Writer
}

// NewRecorder creates a Recorder.
func NewRecorder(pattern string) (*Recorder, error) {
	p, err := strftime.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("capture pattern %q: %w", pattern, err)
	}
	return &Recorder{
		Now:     time.Now,
		pattern: p,
		records: make(chan record, queueSize),
	}, nil
}

// ObserveFrame implements bridge.FrameObserver. Frames are dropped when
// the writer falls behind.
func (r *Recorder) ObserveFrame(dir bridge.Direction, f crsf.Frame) {
	select {
	case r.records <- record{time: r.Now(), dir: dir, frame: f.Clone()}:
	default:
		r.dropped.Add(1)
	}
}

// Name implements framework.Named.
func (r *Recorder) Name() string {
	return "capture"
}

// Run implements framework.Runnable.
func (r *Recorder) Run(ctx context.Context) error {
	defer r.Close()
	flush := time.NewTicker(time.Second)
	defer flush.Stop()
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case rec := <-r.records:
			if err := r.write(rec); err != nil {
				return err
			}
		case <-flush.C:
			if r.w != nil {
				if err := r.w.Flush(); err != nil {
					return err
				}
			}
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case rec := <-r.records:
			if err := r.write(rec); err != nil {
				glog.Errorf("capture: %v", err)
				return
			}
		default:
			return
		}
	}
}

func (r *Recorder) write(rec record) error {
	if name := r.pattern.FormatString(rec.time); name != r.name || r.file == nil {
		if err := r.open(name); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(r.w, "%s %s % x\n", rec.time.Format(TimeFormat), rec.dir, []byte(rec.frame))
	return err
}

func (r *Recorder) open(name string) error {
	if err := r.Close(); err != nil {
		glog.Warningf("capture: close %s: %v", r.name, err)
	}
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	glog.Infof("capture: writing %s", name)
	r.name, r.file, r.w = name, f, bufio.NewWriter(f)
	return nil
}

// Close flushes and closes the current file.
func (r *Recorder) Close() error {
	if r.file == nil {
		return nil
	}
	err := r.w.Flush()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	r.file, r.w = nil, nil
	if n := r.dropped.Swap(0); n > 0 {
		glog.Warningf("capture: %d frames dropped", n)
	}
	return err
}
