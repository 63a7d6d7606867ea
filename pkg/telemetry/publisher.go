package telemetry

import (
	"context"
	"encoding/hex"
	"os"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/crsfbridge/pkg/bridge"
	"github.com/robotalks/crsfbridge/pkg/crsf"
)

// Topics relative to the device prefix.
const (
	TopicStatus   = "status"
	TopicLink     = "link"
	TopicFramesIn = "frames/in"
)

// AppID scopes the machine ID so it differs from other applications.
const AppID = "crsfbridge"

// Source is the bridge as seen by the publisher.
type Source interface {
	Status() bridge.Status
	InjectHostFrame(p []byte) error
}

// Publisher publishes bridge status to MQTT and accepts raw host frames
// from the frames/in topic, as binary or hex text.
type Publisher struct {
	Queue    *Queue
	Source   Source
	DeviceID string
	Interval time.Duration

	linkCh chan crsf.LinkStatistics
}

// DeviceID returns a stable identifier of this machine, falling back to
// the host name.
func DeviceID() string {
	id, err := machineid.ProtectedID(AppID)
	if err == nil {
		return id[:12]
	}
	glog.Warningf("machine id: %v", err)
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return AppID
}

// NewPublisher creates a Publisher.
func NewPublisher(q *Queue, src Source, interval time.Duration) *Publisher {
	return &Publisher{
		Queue:    q,
		Source:   src,
		DeviceID: DeviceID(),
		Interval: interval,
		linkCh:   make(chan crsf.LinkStatistics, 1),
	}
}

// Topic returns topic below the device prefix, without the queue prefix.
func (p *Publisher) Topic(name string) string {
	return p.DeviceID + "/" + name
}

// LinkStatistics queues link statistics for publishing. It never blocks
// and only the latest value is kept.
func (p *Publisher) LinkStatistics(ls crsf.LinkStatistics) {
	for {
		select {
		case p.linkCh <- ls:
			return
		default:
		}
		select {
		case <-p.linkCh:
		default:
		}
	}
}

// Name implements framework.Named.
func (p *Publisher) Name() string {
	return "mqtt"
}

// Run implements framework.Runnable.
func (p *Publisher) Run(ctx context.Context) error {
	sub := p.Queue.Sub(p.Topic(TopicFramesIn), p.handleFrame)
	defer sub.Close()
	token := p.Queue.Connect()
	if token.Wait(); token.Error() != nil {
		return token.Error()
	}
	defer p.Queue.Close()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			st := p.Source.Status()
			p.publish(TopicStatus, NewStatusMessage(&st))
		case ls := <-p.linkCh:
			p.publish(TopicLink, NewLinkMessage(&ls))
		}
	}
}

func (p *Publisher) publish(name string, msg proto.Message) {
	data, err := proto.Marshal(msg)
	if err != nil {
		glog.Errorf("encode %s: %v", name, err)
		return
	}
	p.Queue.Pub(p.Topic(name), data)
}

func (p *Publisher) handleFrame(topic string, payload []byte) {
	frame, err := DecodeFrame(payload)
	if err == nil {
		err = p.Source.InjectHostFrame(frame)
	}
	if err != nil {
		glog.Warningf("%s: %v", topic, err)
	}
}

// DecodeFrame accepts a frame as raw bytes, or as hex text when it doesn't
// start with a frame address.
func DecodeFrame(payload []byte) (crsf.Frame, error) {
	if len(payload) > 0 && isLinkAddress(crsf.Address(payload[0])) {
		return crsf.Frame(payload), nil
	}
	text := make([]byte, 0, len(payload))
	for _, c := range payload {
		if c != ' ' && c != '\n' && c != '\r' && c != '\t' {
			text = append(text, c)
		}
	}
	frame := make([]byte, hex.DecodedLen(len(text)))
	if _, err := hex.Decode(frame, text); err != nil {
		return nil, err
	}
	return crsf.Frame(frame), nil
}

func isLinkAddress(a crsf.Address) bool {
	for _, addr := range crsf.LinkAddresses {
		if addr == a {
			return true
		}
	}
	return false
}
