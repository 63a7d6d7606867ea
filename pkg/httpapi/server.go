package httpapi

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/mux"
	"golang.org/x/net/websocket"

	"github.com/robotalks/crsfbridge/pkg/bridge"
	"github.com/robotalks/crsfbridge/pkg/crsf"
)

// Controller is the bridge surface exposed over HTTP.
type Controller interface {
	Status() bridge.Status
	ResetStats()
	InjectHostFrame(p []byte) error
}

// VersionInfo is returned by /version.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
}

// FrameEvent is one frame on the /ws/frames stream.
type FrameEvent struct {
	Time      time.Time `json:"time"`
	Direction string    `json:"dir"`
	Type      string    `json:"type"`
	Frame     string    `json:"frame"`
}

const (
	maxFrameBody    = 256
	frameQueueSize  = 64
	shutdownTimeout = 2 * time.Second
)

// Server serves bridge status and control.
type Server struct {
	Addr       string
	Controller Controller
	Version    VersionInfo

	router   *mux.Router
	lock     sync.Mutex
	watchers map[chan FrameEvent]struct{}
}

// NewServer creates a Server.
func NewServer(addr string, ctl Controller, version VersionInfo) *Server {
	s := &Server{
		Addr:       addr,
		Controller: ctl,
		Version:    version,
		watchers:   make(map[chan FrameEvent]struct{}),
	}
	r := mux.NewRouter()
	r.HandleFunc("/stats", s.getStats).Methods("GET")
	r.HandleFunc("/stats/reset", s.resetStats).Methods("POST")
	r.HandleFunc("/channels", s.getChannels).Methods("GET")
	r.HandleFunc("/timing", s.getTiming).Methods("GET")
	r.HandleFunc("/link", s.getLink).Methods("GET")
	r.HandleFunc("/devices", s.getDevices).Methods("GET")
	r.HandleFunc("/version", s.getVersion).Methods("GET")
	r.HandleFunc("/frames", s.postFrame).Methods("POST")
	r.Handle("/ws/frames", websocket.Handler(s.streamFrames))
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "http"
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	h := &http.Server{Handler: s}
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.Serve(ln)
	}()
	glog.Infof("http: serving on %s", ln.Addr())
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := h.Shutdown(shutdownCtx); err != nil {
		glog.Warningf("http: shutdown: %v", err)
	}
	return ctx.Err()
}

// ObserveFrame implements bridge.FrameObserver. Slow watchers miss frames.
func (s *Server) ObserveFrame(dir bridge.Direction, f crsf.Frame) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.watchers) == 0 {
		return
	}
	ev := FrameEvent{
		Time:      time.Now(),
		Direction: dir.String(),
		Type:      f.Type().String(),
		Frame:     hex.EncodeToString(f),
	}
	for ch := range s.watchers {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (s *Server) watch() chan FrameEvent {
	ch := make(chan FrameEvent, frameQueueSize)
	s.lock.Lock()
	s.watchers[ch] = struct{}{}
	s.lock.Unlock()
	return ch
}

func (s *Server) unwatch(ch chan FrameEvent) {
	s.lock.Lock()
	delete(s.watchers, ch)
	s.lock.Unlock()
}

func (s *Server) streamFrames(ws *websocket.Conn) {
	ch := s.watch()
	defer s.unwatch(ch)
	done := make(chan struct{})
	go func() {
		// reads only detect the peer closing
		io.Copy(io.Discard, ws)
		close(done)
	}()
	for {
		select {
		case ev := <-ch:
			if err := websocket.JSON.Send(ws, ev); err != nil {
				glog.V(2).Infof("http: frame stream: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.V(2).Infof("http: encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Controller.Status())
}

func (s *Server) resetStats(w http.ResponseWriter, r *http.Request) {
	s.Controller.ResetStats()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getChannels(w http.ResponseWriter, r *http.Request) {
	st := s.Controller.Status()
	micros := make([]int, len(st.Channels))
	for n, v := range st.Channels {
		micros[n] = crsf.ChannelToMicros(v)
	}
	writeJSON(w, http.StatusOK, struct {
		Failsafe bool          `json:"failsafe"`
		Raw      crsf.Channels `json:"raw"`
		Micros   []int         `json:"us"`
	}{st.Failsafe, st.Channels, micros})
}

func (s *Server) getTiming(w http.ResponseWriter, r *http.Request) {
	st := s.Controller.Status()
	writeJSON(w, http.StatusOK, struct {
		bridge.TimingStatus
		PeriodUs uint64 `json:"periodUs"`
	}{st.Timing, st.PeriodUs})
}

func (s *Server) getLink(w http.ResponseWriter, r *http.Request) {
	st := s.Controller.Status()
	if st.Link == nil {
		writeError(w, http.StatusNotFound, errors.New("no link statistics received"))
		return
	}
	writeJSON(w, http.StatusOK, st.Link)
}

func (s *Server) getDevices(w http.ResponseWriter, r *http.Request) {
	devices := s.Controller.Status().Devices
	if devices == nil {
		devices = []crsf.DeviceInfo{}
	}
	writeJSON(w, http.StatusOK, devices)
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Version)
}

// postFrame accepts a frame as hex text, spaces allowed, or as raw bytes
// with Content-Type application/octet-stream.
func (s *Server) postFrame(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxFrameBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	frame := body
	if r.Header.Get("Content-Type") != "application/octet-stream" {
		if frame, err = hex.DecodeString(strings.Join(strings.Fields(string(body)), "")); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
	}
	switch err = s.Controller.InjectHostFrame(frame); {
	case err == bridge.ErrBusy:
		writeError(w, http.StatusServiceUnavailable, err)
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
	default:
		writeJSON(w, http.StatusAccepted, map[string]string{"frame": crsf.Frame(frame).String()})
	}
}
