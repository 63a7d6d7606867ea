package transport

import (
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/pkg/term"
	"github.com/tarm/serial"
	"golang.org/x/net/websocket"
)

// DefaultBaud is the CRSF link rate used by the module and the host.
const DefaultBaud = 5250000

// Open opens a link by URL. Supported forms:
//
//	/dev/ttyACM0, serial:///dev/ttyACM0  serial device, 8N1
//	term:///dev/ttyACM0                  serial device in raw terminal mode
//	tcp://host:port, socket://host:port  TCP stream
//	ws://host:port/path                  websocket, binary messages
func Open(link string, baud int) (io.ReadWriteCloser, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}
	u, err := url.Parse(link)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "", "file", "serial":
		port, err := serial.OpenPort(&serial.Config{
			Name:     u.Path,
			Baud:     baud,
			Size:     8,
			Parity:   serial.ParityNone,
			StopBits: serial.Stop1,
		})
		if err != nil {
			return nil, err
		}
		return port, nil
	case "term":
		t, err := term.Open(u.Path, term.RawMode)
		if err != nil {
			return nil, err
		}
		if err = t.SetSpeed(baud); err != nil {
			t.Close()
			return nil, err
		}
		return t, nil
	case "tcp", "socket":
		d := net.Dialer{KeepAlive: 30 * time.Second}
		conn, err := d.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "ws", "wss":
		origin := "http://" + u.Host
		if u.Scheme == "wss" {
			origin = "https://" + u.Host
		}
		conn, err := websocket.Dial(link, "", origin)
		if err != nil {
			return nil, err
		}
		conn.PayloadType = websocket.BinaryFrame
		return conn, nil
	}
	return nil, fmt.Errorf("unsupported link %q", link)
}
