package device

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/crsfbridge/pkg/cli/sh"
	"github.com/robotalks/crsfbridge/pkg/crsf"
)

// Origin is the address the shell sends device commands from.
const Origin = crsf.AddrRadio

// ParseAddress parses an address by name or number.
func ParseAddress(s string) (crsf.Address, error) {
	for _, a := range []crsf.Address{
		crsf.AddrBroadcast, crsf.AddrFlightController, crsf.AddrRadio,
		crsf.AddrReceiver, crsf.AddrModule, crsf.AddrELRSLua,
	} {
		if a.String() == s {
			return a, nil
		}
	}
	v, err := strconv.ParseUint(s, 0, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return crsf.Address(v), nil
}

// ParseChannels parses CH=US arguments, channels numbered from 1. Channels
// not mentioned are centered.
func ParseChannels(args []string) (crsf.Channels, error) {
	ch := crsf.CenteredChannels()
	for _, arg := range args {
		parts := strings.SplitN(arg, "=", 2)
		if len(parts) != 2 {
			return ch, fmt.Errorf("expect CH=US: %q", arg)
		}
		n, err := strconv.Atoi(parts[0])
		if err != nil || n < 1 || n > crsf.NumChannels {
			return ch, fmt.Errorf("invalid channel %q", parts[0])
		}
		us, err := strconv.Atoi(parts[1])
		if err != nil {
			return ch, fmt.Errorf("invalid value %q", parts[1])
		}
		ch[n-1] = crsf.MicrosToChannel(us)
	}
	return ch, nil
}

// ParseBytes parses values as bytes, each in decimal or 0x hex.
func ParseBytes(args []string) ([]byte, error) {
	out := make([]byte, 0, len(args))
	for _, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte %q", arg)
		}
		out = append(out, byte(v))
	}
	return out, nil
}

// IsParamEntry matches a parameter entry from dest for index.
func IsParamEntry(dest crsf.Address, index byte) func(crsf.Frame) bool {
	return func(f crsf.Frame) bool {
		p := f.Payload()
		return f.Type() == crsf.TypeParamEntry && len(p) > 2 && f.Origin() == dest && p[2] == index
	}
}

// ParamEntry is a chunk of a parameter entry.
type ParamEntry struct {
	Origin          crsf.Address `json:"origin"`
	Index           byte         `json:"index"`
	ChunksRemaining byte         `json:"chunksRemaining"`
	Data            string       `json:"data"`
}

func formatDevice(info crsf.DeviceInfo) string {
	return fmt.Sprintf("%-8s %q serial=%08x hw=%08x sw=%08x params=%d",
		info.Origin, info.Name, info.SerialNumber, info.HardwareVersion, info.SoftwareVersion, info.ParamCount)
}

func argSeconds(args []string, def time.Duration) (time.Duration, error) {
	if len(args) == 0 {
		return def, nil
	}
	return time.ParseDuration(args[0])
}

var (
	// PingCmd pings devices and lists those answering.
	PingCmd = ishell.Cmd{
		Name:    "ping",
		Aliases: []string{"p"},
		Help:    "[DEST]",
		Func: sh.MustBeConnected(func(c *ishell.Context, s *sh.Session) {
			dest := crsf.AddrBroadcast
			if len(c.Args) > 0 {
				var err error
				if dest, err = ParseAddress(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
			}
			ctx, cancel := sh.CommandContext(c)
			defer cancel()
			frames, err := s.Collect(ctx, crsf.PingFrame(dest, Origin), func(f crsf.Frame) bool {
				return f.Type() == crsf.TypeDeviceInfo
			})
			if err != nil {
				c.Err(err)
				return
			}
			infos := make([]crsf.DeviceInfo, 0, len(frames))
			var text bytes.Buffer
			for _, f := range frames {
				if info, err := crsf.ParseDeviceInfo(f.Payload()); err == nil {
					infos = append(infos, info)
					fmt.Fprintln(&text, formatDevice(info))
				}
			}
			if len(infos) == 0 {
				text.WriteString("No devices answered")
			}
			sh.Output(c, infos, strings.TrimSuffix(text.String(), "\n"))
		}),
	}

	// DevicesCmd lists devices seen on the link.
	DevicesCmd = ishell.Cmd{
		Name: "devices",
		Func: sh.MustBeConnected(func(c *ishell.Context, s *sh.Session) {
			devices := s.Devices()
			lines := make([]string, len(devices))
			for n, info := range devices {
				lines[n] = formatDevice(info)
			}
			sh.Output(c, devices, strings.Join(lines, "\n"))
		}),
	}

	// ParamReadCmd reads a parameter entry chunk.
	ParamReadCmd = ishell.Cmd{
		Name:    "param.read",
		Aliases: []string{"pr"},
		Help:    "DEST INDEX [CHUNK]",
		Func: sh.MustBeConnected(func(c *ishell.Context, s *sh.Session) {
			if len(c.Args) < 2 {
				c.Err(fmt.Errorf("DEST INDEX required"))
				return
			}
			dest, err := ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			values, err := ParseBytes(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			var chunk byte
			if len(values) > 1 {
				chunk = values[1]
			}
			ctx, cancel := sh.CommandContext(c)
			defer cancel()
			reply, err := s.Request(ctx, crsf.ParamReadFrame(dest, Origin, values[0], chunk), IsParamEntry(dest, values[0]))
			if err != nil {
				c.Err(err)
				return
			}
			p := reply.Payload()
			entry := ParamEntry{Origin: reply.Origin(), Index: p[2]}
			if len(p) > 3 {
				entry.ChunksRemaining, entry.Data = p[3], hex.EncodeToString(p[4:])
			}
			sh.Output(c, entry, fmt.Sprintf("param %d from %s, %d chunks remaining: %s",
				entry.Index, entry.Origin, entry.ChunksRemaining, entry.Data))
		}),
	}

	// ParamWriteCmd writes a parameter value.
	ParamWriteCmd = ishell.Cmd{
		Name:    "param.write",
		Aliases: []string{"pw"},
		Help:    "DEST INDEX VALUE...",
		Func: sh.MustBeConnected(func(c *ishell.Context, s *sh.Session) {
			if len(c.Args) < 3 {
				c.Err(fmt.Errorf("DEST INDEX VALUE required"))
				return
			}
			dest, err := ParseAddress(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			values, err := ParseBytes(c.Args[1:])
			if err != nil {
				c.Err(err)
				return
			}
			frame, err := crsf.ParamWriteFrame(dest, Origin, values[0], values[1:])
			if err == nil {
				err = s.Send(frame)
			}
			if err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, map[string]string{"sent": frame.String()}, "OK")
		}),
	}

	// ChannelsCmd sends one channels frame.
	ChannelsCmd = ishell.Cmd{
		Name:    "channels",
		Aliases: []string{"ch"},
		Help:    "CH=US...",
		Func: sh.MustBeConnected(func(c *ishell.Context, s *sh.Session) {
			ch, err := ParseChannels(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			if err = s.Send(crsf.ChannelsFrame(crsf.AddrSync, &ch)); err != nil {
				c.Err(err)
				return
			}
			sh.Output(c, ch, fmt.Sprintf("%v", ch))
		}),
	}

	// LinkCmd prints the last link statistics.
	LinkCmd = ishell.Cmd{
		Name: "link",
		Func: sh.MustBeConnected(func(c *ishell.Context, s *sh.Session) {
			ls := s.LinkStatistics()
			if ls == nil {
				c.Err(fmt.Errorf("no link statistics received"))
				return
			}
			sh.Output(c, ls, fmt.Sprintf("rssi %d/%d dBm lq %d%% snr %d, downlink rssi %d dBm lq %d%%",
				ls.UplinkRSSI1, ls.UplinkRSSI2, ls.UplinkLQ, ls.UplinkSNR, ls.DownlinkRSSI, ls.DownlinkLQ))
		}),
	}

	// MonitorCmd prints received frames for a while.
	MonitorCmd = ishell.Cmd{
		Name:    "monitor",
		Aliases: []string{"mon"},
		Help:    "[DURATION]",
		Func: sh.MustBeConnected(func(c *ishell.Context, s *sh.Session) {
			dur, err := argSeconds(c.Args, 10*time.Second)
			if err != nil {
				c.Err(err)
				return
			}
			frames := make(chan crsf.Frame, 64)
			unwatch := s.Watch(func(f crsf.Frame) {
				select {
				case frames <- f.Clone():
				default:
				}
			})
			defer unwatch()
			ctx, cancel := context.WithTimeout(context.Background(), dur)
			defer cancel()
			for {
				select {
				case f := <-frames:
					c.Println(f.String())
				case <-ctx.Done():
					return
				}
			}
		}),
	}
)

func init() {
	sh.AddCmds(
		&PingCmd,
		&DevicesCmd,
		&ParamReadCmd,
		&ParamWriteCmd,
		&ChannelsCmd,
		&LinkCmd,
		&MonitorCmd,
	)
}
