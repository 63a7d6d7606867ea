// Package discovery announces the bridge HTTP service with DNS-SD.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/brutella/dnssd"
	"github.com/golang/glog"
)

// ServiceType is the DNS-SD service type of the bridge.
const ServiceType = "_crsfbridge._tcp"

// Announcer is a framework.Runnable announcing one service.
type Announcer struct {
	Config dnssd.Config
}

// ServiceConfig builds the service config for an HTTP listen address like
// ":8420". Without a name the host name is used.
func ServiceConfig(name, listenAddr, deviceID string) (dnssd.Config, error) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return dnssd.Config{}, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 0xffff {
		return dnssd.Config{}, fmt.Errorf("invalid port %q", portStr)
	}
	if name == "" {
		if name, err = os.Hostname(); err != nil {
			name = "crsfbridge"
		}
	}
	conf := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
	}
	if deviceID != "" {
		conf.Text = map[string]string{"id": deviceID}
	}
	return conf, nil
}

// NewAnnouncer creates an Announcer.
func NewAnnouncer(name, listenAddr, deviceID string) (*Announcer, error) {
	conf, err := ServiceConfig(name, listenAddr, deviceID)
	if err != nil {
		return nil, err
	}
	return &Announcer{Config: conf}, nil
}

// Name implements framework.Named.
func (a *Announcer) Name() string {
	return "dnssd"
}

// Run implements framework.Runnable. It responds to queries until ctx is
// canceled.
func (a *Announcer) Run(ctx context.Context) error {
	sv, err := dnssd.NewService(a.Config)
	if err != nil {
		return fmt.Errorf("dns-sd service: %w", err)
	}
	rp, err := dnssd.NewResponder()
	if err != nil {
		return fmt.Errorf("dns-sd responder: %w", err)
	}
	if _, err = rp.Add(sv); err != nil {
		return fmt.Errorf("dns-sd add: %w", err)
	}
	glog.Infof("dns-sd: announcing %s %q on port %d", a.Config.Type, a.Config.Name, a.Config.Port)
	if err = rp.Respond(ctx); err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
