package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/robotalks/crsfbridge/pkg/bridge"
	"github.com/robotalks/crsfbridge/pkg/capture"
	"github.com/robotalks/crsfbridge/pkg/discovery"
	fx "github.com/robotalks/crsfbridge/pkg/framework"
	"github.com/robotalks/crsfbridge/pkg/httpapi"
	"github.com/robotalks/crsfbridge/pkg/telemetry"
)

// To be set via go build -ldflags "-X main.buildVersion=$(git describe --dirty) -X main.buildDate=$(date -u +%FT%TZ)"
var buildVersion = "unspecified"
var buildDate = "unknown"

var configFile string

func init() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	pflag.StringVarP(&configFile, "config", "c", "", "YAML config file, command line flags take precedence.")
	bridge.SetupFlags(pflag.CommandLine)
}

func parseFlags() *bridge.Config {
	pflag.Parse()
	// marks glog flags parsed
	flag.CommandLine.Parse(nil)
	if configFile != "" {
		if err := bridge.Default().Load(configFile); err != nil {
			glog.Exit(err)
		}
		pflag.CommandLine.Parse(os.Args[1:])
	}
	return bridge.NewConfig()
}

func main() {
	conf := parseFlags()
	defer glog.Flush()

	b, err := conf.NewBridge()
	if err != nil {
		glog.Exit(err)
	}
	defer b.Close()

	loop := fx.NewLoop()
	loop.Interval = conf.PollInterval

	if conf.HTTPAddr != "" {
		srv := httpapi.NewServer(conf.HTTPAddr, b, httpapi.VersionInfo{Version: buildVersion, BuildDate: buildDate})
		b.AddObserver(srv)
		loop.AddRunnable(srv)
		if conf.Announce != "" {
			announcer, err := discovery.NewAnnouncer(conf.Announce, conf.HTTPAddr, telemetry.DeviceID())
			if err != nil {
				glog.Exit(err)
			}
			loop.AddRunnable(announcer)
		}
	}
	if conf.MQTTURL != "" {
		q, err := telemetry.NewQueueFromURL(conf.MQTTURL)
		if err != nil {
			glog.Exit(err)
		}
		defer q.Close()
		pub := telemetry.NewPublisher(q, b, conf.MQTTInterval)
		b.OnLinkStatistics = pub.LinkStatistics
		loop.AddRunnable(pub)
	}
	if conf.Capture != "" {
		rec, err := capture.NewRecorder(conf.Capture)
		if err != nil {
			glog.Exit(err)
		}
		b.AddObserver(rec)
		loop.AddRunnable(rec)
	}

	if err := b.Begin(); err != nil {
		glog.Exit(err)
	}
	glog.Infof("bridging %s <-> %s", conf.HostLink, conf.ModuleLink)

	runner := fx.NewRunner().HandleSignals()
	runner.Go(fx.NamedRun("loop", fx.RunFunc(func(ctx context.Context) error {
		return loop.Add(b).Run(ctx)
	})))
	if err := runner.Wait(); err != nil {
		glog.Error(err)
	}
}
