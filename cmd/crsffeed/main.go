package main

//go-build: CGO_ENABLED=0

import (
	"flag"

	"github.com/golang/glog"
	"github.com/spf13/pflag"

	"github.com/robotalks/crsfbridge/pkg/feeder"
	fx "github.com/robotalks/crsfbridge/pkg/framework"
)

func init() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	feeder.SetupFlags(pflag.CommandLine)
}

func main() {
	pflag.Parse()
	// marks glog flags parsed
	flag.CommandLine.Parse(nil)
	defer glog.Flush()

	f, link, err := feeder.NewConfig().NewFeeder()
	if err != nil {
		glog.Exit(err)
	}
	defer link.Close()

	if err := fx.NewRunner().HandleSignals().Go(f).Wait(); err != nil {
		glog.Error(err)
	}
}
