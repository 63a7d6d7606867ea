package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/robotalks/crsfbridge/pkg/cli/sh"

	_ "github.com/robotalks/crsfbridge/pkg/cli/cmds/device"
)

func init() {
	pflag.CommandLine.AddGoFlagSet(flag.CommandLine)
	sh.SetupFlags(pflag.CommandLine)
}

func main() {
	pflag.Parse()
	// marks glog flags parsed
	flag.CommandLine.Parse(nil)
	if err := sh.New(sh.NewConfig()).Run(pflag.Args()...); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
