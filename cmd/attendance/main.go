// Package main starts the attendance service and handles termination.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	attendancecmd "github.com/louisbranch/siteledger/internal/cmd/attendance"
	"github.com/louisbranch/siteledger/internal/platform/config"
)

func main() {
	cfg, err := attendancecmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := attendancecmd.Run(ctx, cfg); err != nil {
		stop()
		config.Exitf("failed to serve: %v", err)
	}
}
