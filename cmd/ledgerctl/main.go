// Package main runs the attendance maintenance CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/siteledger/internal/cmd/ledgerctl"
	"github.com/louisbranch/siteledger/internal/platform/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ledgerctl.Execute(ctx, os.Args[1:]); err != nil {
		stop()
		config.Exitf("Error: %v", err)
	}
}
