// Package main starts the stackctl store inspection tool.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	stackctlcmd "github.com/louisbranch/graphstack/internal/cmd/stackctl"
)

func main() {
	cfg, err := stackctlcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[STACKCTL] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := stackctlcmd.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("stackctl: %v", err)
	}
}
