package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	goalscmd "github.com/louisbranch/attain.works/internal/cmd/goals"
)

func main() {
	cfg, err := goalscmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[GOALS] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := goalscmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to run: %v", err)
	}
}
