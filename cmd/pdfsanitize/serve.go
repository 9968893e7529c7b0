package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mechiko/pdfsanitize/internal/httpapi"
	"go.uber.org/zap"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	shared := &sharedFlags{}
	registerSharedFlags(fs, shared)

	var (
		host    string
		port    string
		verbose bool
	)
	fs.StringVar(&host, "host", "127.0.0.1", "bind address; loopback only unless fronted by a reverse proxy")
	fs.StringVar(&port, "port", "8888", "bind port")
	fs.BoolVar(&verbose, "verbose", false, "enable debug-level request logging")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	log, err := newServiceLogger(verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfsanitize serve: build logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	ctrl, err := buildController(shared)
	if err != nil {
		log.Error("failed to build controller", zap.Error(err))
		return 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobs := httpapi.NewJobService(ctx, ctrl)

	srv, err := httpapi.New(host, port, jobs, log)
	if err != nil {
		log.Error("failed to build server", zap.Error(err))
		return 1
	}

	srv.Start()
	log.Info("listening", zap.String("host", host), zap.String("port", port))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-srv.Notify():
		if err != nil {
			log.Error("server stopped", zap.Error(err))
			return 1
		}
	case <-sig:
		log.Info("shutting down")
		if err := srv.Shutdown(); err != nil {
			log.Error("graceful shutdown failed", zap.Error(err))
			return 1
		}
	}
	return 0
}

func newServiceLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
