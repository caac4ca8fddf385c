package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"sort"
	"syscall"

	"github.com/chopralab/sciborg/pkg/microservice"
)

// ServeCmd exposes a driver microservice over HTTP.
type ServeCmd struct {
	Driver string `help:"Driver to serve (microwave, liquid_handler)." default:"microwave"`
	Host   string `help:"Host to bind." default:""`
	Port   int    `help:"Port to listen on." default:"0"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	drv, err := builtinDriver(c.Driver)
	if err != nil {
		return err
	}

	srv, err := microservice.NewServer(&cfg.Server, drv.microservice)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(drv.microservice.Commands))
	for name := range drv.microservice.Commands {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("Serving %s on http://%s\n", drv.microservice.Name, srv.Addr())
	fmt.Printf("   Descriptor:  http://%s/descriptor\n", srv.Addr())
	fmt.Printf("   Health:      http://%s/healthz\n", srv.Addr())
	fmt.Println("   Commands:")
	for _, name := range names {
		fmt.Printf("     - POST http://%s/commands/%s\n", srv.Addr(), name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		slog.Info("Shutting down...")
		return srv.Shutdown(context.Background())
	}
}
