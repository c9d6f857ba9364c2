// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pgtest/injection-points/injection/api"
	"github.com/pgtest/injection-points/injection/core"
	"github.com/pgtest/injection-points/injection/exithook"
	"github.com/pgtest/injection-points/injection/points"
	"github.com/pgtest/injection-points/injection/scenario"
	"github.com/pgtest/injection-points/injection/shmem"
	"github.com/pgtest/injection-points/injection/waitevent"
)

type serveCommand struct {
	Listen  string `long:"listen" default:"127.0.0.1:9090" env:"INJECTION_POINTS_LISTEN" description:"address of the API server"`
	ShmDir  string `long:"shm-dir" default:"/dev/shm" env:"INJECTION_POINTS_SHM_DIR" description:"directory backing the shared segments"`
	Heap    bool   `long:"heap" description:"keep the shared segments in process memory"`
	Preload string `long:"preload" env:"INJECTION_POINTS_PRELOAD" description:"YAML scenario of points to attach at startup"`
	Local   bool   `long:"local" description:"link every point attached by this process to it"`

	// ready, when set, receives the server once it listens.
	ready chan<- *api.Server
}

// Execute runs the server until SIGINT or SIGTERM, then runs the exit
// hooks, detaching the points linked to this process.
func (c *serveCommand) Execute(args []string) (err error) {
	if err := setup(); err != nil {
		return err
	}

	host, port, err := splitListen(c.Listen)
	if err != nil {
		return err
	}

	provider, err := c.provider()
	if err != nil {
		return err
	}

	hooks := exithook.NewRegistry()
	defer func() {
		if r := recover(); r != nil {
			hooks.Run(2)
			panic(r)
		}
		if err != nil {
			hooks.Run(1)
		} else {
			hooks.Run(0)
		}
	}()

	facility := points.New(provider)
	events := waitevent.NewRegistry()
	module := core.NewModule(core.Config{
		Provider:   provider,
		Facility:   facility,
		WaitEvents: events,
		ExitHooks:  hooks,
	})

	if c.Local {
		if err := module.SetLocal(); err != nil {
			return err
		}
	}
	if c.Preload != "" {
		s, err := scenario.Load(c.Preload)
		if err != nil {
			return err
		}
		if err := s.Apply(module); err != nil {
			return err
		}
	}

	// Signals are trapped before the server is reachable.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	server := api.NewServer(host, port, module, facility, events)
	if err := server.Listen(); err != nil {
		return fmt.Errorf("listen on %s: %w", c.Listen, err)
	}
	if c.ready != nil {
		c.ready <- server
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Serve(ctx) })
	g.Go(func() error {
		signalHandler(ctx, sig, cancel)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (c *serveCommand) provider() (shmem.Provider, error) {
	if c.Heap {
		log.Info("Shared segments are local to this process")
		return shmem.NewHeapProvider(), nil
	}
	provider, err := shmem.NewFileProvider(c.ShmDir)
	if err != nil {
		return nil, err
	}
	log.WithField("dir", provider.Dir()).Info("Shared segments are backed by files")
	return provider, nil
}

// Wait for SIGINT or SIGTERM and call shutdown function
func signalHandler(ctx context.Context, sig <-chan os.Signal, shutdown context.CancelFunc) {
	select {
	case sigReceived := <-sig:
		log.WithField("signal", sigReceived.String()).Info("Received signal")
		shutdown()
	case <-ctx.Done():
	}
}

func splitListen(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return "", 0, fmt.Errorf("invalid listen port %q", portStr)
	}
	return host, port, nil
}
