package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/vjranagit/lkext/pkg/api"
)

// shutdownTimeout is used when the configured server timeout is unset
const shutdownTimeout = 30 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the local query API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address (overrides config)",
			},
			&cli.StringSliceFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Data root to search (overrides config)",
			},
		},
		Action: func(c *cli.Context) error {
			e, err := setup(c)
			if err != nil {
				return err
			}
			defer e.close()
			if addr := c.String("listen"); addr != "" {
				e.cfg.Server.ListenAddr = addr
			}

			if err := e.openCache(); err != nil {
				return err
			}
			resolver, err := e.resolver(c.StringSlice("root"))
			if err != nil {
				return err
			}

			e.logger.Info("configuration loaded",
				"listen_addr", e.cfg.Server.ListenAddr,
				"cache_dir", e.cfg.Storage.Path,
				"roots", resolver.Roots())

			server := api.NewServer(e.cfg.Server.ListenAddr, resolver, e.dirs, e.logger)
			errCh := make(chan error, 1)
			go func() {
				if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			select {
			case err := <-errCh:
				return err
			case <-sigChan:
				e.logger.Info("shutdown signal received, stopping server")
			}

			timeout := e.cfg.Server.Timeout
			if timeout <= 0 {
				timeout = shutdownTimeout
			}
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if err := server.Stop(ctx); err != nil {
				e.logger.Error("server shutdown error", "err", err)
				return err
			}
			e.logger.Info("server stopped")
			return nil
		},
	}
}
