package app

import (
	"context"
	"errors"
	"io"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"dragon-mcp/internal/httpapi"
	"dragon-mcp/internal/mcpserver"
)

// Serve runs the HTTP API, and the snapshot monitor alongside it when asked,
// until a signal arrives or either component fails.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ts, client, err := a.newToolset()
	if err != nil {
		return err
	}
	defer client.Close()

	counter, closeCounter, err := a.newCounter(ctx)
	if err != nil {
		return err
	}
	defer closeCounter()

	api := httpapi.NewServer(a.Config.HTTP, ts, counter, a.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Run(gctx)
	})
	if opts.WithMonitor {
		g.Go(func() error {
			return a.runMonitor(gctx, a.newOracle(client).Aggregator())
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("server terminated with error")
		return err
	}
	a.Logger.Info().Msg("server stopped")
	return nil
}

// MCP speaks the Model Context Protocol on in/out. Logs must not go to out.
func (a *App) MCP(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ts, client, err := a.newToolset()
	if err != nil {
		return err
	}
	defer client.Close()

	return mcpserver.New(ts, a.Logger).Serve(ctx, in, out)
}
