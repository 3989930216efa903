package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/randalmurphal/flowdoc/pkg/flowdoc/collab"
	"github.com/randalmurphal/flowdoc/pkg/flowdoc/observability"
)

// ServeCmd runs the collaboration hub.
type ServeCmd struct {
	Addr        string        `default:":8080" help:"Listen address."`
	Backlog     int           `default:"1024" help:"Messages kept per collaboration session for pollers."`
	PresenceTTL time.Duration `default:"5s" help:"How long a silent session counts as present."`
	Prune       bool          `help:"Prune the configured store on its schedule while serving."`
	Metrics     bool          `help:"Record OpenTelemetry metrics."`
}

func (c *ServeCmd) Run(a *app) error {
	opts := []collab.HubOption{
		collab.WithBacklog(c.Backlog),
		collab.WithPresenceTTL(c.PresenceTTL),
		collab.WithHubLogger(a.logger),
	}
	if c.Metrics {
		opts = append(opts, collab.WithHubMetrics(observability.NewMetricsRecorder()))
	}
	hub := collab.NewHub(opts...)
	defer hub.Close()

	if c.Prune {
		st, err := a.settings.OpenStore()
		if err != nil {
			return err
		}
		defer st.Close()
		p, err := a.settings.OpenPruner(st, a.logger)
		if err != nil {
			return err
		}
		p.Start()
		defer p.Stop()
	}

	ln, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: hub, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	a.logger.Info("collaboration hub listening", "addr", ln.Addr().String())

	select {
	case err := <-errc:
		return err
	case <-a.ctx.Done():
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	_ = hub.Close()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
