package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bclt-academy/voicequiz/pkg/bridge"
	"github.com/bclt-academy/voicequiz/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose the conversation to a browser or kiosk over WebSocket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), app)
		},
	}
	cmd.Flags().String("addr", ":8090", "listen address for the bridge")
	cmd.Flags().StringSlice("allowed-origins", nil, "browser origins allowed to connect")
	app.bind(cmd.Flags(), map[string]string{
		"serve.addr":            "addr",
		"serve.allowed_origins": "allowed-origins",
	})
	return cmd
}

func serve(ctx context.Context, app *cli) error {
	cfg := app.cfg

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(metrics.DefaultNamespace)
	}
	s := buildStack(cfg, m)
	defer s.Close()

	var opts []bridge.Option
	if m != nil && cfg.Metrics.Addr == "" {
		opts = append(opts, bridge.WithMetricsHandler(m.Handler()))
	}
	b := bridge.New(s.ctrl, bridge.Config{
		AllowedOrigins: cfg.Serve.AllowedOrigins,
		PingInterval:   cfg.Serve.PingInterval,
		WriteTimeout:   cfg.Serve.WriteTimeout,
	}, opts...)

	servers := []*http.Server{{Addr: cfg.Serve.Addr, Handler: b.Handler(), ReadHeaderTimeout: 10 * time.Second}}
	if m != nil && cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		servers = append(servers, &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := b.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			log.Info().Str("component", "bridge").Str("addr", srv.Addr).Msg("listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return errors.Wrapf(err, "listen %s", srv.Addr)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Warn().Str("component", "bridge").Err(err).Msg("shutdown")
			}
		}
		return nil
	})
	return g.Wait()
}
