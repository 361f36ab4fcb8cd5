package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"lnskit/internal/api"
	"lnskit/internal/config"
	"lnskit/internal/events"
	"lnskit/internal/logger"
	"lnskit/internal/metrics"
	"lnskit/internal/store"
	"lnskit/internal/webhooks"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API that queues and streams solver runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log, err := newLogger(cfg.Logging, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()
	broker, err := openBroker(cfg.Broker, logger.Component(log, "broker"))
	if err != nil {
		return fmt.Errorf("broker: %w", err)
	}
	defer broker.Close()

	metrics.RegisterDefault()
	srv := api.NewServer(cfg.Server, cfg.Solver, st, broker, logger.Component(log, "api"))
	if cfg.Webhook.URL != "" {
		srv.SetNotifier(webhooks.NewNotifier(cfg.Webhook.URL, cfg.Webhook.Secret, cfg.Webhook.MaxAttempts, logger.Component(log, "webhooks")))
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return <-errc
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	if cfg.Driver != "postgres" {
		return store.NewMemory(), nil
	}
	pg, err := store.NewPostgres(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := pg.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, err
		}
	}
	return pg, nil
}

func openBroker(cfg config.BrokerConfig, log zerolog.Logger) (events.Broker, error) {
	if cfg.Driver != "redis" {
		return events.NewMemory(), nil
	}
	return events.NewRedis(cfg.URL, cfg.Prefix, log)
}
