package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/alexbotov/xumm/internal/config"
	"github.com/alexbotov/xumm/internal/webhook"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var fetch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook receiver and the metrics endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !a.cfg.Webhook.Enabled() && !a.cfg.Metrics.Enabled() {
				return fmt.Errorf("nothing to serve: set XUMM_WEBHOOK_ADDR or XUMM_METRICS_ADDR")
			}
			router, err := a.webhookRouter(fetch)
			if err != nil {
				return err
			}
			return a.serve(cmd.Context(), router)
		},
	}
	cmd.Flags().BoolVar(&fetch, "fetch", true, "fetch the payload for every received webhook")
	return cmd
}

// webhookRouter builds the webhook routes with metrics mounted on /metrics
func (a *app) webhookRouter(fetch bool) (http.Handler, error) {
	opts := []webhook.Option{webhook.WithSecret(a.cfg.API.Secret)}
	if fetch {
		client, err := a.secretClient()
		if err != nil {
			return nil, err
		}
		opts = append(opts, webhook.WithFetcher(client.Payload))
	}

	h := webhook.New(a.log, webhook.ReceiverFunc(a.receiveWebhook), opts...)
	return h.SetupRouter(a.metrics.Handler()), nil
}

func (a *app) receiveWebhook(_ context.Context, ev *webhook.Event) error {
	fields := []zap.Field{
		zap.String("uuid", ev.Body.Meta.PayloadUUIDv4),
		zap.Bool("signed", ev.Body.PayloadResponse.Signed),
	}
	if ev.Body.PayloadResponse.TxID != "" {
		fields = append(fields, zap.String("txid", ev.Body.PayloadResponse.TxID))
	}
	if ev.Payload != nil {
		fields = append(fields, zap.Bool("resolved", ev.Payload.Meta.Resolved))
	}
	a.log.Info("webhook received", fields...)
	return a.print(ev)
}

// serve runs the configured servers until ctx is done
func (a *app) serve(ctx context.Context, router http.Handler) error {
	g, ctx := errgroup.WithContext(ctx)

	var servers []*http.Server
	if a.cfg.Webhook.Enabled() {
		servers = append(servers, newServer(a.cfg.Webhook, router))
	}
	if a.cfg.Metrics.Enabled() && a.cfg.Metrics.Addr != a.cfg.Webhook.Addr {
		servers = append(servers, newServer(a.cfg.Metrics, a.metrics.Handler()))
	}

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			a.log.Info("server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		a.log.Info("servers stopped")
		return errors.Join(errs...)
	})

	return g.Wait()
}

func newServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
}
