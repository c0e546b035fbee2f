// Package cli implements the xumm command line client
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/alexbotov/xumm/internal/config"
	"github.com/alexbotov/xumm/internal/jwtstore"
	"github.com/alexbotov/xumm/internal/logging"
	"github.com/alexbotov/xumm/internal/metrics"
	"github.com/alexbotov/xumm/pkg/xumm"
)

// app carries what every command needs once flags are parsed
type app struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Observer

	mu  sync.Mutex
	out io.Writer
}

// NewRootCommand builds the xumm command tree
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "xumm",
		Short:         "Command line client for the XUMM platform API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to a TOML config file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level, overrides XUMM_LOG_LEVEL")

	root.AddCommand(
		newVersionCommand(a),
		newPingCommand(a),
		newAuthorizeCommand(a),
		newPayloadCommand(a),
		newStorageCommand(a),
		newRatesCommand(a),
		newServeCommand(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	a.metrics = metrics.New()
	a.out = cmd.OutOrStdout()
	return nil
}

// tokenStore opens the configured JWT store. The returned func releases it.
func (a *app) tokenStore(ctx context.Context) (xumm.TokenStore, func(), error) {
	if a.cfg.JWTStore.DSN == "" {
		return jwtstore.NewSlot(jwtstore.NewMemory(), a.cfg.API.Key), func() {}, nil
	}

	db, err := jwtstore.New(a.cfg.JWTStore.Driver, a.cfg.JWTStore.DSN)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if purged, err := db.Purge(ctx, timeNow()); err != nil {
		a.log.Warn("could not purge expired tokens", zap.Error(err))
	} else if purged > 0 {
		a.log.Debug("purged expired tokens", zap.Int64("count", purged))
	}
	return jwtstore.NewSlot(db, a.cfg.API.Key), func() { _ = db.Close() }, nil
}

// client builds an SDK client for flow
func (a *app) client(flow xumm.AuthFlow, store xumm.TokenStore) (*xumm.Client, error) {
	cc := a.cfg.ClientConfig()
	cc.Flow = flow
	cc.Logger = a.log
	cc.Observer = a.metrics
	cc.TokenStore = store

	client, err := xumm.NewClient(cc)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

func (a *app) secretClient() (*xumm.Client, error) {
	return a.client(xumm.FlowAPISecret, nil)
}

// print writes v as indented JSON
func (a *app) print(v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newVersionCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the SDK version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(a.out, "xumm-sdk-go %s\n", xumm.Version)
			return err
		},
	}
}
