package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/regex-relay/internal/config"
	"github.com/raaihank/regex-relay/internal/logger"
	"github.com/raaihank/regex-relay/internal/session"
	"github.com/raaihank/regex-relay/internal/store"
)

var version = "0.1.0"

// rootOpts holds what every subcommand shares
type rootOpts struct {
	configPath string
	logLevel   string

	config *config.Config
	logger *logger.Logger
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	cmd := &cobra.Command{
		Use:           "rrctl",
		Short:         "Manage and run regex find/replace rule groups",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				opts.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "configuration file path")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newApplyCmd(opts),
		newAgentCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newSlotCmd(opts),
		newHotkeyCmd(opts),
	)

	return cmd
}

// setup loads configuration and builds the logger
func (o *rootOpts) setup() error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}

	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}

	o.config = cfg
	o.logger = log
	return nil
}

// openSession opens the configured storage and loads the editing session.
// The returned func saves pending edits and closes the storage.
func (o *rootOpts) openSession(ctx context.Context) (*session.Session, *store.Repository, func(), error) {
	kv, err := store.Open(o.config.Storage, o.logger.WithComponent("store").Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	repo := store.NewRepository(kv, o.logger.WithComponent("store").Logger)
	sess := session.New(repo, 0, o.logger.WithComponent("session").Logger)
	if err := sess.Load(ctx); err != nil {
		kv.Close()
		return nil, nil, nil, fmt.Errorf("loading rule groups: %w", err)
	}

	closeFn := func() {
		if err := sess.Close(context.Background()); err != nil {
			o.logger.Error("Failed to save pending edits", zap.Error(err))
		}
		kv.Close()
	}
	return sess, repo, closeFn, nil
}
