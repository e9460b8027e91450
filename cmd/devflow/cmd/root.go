// Package cmd implements the devflow command line.
package cmd

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dshills/devflow/flow/credential"
	"github.com/dshills/devflow/flow/model"
	"github.com/dshills/devflow/flow/store"
	"github.com/dshills/devflow/internal/config"
	"github.com/dshills/devflow/internal/logging"
)

// app holds what every subcommand shares. The hook fields are replaced in
// tests.
type app struct {
	v       *viper.Viper
	cfgFile string
	out     io.Writer
	errOut  io.Writer

	cfg    *config.Config
	logger *slog.Logger

	openStore    func(ctx context.Context, cfg *config.Config) (store.Store, error)
	credentials  func(cfg *config.Config) credential.Store
	newChatModel func(ctx context.Context, providerID, apiKey, modelName string) (model.ChatModel, error)
}

// Execute runs the root command against os.Args. An interrupt stops a run
// between steps; the step in progress is still recorded.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd(newApp(os.Stdout, os.Stderr)).ExecuteContext(ctx)
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		v:            viper.New(),
		out:          out,
		errOut:       errOut,
		openStore:    openStore,
		credentials:  credentialStore,
		newChatModel: newChatModel,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "devflow",
		Short: "Route tasks to model providers and run four-stage project workflows",
		Long: `devflow turns a project's requirements into a design, development,
testing and deployment plan. Each stage is refined by the model provider
routed for its task category, falling back to a secondary provider when the
preferred one has no credential.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: .devflow.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-format", "auto", "log format (auto, text, json)")
	flags.String("store", config.DriverSQLite, "store driver (memory, sqlite, mysql, postgres)")
	flags.String("dsn", "devflow.db", "store data source name")

	// Errors are nil when the flag exists.
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))
	_ = a.v.BindPFlag("store.driver", flags.Lookup("store"))
	_ = a.v.BindPFlag("store.dsn", flags.Lookup("dsn"))

	root.AddCommand(
		newRoutesCmd(a),
		newCreateCmd(a),
		newRunCmd(a),
		newShowCmd(a),
		newListCmd(a),
	)
	return root
}

func (a *app) init() error {
	loader := config.NewLoaderWithViper(a.v)
	if a.cfgFile != "" {
		loader.WithConfigFile(a.cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: a.errOut,
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	if used := loader.ConfigFileUsed(); used != "" {
		logger.Debug("loaded config", "file", used)
	}
	return nil
}
