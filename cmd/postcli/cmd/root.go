package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/post-engine/compute"
	"github.com/spacemeshos/post-engine/config"
	"github.com/spacemeshos/post-engine/metrics"
)

var (
	// Version is the version of the binary.
	Version string

	// Commit is the commit hash of the binary.
	Commit string

	configFile  string
	logLevel    string
	metricsAddr string

	file = config.File{
		Config:  config.MainnetConfig(),
		Init:    config.MainnetInitOpts(),
		Proving: config.DefaultProvingOpts(),
	}

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "postcli",
	Short: "Create, prove and verify proofs of space-time",
	Long: `postcli initializes PoST data for an identity, generates proofs of space over it
and verifies proofs and stored data. For more details take a look at the subcommands.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		if err := setupLogger(); err != nil {
			return err
		}
		return serveMetrics(cmd.Context())
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the command selected by the arguments of the process.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (%s)", Version, Commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "path to a configuration file (toml, yaml or json)")
	flags.StringVar(&logLevel, "log-level", zapcore.InfoLevel.String(), "log level (debug, info, warn, error)")
	flags.StringVar(&metricsAddr, "metrics", "", "address to serve prometheus metrics on, e.g. localhost:9090")
	flags.StringVar(&file.Init.DataDir, "datadir", file.Init.DataDir, "filesystem datadir path")
	addProtocolFlags(flags, &file.Config)
}

func addProtocolFlags(flags *pflag.FlagSet, cfg *config.Config) {
	flags.Uint64Var(&cfg.LabelsPerUnit, "labels-per-unit", cfg.LabelsPerUnit, "the number of labels per unit")
	flags.Uint32Var(&cfg.MinNumUnits, "min-numunits", cfg.MinNumUnits, "the minimum number of units of a proof")
	flags.Uint32Var(&cfg.MaxNumUnits, "max-numunits", cfg.MaxNumUnits, "the maximum number of units of a proof")
	flags.Uint32Var(&cfg.K1, "k1", cfg.K1, "expected number of qualifying labels per nonce")
	flags.Uint32Var(&cfg.K2, "k2", cfg.K2, "number of indices of a proof")
	flags.Uint32Var(&cfg.K3, "k3", cfg.K3, "number of indices checked by the verifier")
}

// loadConfig reads the configuration file on top of the defaults. Flags given on the command line
// take precedence over the file.
func loadConfig(cmd *cobra.Command) error {
	if configFile == "" {
		return nil
	}

	changed := make(map[string]string)
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = f.Value.String()
	})

	loaded, err := config.LoadFile(configFile, file)
	if err != nil {
		return err
	}
	file = loaded

	for name, value := range changed {
		if err := cmd.Flags().Set(name, value); err != nil {
			return fmt.Errorf("re-applying flag %s: %w", name, err)
		}
	}
	return nil
}

func setupLogger() error {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	zapCfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(level),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "T",
			LevelKey:       "L",
			NameKey:        "N",
			MessageKey:     "M",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
		},
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err = zapCfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize zap logger: %w", err)
	}
	compute.SetLogCallback(logger)
	return nil
}

func serveMetrics(ctx context.Context) error {
	if metricsAddr == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              metricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", zap.String("addr", metricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	return nil
}
