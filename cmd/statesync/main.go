package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/vango-dev/statesync/internal/config"
	"github.com/vango-dev/statesync/pkg/clipboard"
	"github.com/vango-dev/statesync/pkg/telemetry"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app carries what every command needs once the root has resolved the
// configuration.
type app struct {
	dir     string
	envFile string

	cfg       *config.Config
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	registry  *prometheus.Registry
	clipboard clipboard.Writer
	stderr    io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{clipboard: clipboard.System(), stderr: os.Stderr}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "statesync",
		Short: "Inspect the stores behind statesync hooks",
		Long: `statesync is operator tooling for the cookie, storage and clipboard
state that statesync hooks read and write.

Configuration is read from statesync.json, then from an optional .env
file, then from STATESYNC_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&a.dir, "dir", "C", ".", "Directory containing statesync.json")
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", "", "Load environment variables from this file first")

	rootCmd.AddCommand(
		cookieCmd(a),
		storageCmd(a),
		clipCmd(a),
		serveCmd(a),
		versionCmd(),
	)

	return rootCmd
}

// load resolves the configuration and builds the logger and metrics.
func (a *app) load() error {
	cfg, err := config.Resolve(a.dir, a.envFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.stderr == nil {
		a.stderr = os.Stderr
	}
	a.logger = cfg.Logger(a.stderr)
	a.registry = prometheus.NewRegistry()
	a.metrics = telemetry.New(
		telemetry.WithNamespace(cfg.Metrics.Namespace),
		telemetry.WithRegistry(a.registry),
	)
	return nil
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}
