package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/libeanim/seafile-docker/internal/bootstrap"
	"github.com/libeanim/seafile-docker/internal/config"
)

var (
	cfgFile    string
	logLevel   string
	parsePorts bool

	// cfg is populated by PersistentPreRunE and shared with the run path.
	cfg *config.Config

	// app holds all wired dependencies; populated by PersistentPreRunE.
	app *AppContext
)

var rootCmd = &cobra.Command{
	Use:   "seafile-bootstrap",
	Short: "Container bootstrap for the seafile server",
	Long: `seafile-bootstrap prepares a seafile container on startup:
it renders the nginx/Dockerfile/cron artifacts, provisions a letsencrypt
certificate when enabled, waits for mysql and nginx to come up, and runs
the vendored setup script once per persistent volume. Subsequent starts
detect the persisted data and only refresh the version stamp.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "/bootstrap/bootstrap.conf", "path to bootstrap.conf")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.Flags().BoolVar(&parsePorts, "parse-ports", false, "print docker -p flags derived from server.port_mappings and exit")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		initLogger(logLevel)

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		app, err = buildAppContext(cfg)
		if err != nil {
			return fmt.Errorf("building app context: %w", err)
		}

		return nil
	}
}

func run(cmd *cobra.Command, args []string) error {
	if parsePorts {
		// Consumed verbatim by the outer launch script: tokens only, no
		// trailing newline, no filesystem side effects.
		fmt.Fprint(os.Stdout, bootstrap.ParsePortTokens(cfg.Server.PortMappings))
		return nil
	}

	return app.pipeline.Run(context.Background())
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initLogger(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	// Logs go to stderr: stdout is reserved for --parse-ports output.
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
