package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/dataspect/dataspect/internal/config"
	"github.com/dataspect/dataspect/internal/home"
	"github.com/dataspect/dataspect/internal/server"
)

var (
	serveHost string
	servePort string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dataspect server",
	Long: `Start the dataspect HTTP server.

Uploads, job artifacts, and notebook templates live under the dataspect
home directory. Jobs run on detached goroutines and are polled over HTTP.

Examples:
  dataspect serve                    # Start on default port 8080
  dataspect serve --port 3000        # Start on custom port
  dataspect serve --host 0.0.0.0     # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		cfgPath := cfgFile
		if cfgPath == "" && h.ConfigExists() {
			cfgPath = h.ConfigPath()
		}
		cm, err := config.NewManager(cfgPath)
		if err != nil {
			return err
		}

		logger := buildLogger(cm.Get().Log)
		slog.SetDefault(logger)

		cm.OnChange(func(*config.Config) {
			logger.Info("configuration reloaded; engine and LLM changes apply after restart")
		})
		cm.WatchConfig()

		host := serveHost
		if host == "" {
			host = cm.Get().Server.Host
		}
		port := servePort
		if port == "" {
			port = cm.Get().Server.Port
		}

		srv, err := server.New(server.Config{
			Host:          host,
			Port:          port,
			Home:          h,
			ConfigManager: cm,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Blocks until shutdown
		return srv.Start(ctx)
	},
}

// buildLogger selects the console (tint) or JSON slog handler from config.
func buildLogger(cfg config.LogCfg) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")

	rootCmd.AddCommand(serveCmd)
}
