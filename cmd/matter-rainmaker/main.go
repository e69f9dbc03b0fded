package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"matter-rainmaker/internal/app"
	"matter-rainmaker/internal/console"
	"matter-rainmaker/internal/store"
	"matter-rainmaker/internal/web"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "matter-rainmaker",
	Short:        "Matter color temperature light mirrored to ESP RainMaker",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), false)
	},
}

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Run the device with an interactive command line",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context(), true)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate the configuration and print it with defaults applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		out, err := yaml.Marshal(cfg.redacted())
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to the configuration file")
	rootCmd.Version = version
	rootCmd.AddCommand(consoleCmd, configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, interactive bool) error {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		return err
	}
	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		return err
	}

	// Keep the prompt clean in console mode.
	var stdout io.Writer = os.Stdout
	if interactive {
		stdout = os.Stderr
	}
	logger, logCloser := newLogger(cfg, stdout)
	defer logCloser.Close()
	slog.SetDefault(logger)
	logger.Info("matter-rainmaker starting", "version", version)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	appCfg := cfg.appConfig()
	if cfg.Store.Path != "" {
		db, err := store.NewBoltStore(cfg.Store.Path)
		if err != nil {
			logger.Error("open store", "err", err)
			return err
		}
		defer db.Close()
		appCfg.Store = db
	}

	// Script hooks must be registered before the driver's.
	auto := initAutomation(cfg, logger)
	appCfg.Policy = auto.Policy()

	startCtx, startCancel := context.WithTimeout(ctx, 30*time.Second)
	device, err := app.New(startCtx, appCfg, logger)
	startCancel()
	if err != nil {
		logger.Error("create device", "err", err)
		return err
	}
	device.Light().SetButtonEndpoint(cfg.Light.ButtonEndpoint)
	logger.Info("device ready", "node_id", device.RainMaker().ID(), "endpoint", device.LightEndpoint())

	// Start automation engine (no-op when built with no_automation tag).
	auto.Start()
	defer auto.Stop()

	// Start MQTT reporting (no-op when built with no_mqtt tag).
	mqtt := initMQTT(device, cfg, logger)
	defer mqtt.Stop()

	// Start web server
	var webOpts []web.ServerOption
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, web.WithVersion(version))
	webOpts = append(webOpts, auto.WebOptions()...)
	webServer := web.NewServer(device, logger, webOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
		}
	}()

	if cfg.Web.MDNS {
		adv, err := web.Advertise(cfg.Node.Name, cfg.Web.Listen, device.RainMaker().ID(), logger)
		if err != nil {
			logger.Warn("mdns", "err", err)
		} else {
			defer adv.Shutdown()
		}
	}

	if interactive {
		go func() {
			if err := console.New(device).Run(ctx, cancel); err != nil {
				logger.Error("console", "err", err)
				cancel()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()

	logger.Info("goodbye")
	return nil
}
