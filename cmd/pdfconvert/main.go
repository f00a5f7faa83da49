package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"

	"pdfconvert/internal/config"
	"pdfconvert/internal/conversion"
	"pdfconvert/internal/http/server"
	"pdfconvert/internal/infra/audit"
	"pdfconvert/internal/infra/chrome"
	"pdfconvert/internal/infra/logging"
	"pdfconvert/internal/infra/render"
	"pdfconvert/internal/infra/scratch"
)

func main() {
	configPath, err := parseFlags(os.Args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}
	if configPath != "" {
		_ = os.Setenv("CONFIG_PATH", configPath)
	}

	cfg := config.Load()
	logging.InitLogger(
		cfg.Logger.File,
		cfg.Logger.MaxSizeMB,
		cfg.Logger.MaxBackups,
		cfg.Logger.MaxAgeDays,
		cfg.Logger.Compress,
		cfg.Logger.Level,
	)
	logging.SetLogLevel(cfg.Logger.Level)

	recorder, err := audit.New(cfg.Audit)
	if err != nil {
		logging.Error("Audit recorder unavailable, conversions will not be recorded", "driver", cfg.Audit.Driver, "error", err)
		recorder = audit.Nop{}
	}
	defer recorder.Close()

	svc := conversion.NewService(scratch.NewManager(cfg.Renderer.ScratchDir), newEngine(cfg.Renderer), recorder)
	app := server.New(server.Deps{Config: cfg, Service: svc})

	idleConnsClosed := make(chan struct{})
	startServer(app, cfg, idleConnsClosed)
	<-idleConnsClosed
}

// parseFlags returns the --config value, if any.
func parseFlags(args []string) (string, error) {
	flags := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	configPath := flags.String("config", "", "path to the YAML config (overrides CONFIG_PATH)")
	if err := flags.Parse(args[1:]); err != nil {
		return "", err
	}
	return *configPath, nil
}

func newEngine(cfg config.RendererConfig) conversion.Engine {
	if cfg.Engine == config.EngineChrome {
		return chrome.NewEngine(cfg)
	}
	return render.NewInvoker(cfg)
}

// startServer starts the Fiber app and listens for shutdown signals
func startServer(app *fiber.App, cfg config.Config, idleConnsClosed chan struct{}) {
	go func() {
		logging.Info("Server listening", "addr", cfg.Server.Host+cfg.Server.Port, "engine", cfg.Renderer.Engine)
		if err := app.Listen(cfg.Server.Host + cfg.Server.Port); err != nil {
			logging.Error("Server error", "error", err)
		}
	}()

	// Listen for OS termination signals
	sigint := make(chan os.Signal, 1)
	signal.Notify(sigint, syscall.SIGINT, syscall.SIGTERM)
	<-sigint
	signal.Stop(sigint)

	logging.Warn("Shutdown signal received, closing server...")

	// In-flight renders are bounded by the renderer timeout.
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Renderer.TimeoutSecs+5)*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
	}

	close(idleConnsClosed)
	logging.Info("Server stopped cleanly")
}
