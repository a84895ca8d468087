package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"evsched/internal/api"
	"evsched/internal/config"
	"evsched/internal/events"
	"evsched/internal/listcache"
	appLog "evsched/internal/log"
	"evsched/internal/schema"
	"evsched/internal/web"
)

const version = "0.1.0"

type flagConfig struct {
	configPath string
	envPath    string
	listen     string
	backend    string
	debug      bool
}

func main() {
	flags := parseFlags()

	if err := config.LoadDotEnv(flags.envPath); err != nil {
		appLog.Error("failed to load env file", err, "path", flags.envPath)
		os.Exit(1)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if err := config.ApplyEnv(conf); err != nil {
		appLog.Error("invalid environment", err)
		os.Exit(1)
	}

	// CLI flags override file and environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}
	if flags.backend != "" {
		conf.Backend.URL = flags.backend
	}
	if flags.debug {
		conf.LogLevel = "debug"
	}
	conf.Normalize()

	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	appLog.Info("evsched starting", "version", version)

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", loc.String(),
		"backend", conf.BackendBaseURL(),
		"page_size", conf.PageSize,
		"refresh", conf.RefreshCron,
		"log_level", conf.LogLevel,
		"basic_auth", conf.BasicAuth != nil,
	)

	client, err := api.New(api.Options{
		BaseURL:    conf.BackendBaseURL(),
		Timeout:    conf.Timeout(),
		RatePerSec: conf.Backend.RatePerSec,
	})
	if err != nil {
		appLog.Error("failed to create backend client", err)
		os.Exit(1)
	}

	svc := events.NewService(client, schema.New(loc), listcache.NewTotalCount(), conf.PageSize)

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// A failed warm-up is not fatal; the first page request retries.
	loadCtx, cancelLoad := context.WithTimeout(ctx, conf.Timeout())
	if err := svc.Load(loadCtx); err != nil {
		appLog.Warn("initial load failed", "err", err.Error())
	}
	cancelLoad()

	sched, err := events.ScheduleResync(ctx, svc, conf.RefreshCron, loc, conf.Timeout())
	if err != nil {
		appLog.Error("invalid refresh schedule", err)
		os.Exit(1)
	}

	srv, err := web.NewServer(conf, svc, loc)
	if err != nil {
		appLog.Error("failed to build web server", err)
		os.Exit(1)
	}
	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		appLog.Info("signal received, shutting down")
	case err := <-errCh:
		if err != nil {
			appLog.Error("HTTP server failed", err)
		}
	}

	if sched != nil {
		<-sched.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
	appLog.Info("evsched exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.envPath, "env", ".env", "Path to .env file (ignored if missing)")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.StringVar(&cfg.backend, "backend", "", "Backend origin, e.g. http://127.0.0.1:8000 (overrides config if set)")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
