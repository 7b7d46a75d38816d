// Package app wires a configured engine to its process surroundings: the
// logging router and its sinks, archive resume, the feed's HTTP server, and
// shutdown on context cancellation or a fatal tick.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"time"

	tickframe "github.com/jerry-samek/tick-frame-space-sub008"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/archive"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/observability"
	"github.com/jerry-samek/tick-frame-space-sub008/internal/telemetry"
	"github.com/jerry-samek/tick-frame-space-sub008/logging"
	loggingSinks "github.com/jerry-samek/tick-frame-space-sub008/logging/sinks"
)

type Config struct {
	// ConfigPath names the YAML engine config. Empty means defaults.
	ConfigPath    string
	Logger        telemetry.Logger
	Observability observability.Config
}

// Run drives one engine process until ctx is cancelled or a tick fails.
func Run(ctx context.Context, cfg Config) error {
	telemetryLogger := cfg.Logger
	if telemetryLogger == nil {
		telemetryLogger = telemetry.WrapLogger(log.Default())
	}

	engineCfg := tickframe.DefaultConfig()
	if cfg.ConfigPath != "" {
		loaded, err := tickframe.Load(cfg.ConfigPath)
		if err != nil {
			return err
		}
		engineCfg = loaded
	}
	if raw := os.Getenv("TICKFRAME_TICK_DELAY_MS"); raw != "" {
		if value, err := strconv.ParseInt(raw, 10, 64); err == nil && value > 0 {
			engineCfg.TickDelayMillis = value
		} else {
			telemetryLogger.Printf("invalid TICKFRAME_TICK_DELAY_MS=%q: %v", raw, err)
		}
	}
	if raw := os.Getenv("TICKFRAME_FEED_ADDR"); raw != "" {
		engineCfg.Feed.Addr = raw
	}

	observabilityCfg := cfg.Observability
	if raw := os.Getenv("ENABLE_PPROF_TRACE"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			observabilityCfg.EnablePprofTrace = value
		} else {
			telemetryLogger.Printf("invalid ENABLE_PPROF_TRACE=%q: %v", raw, err)
		}
	}

	router, closeSinks, err := buildRouter(engineCfg)
	if err != nil {
		return fmt.Errorf("failed to construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			telemetryLogger.Printf("failed to close logging router: %v", cerr)
		}
		closeSinks()
	}()

	engine, err := tickframe.NewEngine(engineCfg, tickframe.EngineDeps{
		Logger:    telemetryLogger,
		Publisher: router,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	resumed := false
	if engineCfg.Snapshot.EveryTicks > 0 {
		tick, err := engine.RestoreLatest(ctx)
		switch {
		case err == nil:
			telemetryLogger.Printf("resumed from archived tick %d (%d entities)", tick, engine.Count())
			resumed = true
		case errors.Is(err, archive.ErrNotFound):
			// Empty archive, fresh run.
		default:
			return fmt.Errorf("failed to restore archived world: %w", err)
		}
	}
	if !resumed {
		if seeds := engineCfg.SpawnRequests(); len(seeds) > 0 {
			if _, err := engine.Seed(seeds...); err != nil {
				return fmt.Errorf("failed to seed world: %w", err)
			}
			telemetryLogger.Printf("seeded %d entities", engine.Count())
		}
	}

	if err := engine.Start(); err != nil {
		return err
	}
	defer engine.Stop()

	serverErr := make(chan error, 1)
	var srv *http.Server
	if handler := engine.FeedHandler(); handler != nil {
		mux := http.NewServeMux()
		mux.Handle("/feed", handler)
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"tick":     engine.Tick(),
				"entities": engine.Count(),
			})
		})
		if observabilityCfg.EnablePprofTrace {
			mux.HandleFunc("/debug/pprof/", pprof.Index)
			mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
			mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
			mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
			mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		}
		srv = &http.Server{Addr: engineCfg.Feed.Addr, Handler: mux}
		telemetryLogger.Printf("feed listening on %s", srv.Addr)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		if srv != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				telemetryLogger.Printf("feed server shutdown: %v", err)
			}
		}
		engine.Stop()
		return nil
	case <-engine.Done():
		if srv != nil {
			srv.Close()
		}
		if err := engine.Err(); err != nil {
			return fmt.Errorf("simulation halted: %w", err)
		}
		return nil
	case err := <-serverErr:
		engine.Stop()
		return fmt.Errorf("feed server failed: %w", err)
	}
}

// buildRouter assembles the sinks named by the config. The returned closer
// releases the JSON sink's file after the router has flushed.
func buildRouter(cfg tickframe.Config) (*logging.Router, func(), error) {
	logCfg := cfg.LoggingConfig()

	var namedSinks []logging.NamedSink
	var jsonFile *os.File
	for _, name := range logCfg.EnabledSinks {
		switch name {
		case "console":
			namedSinks = append(namedSinks, logging.NamedSink{
				Name: name,
				Sink: loggingSinks.NewConsoleSink(os.Stdout, logCfg.Console),
			})
		case "json":
			file, err := os.OpenFile(logCfg.JSON.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
			if err != nil {
				return nil, nil, fmt.Errorf("opening json log %s: %w", logCfg.JSON.FilePath, err)
			}
			jsonFile = file
			namedSinks = append(namedSinks, logging.NamedSink{
				Name: name,
				Sink: loggingSinks.NewJSON(file, logCfg.JSON.FlushInterval),
			})
		}
	}

	router, err := logging.NewRouter(logging.SystemClock{}, logCfg, namedSinks)
	if err != nil {
		if jsonFile != nil {
			jsonFile.Close()
		}
		return nil, nil, err
	}
	closer := func() {
		if jsonFile != nil {
			jsonFile.Close()
		}
	}
	return router, closer, nil
}
