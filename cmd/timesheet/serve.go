/*
serve.go - Control API server command

PURPOSE:
  Hosts the localhost control API with the background scheduler. The
  scheduler reconciles today once per working day; the API serves a
  future tray/UI shell.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the scheduler (waits for an in-progress run)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the store

FLAGS:
  --listen     Listen address (overrides the config, default 127.0.0.1:4820)
  --interval   Scheduler check interval (default 30m)
  --no-timer   Disable the background scheduler
  --scenarios  Enable the demo scenario endpoints

SEE ALSO:
  - api/server.go: routes
  - api/scheduler.go: the run guard and the daily timer
*/
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/worklog-engine/api"
	"github.com/warp/worklog-engine/config"
	"github.com/warp/worklog-engine/schedule"
)

var (
	serveListen    string
	serveInterval  time.Duration
	serveNoTimer   bool
	serveScenarios bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the localhost control API with the daily timer.",
	RunE:  runServeCommand,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Listen address (default from config).")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 30*time.Minute, "Scheduler check interval.")
	serveCmd.Flags().BoolVar(&serveNoTimer, "no-timer", false, "Disable the background scheduler.")
	serveCmd.Flags().BoolVar(&serveScenarios, "scenarios", false, "Enable the demo scenario endpoints.")
}

func runServeCommand(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := api.NewHandler(a.engine, a.store)
	handler.AllowScenarios = serveScenarios
	handler.Persist = persistOverrides(a.cfg)

	scheduler := api.NewScheduler(handler, a.store)
	scheduler.CheckInterval = serveInterval
	scheduler.Enabled = !serveNoTimer
	handler.Scheduler = scheduler

	router := api.NewRouter(handler)

	listen := serveListen
	if listen == "" {
		listen = a.cfg.Listen
	}

	// Run endpoints execute synchronously and may wait on remote services,
	// so the write timeout is generous.
	server := &http.Server{
		Addr:         listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	scheduler.Start()

	// Start server in goroutine
	go func() {
		log.Printf("[Serve] Control API on http://%s", listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[Serve] Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("[Serve] Shutting down...")
	scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	log.Println("[Serve] Stopped")
	return nil
}

// persistOverrides writes override edits made through the API back to the
// config file, keeping CLI and API views of the schedule aligned.
func persistOverrides(cfg config.Config) func(schedule.Overrides) error {
	return func(o schedule.Overrides) error {
		cfg.SetOverrides(o)
		return config.Save(configPath, cfg)
	}
}
