package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/camden-git/attendancebackend/handlers"
	"github.com/camden-git/attendancebackend/workers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API, live feed and day workers",
	Long: `Start the attendance HTTP API with the websocket recognition feed, the
background finalize/recompute workers and the nightly rollover scheduler.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("port", "", "Port to listen on (overrides PORT)")
	serveCmd.Flags().Bool("no-rollover", false, "Disable automatic finalization of the previous day")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	if port := mustGetString(cmd, "port"); port != "" {
		cfg.Port = port
	}
	noRollover, _ := cmd.Flags().GetBool("no-rollover")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	go a.hub.Run(ctx)

	processor := workers.NewDayProcessor(a.attendance, log, cfg.DayQueueSize, cfg.NumDayWorkers)
	defer processor.Stop()

	if !noRollover {
		scheduler := workers.NewRolloverScheduler(processor, a.policies, time.Duration(cfg.RolloverIntervalSeconds)*time.Second, log)
		go scheduler.Run(ctx)
	}

	router := handlers.NewRouter(handlers.RouterDeps{
		Attendance:  a.attendance,
		Enrollment:  a.enrollment,
		Recognition: a.recognition,
		Leaves:      a.leaves,
		Policies:    a.policies,
		Subjects:    a.subjects,
		Jobs:        processor,
		Hub:         a.hub,
		JWTSecret:   []byte(cfg.JWTSecret),
		Log:         log,
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      corsHandler.Handler(router),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("server starting", zap.String("addr", server.Addr), zap.String("driver", cfg.DatabaseDriver))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}
