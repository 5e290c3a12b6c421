package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkadlec/presence/internal/camera"
	"github.com/dkadlec/presence/internal/config"
	"github.com/dkadlec/presence/internal/ledger"
	"github.com/dkadlec/presence/internal/match"
	"github.com/dkadlec/presence/internal/session"
	"github.com/dkadlec/presence/internal/web"
	"github.com/dkadlec/presence/internal/web/handlers"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance web server",
	Long: `Start the attendance web server.
Clients create sessions over the API and watch the annotated MJPEG
stream while attendance is taken; the API also covers enrollment,
attendance reports and the roster.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")

	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	rec, gal, err := openRecognizer(cfg)
	if err != nil {
		return err
	}
	defer rec.Close()

	pool, store, err := openRoster(cfg)
	if err != nil {
		return err
	}
	if pool != nil {
		defer pool.Close()
		if err := pool.Migrate(cmd.Context()); err != nil {
			return fmt.Errorf("migrating roster database: %w", err)
		}
		fmt.Println("Roster database connected")
	} else {
		fmt.Println("No DATABASE_URL set, roster features disabled")
	}

	deps := handlers.Deps{
		Gallery:   gal,
		Ledger:    ledger.New(cfg.Ledger.Dir),
		Matcher:   match.NewMatcher(cfg.Match.Tolerance),
		Roster:    store,
		Extractor: rec,
		NewSource: func() (camera.Source, error) {
			return camera.OpenV4L2(cfg.Camera.Device, cfg.Camera.Width, cfg.Camera.Height)
		},
		SessionOpts: session.Options{
			DownscaleFactor: cfg.Vision.DownscaleFactor,
			DetectEvery:     cfg.Vision.DetectEvery,
			EARThreshold:    cfg.Liveness.EARThreshold,
			MinClosedFrames: cfg.Liveness.MinClosedFrames,
			BlinksRequired:  cfg.Liveness.BlinksRequired,
		},
	}

	port, host := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, deps, host, port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting attendance server on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
