package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/retain/internal/config"
	"github.com/lazypower/retain/internal/engine"
	"github.com/lazypower/retain/internal/logging"
	"github.com/lazypower/retain/internal/server"
	"github.com/lazypower/retain/internal/store"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server and the maintenance timer",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to a YAML config file")
}

// loadConfig resolves the effective config: defaults, overlaid with the
// --config file when one is given.
func loadConfig() (config.Config, error) {
	if serveConfigPath == "" {
		return config.Default(), nil
	}
	return config.Load(serveConfigPath)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, os.Stderr)

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return fmt.Errorf("resolve db path: %w", err)
		}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	eng := engine.New(db, cfg.Lifecycle, log)
	if cfg.Lifecycle.MaintenanceIntervalHours > 0 {
		interval := time.Duration(cfg.Lifecycle.MaintenanceIntervalHours * float64(time.Hour))
		eng.StartMaintenance(interval)
		defer eng.Stop()
	}

	srv := server.New(db, eng, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("retain serving", "addr", addr, "db", dbPath)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	}()

	<-done
	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
