package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/retain/internal/config"
	"github.com/lazypower/retain/internal/engine"
	"github.com/lazypower/retain/internal/logging"
	"github.com/lazypower/retain/internal/model"
	"github.com/lazypower/retain/internal/store"
)

var (
	maintainOwner  string
	maintainDryRun bool
)

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Run one maintenance sweep against the local database",
	RunE:  runMaintain,
}

func init() {
	maintainCmd.Flags().StringVar(&maintainOwner, "owner", "", "sweep a single owner (default: all)")
	maintainCmd.Flags().BoolVar(&maintainDryRun, "dry-run", false, "report transitions without applying them")
	maintainCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to a YAML config file")
}

func runMaintain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Log.Level, os.Stderr)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng := engine.New(db, cfg.Lifecycle, log)

	scope := maintainOwner
	if scope == "" {
		scope = model.ScopeAll
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	report, err := eng.RunMaintenance(ctx, scope, maintainDryRun)
	if err != nil {
		return err
	}

	mode := "applied"
	if report.DryRun {
		mode = "dry-run"
	}
	fmt.Printf("maintenance %s (%s): %d processed, %d promoted, %d decayed, %d expired, %d degraded, %d skipped\n",
		report.RunID, mode,
		report.Processed, report.Promoted, report.Decayed,
		report.Expired, report.Degraded, report.Skipped)
	for _, o := range report.Owners {
		if o.Err != "" {
			fmt.Printf("  %s: FAILED: %s\n", o.Owner, o.Err)
		}
	}
	return nil
}

func openDB(cfg config.Config) (*store.DB, error) {
	dbPath := cfg.Database.Path
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}
