package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/retain/internal/engine"
	"github.com/lazypower/retain/internal/logging"
	"github.com/lazypower/retain/internal/model"
)

var statsOwner string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show one owner's memory statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsOwner, "owner", "", "owner scope (required)")
	statsCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to a YAML config file")
	statsCmd.MarkFlagRequired("owner")
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logging.New("warn", os.Stderr)

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng := engine.New(db, cfg.Lifecycle, log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stats, err := eng.Stats(ctx, statsOwner)
	if err != nil {
		return err
	}

	fmt.Printf("owner: %s\n", stats.Owner)
	fmt.Printf("memories: %d (avg importance %.2f)\n", stats.Total, stats.AverageImportance)
	for _, t := range model.Tiers() {
		fmt.Printf("  %-10s %d\n", t, stats.TotalByTier[t])
	}
	fmt.Printf("accesses: %d total, %d most on one memory, %d stale\n",
		stats.Access.TotalAccesses, stats.Access.MostAccessed, stats.Access.Stale)
	fmt.Printf("promotion: %d above working, %d history entries, avg composite %.2f\n",
		stats.Promotion.AboveWorking, stats.Promotion.HistoryEntries, stats.Promotion.AvgComposite)
	return nil
}
