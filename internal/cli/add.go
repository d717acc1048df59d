package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lazypower/retain/internal/engine"
	"github.com/lazypower/retain/internal/logging"
)

var (
	addOwner   string
	addSession string
)

var addCmd = &cobra.Command{
	Use:   "add [content...]",
	Short: "Ingest content as a new WORKING-tier memory",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAdd,
}

func init() {
	addCmd.Flags().StringVar(&addOwner, "owner", "", "owner scope (required)")
	addCmd.Flags().StringVar(&addSession, "session", "", "session id to attribute the ingest to")
	addCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to a YAML config file")
	addCmd.MarkFlagRequired("owner")
}

func runAdd(cmd *cobra.Command, args []string) error {
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

	m, err := eng.Ingest(ctx, addOwner, strings.Join(args, " "), addSession)
	if err != nil {
		return err
	}

	fmt.Printf("%s  tier=%s importance=%.1f\n", m.ID, m.Tier, m.Importance)
	return nil
}
