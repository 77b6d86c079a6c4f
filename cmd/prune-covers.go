package cmd

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/jon4hz/bookshelf/internal/config"
	"github.com/jon4hz/bookshelf/internal/scheduler"
	"github.com/jon4hz/bookshelf/internal/upload"
	"github.com/spf13/cobra"
)

var pruneCoversCmdFlags struct {
	IgnoreGrace bool
}

var pruneCoversCmd = &cobra.Command{
	Use:   "prune-covers",
	Short: "Remove uploaded covers no book references",
	Long:  `This command runs the orphaned cover sweep once, removing uploaded images that no book points to anymore.`,
	RunE:  pruneCovers,
}

func init() {
	pruneCoversCmd.Flags().BoolVar(&pruneCoversCmdFlags.IgnoreGrace, "ignore-grace", false, "Also remove covers uploaded within the configured grace period")

	rootCmd.AddCommand(pruneCoversCmd)
}

func pruneCovers(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(rootCmdPersistentFlags.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := openStore(cmd.Context(), cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck

	uploads, err := upload.New(cfg.Upload, cfg.ServerURL)
	if err != nil {
		return err
	}

	grace := cfg.Upload.OrphanGrace
	if pruneCoversCmdFlags.IgnoreGrace {
		grace = 0
	}

	log.Info("Starting orphaned cover sweep...", "dir", uploads.Dir())
	return scheduler.CoverSweep(db, uploads, grace)(cmd.Context())
}
