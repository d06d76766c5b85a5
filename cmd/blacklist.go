package cmd

import (
	"fmt"

	"github.com/vibast-solutions/ms-go-nengtul/app/repository"
	"github.com/vibast-solutions/ms-go-nengtul/app/worker"

	"github.com/spf13/cobra"
)

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Maintain the access token blacklist",
}

var blacklistPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete blacklist entries whose tokens have expired",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		sweeper := worker.NewBlacklistSweeper(repository.NewBlacklistTokenRepository(db), cfg.Blacklist.SweepInterval, nil)
		deleted, err := sweeper.Sweep(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("Deleted %d expired blacklist entries\n", deleted)
		return nil
	},
}

func init() {
	blacklistCmd.AddCommand(blacklistPruneCmd)
	rootCmd.AddCommand(blacklistCmd)
}
