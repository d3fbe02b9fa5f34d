package cli

import (
	"github.com/spf13/cobra"

	"github.com/nikhilbhutani/promptcompliance/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pool, err := database.NewPool(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer pool.Close()
		return database.RunMigrations(pool)
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
