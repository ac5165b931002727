package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"pitchlog/internal/config"
	"pitchlog/internal/kv"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data directory, config file and database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dbFile := filepath.Join(env.Dir, kv.DBFile)
		if _, err := os.Stat(dbFile); err == nil {
			fmt.Printf("Already initialized: %s exists\n", dbFile)
			return nil
		}

		if err := config.WriteConfig(env.Dir, cfg); err != nil {
			return fmt.Errorf("init failed: %w", err)
		}
		db, err := kv.OpenSQLite(env.Dir)
		if err != nil {
			return fmt.Errorf("init failed: %w", err)
		}
		db.Close()

		fmt.Printf("Initialized pitchlog in %s\n", env.Dir)
		fmt.Printf("Database created at %s\n", dbFile)
		return nil
	},
}
