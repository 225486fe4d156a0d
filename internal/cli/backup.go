package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backupCmd = &cobra.Command{
	Use:   "backup <dest>",
	Short: "Write a consistent copy of the database",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	if err := db.Backup(args[0]); err != nil {
		return err
	}

	version, err := db.SchemaVersion()
	if err != nil {
		return fmt.Errorf("schema version: %w", err)
	}
	counts, err := db.CountEntries()
	if err != nil {
		return err
	}
	fmt.Printf("Backed up %s to %s (schema v%d).\n", db.Path, args[0], version)
	for _, tier := range []string{"working", "disk", "archived"} {
		fmt.Printf("  %-8s %d entries\n", tier, counts[tier])
	}
	return nil
}

