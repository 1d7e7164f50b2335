package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/evlocate/foundation/config"
	"github.com/evlocate/foundation/db"
	"github.com/evlocate/foundation/errors"
	"github.com/evlocate/foundation/metadata"
	"github.com/evlocate/foundation/sym"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: sym.DB + " Manage the metadata database",
	Long: sym.DB + ` db — Manage the fetch metadata database

Examples:
  foundation db migrate           # Apply pending schema migrations
  foundation db stats             # Show record counts per source
  foundation db purge --hours 72  # Delete records older than 72 hours`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	Long:  "Display fetch record counts per source and the database location",
	RunE:  runDbStats,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

var dbPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete fetch records older than a cutoff",
	RunE:  runDbPurge,
}

var purgeHoursFlag int

func init() {
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbMigrateCmd)
	DbCmd.AddCommand(dbPurgeCmd)
	dbPurgeCmd.Flags().IntVar(&purgeHoursFlag, "hours", 720, "Delete records older than this many hours")
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := db.OpenWithMigrations(cfg.Database.Path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	store := metadata.NewStore(database, nil)
	counts, err := store.CountBySource(context.Background())
	if err != nil {
		return errors.Wrap(err, "failed to count records")
	}

	fmt.Printf("%s Database Statistics\n", sym.DB)
	fmt.Printf("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")
	fmt.Printf("Database Path: %s\n\n", cfg.Database.Path)

	if len(counts) == 0 {
		fmt.Println("No fetch records.")
		return nil
	}

	ids := make([]string, 0, len(counts))
	var total int64
	for id, count := range counts {
		ids = append(ids, id)
		total += count
	}
	sort.Strings(ids)

	for _, id := range ids {
		fmt.Printf("  %-30s %d\n", id, counts[id])
	}
	fmt.Printf("\nTotal Records: %d\n", total)
	return nil
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := db.OpenWithMigrations(cfg.Database.Path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to migrate database")
	}
	defer database.Close()

	fmt.Printf("%s Database migrated: %s\n", sym.DB, cfg.Database.Path)
	return nil
}

func runDbPurge(cmd *cobra.Command, args []string) error {
	if purgeHoursFlag <= 0 {
		return errors.New("--hours must be positive")
	}

	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := db.OpenWithMigrations(cfg.Database.Path, nil)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	store := metadata.NewStore(database, nil)
	purged, err := store.PurgeOlderThan(context.Background(), time.Duration(purgeHoursFlag)*time.Hour)
	if err != nil {
		return errors.Wrap(err, "failed to purge records")
	}

	fmt.Printf("%s Purged %d records older than %dh\n", sym.Sweep, purged, purgeHoursFlag)
	return nil
}
