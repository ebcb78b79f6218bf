package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/backup"
	"github.com/tabwatch/tabwatch/pkg/tabwatch/logging"
)

var (
	flagBackupContext string
	flagBackupTags    []string

	flagListLimit int
	flagListSort  string
	flagListDesc  bool
	flagListTags  []string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create, list, verify, restore, and delete backups",
}

var backupCreateCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Take a checksummed, versioned backup of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupCreate,
}

var backupListCmd = &cobra.Command{
	Use:   "list [file]",
	Short: "List backups, optionally for one original file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runBackupList,
}

var backupVerifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "Recompute a backup's checksum and compare it to the record",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupVerify,
}

var backupRestoreCmd = &cobra.Command{
	Use:   "restore <id> [target]",
	Short: "Restore a backup over its original path or a new target",
	Long: `Restore a backup. When the target already exists, a safety backup
of its current content is taken first, tagged pre-restore.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runBackupRestore,
}

var backupDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a backup record and its payload",
	Args:  cobra.ExactArgs(1),
	RunE:  runBackupDelete,
}

func init() {
	backupCreateCmd.Flags().StringVar(&flagBackupContext, "context", "manual backup", "free-form context stored with the record")
	backupCreateCmd.Flags().StringSliceVar(&flagBackupTags, "tag", nil, "tags stored with the record (repeatable)")

	backupListCmd.Flags().IntVar(&flagListLimit, "limit", 0, "maximum number of results (0 = all)")
	backupListCmd.Flags().StringVar(&flagListSort, "sort", "timestamp", "sort field: timestamp, size, or version")
	backupListCmd.Flags().BoolVar(&flagListDesc, "desc", false, "sort descending")
	backupListCmd.Flags().StringSliceVar(&flagListTags, "tag", nil, "only backups carrying every given tag")

	backupCmd.AddCommand(backupCreateCmd, backupListCmd, backupVerifyCmd, backupRestoreCmd, backupDeleteCmd)
	rootCmd.AddCommand(backupCmd)
}

func openStore() (*backup.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return backupStoreFromConfig(cfg)
}

func runBackupCreate(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer logging.Close()

	rec, err := store.Create(args[0], flagBackupContext, flagBackupTags...)
	if err != nil {
		return err
	}

	printInfo("backup %s created (version %d, %s)", rec.ID, rec.Version, humanize.Bytes(uint64(rec.FileSize)))
	return nil
}

func runBackupList(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer logging.Close()

	filter := backup.Filter{
		SortBy:     backup.SortField(flagListSort),
		Descending: flagListDesc,
		Limit:      flagListLimit,
		Tags:       flagListTags,
	}
	if len(args) == 1 {
		filter.OriginalPath = args[0]
	}

	records := store.List(filter)
	if len(records) == 0 {
		printInfo("no backups found")
		return nil
	}

	for _, rec := range records {
		tags := ""
		if len(rec.Tags) > 0 {
			tags = fmt.Sprintf(" [%v]", rec.Tags)
		}
		printInfo("%s  v%-3d %-19s %8s  %s%s",
			rec.ID, rec.Version, rec.Timestamp.Format("2006-01-02 15:04:05"),
			humanize.Bytes(uint64(rec.FileSize)), rec.OriginalPath, tags)
	}
	return nil
}

func runBackupVerify(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer logging.Close()

	if !store.Verify(args[0]) {
		return fmt.Errorf("backup %s failed verification", args[0])
	}
	printInfo("backup %s verified", args[0])
	return nil
}

func runBackupRestore(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer logging.Close()

	target := ""
	if len(args) == 2 {
		target = args[1]
	}

	start := time.Now()
	if err := store.Restore(args[0], target); err != nil {
		return err
	}

	rec, err := store.Get(args[0])
	if err != nil {
		return err
	}
	if target == "" {
		target = rec.OriginalPath
	}
	printInfo("restored %s to %s in %s", args[0], target, time.Since(start).Round(time.Millisecond))
	return nil
}

func runBackupDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer logging.Close()

	if err := store.Delete(args[0]); err != nil {
		return err
	}
	printInfo("backup %s deleted", args[0])
	return nil
}
