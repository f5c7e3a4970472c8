package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"membership-backup/internal/backup"
)

var backupType string

// backupCmd runs a one-shot backup
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Run a one-shot backup",
	Long: `Run a single backup of the configured database and wait for it to
finish.

Full backups capture every table completely. Differential backups capture
rows changed since the last full backup and require one to exist.
Incremental backups capture rows changed since the last backup of any type.

Examples:
  # Full backup
  membership-backup backup --type full --config config.yaml

  # Differential backup
  membership-backup backup --type differential --config config.yaml`,
	RunE: runBackup,
}

func init() {
	backupCmd.Flags().StringVarP(&backupType, "type", "t", "full", "backup type (full, differential, incremental)")
	rootCmd.AddCommand(backupCmd)
}

func runBackup(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	runType := backup.RunType(backupType)
	jobID, err := eng.runner.Trigger(runType)
	if err != nil {
		return err
	}

	fmt.Printf("Started %s backup (%s)\n", runType, jobID)

	job := waitForJob(eng.registry)
	if job.Status == backup.JobStatusFailed {
		color.Red("Backup failed: %s", job.Error)
		return fmt.Errorf("backup failed: %s", job.Error)
	}

	color.Green("Backup completed")
	for kind, path := range job.Artifacts {
		fmt.Printf("  %-14s %s\n", kind, path)
	}
	return nil
}

// waitForJob polls the registry until the run reaches a terminal state
func waitForJob(registry *backup.Registry) backup.Job {
	lastStep := ""
	for {
		job := registry.Snapshot()
		if job.Status != backup.JobStatusRunning {
			return job
		}
		if job.CurrentStep != lastStep {
			fmt.Printf("  [%3d%%] %s\n", job.Progress, job.CurrentStep)
			lastStep = job.CurrentStep
		}
		time.Sleep(200 * time.Millisecond)
	}
}
