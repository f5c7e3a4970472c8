package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"membership-backup/internal/backup"
	"membership-backup/internal/database"
)

// sampleConfigCmd prints an annotated starting configuration
var sampleConfigCmd = &cobra.Command{
	Use:   "sample-config",
	Short: "Print a sample configuration file",
	Long: `Print a complete sample configuration to stdout.

Redirect the output to a file and adjust it:
  membership-backup sample-config > config.yaml`,
	RunE: runSampleConfig,
}

func init() {
	rootCmd.AddCommand(sampleConfigCmd)
}

func runSampleConfig(cmd *cobra.Command, args []string) error {
	config := backup.EngineConfig{
		Database: database.Config{
			Host:     "localhost",
			Port:     3306,
			Username: "backup_user",
			Password: "change-me",
			Database: "membership",
			Timeout:  30 * time.Second,
		},
		StorageRoot:    "/var/lib/membership-backup",
		HistoryLimit:   10,
		TrackingColumn: "updated_at",
		Tools: backup.ToolsConfig{
			Mysqldump: "mysqldump",
			Mysql:     "mysql",
		},
		Timeouts: backup.TimeoutsConfig{
			Query:   30 * time.Second,
			Dump:    10 * time.Minute,
			Restore: 15 * time.Minute,
			Notify:  30 * time.Second,
		},
		Notification: backup.NotifierConfig{
			Enabled:  false,
			Host:     "smtp.example.com",
			Port:     587,
			Username: "backup@example.com",
			From:     "backup@example.com",
			To:       []string{"admin@example.com"},
		},
		Mirror: backup.MirrorConfig{
			Provider: "none",
		},
		Server: backup.ServerConfig{
			Addr: ":8085",
		},
		LogLevel: "normal",
	}

	out, err := yaml.Marshal(&config)
	if err != nil {
		return fmt.Errorf("failed to render sample configuration: %w", err)
	}
	fmt.Print(string(out))
	return nil
}
