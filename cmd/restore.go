package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"membership-backup/internal/backup"
)

var restoreYes bool

// restoreCmd replays a stored statement log
var restoreCmd = &cobra.Command{
	Use:   "restore <artifact>",
	Short: "Restore the database from a stored statement log",
	Long: `Replay a stored statement log into the configured database.

The target database is created if it does not exist. Replaying a log into a
database that already contains the same rows will fail on duplicate keys.
The restore shares the single job slot with backups; it is rejected while a
backup is running.

Examples:
  # Restore with confirmation prompt
  membership-backup restore backup_full_20240131_154500.sql --config config.yaml

  # Restore without prompting
  membership-backup restore backup_full_20240131_154500.sql --yes`,
	Args: cobra.ExactArgs(1),
	RunE: runRestore,
}

func init() {
	restoreCmd.Flags().BoolVarP(&restoreYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.AddCommand(restoreCmd)
}

func runRestore(cmd *cobra.Command, args []string) error {
	artifact := args[0]

	if dbPassword == "" && os.Getenv("MYSQL_PWD") == "" {
		if err := promptPassword(); err != nil {
			return err
		}
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	if !restoreYes && !confirmRestore(eng.config.Database.Database, artifact) {
		fmt.Println("Restore canceled")
		return nil
	}

	if err := eng.restorer.Restore(context.Background(), artifact); err != nil {
		if backup.IsNotFound(err) {
			return fmt.Errorf("artifact %q not found", artifact)
		}
		if backup.IsConflict(err) {
			return fmt.Errorf("a backup is in progress; retry when it completes")
		}
		return err
	}

	color.Green("Restore completed from %s", artifact)
	return nil
}

// promptPassword reads the database password without echo when none was
// provided via flag, config or environment.
func promptPassword() error {
	fmt.Print("Database password: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	dbPassword = string(raw)
	os.Setenv("MEMBERSHIP_BACKUP_DATABASE_PASSWORD", dbPassword)
	return nil
}

func confirmRestore(database, artifact string) bool {
	color.Yellow("This will replay %s into database %q.", artifact, database)
	fmt.Print("Continue? [y/N]: ")

	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
