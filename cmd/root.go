package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"membership-backup/internal/backup"
	"membership-backup/internal/logging"
)

var cfgFile string

// CLI flag variables
var (
	// Database flags
	dbHost     string
	dbPort     int
	dbUsername string
	dbPassword string
	dbDatabase string

	// Engine flags
	storageDir string
	verbose    bool
	quiet      bool
	logFile    string
	noColor    bool
)

// Version information (set via SetVersionInfo)
var (
	appVersion   = "dev"
	appBuildTime = "unknown"
	appGitCommit = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "membership-backup",
	Short: "Backup and restore engine for the membership database",
	Long: `Membership Backup snapshots a MySQL membership database into three
artifacts per run: a replayable SQL statement log, an xlsx workbook and a
PDF summary report. Full, differential and incremental runs are supported;
the bounded modes capture only rows changed since the relevant watermark.

Runs are guarded by a single-flight job slot, recorded in a bounded history
and optionally mirrored to S3, Azure Blob Storage or Google Cloud Storage.

Examples:
  # Run a one-shot full backup
  membership-backup backup --type full --config config.yaml

  # Run an incremental backup against an explicit database
  membership-backup backup --type incremental \
      --db-host localhost --db-user root --db-name membership

  # Serve the operator HTTP API
  membership-backup serve --config config.yaml

  # Restore a stored statement log
  membership-backup restore backup_full_20240131_154500.sql --config config.yaml

  # Show recent runs
  membership-backup history --limit 5`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SetVersionInfo sets the version information displayed by the version command
func SetVersionInfo(version, buildTime, gitCommit string) {
	appVersion = version
	appBuildTime = buildTime
	appGitCommit = gitCommit
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.membership-backup.yaml)")

	// Database flags
	rootCmd.PersistentFlags().StringVar(&dbHost, "db-host", "", "database host")
	rootCmd.PersistentFlags().IntVar(&dbPort, "db-port", 3306, "database port")
	rootCmd.PersistentFlags().StringVar(&dbUsername, "db-user", "", "database username")
	rootCmd.PersistentFlags().StringVar(&dbPassword, "db-password", "", "database password")
	rootCmd.PersistentFlags().StringVar(&dbDatabase, "db-name", "", "database name")

	// Engine flags
	rootCmd.PersistentFlags().StringVar(&storageDir, "storage-dir", "", "artifact storage root directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "write logs to file in addition to stdout")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable color output")

	// Bind flags to viper
	viper.BindPFlag("database.host", rootCmd.PersistentFlags().Lookup("db-host"))
	viper.BindPFlag("database.port", rootCmd.PersistentFlags().Lookup("db-port"))
	viper.BindPFlag("database.username", rootCmd.PersistentFlags().Lookup("db-user"))
	viper.BindPFlag("database.password", rootCmd.PersistentFlags().Lookup("db-password"))
	viper.BindPFlag("database.database", rootCmd.PersistentFlags().Lookup("db-name"))
	viper.BindPFlag("storage_root", rootCmd.PersistentFlags().Lookup("storage-dir"))
	viper.BindPFlag("log_file", rootCmd.PersistentFlags().Lookup("log-file"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".membership-backup")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("MEMBERSHIP_BACKUP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	if noColor || !isatty.IsTerminal(os.Stdout.Fd()) {
		color.NoColor = true
	}
}

// validateFlags validates CLI flags and their combinations
func validateFlags() error {
	if verbose && quiet {
		return fmt.Errorf("--verbose and --quiet flags are mutually exclusive")
	}
	return nil
}

// buildConfig assembles the engine configuration from the config file,
// environment and flags.
func buildConfig() (*backup.EngineConfig, error) {
	if err := validateFlags(); err != nil {
		return nil, err
	}

	config := &backup.EngineConfig{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	config.SetDefaults()

	switch {
	case verbose:
		config.LogLevel = string(logging.LogLevelVerbose)
	case quiet:
		config.LogLevel = string(logging.LogLevelQuiet)
	}
	if logFile != "" {
		config.LogFile = logFile
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// newLogger builds the logger described by the engine configuration
func newLogger(config *backup.EngineConfig) (*logging.Logger, error) {
	return logging.NewLogger(logging.Config{
		Level:   logging.LogLevel(config.LogLevel),
		Format:  "text",
		LogFile: config.LogFile,
	})
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("membership-backup %s\n", appVersion)
		fmt.Printf("  build time: %s\n", appBuildTime)
		fmt.Printf("  git commit: %s\n", appGitCommit)
	},
}
