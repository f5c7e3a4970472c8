package backup

import (
	"fmt"
	"time"

	"membership-backup/internal/database"
)

// ToolsConfig names the external MySQL client binaries
type ToolsConfig struct {
	Mysqldump string `mapstructure:"mysqldump" yaml:"mysqldump"`
	Mysql     string `mapstructure:"mysql" yaml:"mysql"`
}

// TimeoutsConfig bounds the engine's blocking operations
type TimeoutsConfig struct {
	Query   time.Duration `mapstructure:"query" yaml:"query"`
	Dump    time.Duration `mapstructure:"dump" yaml:"dump"`
	Restore time.Duration `mapstructure:"restore" yaml:"restore"`
	Notify  time.Duration `mapstructure:"notify" yaml:"notify"`
}

// ServerConfig holds the operator HTTP API settings
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// EngineConfig is the complete engine configuration
type EngineConfig struct {
	Database       database.Config `mapstructure:"database" yaml:"database"`
	StorageRoot    string          `mapstructure:"storage_root" yaml:"storage_root"`
	HistoryLimit   int             `mapstructure:"history_limit" yaml:"history_limit"`
	TrackingColumn string          `mapstructure:"tracking_column" yaml:"tracking_column"`
	Tools          ToolsConfig     `mapstructure:"tools" yaml:"tools"`
	Timeouts       TimeoutsConfig  `mapstructure:"timeouts" yaml:"timeouts"`
	Notification   NotifierConfig  `mapstructure:"notification" yaml:"notification"`
	Mirror         MirrorConfig    `mapstructure:"mirror" yaml:"mirror"`
	Server         ServerConfig    `mapstructure:"server" yaml:"server"`
	LogLevel       string          `mapstructure:"log_level" yaml:"log_level"`
	LogFile        string          `mapstructure:"log_file" yaml:"log_file"`
}

// SetDefaults applies default values to unset fields
func (c *EngineConfig) SetDefaults() {
	c.Database.SetDefaults()

	if c.StorageRoot == "" {
		c.StorageRoot = "./backups"
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 10
	}
	if c.TrackingColumn == "" {
		c.TrackingColumn = "updated_at"
	}
	if c.Tools.Mysqldump == "" {
		c.Tools.Mysqldump = "mysqldump"
	}
	if c.Tools.Mysql == "" {
		c.Tools.Mysql = "mysql"
	}
	if c.Timeouts.Query <= 0 {
		c.Timeouts.Query = 30 * time.Second
	}
	if c.Timeouts.Dump <= 0 {
		c.Timeouts.Dump = 10 * time.Minute
	}
	if c.Timeouts.Restore <= 0 {
		c.Timeouts.Restore = 15 * time.Minute
	}
	if c.Timeouts.Notify <= 0 {
		c.Timeouts.Notify = 30 * time.Second
	}
	if c.Notification.Timeout <= 0 {
		c.Notification.Timeout = c.Timeouts.Notify
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8085"
	}
	if c.LogLevel == "" {
		c.LogLevel = "normal"
	}
}

// Validate checks the configuration for consistency
func (c *EngineConfig) Validate() error {
	if err := c.Database.Validate(); err != nil {
		return fmt.Errorf("database configuration: %w", err)
	}
	if c.StorageRoot == "" {
		return fmt.Errorf("storage root is required")
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}
	if c.Mirror.Enabled() {
		switch c.Mirror.Provider {
		case "s3":
			if c.Mirror.S3 == nil {
				return fmt.Errorf("mirror provider s3 selected but not configured")
			}
		case "azure":
			if c.Mirror.Azure == nil {
				return fmt.Errorf("mirror provider azure selected but not configured")
			}
		case "gcs":
			if c.Mirror.GCS == nil {
				return fmt.Errorf("mirror provider gcs selected but not configured")
			}
		default:
			return fmt.Errorf("unsupported mirror provider: %s", c.Mirror.Provider)
		}
	}
	return nil
}
