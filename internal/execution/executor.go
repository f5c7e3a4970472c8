package execution

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"membership-backup/internal/database"
	"membership-backup/internal/logging"
)

// ProcessError reports a failed external process invocation with its captured output
type ProcessError struct {
	Command string
	Output  string
	Err     error
}

// Error implements the error interface
func (e *ProcessError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s failed: %v: %s", e.Command, e.Err, e.Output)
	}
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

// Unwrap returns the underlying error
func (e *ProcessError) Unwrap() error {
	return e.Err
}

// Executor runs the external mysqldump and mysql client processes with
// bounded timeouts and captured stderr.
type Executor struct {
	dumpBinary    string
	clientBinary  string
	dumpTimeout   time.Duration
	applyTimeout  time.Duration
	logger        *logging.Logger
}

// Option configures an Executor
type Option func(*Executor)

// WithBinaries overrides the mysqldump and mysql binary paths
func WithBinaries(dump, client string) Option {
	return func(e *Executor) {
		if dump != "" {
			e.dumpBinary = dump
		}
		if client != "" {
			e.clientBinary = client
		}
	}
}

// WithTimeouts overrides the dump and apply timeouts
func WithTimeouts(dump, apply time.Duration) Option {
	return func(e *Executor) {
		if dump > 0 {
			e.dumpTimeout = dump
		}
		if apply > 0 {
			e.applyTimeout = apply
		}
	}
}

// NewExecutor creates a new process executor
func NewExecutor(logger *logging.Logger, opts ...Option) *Executor {
	e := &Executor{
		dumpBinary:   "mysqldump",
		clientBinary: "mysql",
		dumpTimeout:  10 * time.Minute,
		applyTimeout: 30 * time.Minute,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DumpArgs returns the argument vector for a full database dump
func DumpArgs(config database.Config) []string {
	return []string{
		"-h", config.Host,
		"-P", fmt.Sprintf("%d", config.Port),
		"-u", config.Username,
		"--single-transaction",
		config.Database,
	}
}

// CreateDatabaseArgs returns the argument vector that creates the target
// database when it does not exist yet. The database name is passed inside
// the statement, not as a connection argument, because the database may not
// exist at connection time.
func CreateDatabaseArgs(config database.Config) []string {
	return []string{
		"-h", config.Host,
		"-P", fmt.Sprintf("%d", config.Port),
		"-u", config.Username,
		"-e", fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", config.Database),
	}
}

// ApplyArgs returns the argument vector that replays a statement log under
// the target database context.
func ApplyArgs(config database.Config) []string {
	return []string{
		"-h", config.Host,
		"-P", fmt.Sprintf("%d", config.Port),
		"-u", config.Username,
		config.Database,
	}
}

// Dump runs mysqldump for a full backup, writing the statement log to outPath
func (e *Executor) Dump(ctx context.Context, config database.Config, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, e.dumpTimeout)
	defer cancel()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}
	defer out.Close()

	cmd := exec.CommandContext(ctx, e.dumpBinary, DumpArgs(config)...)
	cmd.Env = e.processEnv(config.Password)
	cmd.Stdout = out

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	e.logger.WithFields(map[string]interface{}{
		"operation": "dump",
		"database":  config.Database,
		"path":      outPath,
		"duration":  time.Since(start).String(),
	}).Debug("Dump process finished")

	if err != nil {
		return &ProcessError{Command: e.dumpBinary, Output: stderr.String(), Err: err}
	}
	return nil
}

// EnsureDatabase issues a CREATE DATABASE IF NOT EXISTS against the target
// server. Safe to repeat.
func (e *Executor) EnsureDatabase(ctx context.Context, config database.Config) error {
	ctx, cancel := context.WithTimeout(ctx, e.applyTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.clientBinary, CreateDatabaseArgs(config)...)
	cmd.Env = e.processEnv(config.Password)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &ProcessError{Command: e.clientBinary, Output: stderr.String(), Err: err}
	}
	return nil
}

// Apply streams a statement log on standard input to the mysql client under
// the target database context. Replaying the same log twice will surface
// duplicate-key conflicts from the server; the caller owns that contract.
func (e *Executor) Apply(ctx context.Context, config database.Config, sqlPath string) error {
	ctx, cancel := context.WithTimeout(ctx, e.applyTimeout)
	defer cancel()

	in, err := os.Open(sqlPath)
	if err != nil {
		return fmt.Errorf("failed to open statement log: %w", err)
	}
	defer in.Close()

	cmd := exec.CommandContext(ctx, e.clientBinary, ApplyArgs(config)...)
	cmd.Env = e.processEnv(config.Password)
	cmd.Stdin = in

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	e.logger.WithFields(map[string]interface{}{
		"operation": "apply",
		"database":  config.Database,
		"path":      sqlPath,
		"duration":  time.Since(start).String(),
	}).Debug("Apply process finished")

	if err != nil {
		return &ProcessError{Command: e.clientBinary, Output: stderr.String(), Err: err}
	}
	return nil
}

// processEnv builds the child process environment, passing the password via
// MYSQL_PWD so it never appears in the process argument list.
func (e *Executor) processEnv(password string) []string {
	env := os.Environ()
	if password != "" {
		env = append(env, "MYSQL_PWD="+password)
	}
	return env
}
