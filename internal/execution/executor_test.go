package execution

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"membership-backup/internal/database"
	"membership-backup/internal/logging"
)

func testConfig() database.Config {
	return database.Config{
		Host:     "db.example.com",
		Port:     3307,
		Username: "backup_user",
		Password: "secret",
		Database: "membership",
	}
}

func quietLogger() *logging.Logger {
	logger, _ := logging.NewLogger(logging.Config{Level: logging.LogLevelQuiet})
	return logger
}

func TestDumpArgs(t *testing.T) {
	args := DumpArgs(testConfig())

	assert.Equal(t, []string{
		"-h", "db.example.com",
		"-P", "3307",
		"-u", "backup_user",
		"--single-transaction",
		"membership",
	}, args)
	assert.NotContains(t, args, "secret", "the password must never appear in the argument list")
}

func TestCreateDatabaseArgs(t *testing.T) {
	args := CreateDatabaseArgs(testConfig())

	assert.Contains(t, args, "-e")
	assert.Contains(t, args, "CREATE DATABASE IF NOT EXISTS `membership`")
	assert.NotContains(t, args, "membership\n", "the database must not be a connection argument")
	assert.NotContains(t, args, "secret")
}

func TestApplyArgs(t *testing.T) {
	args := ApplyArgs(testConfig())

	assert.Equal(t, "membership", args[len(args)-1],
		"the statement log replays under the target database context")
	assert.NotContains(t, args, "secret")
}

func TestExecutor_Defaults(t *testing.T) {
	e := NewExecutor(quietLogger())

	assert.Equal(t, "mysqldump", e.dumpBinary)
	assert.Equal(t, "mysql", e.clientBinary)
	assert.Equal(t, 10*time.Minute, e.dumpTimeout)
}

func TestExecutor_Options(t *testing.T) {
	e := NewExecutor(quietLogger(),
		WithBinaries("/opt/mysql/bin/mysqldump", "/opt/mysql/bin/mysql"),
		WithTimeouts(time.Minute, 2*time.Minute))

	assert.Equal(t, "/opt/mysql/bin/mysqldump", e.dumpBinary)
	assert.Equal(t, "/opt/mysql/bin/mysql", e.clientBinary)
	assert.Equal(t, time.Minute, e.dumpTimeout)
	assert.Equal(t, 2*time.Minute, e.applyTimeout)
}

func TestExecutor_OptionsIgnoreZeroValues(t *testing.T) {
	e := NewExecutor(quietLogger(), WithBinaries("", ""), WithTimeouts(0, 0))

	assert.Equal(t, "mysqldump", e.dumpBinary)
	assert.Equal(t, 10*time.Minute, e.dumpTimeout)
}

func TestExecutor_DumpWithStubBinary(t *testing.T) {
	e := NewExecutor(quietLogger(), WithBinaries("true", "true"))

	out := filepath.Join(t.TempDir(), "dump.sql")
	require.NoError(t, e.Dump(context.Background(), testConfig(), out))

	_, err := os.Stat(out)
	assert.NoError(t, err, "the dump file is created even when the dump is empty")
}

func TestExecutor_DumpFailureIsProcessError(t *testing.T) {
	e := NewExecutor(quietLogger(), WithBinaries("false", "false"))

	out := filepath.Join(t.TempDir(), "dump.sql")
	err := e.Dump(context.Background(), testConfig(), out)
	require.Error(t, err)

	var procErr *ProcessError
	require.True(t, errors.As(err, &procErr))
	assert.Equal(t, "false", procErr.Command)
}

func TestExecutor_ApplyMissingFile(t *testing.T) {
	e := NewExecutor(quietLogger(), WithBinaries("true", "true"))

	err := e.Apply(context.Background(), testConfig(), filepath.Join(t.TempDir(), "missing.sql"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement log")
}

func TestProcessError_Message(t *testing.T) {
	cause := errors.New("exit status 2")

	err := &ProcessError{Command: "mysqldump", Output: "Access denied", Err: cause}
	assert.Contains(t, err.Error(), "mysqldump")
	assert.Contains(t, err.Error(), "Access denied")
	assert.True(t, errors.Is(err, cause))

	bare := &ProcessError{Command: "mysql", Err: cause}
	assert.NotContains(t, bare.Error(), ": $")
}

func TestProcessEnv(t *testing.T) {
	e := NewExecutor(quietLogger())

	env := e.processEnv("secret")
	assert.Contains(t, env, "MYSQL_PWD=secret")

	assert.Len(t, e.processEnv(""), len(os.Environ()),
		"an empty password adds nothing to the environment")
}
