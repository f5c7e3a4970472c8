package database

import (
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver

	"membership-backup/internal/errors"
	"membership-backup/internal/logging"
)

// Service manages MySQL connections for the backup engine
type Service struct {
	connectionTimeout time.Duration
	logger            *logging.Logger
	retryHandler      *errors.RetryHandler
}

// NewService creates a new database service with default settings
func NewService() *Service {
	return NewServiceWithLogger(logging.NewDefaultLogger())
}

// NewServiceWithLogger creates a new database service with a custom logger
func NewServiceWithLogger(logger *logging.Logger) *Service {
	return &Service{
		connectionTimeout: 30 * time.Second,
		logger:            logger,
		retryHandler:      errors.NewDefaultRetryHandler(),
	}
}

// Connect establishes a connection to the MySQL database with retry logic
func (s *Service) Connect(config Config) (*sql.DB, error) {
	startTime := time.Now()

	s.logger.WithFields(map[string]interface{}{
		"host":     config.Host,
		"port":     config.Port,
		"database": config.Database,
	}).Info("Attempting database connection")

	ctx, cancel := errors.CreateContextWithTimeout(s.connectionTimeout)
	defer cancel()

	var db *sql.DB
	err := s.retryHandler.Retry(ctx, func() error {
		var connectErr error

		db, connectErr = sql.Open("mysql", config.DSN())
		if connectErr != nil {
			return errors.WrapError(connectErr, "failed to open database connection")
		}

		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)

		if pingErr := db.Ping(); pingErr != nil {
			db.Close()
			return errors.WrapError(pingErr, "failed to ping database")
		}

		return nil
	})

	duration := time.Since(startTime)

	if err != nil {
		s.logger.WithFields(map[string]interface{}{
			"host":     config.Host,
			"database": config.Database,
			"duration": duration.String(),
			"error":    err.Error(),
		}).Error("Database connection failed")
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"host":     config.Host,
		"database": config.Database,
		"duration": duration.String(),
	}).Info("Database connection established")

	return db, nil
}

// Close closes the database connection
func (s *Service) Close(db *sql.DB) error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return errors.WrapError(err, "failed to close database connection")
	}
	return nil
}
