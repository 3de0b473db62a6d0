package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/feedback_kiosk/internal/model"
)

const (
	// DriverNameSQLite identifies the SQLite driver implementation.
	DriverNameSQLite = "sqlite"

	sqliteMemoryDataSourceName = ":memory:"
	sqliteURIPrefix            = "file:"
	sqliteQuerySeparator       = "?"
	sqliteFilePragmas          = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	dataDirectoryPermissions   = 0o755

	errorMessageMissingDatabaseDriverName = "storage: missing database driver name"
	errorMessageUnsupportedDatabaseDriver = "storage: unsupported database driver"
	errorMessageMissingDataSourceName     = "storage: missing database data source name"
	errorMessageOpenDatabase              = "storage: open database"
	errorMessageOpenSQLiteDatabase        = "storage: open sqlite database"
	errorMessageCreateDataDirectory       = "storage: create data directory"
	errorMessageMigrate                   = "storage: migrate"
)

var (
	// ErrMissingDatabaseDriverName indicates the database driver name configuration was omitted.
	ErrMissingDatabaseDriverName = errors.New(errorMessageMissingDatabaseDriverName)
	// ErrUnsupportedDatabaseDriver indicates the provided database driver is not supported.
	ErrUnsupportedDatabaseDriver = errors.New(errorMessageUnsupportedDatabaseDriver)
	// ErrMissingDataSourceName indicates the database data source name configuration was omitted.
	ErrMissingDataSourceName = errors.New(errorMessageMissingDataSourceName)
)

type databaseOpener func(Config) (*gorm.DB, error)

var databaseOpeners = map[string]databaseOpener{
	DriverNameSQLite: openSQLiteDatabase,
}

// Config captures database connection configuration.
type Config struct {
	DriverName     string
	DataSourceName string
}

// SQLiteFileConfig builds a configuration for an on-disk SQLite database at path.
func SQLiteFileConfig(path string) Config {
	return Config{
		DriverName:     DriverNameSQLite,
		DataSourceName: strings.TrimSpace(path) + sqliteQuerySeparator + sqliteFilePragmas,
	}
}

// OpenDatabase opens a database connection using the configured driver and data source name.
func OpenDatabase(configuration Config) (*gorm.DB, error) {
	trimmedDriverName := strings.TrimSpace(configuration.DriverName)
	if trimmedDriverName == "" {
		return nil, ErrMissingDatabaseDriverName
	}

	opener, driverSupported := databaseOpeners[trimmedDriverName]
	if !driverSupported {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDatabaseDriver, trimmedDriverName)
	}

	database, openErr := opener(Config{
		DriverName:     trimmedDriverName,
		DataSourceName: strings.TrimSpace(configuration.DataSourceName),
	})
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenDatabase, openErr)
	}

	return database, nil
}

func openSQLiteDatabase(configuration Config) (*gorm.DB, error) {
	if configuration.DataSourceName == "" {
		return nil, ErrMissingDataSourceName
	}

	if directoryErr := ensureDataDirectory(configuration.DataSourceName); directoryErr != nil {
		return nil, directoryErr
	}

	database, openErr := gorm.Open(sqlite.Open(configuration.DataSourceName), &gorm.Config{})
	if openErr != nil {
		return nil, fmt.Errorf("%s: %w", errorMessageOpenSQLiteDatabase, openErr)
	}

	return database, nil
}

// ensureDataDirectory creates the parent directory of a plain file path DSN.
// URI and in-memory data source names are left alone.
func ensureDataDirectory(dataSourceName string) error {
	if dataSourceName == sqliteMemoryDataSourceName || strings.HasPrefix(dataSourceName, sqliteURIPrefix) {
		return nil
	}
	databasePath, _, _ := strings.Cut(dataSourceName, sqliteQuerySeparator)
	directory := filepath.Dir(databasePath)
	if directory == "." || directory == "" {
		return nil
	}
	if mkdirErr := os.MkdirAll(directory, dataDirectoryPermissions); mkdirErr != nil {
		return fmt.Errorf("%s: %w", errorMessageCreateDataDirectory, mkdirErr)
	}
	return nil
}

// AutoMigrate creates the feedback table and its index when absent.
func AutoMigrate(database *gorm.DB) error {
	if err := database.AutoMigrate(&model.FeedbackEvent{}); err != nil {
		return fmt.Errorf("%s: %w", errorMessageMigrate, err)
	}
	return nil
}
