package db

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MigrationStatus holds information about database migration state
type MigrationStatus struct {
	CurrentVersion uint
	LatestVersion  uint
	Dirty          bool
	Pending        bool
}

// Open opens the database at path without running migrations.
// The parent directory is created when missing.
func Open(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	database, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; serialize through one connection.
	database.SetMaxOpenConns(1)

	if err := database.Ping(); err != nil {
		database.Close()
		return nil, err
	}

	return database, nil
}

// OpenAndMigrate opens the database and runs all pending migrations
func OpenAndMigrate(path string) (*sql.DB, error) {
	database, err := Open(path)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(database); err != nil {
		database.Close()
		return nil, err
	}

	return database, nil
}

// GetMigrationStatus returns the current migration status
func GetMigrationStatus(database *sql.DB) (*MigrationStatus, error) {
	if database == nil {
		return nil, fmt.Errorf("database not open")
	}

	m, err := getMigrator(database)
	if err != nil {
		return nil, err
	}

	version, dirty, err := m.Version()
	if err != nil && err != migrate.ErrNilVersion {
		return nil, err
	}

	latestVersion, err := latestMigrationVersion()
	if err != nil {
		return nil, err
	}

	return &MigrationStatus{
		CurrentVersion: version,
		LatestVersion:  latestVersion,
		Dirty:          dirty,
		Pending:        version < latestVersion,
	}, nil
}

// RunMigrations runs all pending migrations
func RunMigrations(database *sql.DB) error {
	if database == nil {
		return fmt.Errorf("database not open")
	}

	m, err := getMigrator(database)
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}

	return nil
}

func latestMigrationVersion() (uint, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, err
	}
	defer source.Close()

	var latest uint
	first, err := source.First()
	if err != nil {
		// No migrations embedded.
		return 0, nil
	}
	latest = first
	for {
		next, err := source.Next(latest)
		if err != nil {
			break
		}
		latest = next
	}
	return latest, nil
}

// getMigrator creates a new migrate instance bound to database.
// The instance must not be closed: closing it would close database too.
func getMigrator(database *sql.DB) (*migrate.Migrate, error) {
	driver, err := sqlite3.WithInstance(database, &sqlite3.Config{})
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, err
	}

	return migrate.NewWithInstance("iofs", source, "sqlite3", driver)
}
