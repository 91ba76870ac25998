// Package repository implements C1: typed, transactional
// storage for the seven tables in §3, with SQL queries (squirrel builds
// the job listing) run through an sqlx.DB whose driver is wrapped with
// sqlhooks for timing.
package repository

import (
	"database/sql"
	"embed"
	"fmt"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/qustavo/sqlhooks/v2"
	mattn_sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/ccs-amsterdam/annotinder-server/internal/archive"
	"github.com/ccs-amsterdam/annotinder-server/pkg/log"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

var registerOnce sync.Once

const hookedDriverName = "sqlite3-hooked"

// Repository bundles the database handle and the sq.StatementBuilder
// configured for SQLite's `?` placeholders, covering all seven tables.
type Repository struct {
	DB      *sqlx.DB
	builder sq.StatementBuilderType
	archive archive.Store
}

// Connect opens (or creates) the SQLite database at dataSourceName,
// applies migrations, and returns a ready Repository.
func Connect(driver, dataSourceName string) (*Repository, error) {
	if driver != "sqlite3" {
		return nil, fmt.Errorf("repository: unsupported driver %q (only sqlite3 is wired)", driver)
	}

	registerOnce.Do(func() {
		sql.Register(hookedDriverName, sqlhooks.Wrap(&mattn_sqlite3.SQLiteDriver{}, queryLogger{}))
	})

	db, err := sqlx.Connect(hookedDriverName, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("repository: connect: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: one writer at a time; transactions serialize around it.

	if err := migrateUp(db, dataSourceName); err != nil {
		db.Close()
		return nil, err
	}

	return &Repository{
		DB:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

func migrateUp(db *sqlx.DB, dataSourceName string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return fmt.Errorf("repository: loading embedded migrations: %w", err)
	}

	dbDriver, err := sqlite3.WithInstance(db.DB, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("repository: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("repository: migrate init: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("repository: migrate up: %w", err)
	}
	log.Printf("repository: schema migrated")
	return nil
}
