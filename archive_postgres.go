package ontograph

import (
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// NewPostgresArchive creates a new PostgreSQL-backed graph archive.
// It accepts a standard PostgreSQL connection string.
func NewPostgresArchive(connStr string) (*Archive, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(4)

	archive := &Archive{
		db:      db,
		ownsDB:  true,
		dialect: postgresDialect{},
		logger:  slog.Default(),
	}

	if err := archive.initSchemaAndStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema for PostgreSQL: %w", err)
	}

	return archive, nil
}

// NewPostgresArchiveFromDB creates a PostgreSQL-backed graph archive from an
// existing database connection. The caller retains ownership of the db
// connection and must close it separately.
// Note: This constructor does not configure connection pooling settings
// (use NewPostgresArchive for that).
func NewPostgresArchiveFromDB(db *sql.DB) (*Archive, error) {
	archive := &Archive{
		db:      db,
		ownsDB:  false,
		dialect: postgresDialect{},
		logger:  slog.Default(),
	}

	if err := archive.initSchemaAndStatements(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema for PostgreSQL: %w", err)
	}

	return archive, nil
}
