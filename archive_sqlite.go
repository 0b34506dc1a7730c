package ontograph

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sort"

	_ "modernc.org/sqlite" // SQLite driver
)

// archiveConfig holds configuration options for the Archive.
type archiveConfig struct {
	pragmas map[string]string
}

// ArchiveOption is a function that configures an Archive.
type ArchiveOption func(*archiveConfig)

// WithPragma sets a specific SQLite PRAGMA statement.
// For example: WithPragma("synchronous", "NORMAL").
// This will override any default value for the given PRAGMA key.
func WithPragma(key, value string) ArchiveOption {
	return func(c *archiveConfig) {
		if c.pragmas == nil {
			c.pragmas = make(map[string]string)
		}
		c.pragmas[key] = value
	}
}

// defaultArchiveConfig returns a new config with default PRAGMA settings
// for performance and concurrency.
func defaultArchiveConfig() *archiveConfig {
	return &archiveConfig{
		pragmas: map[string]string{
			"journal_mode": "WAL",
			"synchronous":  "OFF",
			"cache_size":   "-64000",
			"temp_store":   "MEMORY",
			"mmap_size":    "268435456",
			"busy_timeout": "5000",
			"foreign_keys": "OFF",
			"auto_vacuum":  "INCREMENTAL",
		},
	}
}

// NewSQLiteArchive creates a new SQLite-backed graph archive.
// Pass ":memory:" for dbPath to create an in-memory database.
// Optional ArchiveOption functions can be provided to customize PRAGMA settings.
func NewSQLiteArchive(dbPath string, opts ...ArchiveOption) (*Archive, error) {
	// For in-memory databases, use a unique name with shared cache so
	// concurrent connections within the same database work while
	// different archive instances stay separate.
	if dbPath == ":memory:" {
		id := inMemoryDBCounter.Add(1)
		dbPath = fmt.Sprintf("file:ontograph_%d?mode=memory&cache=shared", id)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite: %w", err)
	}

	// Connection pool sized for concurrent reads alongside the writer.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(4)

	cfg := defaultArchiveConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	// Sort keys for deterministic execution order (good for testing)
	keys := make([]string, 0, len(cfg.pragmas))
	for k := range cfg.pragmas {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := cfg.pragmas[key]
		pragmaSQL := fmt.Sprintf("PRAGMA %s=%s", key, value)
		if _, err := db.Exec(pragmaSQL); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragmaSQL, err)
		}
	}

	archive := &Archive{
		db:      db,
		ownsDB:  true,
		dialect: sqliteDialect{},
		logger:  slog.Default(),
	}

	if err := archive.initSchemaAndStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return archive, nil
}
