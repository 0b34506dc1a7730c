package ontograph

import (
	"fmt"
	"strings"
)

// archiveDialect defines an interface for generating database-specific SQL
// for the graph archive schema.
type archiveDialect interface {
	// createTableSQL returns the statements creating the nodes, edges and
	// aliases tables plus their indexes.
	createTableSQL() []string
	// upsertNodeSQL returns the SQL for inserting a node, replacing the
	// document on conflict.
	upsertNodeSQL() string
	// insertEdgeSQL returns the SQL for inserting an edge with conflict handling.
	insertEdgeSQL() string
	// upsertAliasSQL returns the SQL for inserting an alias mapping.
	upsertAliasSQL() string
	// batchNodeSQL builds a multi-row node upsert for a given number of rows.
	batchNodeSQL(numRows int) string
	// batchEdgeSQL builds a multi-row edge insert for a given number of rows.
	batchEdgeSQL(numRows int) string
	// batchAliasSQL builds a multi-row alias upsert for a given number of rows.
	batchAliasSQL(numRows int) string
	// selectNodesSQL returns all nodes with their documents as JSON text.
	selectNodesSQL() string
	// selectEdgesSQL returns all edges with their metadata as JSON text.
	selectEdgesSQL() string
	// selectAliasesSQL returns all alias mappings.
	selectAliasesSQL() string
}

// --- SQLite Dialect ---

type sqliteDialect struct{}

func (d sqliteDialect) createTableSQL() []string {
	return []string{
		`
			CREATE TABLE IF NOT EXISTS nodes (
				id TEXT NOT NULL,
				doc BLOB NOT NULL,
				PRIMARY KEY(id)
			) WITHOUT ROWID;
		`,
		`
			CREATE TABLE IF NOT EXISTS edges (
				edge_hash BIGINT NOT NULL,
				sub TEXT NOT NULL,
				pred TEXT NOT NULL,
				obj TEXT NOT NULL,
				meta BLOB NOT NULL,
				PRIMARY KEY(edge_hash)
			) WITHOUT ROWID;
		`,
		`CREATE INDEX IF NOT EXISTS idx_edges_sub ON edges(sub);`,
		`
			CREATE TABLE IF NOT EXISTS aliases (
				alias TEXT NOT NULL,
				canonical TEXT NOT NULL,
				PRIMARY KEY(alias)
			) WITHOUT ROWID;
		`,
	}
}

func (d sqliteDialect) upsertNodeSQL() string {
	// Use jsonb() to convert JSON text to binary JSONB format.
	return `
		INSERT INTO nodes (id, doc)
		VALUES (?, jsonb(?))
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`
}

func (d sqliteDialect) insertEdgeSQL() string {
	return `
		INSERT INTO edges (edge_hash, sub, pred, obj, meta)
		VALUES (?, ?, ?, ?, jsonb(?))
		ON CONFLICT DO NOTHING
	`
}

func (d sqliteDialect) upsertAliasSQL() string {
	return `
		INSERT INTO aliases (alias, canonical)
		VALUES (?, ?)
		ON CONFLICT(alias) DO UPDATE SET canonical = excluded.canonical
	`
}

func (d sqliteDialect) batchNodeSQL(numRows int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO nodes (id, doc) VALUES ")
	for i := 0; i < numRows; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		// The doc placeholder is wrapped in jsonb() to convert text to binary JSON.
		sb.WriteString("(?,jsonb(?))")
	}
	sb.WriteString(" ON CONFLICT(id) DO UPDATE SET doc = excluded.doc")
	return sb.String()
}

func (d sqliteDialect) batchEdgeSQL(numRows int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO edges (edge_hash, sub, pred, obj, meta) VALUES ")
	for i := 0; i < numRows; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?,?,?,jsonb(?))")
	}
	sb.WriteString(" ON CONFLICT DO NOTHING")
	return sb.String()
}

func (d sqliteDialect) batchAliasSQL(numRows int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO aliases (alias, canonical) VALUES ")
	for i := 0; i < numRows; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("(?,?)")
	}
	sb.WriteString(" ON CONFLICT(alias) DO UPDATE SET canonical = excluded.canonical")
	return sb.String()
}

func (d sqliteDialect) selectNodesSQL() string {
	return `SELECT id, json(doc) FROM nodes ORDER BY id`
}

func (d sqliteDialect) selectEdgesSQL() string {
	return `SELECT sub, pred, obj, json(meta) FROM edges ORDER BY sub, pred, obj`
}

func (d sqliteDialect) selectAliasesSQL() string {
	return `SELECT alias, canonical FROM aliases ORDER BY alias`
}

// --- PostgreSQL Dialect ---

type postgresDialect struct{}

func (d postgresDialect) createTableSQL() []string {
	return []string{
		`
			CREATE TABLE IF NOT EXISTS nodes (
				id TEXT NOT NULL,
				doc JSONB NOT NULL,
				PRIMARY KEY(id)
			);
		`,
		`
			CREATE TABLE IF NOT EXISTS edges (
				edge_hash BIGINT NOT NULL,
				sub TEXT NOT NULL,
				pred TEXT NOT NULL,
				obj TEXT NOT NULL,
				meta JSONB NOT NULL,
				PRIMARY KEY(edge_hash)
			);
		`,
		`CREATE INDEX IF NOT EXISTS idx_edges_sub ON edges(sub);`,
		`
			CREATE TABLE IF NOT EXISTS aliases (
				alias TEXT NOT NULL,
				canonical TEXT NOT NULL,
				PRIMARY KEY(alias)
			);
		`,
	}
}

func (d postgresDialect) upsertNodeSQL() string {
	// Use a type cast ($2::jsonb) and specify the conflict target.
	return `
		INSERT INTO nodes (id, doc)
		VALUES ($1, $2::jsonb)
		ON CONFLICT (id) DO UPDATE SET doc = excluded.doc
	`
}

func (d postgresDialect) insertEdgeSQL() string {
	return `
		INSERT INTO edges (edge_hash, sub, pred, obj, meta)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		ON CONFLICT (edge_hash) DO NOTHING
	`
}

func (d postgresDialect) upsertAliasSQL() string {
	return `
		INSERT INTO aliases (alias, canonical)
		VALUES ($1, $2)
		ON CONFLICT (alias) DO UPDATE SET canonical = excluded.canonical
	`
}

func (d postgresDialect) batchNodeSQL(numRows int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO nodes (id, doc) VALUES ")
	paramIndex := 1
	for i := 0; i < numRows; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("($%d, $%d::jsonb)", paramIndex, paramIndex+1))
		paramIndex += 2
	}
	// PostgreSQL requires specifying the conflict target column(s).
	sb.WriteString(" ON CONFLICT (id) DO UPDATE SET doc = excluded.doc")
	return sb.String()
}

func (d postgresDialect) batchEdgeSQL(numRows int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO edges (edge_hash, sub, pred, obj, meta) VALUES ")
	paramIndex := 1
	for i := 0; i < numRows; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("($%d, $%d, $%d, $%d, $%d::jsonb)",
			paramIndex, paramIndex+1, paramIndex+2, paramIndex+3, paramIndex+4))
		paramIndex += 5
	}
	sb.WriteString(" ON CONFLICT (edge_hash) DO NOTHING")
	return sb.String()
}

func (d postgresDialect) batchAliasSQL(numRows int) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO aliases (alias, canonical) VALUES ")
	paramIndex := 1
	for i := 0; i < numRows; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(fmt.Sprintf("($%d, $%d)", paramIndex, paramIndex+1))
		paramIndex += 2
	}
	sb.WriteString(" ON CONFLICT (alias) DO UPDATE SET canonical = excluded.canonical")
	return sb.String()
}

func (d postgresDialect) selectNodesSQL() string {
	return `SELECT id, doc::text FROM nodes ORDER BY id`
}

func (d postgresDialect) selectEdgesSQL() string {
	return `SELECT sub, pred, obj, meta::text FROM edges ORDER BY sub, pred, obj`
}

func (d postgresDialect) selectAliasesSQL() string {
	return `SELECT alias, canonical FROM aliases ORDER BY alias`
}
