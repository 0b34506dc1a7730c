package ontograph

import (
	"database/sql"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Counter for generating unique in-memory database names
var inMemoryDBCounter atomic.Uint64

// Archive persists graph snapshots to a SQL database. It uses a three
// table schema: nodes keyed by identifier with the node document stored
// as JSON, edges keyed by a hash of (sub, pred, obj), and the alias
// table mapping collapsed identifiers to their canonical node.
type Archive struct {
	db *sql.DB
	// ownsDB marks whether Close should close the underlying connection.
	ownsDB bool
	// dialect handles SQL syntax differences between databases.
	dialect archiveDialect
	logger  *slog.Logger
	// Prepared statements for single-row writes
	nodeStmt  *sql.Stmt
	edgeStmt  *sql.Stmt
	aliasStmt *sql.Stmt
}

// nodeDoc is the JSON document stored per node row.
type nodeDoc struct {
	Label      string              `json:"lbl,omitempty"`
	Categories []string            `json:"categories,omitempty"`
	Properties map[string][]string `json:"properties,omitempty"`
	Deprecated bool                `json:"deprecated,omitempty"`
}

// nodeRow and edgeRow are the shapes used by the WriteTo/ReadFrom
// JSON stream. The stream is a single object:
// {"nodes":[...],"edges":[...],"aliases":{...}}.
type nodeRow struct {
	ID  string  `json:"id"`
	Doc nodeDoc `json:"doc"`
}

type edgeRow struct {
	Sub  string            `json:"sub"`
	Pred string            `json:"pred"`
	Obj  string            `json:"obj"`
	Meta map[string]string `json:"meta"`
}

func nodeToDoc(n *Node) nodeDoc {
	return nodeDoc{
		Label:      n.Label,
		Categories: n.Categories,
		Properties: n.Properties,
		Deprecated: n.Deprecated,
	}
}

func docToNode(id string, doc nodeDoc) *Node {
	n := NewNode(id)
	n.Label = doc.Label
	n.Categories = doc.Categories
	if doc.Properties != nil {
		n.Properties = doc.Properties
	}
	n.Deprecated = doc.Deprecated
	return n
}

// marshalDoc serializes a value to deterministic JSON text for storage.
func marshalDoc(v any) (string, error) {
	data, err := json.Marshal(v, json.Deterministic(true))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PutNode upserts a node row, replacing the stored document.
func (a *Archive) PutNode(n *Node) error {
	doc, err := marshalDoc(nodeToDoc(n))
	if err != nil {
		return fmt.Errorf("failed to marshal node %s: %w", n.ID, err)
	}
	if _, err := a.nodeStmt.Exec(n.ID, doc); err != nil {
		return fmt.Errorf("failed to upsert node %s: %w", n.ID, err)
	}
	return nil
}

// PutEdge inserts an edge row. Duplicate (sub, pred, obj) rows collapse
// to one via the edge hash primary key.
func (a *Archive) PutEdge(e *Edge) error {
	meta, err := marshalDoc(e.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal edge meta: %w", err)
	}
	if _, err := a.edgeStmt.Exec(edgeHash(e.Sub, e.Pred, e.Obj), e.Sub, e.Pred, e.Obj, meta); err != nil {
		return fmt.Errorf("failed to insert edge: %w", err)
	}
	return nil
}

// PutAlias upserts an alias -> canonical mapping.
func (a *Archive) PutAlias(alias, canonical string) error {
	if _, err := a.aliasStmt.Exec(alias, canonical); err != nil {
		return fmt.Errorf("failed to upsert alias %s: %w", alias, err)
	}
	return nil
}

// SaveSnapshot writes every node, edge and alias of the snapshot in one
// transaction using multi-row statements. Existing node documents are
// replaced; the snapshot is authoritative for the nodes it contains.
func (a *Archive) SaveSnapshot(snap *Snapshot) error {
	nodes := snap.Nodes()
	edges := snap.Edges()
	aliases := snap.Aliases()

	tx, err := a.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Rollback is a no-op if Commit succeeds

	if err := a.batchInsertNodes(tx, nodes); err != nil {
		return err
	}
	if err := a.batchInsertEdges(tx, edges); err != nil {
		return err
	}
	if err := a.batchInsertAliases(tx, aliases); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// batchSize balances SQL parsing cost against parameter-count limits.
const batchSize = 500

func (a *Archive) batchInsertNodes(tx *sql.Tx, nodes []*Node) error {
	for i := 0; i < len(nodes); i += batchSize {
		end := min(i+batchSize, len(nodes))
		batch := nodes[i:end]

		sqlText := a.dialect.batchNodeSQL(len(batch))
		params := make([]any, 0, len(batch)*2)
		for _, n := range batch {
			doc, err := marshalDoc(nodeToDoc(n))
			if err != nil {
				return fmt.Errorf("failed to marshal node %s: %w", n.ID, err)
			}
			params = append(params, n.ID, doc)
		}
		if _, err := tx.Exec(sqlText, params...); err != nil {
			return fmt.Errorf("failed to execute node batch: %w", err)
		}
	}
	return nil
}

func (a *Archive) batchInsertEdges(tx *sql.Tx, edges []*Edge) error {
	for i := 0; i < len(edges); i += batchSize {
		end := min(i+batchSize, len(edges))
		batch := edges[i:end]

		sqlText := a.dialect.batchEdgeSQL(len(batch))
		params := make([]any, 0, len(batch)*5)
		for _, e := range batch {
			meta, err := marshalDoc(e.Meta)
			if err != nil {
				return fmt.Errorf("failed to marshal edge meta: %w", err)
			}
			params = append(params, edgeHash(e.Sub, e.Pred, e.Obj), e.Sub, e.Pred, e.Obj, meta)
		}
		if _, err := tx.Exec(sqlText, params...); err != nil {
			return fmt.Errorf("failed to execute edge batch: %w", err)
		}
	}
	return nil
}

func (a *Archive) batchInsertAliases(tx *sql.Tx, aliases map[string]string) error {
	rows := make([][2]string, 0, len(aliases))
	for alias, canonical := range aliases {
		rows = append(rows, [2]string{alias, canonical})
	}
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))
		batch := rows[i:end]

		sqlText := a.dialect.batchAliasSQL(len(batch))
		params := make([]any, 0, len(batch)*2)
		for _, r := range batch {
			params = append(params, r[0], r[1])
		}
		if _, err := tx.Exec(sqlText, params...); err != nil {
			return fmt.Errorf("failed to execute alias batch: %w", err)
		}
	}
	return nil
}

// LoadGraph reads the archived graph and merges it into the store as a
// single merge, so readers observe the loaded graph atomically.
func (a *Archive) LoadGraph(store *Store) error {
	nodes, err := a.loadNodes()
	if err != nil {
		return err
	}
	edges, err := a.loadEdges()
	if err != nil {
		return err
	}
	aliases, err := a.loadAliases()
	if err != nil {
		return err
	}
	store.Merge(nodes, edges, aliases)
	return nil
}

func (a *Archive) loadNodes() ([]*Node, error) {
	rows, err := a.db.Query(a.dialect.selectNodesSQL())
	if err != nil {
		return nil, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	var out []*Node
	for rows.Next() {
		var id, docJSON string
		if err := rows.Scan(&id, &docJSON); err != nil {
			return nil, fmt.Errorf("failed to scan node row: %w", err)
		}
		var doc nodeDoc
		if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
			return nil, fmt.Errorf("failed to unmarshal node %s: %w", id, err)
		}
		out = append(out, docToNode(id, doc))
	}
	return out, rows.Err()
}

func (a *Archive) loadEdges() ([]*Edge, error) {
	rows, err := a.db.Query(a.dialect.selectEdgesSQL())
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var out []*Edge
	for rows.Next() {
		var sub, pred, obj, metaJSON string
		if err := rows.Scan(&sub, &pred, &obj, &metaJSON); err != nil {
			return nil, fmt.Errorf("failed to scan edge row: %w", err)
		}
		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			return nil, fmt.Errorf("failed to unmarshal edge meta: %w", err)
		}
		if len(meta) == 0 {
			meta = nil
		}
		out = append(out, &Edge{Sub: sub, Pred: pred, Obj: obj, Meta: meta})
	}
	return out, rows.Err()
}

func (a *Archive) loadAliases() (map[string]string, error) {
	rows, err := a.db.Query(a.dialect.selectAliasesSQL())
	if err != nil {
		return nil, fmt.Errorf("failed to query aliases: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var alias, canonical string
		if err := rows.Scan(&alias, &canonical); err != nil {
			return nil, fmt.Errorf("failed to scan alias row: %w", err)
		}
		out[alias] = canonical
	}
	return out, rows.Err()
}

// NodeCount returns the number of archived nodes.
func (a *Archive) NodeCount() int {
	var count int
	if err := a.db.QueryRow("SELECT COUNT(*) FROM nodes").Scan(&count); err != nil {
		a.logger.Error("archive failed to count nodes", "error", err)
		return 0
	}
	return count
}

// EdgeCount returns the number of archived edges.
func (a *Archive) EdgeCount() int {
	var count int
	if err := a.db.QueryRow("SELECT COUNT(*) FROM edges").Scan(&count); err != nil {
		a.logger.Error("archive failed to count edges", "error", err)
		return 0
	}
	return count
}

// WriteTo streams the archived graph to w as a single JSON object with
// nodes, edges and aliases members. It implements the io.WriterTo
// interface. Rows are streamed directly to the writer without
// intermediate buffering, making this efficient for large graphs.
// Returns the number of bytes written and any error encountered.
func (a *Archive) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	enc := jsontext.NewEncoder(cw)

	if err := enc.WriteToken(jsontext.BeginObject); err != nil {
		return cw.count, err
	}

	if err := enc.WriteToken(jsontext.String("nodes")); err != nil {
		return cw.count, err
	}
	if err := enc.WriteToken(jsontext.BeginArray); err != nil {
		return cw.count, err
	}
	rows, err := a.db.Query(a.dialect.selectNodesSQL())
	if err != nil {
		return cw.count, fmt.Errorf("failed to query nodes: %w", err)
	}
	for rows.Next() {
		var id, docJSON string
		if err := rows.Scan(&id, &docJSON); err != nil {
			rows.Close()
			return cw.count, fmt.Errorf("failed to scan node row: %w", err)
		}
		var doc nodeDoc
		if err := json.Unmarshal([]byte(docJSON), &doc); err != nil {
			rows.Close()
			return cw.count, fmt.Errorf("failed to unmarshal node %s: %w", id, err)
		}
		if err := json.MarshalEncode(enc, nodeRow{ID: id, Doc: doc}, json.Deterministic(true)); err != nil {
			rows.Close()
			return cw.count, err
		}
	}
	if err := closeRows(rows); err != nil {
		return cw.count, err
	}
	if err := enc.WriteToken(jsontext.EndArray); err != nil {
		return cw.count, err
	}

	if err := enc.WriteToken(jsontext.String("edges")); err != nil {
		return cw.count, err
	}
	if err := enc.WriteToken(jsontext.BeginArray); err != nil {
		return cw.count, err
	}
	rows, err = a.db.Query(a.dialect.selectEdgesSQL())
	if err != nil {
		return cw.count, fmt.Errorf("failed to query edges: %w", err)
	}
	for rows.Next() {
		var sub, pred, obj, metaJSON string
		if err := rows.Scan(&sub, &pred, &obj, &metaJSON); err != nil {
			rows.Close()
			return cw.count, fmt.Errorf("failed to scan edge row: %w", err)
		}
		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			rows.Close()
			return cw.count, fmt.Errorf("failed to unmarshal edge meta: %w", err)
		}
		if err := json.MarshalEncode(enc, edgeRow{Sub: sub, Pred: pred, Obj: obj, Meta: meta}, json.Deterministic(true)); err != nil {
			rows.Close()
			return cw.count, err
		}
	}
	if err := closeRows(rows); err != nil {
		return cw.count, err
	}
	if err := enc.WriteToken(jsontext.EndArray); err != nil {
		return cw.count, err
	}

	if err := enc.WriteToken(jsontext.String("aliases")); err != nil {
		return cw.count, err
	}
	aliases, err := a.loadAliases()
	if err != nil {
		return cw.count, err
	}
	if err := json.MarshalEncode(enc, aliases, json.Deterministic(true)); err != nil {
		return cw.count, err
	}

	if err := enc.WriteToken(jsontext.EndObject); err != nil {
		return cw.count, err
	}
	return cw.count, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

// ReadFrom reads a graph dump produced by WriteTo and bulk-inserts it
// into the archive. It implements the io.ReaderFrom interface. Rows are
// decoded one at a time and inserted in batches, keeping memory bounded
// for large dumps. Returns the number of bytes read and any error
// encountered.
func (a *Archive) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: r}
	dec := jsontext.NewDecoder(cr)

	tok, err := dec.ReadToken()
	if err != nil {
		return cr.count, fmt.Errorf("failed to read opening token: %w", err)
	}
	if tok.Kind() != '{' {
		return cr.count, fmt.Errorf("expected JSON object start '{', got %c", tok.Kind())
	}

	for dec.PeekKind() != '}' {
		nameTok, err := dec.ReadToken()
		if err != nil {
			return cr.count, fmt.Errorf("failed to read member name: %w", err)
		}
		switch name := nameTok.String(); name {
		case "nodes":
			if err := a.readNodeStream(dec); err != nil {
				return cr.count, err
			}
		case "edges":
			if err := a.readEdgeStream(dec); err != nil {
				return cr.count, err
			}
		case "aliases":
			var aliases map[string]string
			if err := json.UnmarshalDecode(dec, &aliases); err != nil {
				return cr.count, fmt.Errorf("failed to unmarshal aliases: %w", err)
			}
			for alias, canonical := range aliases {
				if err := a.PutAlias(alias, canonical); err != nil {
					return cr.count, err
				}
			}
		default:
			return cr.count, fmt.Errorf("unexpected member %q in graph dump", name)
		}
	}

	tok, err = dec.ReadToken()
	if err != nil {
		return cr.count, fmt.Errorf("failed to read closing token: %w", err)
	}
	if tok.Kind() != '}' {
		return cr.count, fmt.Errorf("expected JSON object end '}', got %c", tok.Kind())
	}
	return cr.count, nil
}

func (a *Archive) readNodeStream(dec *jsontext.Decoder) error {
	tok, err := dec.ReadToken()
	if err != nil {
		return fmt.Errorf("failed to read nodes array start: %w", err)
	}
	if tok.Kind() != '[' {
		return fmt.Errorf("expected JSON array start '[', got %c", tok.Kind())
	}

	var batch []*Node
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		tx, err := a.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()
		if err := a.batchInsertNodes(tx, batch); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for dec.PeekKind() != ']' {
		var row nodeRow
		if err := json.UnmarshalDecode(dec, &row); err != nil {
			return fmt.Errorf("failed to unmarshal node from stream: %w", err)
		}
		batch = append(batch, docToNode(row.ID, row.Doc))
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if tok, err = dec.ReadToken(); err != nil {
		return fmt.Errorf("failed to read nodes array end: %w", err)
	}
	if tok.Kind() != ']' {
		return fmt.Errorf("expected JSON array end ']', got %c", tok.Kind())
	}
	return nil
}

func (a *Archive) readEdgeStream(dec *jsontext.Decoder) error {
	tok, err := dec.ReadToken()
	if err != nil {
		return fmt.Errorf("failed to read edges array start: %w", err)
	}
	if tok.Kind() != '[' {
		return fmt.Errorf("expected JSON array start '[', got %c", tok.Kind())
	}

	var batch []*Edge
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		tx, err := a.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()
		if err := a.batchInsertEdges(tx, batch); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for dec.PeekKind() != ']' {
		var row edgeRow
		if err := json.UnmarshalDecode(dec, &row); err != nil {
			return fmt.Errorf("failed to unmarshal edge from stream: %w", err)
		}
		meta := row.Meta
		if len(meta) == 0 {
			meta = nil
		}
		batch = append(batch, &Edge{Sub: row.Sub, Pred: row.Pred, Obj: row.Obj, Meta: meta})
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}

	if tok, err = dec.ReadToken(); err != nil {
		return fmt.Errorf("failed to read edges array end: %w", err)
	}
	if tok.Kind() != ']' {
		return fmt.Errorf("expected JSON array end ']', got %c", tok.Kind())
	}
	return nil
}

// countingWriter wraps an io.Writer and counts bytes written.
type countingWriter struct {
	w     io.Writer
	count int64
}

func (cw *countingWriter) Write(p []byte) (n int, err error) {
	n, err = cw.w.Write(p)
	cw.count += int64(n)
	return n, err
}

// countingReader wraps an io.Reader and counts bytes read.
type countingReader struct {
	r     io.Reader
	count int64
}

func (cr *countingReader) Read(p []byte) (n int, err error) {
	n, err = cr.r.Read(p)
	cr.count += int64(n)
	return n, err
}

// Close releases the prepared statements and, when the archive owns the
// connection, closes the database.
func (a *Archive) Close() error {
	if a.nodeStmt != nil {
		a.nodeStmt.Close()
	}
	if a.edgeStmt != nil {
		a.edgeStmt.Close()
	}
	if a.aliasStmt != nil {
		a.aliasStmt.Close()
	}
	if a.ownsDB {
		return a.db.Close()
	}
	return nil
}

// initSchemaAndStatements creates the tables, indexes, and prepared statements.
func (a *Archive) initSchemaAndStatements() error {
	for _, stmt := range a.dialect.createTableSQL() {
		if _, err := a.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create archive schema: %w", err)
		}
	}

	nodeStmt, err := a.db.Prepare(a.dialect.upsertNodeSQL())
	if err != nil {
		return fmt.Errorf("failed to prepare node statement: %w", err)
	}
	a.nodeStmt = nodeStmt

	edgeStmt, err := a.db.Prepare(a.dialect.insertEdgeSQL())
	if err != nil {
		return fmt.Errorf("failed to prepare edge statement: %w", err)
	}
	a.edgeStmt = edgeStmt

	aliasStmt, err := a.db.Prepare(a.dialect.upsertAliasSQL())
	if err != nil {
		return fmt.Errorf("failed to prepare alias statement: %w", err)
	}
	a.aliasStmt = aliasStmt

	return nil
}

// Helper Functions

// szudzikElegantPair implements Szudzik's elegant pairing function.
// See http://szudzik.com/ElegantPairing.pdf
func szudzikElegantPair(fst, snd uint64) uint64 {
	if fst >= snd {
		return fst*fst + fst + snd
	}
	return snd*snd + fst
}

// edgeHash computes the deduplication key for an edge row. Cast to
// int64 for database/sql compatibility; BIGINT keeps the bit pattern.
func edgeHash(sub, pred, obj string) int64 {
	hash := func(s string) uint64 {
		h := fnv.New64a()
		h.Write([]byte(s))
		return h.Sum64()
	}
	return int64(szudzikElegantPair(szudzikElegantPair(hash(sub), hash(pred)), hash(obj)))
}
