package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"causet/internal/graph"
	"causet/internal/trace"
)

// ErrNotFound is returned when no analysis exists for a source hash.
var ErrNotFound = errors.New("analysis not found")

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates or opens a SQLite database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS analyses (
			hash TEXT PRIMARY KEY,
			scm JSON,
			warnings JSON,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS nodes (
			analysis_hash TEXT,
			id TEXT,
			name TEXT,
			kind TEXT,
			scope TEXT,
			source_line INTEGER,
			metadata JSON,
			position INTEGER,
			PRIMARY KEY (analysis_hash, id)
		);`,
		`CREATE TABLE IF NOT EXISTS edges (
			analysis_hash TEXT,
			source TEXT,
			target TEXT,
			kind TEXT,
			PRIMARY KEY (analysis_hash, source, target, kind)
		);`,
		`CREATE TABLE IF NOT EXISTS traces (
			analysis_hash TEXT,
			node_id TEXT,
			position INTEGER,
			values_blob BLOB,
			PRIMARY KEY (analysis_hash, node_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_hash ON nodes(analysis_hash);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) SaveAnalysis(ctx context.Context, a *Analysis) error {
	if a == nil || a.Hash == "" {
		return errors.New("analysis needs a source hash")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	warnings, _ := json.Marshal(a.Warnings)
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO analyses (hash, scm, warnings) VALUES (?, ?, ?)
		ON CONFLICT(hash) DO UPDATE SET scm=excluded.scm, warnings=excluded.warnings
	`, a.Hash, []byte(a.SCM), warnings); err != nil {
		return err
	}

	// Replace dependent rows wholesale; partial updates are not worth
	// the bookkeeping for analysis-sized graphs.
	for _, table := range []string{"nodes", "edges", "traces"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE analysis_hash = ?", a.Hash); err != nil {
			return err
		}
	}

	if a.Graph != nil {
		snap := a.Graph.ToSnapshot()
		nodeStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO nodes (analysis_hash, id, name, kind, scope, source_line, metadata, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer nodeStmt.Close()
		for i, n := range snap.Nodes {
			metadata, _ := json.Marshal(n.Metadata)
			if _, err := nodeStmt.Exec(a.Hash, n.ID, n.Name, string(n.Kind), n.Scope, n.Line, metadata, i); err != nil {
				return err
			}
		}

		edgeStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO edges (analysis_hash, source, target, kind) VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer edgeStmt.Close()
		for _, e := range snap.Edges {
			if _, err := edgeStmt.Exec(a.Hash, e.Source, e.Target, string(e.Kind)); err != nil {
				return err
			}
		}
	}

	if a.Traces != nil {
		traceStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO traces (analysis_hash, node_id, position, values_blob) VALUES (?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer traceStmt.Close()
		for i, col := range a.Traces.Columns {
			buf := new(bytes.Buffer)
			if err := binary.Write(buf, binary.LittleEndian, a.Traces.Values[col]); err != nil {
				return err
			}
			if _, err := traceStmt.Exec(a.Hash, col, i, buf.Bytes()); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) LoadAnalysis(ctx context.Context, hash string) (*Analysis, error) {
	a := &Analysis{Hash: hash}

	var scmBlob, warnings []byte
	err := s.db.QueryRowContext(ctx, "SELECT scm, warnings FROM analyses WHERE hash = ?", hash).
		Scan(&scmBlob, &warnings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(scmBlob) > 0 {
		a.SCM = json.RawMessage(scmBlob)
	}
	if len(warnings) > 0 {
		_ = json.Unmarshal(warnings, &a.Warnings)
	}

	snap, err := s.loadSnapshot(ctx, hash)
	if err != nil {
		return nil, err
	}
	if len(snap.Nodes) > 0 {
		a.Graph = graph.FromSnapshot(snap)
	}

	traces, err := s.loadTraces(ctx, hash)
	if err != nil {
		return nil, err
	}
	a.Traces = traces

	return a, nil
}

func (s *SQLiteStore) loadSnapshot(ctx context.Context, hash string) (graph.Snapshot, error) {
	snap := graph.Snapshot{Version: graph.SnapshotVersion}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, kind, scope, source_line, metadata FROM nodes WHERE analysis_hash = ? ORDER BY position", hash)
	if err != nil {
		return snap, fmt.Errorf("failed to query nodes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var n graph.NodeSnapshot
		var kind string
		var metadata []byte
		if err := rows.Scan(&n.ID, &n.Name, &kind, &n.Scope, &n.Line, &metadata); err != nil {
			return snap, fmt.Errorf("failed to scan node: %w", err)
		}
		n.Kind = graph.NodeKind(kind)
		if len(metadata) > 0 {
			_ = json.Unmarshal(metadata, &n.Metadata)
		}
		snap.Nodes = append(snap.Nodes, n)
	}

	edgeRows, err := s.db.QueryContext(ctx,
		"SELECT source, target, kind FROM edges WHERE analysis_hash = ?", hash)
	if err != nil {
		return snap, fmt.Errorf("failed to query edges: %w", err)
	}
	defer edgeRows.Close()

	for edgeRows.Next() {
		var e graph.EdgeSnapshot
		var kind string
		if err := edgeRows.Scan(&e.Source, &e.Target, &kind); err != nil {
			return snap, fmt.Errorf("failed to scan edge: %w", err)
		}
		e.Kind = graph.EdgeKind(kind)
		snap.Edges = append(snap.Edges, e)
	}

	return snap, nil
}

func (s *SQLiteStore) loadTraces(ctx context.Context, hash string) (*trace.Trace, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT node_id, values_blob FROM traces WHERE analysis_hash = ? ORDER BY position", hash)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var columns []string
	values := make(map[string][]float64)
	for rows.Next() {
		var col string
		var blob []byte
		if err := rows.Scan(&col, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan trace column: %w", err)
		}
		decoded := make([]float64, len(blob)/8)
		if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, &decoded); err != nil {
			return nil, fmt.Errorf("failed to decode trace column %s: %w", col, err)
		}
		columns = append(columns, col)
		values[col] = decoded
	}
	if len(columns) == 0 {
		return nil, nil
	}

	tr := trace.New(columns)
	tr.Values = values
	return tr, nil
}

func (s *SQLiteStore) ListAnalyses(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT hash FROM analyses ORDER BY created_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, nil
}

var _ Store = (*SQLiteStore)(nil)
