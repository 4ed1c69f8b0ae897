package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pgx-consensus-server/internal/domain"
)

// SQLiteRepository implements domain.ConsensusRepository using SQLite.
type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteRepository creates a new SQLite consensus store.
// It creates the database file and schema if they don't exist.
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteRepository{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// createSchema creates the consensus call table and indexes.
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS consensus_calls (
		id TEXT NOT NULL,
		sample_id TEXT NOT NULL,
		gene TEXT NOT NULL,
		reference_genome TEXT DEFAULT '',
		build_conflict INTEGER NOT NULL DEFAULT 0,
		diplotype TEXT DEFAULT '',
		status TEXT NOT NULL,
		unresolved_reason TEXT DEFAULT '',
		candidates TEXT DEFAULT '[]',
		resolution_method TEXT NOT NULL,
		confidence REAL NOT NULL DEFAULT 0,
		phenotype TEXT DEFAULT '',
		allele_functions TEXT DEFAULT '[]',
		provenance TEXT NOT NULL,
		table_versions TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(sample_id, gene)
	);

	CREATE INDEX IF NOT EXISTS idx_consensus_sample ON consensus_calls(sample_id);
	CREATE INDEX IF NOT EXISTS idx_consensus_gene ON consensus_calls(gene);
	CREATE INDEX IF NOT EXISTS idx_consensus_created_at ON consensus_calls(created_at);
	`

	_, err := db.Exec(schema)
	return err
}

// Save stores a consensus call, replacing any previous call for the same
// sample and gene.
func (r *SQLiteRepository) Save(ctx context.Context, call *domain.ConsensusCall) error {
	candidates, provenance, versions, functions, err := encodeCallColumns(call)
	if err != nil {
		return err
	}

	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO consensus_calls (
			id, sample_id, gene, reference_genome, build_conflict,
			diplotype, status, unresolved_reason, candidates,
			resolution_method, confidence, phenotype, allele_functions,
			provenance, table_versions, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(sample_id, gene) DO UPDATE SET
			id = excluded.id,
			reference_genome = excluded.reference_genome,
			build_conflict = excluded.build_conflict,
			diplotype = excluded.diplotype,
			status = excluded.status,
			unresolved_reason = excluded.unresolved_reason,
			candidates = excluded.candidates,
			resolution_method = excluded.resolution_method,
			confidence = excluded.confidence,
			phenotype = excluded.phenotype,
			allele_functions = excluded.allele_functions,
			provenance = excluded.provenance,
			table_versions = excluded.table_versions,
			created_at = excluded.created_at
	`,
		call.ID, call.SampleID, call.Gene, call.ReferenceGenome, call.BuildConflict,
		call.Diplotype, string(call.Status), string(call.UnresolvedReason), candidates,
		string(call.Method), call.Confidence, string(call.Phenotype), functions,
		provenance, versions, call.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save consensus call: %w", err)
	}
	return nil
}

// Get retrieves the stored consensus call for a sample and gene.
// Returns nil without error when no call exists.
func (r *SQLiteRepository) Get(ctx context.Context, sampleID, gene string) (*domain.ConsensusCall, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+callColumns+`
		FROM consensus_calls
		WHERE sample_id = ? AND gene = ?
		LIMIT 1
	`, sampleID, gene)

	call, err := scanCall(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan consensus call: %w", err)
	}
	return call, nil
}

// List returns stored consensus calls matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter domain.ConsensusFilter) ([]domain.ConsensusCall, error) {
	query := `SELECT ` + callColumns + ` FROM consensus_calls WHERE 1=1`
	var args []interface{}

	if filter.SampleID != "" {
		query += " AND sample_id = ?"
		args = append(args, filter.SampleID)
	}
	if filter.Gene != "" {
		query += " AND gene = ?"
		args = append(args, filter.Gene)
	}
	if filter.Method != "" {
		query += " AND resolution_method = ?"
		args = append(args, string(filter.Method))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list consensus calls: %w", err)
	}
	defer rows.Close()

	var result []domain.ConsensusCall
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, *call)
	}
	return result, rows.Err()
}

// Close closes the store and releases resources.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// defaultListLimit caps unbounded listings.
const defaultListLimit = 100

// callColumns is the shared column order used by both drivers.
const callColumns = `id, sample_id, gene, reference_genome, build_conflict,
		diplotype, status, unresolved_reason, candidates,
		resolution_method, confidence, phenotype, allele_functions,
		provenance, table_versions, created_at`

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// encodeCallColumns serializes the structured parts of a consensus call
// into their JSON column representations.
func encodeCallColumns(call *domain.ConsensusCall) (candidates, provenance, versions, functions string, err error) {
	enc := func(v interface{}, what string) (string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode %s: %w", what, err)
		}
		return string(data), nil
	}

	if candidates, err = enc(call.Candidates, "candidates"); err != nil {
		return
	}
	if provenance, err = enc(call.Provenance, "provenance"); err != nil {
		return
	}
	if versions, err = enc(call.TableVersions, "table versions"); err != nil {
		return
	}
	functions, err = enc(call.AlleleFunctions, "allele functions")
	return
}

// scanCall scans a row into a ConsensusCall.
func scanCall(s scanner) (*domain.ConsensusCall, error) {
	call := &domain.ConsensusCall{}
	var status, reason, method, phenotype string
	var candidates, provenance, versions, functions []byte

	err := s.Scan(
		&call.ID, &call.SampleID, &call.Gene, &call.ReferenceGenome, &call.BuildConflict,
		&call.Diplotype, &status, &reason, &candidates,
		&method, &call.Confidence, &phenotype, &functions,
		&provenance, &versions, &call.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	call.Status = domain.DiplotypeStatus(status)
	call.UnresolvedReason = domain.UnresolvedReason(reason)
	call.Method = domain.ResolutionMethod(method)
	call.Phenotype = domain.Phenotype(phenotype)

	if err := json.Unmarshal(candidates, &call.Candidates); err != nil {
		return nil, fmt.Errorf("failed to decode candidates: %w", err)
	}
	if err := json.Unmarshal(provenance, &call.Provenance); err != nil {
		return nil, fmt.Errorf("failed to decode provenance: %w", err)
	}
	if err := json.Unmarshal(versions, &call.TableVersions); err != nil {
		return nil, fmt.Errorf("failed to decode table versions: %w", err)
	}
	if err := json.Unmarshal(functions, &call.AlleleFunctions); err != nil {
		return nil, fmt.Errorf("failed to decode allele functions: %w", err)
	}

	return call, nil
}
