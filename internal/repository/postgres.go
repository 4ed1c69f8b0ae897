package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/pgx-consensus-server/internal/domain"
)

// PostgresRepository implements domain.ConsensusRepository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgreSQL consensus store.
// It expects the schema to already exist (created via migrations).
func NewPostgresRepository(db *sql.DB) (*PostgresRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// NewPostgresRepositoryFromURL creates a new PostgreSQL consensus store
// from a connection URL.
func NewPostgresRepositoryFromURL(databaseURL string) (*PostgresRepository, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	repo, err := NewPostgresRepository(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return repo, nil
}

// Save stores a consensus call, replacing any previous call for the same
// sample and gene.
func (r *PostgresRepository) Save(ctx context.Context, call *domain.ConsensusCall) error {
	candidates, provenance, versions, functions, err := encodeCallColumns(call)
	if err != nil {
		return err
	}

	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO consensus_calls (
			id, sample_id, gene, reference_genome, build_conflict,
			diplotype, status, unresolved_reason, candidates,
			resolution_method, confidence, phenotype, allele_functions,
			provenance, table_versions, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (sample_id, gene) DO UPDATE SET
			id = EXCLUDED.id,
			reference_genome = EXCLUDED.reference_genome,
			build_conflict = EXCLUDED.build_conflict,
			diplotype = EXCLUDED.diplotype,
			status = EXCLUDED.status,
			unresolved_reason = EXCLUDED.unresolved_reason,
			candidates = EXCLUDED.candidates,
			resolution_method = EXCLUDED.resolution_method,
			confidence = EXCLUDED.confidence,
			phenotype = EXCLUDED.phenotype,
			allele_functions = EXCLUDED.allele_functions,
			provenance = EXCLUDED.provenance,
			table_versions = EXCLUDED.table_versions,
			created_at = EXCLUDED.created_at
	`

	_, err = r.db.ExecContext(ctx, query,
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
func (r *PostgresRepository) Get(ctx context.Context, sampleID, gene string) (*domain.ConsensusCall, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+callColumns+`
		FROM consensus_calls
		WHERE sample_id = $1 AND gene = $2
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
func (r *PostgresRepository) List(ctx context.Context, filter domain.ConsensusFilter) ([]domain.ConsensusCall, error) {
	query := `SELECT ` + callColumns + ` FROM consensus_calls WHERE 1=1`
	var args []interface{}

	if filter.SampleID != "" {
		args = append(args, filter.SampleID)
		query += fmt.Sprintf(" AND sample_id = $%d", len(args))
	}
	if filter.Gene != "" {
		args = append(args, filter.Gene)
		query += fmt.Sprintf(" AND gene = $%d", len(args))
	}
	if filter.Method != "" {
		args = append(args, string(filter.Method))
		query += fmt.Sprintf(" AND resolution_method = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

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
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}
