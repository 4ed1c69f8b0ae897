package domain

import (
	"context"
)

// RecordValidator checks raw input records against the field contract.
type RecordValidator interface {
	ValidateBatch(data []byte) ([]ToolCallRecord, []ValidationError, error)
	ValidateRecord(index int, record *ToolCallRecord) *ValidationError
}

// AlleleNormalizer maps one tool call record onto a normalized diplotype
// using the injected nomenclature table. Failures are represented as field
// states on the result, never as errors.
type AlleleNormalizer interface {
	NormalizeRecord(record ToolCallRecord) NormalizedDiplotype
}

// ConflictResolver produces one consensus call from all the normalized
// diplotypes of a sample-gene group.
type ConflictResolver interface {
	Resolve(group SampleGeneGroup) ConsensusCall
}

// PhenotypeMapper derives a metabolizer phenotype from a resolved
// diplotype via the gene-specific function/phenotype table.
type PhenotypeMapper interface {
	MapPhenotype(gene string, diplotype NormalizedDiplotype) (Phenotype, []AlleleFunction)
}

// ConsensusRepository persists and retrieves consensus calls.
type ConsensusRepository interface {
	Save(ctx context.Context, call *ConsensusCall) error
	Get(ctx context.Context, sampleID, gene string) (*ConsensusCall, error)
	List(ctx context.Context, filter ConsensusFilter) ([]ConsensusCall, error)
	Close() error
}

// ConsensusFilter narrows repository listings.
type ConsensusFilter struct {
	SampleID string
	Gene     string
	Method   ResolutionMethod
	Limit    int
}

// ReferenceSource loads the versioned reference tables the engine depends
// on. Implementations must return immutable tables.
type ReferenceSource interface {
	Load(ctx context.Context) (ReferenceSet, error)
}
