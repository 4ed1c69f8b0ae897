package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pgx-consensus-server/internal/domain"
)

const defaultMaxWorkers = 8

// EngineService orchestrates the full normalization pipeline: validate,
// normalize, group by (sample, gene), resolve conflicts, map phenotypes,
// and aggregate. Every (sample, gene) pair observed in the input appears
// exactly once in the output, including pairs whose every tool call
// failed normalization.
type EngineService struct {
	validator  domain.RecordValidator
	normalizer domain.AlleleNormalizer
	resolver   domain.ConflictResolver
	phenotypes domain.PhenotypeMapper
	versions   domain.ReferenceVersions
	maxWorkers int
	logger     *logrus.Logger
}

// NewEngineService wires the pipeline components into an engine.
func NewEngineService(
	validator domain.RecordValidator,
	normalizer domain.AlleleNormalizer,
	resolver domain.ConflictResolver,
	phenotypes domain.PhenotypeMapper,
	versions domain.ReferenceVersions,
	cfg domain.EngineConfig,
	logger *logrus.Logger,
) *EngineService {
	workers := cfg.MaxWorkers
	if workers <= 0 {
		workers = defaultMaxWorkers
	}
	return &EngineService{
		validator:  validator,
		normalizer: normalizer,
		resolver:   resolver,
		phenotypes: phenotypes,
		versions:   versions,
		maxWorkers: workers,
		logger:     logger,
	}
}

// Validator exposes the engine's record validator so transports can
// validate a batch before streaming results.
func (e *EngineService) Validator() domain.RecordValidator {
	return e.validator
}

// TableVersions reports the reference table versions the engine was
// built with.
func (e *EngineService) TableVersions() domain.ReferenceVersions {
	return e.versions
}

// BatchResult is the aggregated output of one engine run.
type BatchResult struct {
	RunID            string                   `json:"run_id"`
	Calls            []domain.ConsensusCall   `json:"calls"`
	ValidationErrors []domain.ValidationError `json:"validation_errors,omitempty"`
	TableVersions    domain.ReferenceVersions `json:"table_versions"`
	RecordsIn        int                      `json:"records_in"`
	RecordsValid     int                      `json:"records_valid"`
	StartedAt        time.Time                `json:"started_at"`
	CompletedAt      time.Time                `json:"completed_at"`
}

// ProcessBatch runs the pipeline over a raw JSON batch.
func (e *EngineService) ProcessBatch(ctx context.Context, data []byte) (*BatchResult, error) {
	records, failures, err := e.validator.ValidateBatch(data)
	if err != nil {
		return nil, err
	}
	result, err := e.ProcessRecords(ctx, records)
	if err != nil {
		return nil, err
	}
	result.ValidationErrors = failures
	result.RecordsIn = len(records) + len(failures)
	return result, nil
}

// ProcessRecords runs the pipeline over already-validated records.
func (e *EngineService) ProcessRecords(ctx context.Context, records []domain.ToolCallRecord) (*BatchResult, error) {
	return e.process(ctx, records, nil)
}

// ProcessRecordsStream is ProcessRecords with a callback invoked once per
// consensus call as each group finishes resolving. The callback is
// serialized; emission order follows completion, not group order.
func (e *EngineService) ProcessRecordsStream(ctx context.Context, records []domain.ToolCallRecord, emit func(domain.ConsensusCall)) (*BatchResult, error) {
	return e.process(ctx, records, emit)
}

func (e *EngineService) process(ctx context.Context, records []domain.ToolCallRecord, emit func(domain.ConsensusCall)) (*BatchResult, error) {
	result := &BatchResult{
		RunID:         uuid.New().String(),
		TableVersions: e.versions,
		RecordsIn:     len(records),
		RecordsValid:  len(records),
		StartedAt:     time.Now().UTC(),
	}

	groups := e.groupRecords(records)

	// Groups are independent, so resolution runs in parallel. Each worker
	// writes only its own slot: the output structure is partitioned up
	// front, leaving no insertion step where two workers could collide.
	calls := make([]domain.ConsensusCall, len(groups))
	var emitMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.maxWorkers)
	for i, group := range groups {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			call := e.resolveGroup(group)
			calls[i] = call
			if emit != nil {
				emitMu.Lock()
				emit(call)
				emitMu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Calls = calls
	result.CompletedAt = time.Now().UTC()

	e.logger.WithFields(logrus.Fields{
		"run_id":  result.RunID,
		"records": len(records),
		"groups":  len(groups),
		"elapsed": result.CompletedAt.Sub(result.StartedAt),
	}).Info("Batch processing completed")

	return result, nil
}

// resolveGroup resolves one group and decorates the call with identity,
// phenotype, and table-version stamps.
func (e *EngineService) resolveGroup(group domain.SampleGeneGroup) domain.ConsensusCall {
	call := e.resolver.Resolve(group)
	call.ID = uuid.New().String()
	call.CreatedAt = time.Now().UTC()
	call.TableVersions = e.versions

	// The phenotype mapper is only consulted for resolved diplotypes; a
	// partial consensus is explicitly indeterminate rather than guessed.
	switch call.Status {
	case domain.DIPLOTYPE_RESOLVED:
		if diplotype, ok := consensusDiplotype(group, call.Diplotype); ok {
			call.Phenotype, call.AlleleFunctions = e.phenotypes.MapPhenotype(group.Gene, diplotype)
		}
	case domain.DIPLOTYPE_PARTIAL:
		call.Phenotype = domain.INDETERMINATE_PHENOTYPE
	}
	return call
}

// groupRecords normalizes every record and partitions the diplotypes by
// (sample, gene). Group order and within-group order are both canonical,
// so permuting the input batch yields identical output.
func (e *EngineService) groupRecords(records []domain.ToolCallRecord) []domain.SampleGeneGroup {
	byKey := map[domain.GroupKey]*domain.SampleGeneGroup{}
	var keys []domain.GroupKey

	for _, record := range records {
		diplotype := e.normalizer.NormalizeRecord(record)
		key := domain.GroupKey{SampleID: record.SampleID, Gene: record.Gene}
		group, ok := byKey[key]
		if !ok {
			group = &domain.SampleGeneGroup{SampleID: record.SampleID, Gene: record.Gene}
			byKey[key] = group
			keys = append(keys, key)
		}
		group.Diplotypes = append(group.Diplotypes, diplotype)
	}

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].SampleID != keys[j].SampleID {
			return keys[i].SampleID < keys[j].SampleID
		}
		return keys[i].Gene < keys[j].Gene
	})

	groups := make([]domain.SampleGeneGroup, 0, len(keys))
	for _, key := range keys {
		group := byKey[key]
		sort.SliceStable(group.Diplotypes, func(i, j int) bool {
			a, b := group.Diplotypes[i].Record, group.Diplotypes[j].Record
			if a.ToolName != b.ToolName {
				return a.ToolName < b.ToolName
			}
			if a.ReferenceGenome != b.ReferenceGenome {
				return a.ReferenceGenome < b.ReferenceGenome
			}
			return a.RawToolOutput.DiplotypeString < b.RawToolOutput.DiplotypeString
		})
		groups = append(groups, *group)
	}
	return groups
}

// consensusDiplotype finds the group diplotype matching the consensus key
// so the phenotype mapper sees canonical alleles and copy numbers.
func consensusDiplotype(group domain.SampleGeneGroup, key string) (domain.NormalizedDiplotype, bool) {
	for _, d := range group.Diplotypes {
		if d.Resolved() && d.Key() == key {
			return d, true
		}
	}
	return domain.NormalizedDiplotype{}, false
}
