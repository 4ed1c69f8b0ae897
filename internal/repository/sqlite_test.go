package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-consensus-server/internal/domain"
)

func createTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "consensus.db")
	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	return repo
}

func testCall(sampleID, gene string) *domain.ConsensusCall {
	return &domain.ConsensusCall{
		ID:              uuid.New().String(),
		SampleID:        sampleID,
		Gene:            gene,
		ReferenceGenome: "GRCh38",
		Diplotype:       "*1/*4",
		Status:          domain.DIPLOTYPE_RESOLVED,
		Method:          domain.UNANIMOUS,
		Confidence:      1.0,
		Phenotype:       domain.INTERMEDIATE_METABOLIZER,
		AlleleFunctions: []domain.AlleleFunction{domain.NORMAL_FUNCTION, domain.NO_FUNCTION},
		Provenance: []domain.ToolProvenance{
			{
				ToolName:            "ALDY",
				RawDiplotype:        "CYP2D6*1/*4",
				NormalizedDiplotype: "*1/*4",
				Status:              domain.DIPLOTYPE_RESOLVED,
				Record: domain.ToolCallRecord{
					SampleID:        sampleID,
					Gene:            gene,
					ToolName:        "ALDY",
					ReferenceGenome: "GRCh38",
					RawToolOutput: domain.RawToolOutput{
						DiplotypeString: "CYP2D6*1/*4",
					},
				},
			},
		},
		TableVersions: domain.ReferenceVersions{Nomenclature: "pharmvar-6.2"},
		CreatedAt:     time.Now().UTC(),
	}
}

func TestNewSQLiteRepository(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "nested", "consensus.db")

	repo, err := NewSQLiteRepository(dbPath)
	require.NoError(t, err)
	defer repo.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "Database file should exist")
}

func TestSQLiteRepository_SaveAndGet(t *testing.T) {
	repo := createTestRepository(t)
	defer repo.Close()

	ctx := context.Background()
	call := testCall("NA10860", "CYP2D6")

	require.NoError(t, repo.Save(ctx, call))

	got, err := repo.Get(ctx, "NA10860", "CYP2D6")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, call.ID, got.ID)
	assert.Equal(t, "*1/*4", got.Diplotype)
	assert.Equal(t, domain.UNANIMOUS, got.Method)
	assert.Equal(t, domain.INTERMEDIATE_METABOLIZER, got.Phenotype)
	assert.Equal(t, "pharmvar-6.2", got.TableVersions.Nomenclature)
	require.Len(t, got.Provenance, 1)
	assert.Equal(t, "ALDY", got.Provenance[0].ToolName)
	assert.Equal(t, "CYP2D6*1/*4", got.Provenance[0].Record.RawToolOutput.DiplotypeString)
}

func TestSQLiteRepository_Get_NotFound(t *testing.T) {
	repo := createTestRepository(t)
	defer repo.Close()

	got, err := repo.Get(context.Background(), "NA10860", "CYP2D6")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteRepository_Save_ReplacesSameSampleGene(t *testing.T) {
	repo := createTestRepository(t)
	defer repo.Close()

	ctx := context.Background()

	first := testCall("NA10860", "CYP2D6")
	require.NoError(t, repo.Save(ctx, first))

	second := testCall("NA10860", "CYP2D6")
	second.Diplotype = "*1/*1"
	second.Phenotype = domain.NORMAL_METABOLIZER
	require.NoError(t, repo.Save(ctx, second))

	got, err := repo.Get(ctx, "NA10860", "CYP2D6")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second.ID, got.ID)
	assert.Equal(t, "*1/*1", got.Diplotype)

	calls, err := repo.List(ctx, domain.ConsensusFilter{SampleID: "NA10860"})
	require.NoError(t, err)
	assert.Len(t, calls, 1)
}

func TestSQLiteRepository_List_Filters(t *testing.T) {
	repo := createTestRepository(t)
	defer repo.Close()

	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, testCall("S1", "CYP2D6")))
	require.NoError(t, repo.Save(ctx, testCall("S1", "CYP2C19")))

	unresolved := testCall("S2", "CYP2D6")
	unresolved.Diplotype = ""
	unresolved.Status = domain.DIPLOTYPE_UNRESOLVED
	unresolved.Method = domain.UNRESOLVED
	unresolved.UnresolvedReason = domain.CONFLICTING_CALLS
	unresolved.Candidates = []string{"*1/*1", "*1/*4"}
	unresolved.Confidence = 0
	unresolved.Phenotype = ""
	require.NoError(t, repo.Save(ctx, unresolved))

	bySample, err := repo.List(ctx, domain.ConsensusFilter{SampleID: "S1"})
	require.NoError(t, err)
	assert.Len(t, bySample, 2)

	byGene, err := repo.List(ctx, domain.ConsensusFilter{Gene: "CYP2C19"})
	require.NoError(t, err)
	assert.Len(t, byGene, 1)

	byMethod, err := repo.List(ctx, domain.ConsensusFilter{Method: domain.UNRESOLVED})
	require.NoError(t, err)
	require.Len(t, byMethod, 1)
	assert.Equal(t, domain.CONFLICTING_CALLS, byMethod[0].UnresolvedReason)
	assert.Equal(t, []string{"*1/*1", "*1/*4"}, byMethod[0].Candidates)

	limited, err := repo.List(ctx, domain.ConsensusFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}
