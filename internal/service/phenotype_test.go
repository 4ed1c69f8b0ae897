package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-consensus-server/internal/domain"
)

func normalizeOne(t *testing.T, record domain.ToolCallRecord) domain.NormalizedDiplotype {
	t.Helper()
	return NewNormalizerService(testStore(t), testLogger()).NormalizeRecord(record)
}

func TestPhenotypeService_MapPhenotype(t *testing.T) {
	mapper := NewPhenotypeService(testPhenotypes(), testLogger())

	tests := []struct {
		name          string
		diplotype     string
		wantPhenotype domain.Phenotype
		wantFunctions []domain.AlleleFunction
	}{
		{
			name:          "Normal metabolizer",
			diplotype:     "*1/*1",
			wantPhenotype: domain.NORMAL_METABOLIZER,
			wantFunctions: []domain.AlleleFunction{domain.NORMAL_FUNCTION, domain.NORMAL_FUNCTION},
		},
		{
			name:          "Intermediate metabolizer",
			diplotype:     "*1/*4",
			wantPhenotype: domain.INTERMEDIATE_METABOLIZER,
			wantFunctions: []domain.AlleleFunction{domain.NORMAL_FUNCTION, domain.NO_FUNCTION},
		},
		{
			name:          "Poor metabolizer",
			diplotype:     "*4/*5",
			wantPhenotype: domain.POOR_METABOLIZER,
			wantFunctions: []domain.AlleleFunction{domain.NO_FUNCTION, domain.NO_FUNCTION},
		},
		{
			name:          "Duplication of normal allele is ultrarapid",
			diplotype:     "*1x2/*1",
			wantPhenotype: domain.ULTRARAPID_METABOLIZER,
			wantFunctions: []domain.AlleleFunction{domain.NORMAL_FUNCTION, domain.INCREASED_FUNCTION},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diplotype := normalizeOne(t, testRecord("S1", "CYP2D6", "ToolA", "GRCh38", tt.diplotype))
			require.Equal(t, domain.DIPLOTYPE_RESOLVED, diplotype.Status)

			phenotype, functions := mapper.MapPhenotype("CYP2D6", diplotype)
			assert.Equal(t, tt.wantPhenotype, phenotype)
			assert.Equal(t, tt.wantFunctions, functions)
		})
	}
}

func TestPhenotypeService_UnknownFunctionIsIndeterminate(t *testing.T) {
	mapper := NewPhenotypeService(testPhenotypes(), testLogger())

	// *10 is in the nomenclature table but absent from the function
	// table: a reference-table inconsistency, mapped to indeterminate
	// rather than guessed from the known allele.
	diplotype := normalizeOne(t, testRecord("S1", "CYP2D6", "ToolA", "GRCh38", "*1/*10"))
	require.Equal(t, domain.DIPLOTYPE_RESOLVED, diplotype.Status)

	phenotype, functions := mapper.MapPhenotype("CYP2D6", diplotype)
	assert.Equal(t, domain.INDETERMINATE_PHENOTYPE, phenotype)
	assert.Contains(t, functions, domain.UNKNOWN_FUNCTION)
}

func TestPhenotypeService_GeneAbsentFromTable(t *testing.T) {
	mapper := NewPhenotypeService(testPhenotypes(), testLogger())

	diplotype := normalizeOne(t, testRecord("S1", "CYP2C19", "ToolA", "GRCh38", "*1/*2"))
	phenotype, functions := mapper.MapPhenotype("CYP2C19", diplotype)
	assert.Equal(t, domain.INDETERMINATE_PHENOTYPE, phenotype)
	assert.Nil(t, functions)
}

func TestPhenotypeService_NilTable(t *testing.T) {
	mapper := NewPhenotypeService(nil, testLogger())

	diplotype := normalizeOne(t, testRecord("S1", "CYP2D6", "ToolA", "GRCh38", "*1/*1"))
	phenotype, _ := mapper.MapPhenotype("CYP2D6", diplotype)
	assert.Equal(t, domain.INDETERMINATE_PHENOTYPE, phenotype)
}
