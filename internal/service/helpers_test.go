package service

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/pgx-consensus-server/internal/domain"
	"github.com/pgx-consensus-server/internal/reference"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testNomenclature() *domain.NomenclatureTable {
	return &domain.NomenclatureTable{
		Version: "test-nom-1",
		Genes: map[string]domain.GeneNomenclature{
			"CYP2D6": {
				Gene: "CYP2D6",
				Alleles: map[string]domain.AlleleDefinition{
					"*1":  {Name: "*1"},
					"*2":  {Name: "*2"},
					"*4":  {Name: "*4"},
					"*5":  {Name: "*5"},
					"*10": {Name: "*10"},
					"*41": {Name: "*41"},
				},
				Synonyms: map[string]string{"*4A": "*4"},
			},
			"CYP2C19": {
				Gene: "CYP2C19",
				Alleles: map[string]domain.AlleleDefinition{
					"*1":  {Name: "*1"},
					"*2":  {Name: "*2"},
					"*17": {Name: "*17"},
				},
			},
		},
	}
}

func testPriority() *domain.PriorityTable {
	return &domain.PriorityTable{
		Version: "test-prio-1",
		Rankings: map[string]map[string]int{
			"CYP2D6": {"ToolA": 1, "ToolB": 2},
		},
	}
}

func testPhenotypes() *domain.PhenotypeTable {
	return &domain.PhenotypeTable{
		Version: "test-phen-1",
		Genes: map[string]domain.GenePhenotypeRules{
			"CYP2D6": {
				Gene: "CYP2D6",
				Functions: map[string]domain.AlleleFunction{
					"*1":  domain.NORMAL_FUNCTION,
					"*2":  domain.NORMAL_FUNCTION,
					"*4":  domain.NO_FUNCTION,
					"*5":  domain.NO_FUNCTION,
					"*41": domain.DECREASED_FUNCTION,
				},
				Phenotypes: map[string]domain.Phenotype{
					domain.FunctionPairKey(domain.NORMAL_FUNCTION, domain.NORMAL_FUNCTION):       domain.NORMAL_METABOLIZER,
					domain.FunctionPairKey(domain.NORMAL_FUNCTION, domain.NO_FUNCTION):           domain.INTERMEDIATE_METABOLIZER,
					domain.FunctionPairKey(domain.NO_FUNCTION, domain.NO_FUNCTION):               domain.POOR_METABOLIZER,
					domain.FunctionPairKey(domain.NORMAL_FUNCTION, domain.DECREASED_FUNCTION):    domain.NORMAL_METABOLIZER,
					domain.FunctionPairKey(domain.DECREASED_FUNCTION, domain.NO_FUNCTION):        domain.INTERMEDIATE_METABOLIZER,
					domain.FunctionPairKey(domain.INCREASED_FUNCTION, domain.NORMAL_FUNCTION):    domain.ULTRARAPID_METABOLIZER,
				},
			},
		},
	}
}

func testStore(t *testing.T) *reference.Store {
	t.Helper()
	store, err := reference.NewStore(domain.ReferenceSet{
		Nomenclature: testNomenclature(),
		Priority:     testPriority(),
		Phenotype:    testPhenotypes(),
	}, 64, testLogger())
	require.NoError(t, err)
	return store
}

func testRecord(sample, gene, tool, build, diplotype string) domain.ToolCallRecord {
	return domain.ToolCallRecord{
		SampleID:        sample,
		Gene:            gene,
		ToolName:        tool,
		ReferenceGenome: build,
		RawToolOutput:   domain.RawToolOutput{DiplotypeString: diplotype},
	}
}

func testEngine(t *testing.T) *EngineService {
	t.Helper()
	logger := testLogger()
	store := testStore(t)
	set := store.Set()

	return NewEngineService(
		NewValidatorService(logger),
		NewNormalizerService(store, logger),
		NewResolverService(set.Priority, domain.ResolverConfig{}, logger),
		NewPhenotypeService(set.Phenotype, logger),
		set.Versions(),
		domain.EngineConfig{MaxWorkers: 4},
		logger,
	)
}
