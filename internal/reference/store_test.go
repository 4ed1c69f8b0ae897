package reference

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-consensus-server/internal/domain"
)

func testReferenceSet() domain.ReferenceSet {
	return domain.ReferenceSet{
		Nomenclature: &domain.NomenclatureTable{
			Version: "test-1",
			Genes: map[string]domain.GeneNomenclature{
				"CYP2D6": {
					Gene: "CYP2D6",
					Alleles: map[string]domain.AlleleDefinition{
						"*1":  {Name: "*1"},
						"*2":  {Name: "*2"},
						"*4":  {Name: "*4"},
						"*5":  {Name: "*5"},
						"*10": {Name: "*10"},
					},
					Synonyms: map[string]string{
						"*4A": "*4",
					},
				},
			},
		},
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store, err := NewStore(testReferenceSet(), 16, logger)
	require.NoError(t, err)
	return store
}

func TestStore_LookupAllele(t *testing.T) {
	store := newTestStore(t)

	tests := []struct {
		name          string
		gene          string
		raw           string
		wantCanonical string
		wantStatus    domain.MappingStatus
	}{
		{"Exact match", "CYP2D6", "*4", "*4", domain.EXACT_MATCH},
		{"Gene-prefixed raw", "CYP2D6", "CYP2D6*4", "*4", domain.EXACT_MATCH},
		{"Lowercase raw", "CYP2D6", "cyp2d6*10", "*10", domain.EXACT_MATCH},
		{"Synonym", "CYP2D6", "*4A", "*4", domain.EXACT_MATCH},
		{"Sub-allele fuzzy", "CYP2D6", "*4.021", "*4", domain.FUZZY_MATCH},
		{"Suffix-letter fuzzy", "CYP2D6", "*10B", "*10", domain.FUZZY_MATCH},
		{"Unknown allele", "CYP2D6", "*99", "", domain.MAPPING_FAILED},
		{"Unknown gene", "CYP9Z9", "*1", "", domain.MAPPING_FAILED},
		{"Empty raw", "CYP2D6", "", "", domain.MAPPING_FAILED},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			canonical, status := store.LookupAllele(tt.gene, tt.raw)
			assert.Equal(t, tt.wantCanonical, canonical)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}

func TestStore_LookupAllele_Cached(t *testing.T) {
	store := newTestStore(t)

	first, status1 := store.LookupAllele("CYP2D6", "*4.021")
	second, status2 := store.LookupAllele("CYP2D6", "*4.021")
	assert.Equal(t, first, second)
	assert.Equal(t, status1, status2)
	assert.Equal(t, 1, store.cache.Len())
}

func TestNewStore_RequiresNomenclature(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	_, err := NewStore(domain.ReferenceSet{}, 16, logger)
	require.Error(t, err)

	var batchErr *domain.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, domain.ErrReferenceTables, batchErr.Code)
}
