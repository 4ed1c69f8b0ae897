package domain

import (
	"sort"
	"strings"
)

// ReferenceVersions stamps a consensus call with the versions of the
// reference tables that produced it.
type ReferenceVersions struct {
	Nomenclature string `json:"nomenclature,omitempty"`
	Priority     string `json:"priority,omitempty"`
	Phenotype    string `json:"phenotype,omitempty"`
}

// AlleleDefinition describes one canonical star allele in the nomenclature
// table.
type AlleleDefinition struct {
	Name         string   `json:"name"`
	PharmVarID   string   `json:"pharmvar_id,omitempty"`
	CoreVariants []string `json:"core_variants,omitempty"`
}

// GeneNomenclature holds the canonical allele set and synonym map for one
// gene. Synonym keys are stored pre-normalized (upper case, no gene
// prefix) by the reference loader.
type GeneNomenclature struct {
	Gene     string                      `json:"gene"`
	Alleles  map[string]AlleleDefinition `json:"alleles"`
	Synonyms map[string]string           `json:"synonyms,omitempty"`
}

// NomenclatureTable maps tool-specific and legacy allele spellings onto
// canonical star-allele designations, per gene. Immutable after load.
type NomenclatureTable struct {
	Version string                      `json:"version"`
	Source  string                      `json:"source,omitempty"`
	Genes   map[string]GeneNomenclature `json:"genes"`
}

// Gene returns the nomenclature for a gene symbol, nil if absent.
func (t *NomenclatureTable) Gene(symbol string) *GeneNomenclature {
	if t == nil {
		return nil
	}
	if g, ok := t.Genes[strings.ToUpper(symbol)]; ok {
		return &g
	}
	return nil
}

// PriorityTable ranks tool reliability per gene; lower rank wins. The "*"
// gene entry acts as a fallback ranking for genes without their own.
type PriorityTable struct {
	Version  string                    `json:"version"`
	Rankings map[string]map[string]int `json:"rankings"`
}

// Rank returns the configured rank of a tool for a gene. The boolean is
// false when neither the gene nor the wildcard entry ranks the tool.
func (t *PriorityTable) Rank(gene, tool string) (int, bool) {
	if t == nil {
		return 0, false
	}
	if ranks, ok := t.Rankings[strings.ToUpper(gene)]; ok {
		if r, ok := ranks[tool]; ok {
			return r, true
		}
	}
	if ranks, ok := t.Rankings["*"]; ok {
		if r, ok := ranks[tool]; ok {
			return r, true
		}
	}
	return 0, false
}

// GenePhenotypeRules holds the allele-function assignments and the
// function-pair phenotype lookup for one gene.
type GenePhenotypeRules struct {
	Gene       string                    `json:"gene"`
	Functions  map[string]AlleleFunction `json:"functions"`
	Phenotypes map[string]Phenotype      `json:"phenotypes"`
}

// PhenotypeTable maps alleles to functional status and function pairs to
// metabolizer phenotypes, per gene. Immutable after load.
type PhenotypeTable struct {
	Version string                        `json:"version"`
	Genes   map[string]GenePhenotypeRules `json:"genes"`
}

// Gene returns the phenotype rules for a gene symbol, nil if absent.
func (t *PhenotypeTable) Gene(symbol string) *GenePhenotypeRules {
	if t == nil {
		return nil
	}
	if g, ok := t.Genes[strings.ToUpper(symbol)]; ok {
		return &g
	}
	return nil
}

// FunctionPairKey builds the order-independent lookup key for a pair of
// allele functions, e.g. "NO_FUNCTION|NORMAL_FUNCTION".
func FunctionPairKey(a, b AlleleFunction) string {
	pair := []string{string(a), string(b)}
	sort.Strings(pair)
	return strings.Join(pair, "|")
}

// ReferenceSet bundles the three injected reference tables the engine
// needs for a run.
type ReferenceSet struct {
	Nomenclature *NomenclatureTable
	Priority     *PriorityTable
	Phenotype    *PhenotypeTable
}

// Versions reports the version stamp of each table in the set.
func (s ReferenceSet) Versions() ReferenceVersions {
	v := ReferenceVersions{}
	if s.Nomenclature != nil {
		v.Nomenclature = s.Nomenclature.Version
	}
	if s.Priority != nil {
		v.Priority = s.Priority.Version
	}
	if s.Phenotype != nil {
		v.Phenotype = s.Phenotype.Version
	}
	return v
}
