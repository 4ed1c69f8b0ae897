package reference

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pgx-consensus-server/internal/domain"
	"github.com/pgx-consensus-server/pkg/starallele"
)

// FileSource loads the reference tables from JSON files on disk. Tables
// are validated and normalized once at load time and treated as immutable
// for the duration of a run.
type FileSource struct {
	cfg    domain.ReferenceConfig
	logger *logrus.Logger
}

// NewFileSource creates a file-backed reference source.
func NewFileSource(cfg domain.ReferenceConfig, logger *logrus.Logger) *FileSource {
	return &FileSource{cfg: cfg, logger: logger}
}

// Load reads and validates all configured tables. A run with no
// nomenclature table is fatal; priority and phenotype tables are optional
// (their absence degrades resolution and phenotype mapping, not the run).
func (f *FileSource) Load(ctx context.Context) (domain.ReferenceSet, error) {
	set := domain.ReferenceSet{}

	if f.cfg.NomenclaturePath == "" {
		return set, domain.NewBatchError(domain.ErrReferenceTables, "no nomenclature table configured", "")
	}

	nom := &domain.NomenclatureTable{}
	if err := f.loadJSON(f.cfg.NomenclaturePath, nom); err != nil {
		return set, fmt.Errorf("loading nomenclature table: %w", err)
	}
	if nom.Version == "" {
		return set, domain.NewBatchError(domain.ErrReferenceTables, "nomenclature table has no version", f.cfg.NomenclaturePath)
	}
	normalizeNomenclature(nom)
	set.Nomenclature = nom

	if f.cfg.PriorityPath != "" {
		prio := &domain.PriorityTable{}
		if err := f.loadJSON(f.cfg.PriorityPath, prio); err != nil {
			return set, fmt.Errorf("loading priority table: %w", err)
		}
		if prio.Version == "" {
			return set, domain.NewBatchError(domain.ErrReferenceTables, "priority table has no version", f.cfg.PriorityPath)
		}
		normalizePriority(prio)
		set.Priority = prio
	}

	if f.cfg.PhenotypePath != "" {
		phen := &domain.PhenotypeTable{}
		if err := f.loadJSON(f.cfg.PhenotypePath, phen); err != nil {
			return set, fmt.Errorf("loading phenotype table: %w", err)
		}
		if phen.Version == "" {
			return set, domain.NewBatchError(domain.ErrReferenceTables, "phenotype table has no version", f.cfg.PhenotypePath)
		}
		normalizePhenotype(phen)
		set.Phenotype = phen
	}

	f.logger.WithFields(logrus.Fields{
		"nomenclature_version": set.Nomenclature.Version,
		"priority_loaded":      set.Priority != nil,
		"phenotype_loaded":     set.Phenotype != nil,
		"genes":                len(set.Nomenclature.Genes),
	}).Info("Reference tables loaded")

	return set, nil
}

func (f *FileSource) loadJSON(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// normalizeNomenclature upper-cases gene keys and pre-normalizes allele
// and synonym spellings so lookups are a single map hit.
func normalizeNomenclature(t *domain.NomenclatureTable) {
	genes := make(map[string]domain.GeneNomenclature, len(t.Genes))
	for symbol, g := range t.Genes {
		upper := strings.ToUpper(symbol)
		g.Gene = upper

		alleles := make(map[string]domain.AlleleDefinition, len(g.Alleles))
		for name, def := range g.Alleles {
			canonical := starallele.NormalizeToken(upper, name)
			def.Name = canonical
			alleles[canonical] = def
		}
		g.Alleles = alleles

		synonyms := make(map[string]string, len(g.Synonyms))
		for from, to := range g.Synonyms {
			synonyms[starallele.NormalizeToken(upper, from)] = starallele.NormalizeToken(upper, to)
		}
		g.Synonyms = synonyms

		genes[upper] = g
	}
	t.Genes = genes
}

func normalizePriority(t *domain.PriorityTable) {
	rankings := make(map[string]map[string]int, len(t.Rankings))
	for gene, ranks := range t.Rankings {
		if gene == "*" {
			rankings["*"] = ranks
			continue
		}
		rankings[strings.ToUpper(gene)] = ranks
	}
	t.Rankings = rankings
}

func normalizePhenotype(t *domain.PhenotypeTable) {
	genes := make(map[string]domain.GenePhenotypeRules, len(t.Genes))
	for symbol, g := range t.Genes {
		upper := strings.ToUpper(symbol)
		g.Gene = upper

		functions := make(map[string]domain.AlleleFunction, len(g.Functions))
		for allele, fn := range g.Functions {
			functions[starallele.NormalizeToken(upper, allele)] = fn
		}
		g.Functions = functions

		genes[upper] = g
	}
	t.Genes = genes
}
