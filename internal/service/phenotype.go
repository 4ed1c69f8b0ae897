package service

import (
	"github.com/sirupsen/logrus"

	"github.com/pgx-consensus-server/internal/domain"
)

// PhenotypeService derives a predicted metabolizer phenotype from a
// resolved canonical diplotype via the gene-specific function/phenotype
// table. Partial information is never upgraded: an unknown allele
// function yields an indeterminate phenotype, not a guess from the known
// half.
type PhenotypeService struct {
	table  *domain.PhenotypeTable
	logger *logrus.Logger
}

// NewPhenotypeService creates a phenotype mapper. The table may be nil,
// in which case every mapping is indeterminate.
func NewPhenotypeService(table *domain.PhenotypeTable, logger *logrus.Logger) *PhenotypeService {
	return &PhenotypeService{table: table, logger: logger}
}

// MapPhenotype returns the phenotype label and the functional status of
// each constituent allele for a resolved diplotype.
func (p *PhenotypeService) MapPhenotype(gene string, diplotype domain.NormalizedDiplotype) (domain.Phenotype, []domain.AlleleFunction) {
	rules := p.table.Gene(gene)
	if rules == nil {
		p.logger.WithField("gene", gene).Debug("Gene absent from phenotype table")
		return domain.INDETERMINATE_PHENOTYPE, nil
	}

	fnA := p.alleleFunction(rules, diplotype.Alleles[0])
	fnB := p.alleleFunction(rules, diplotype.Alleles[1])
	functions := []domain.AlleleFunction{fnA, fnB}

	if fnA == domain.UNKNOWN_FUNCTION || fnB == domain.UNKNOWN_FUNCTION {
		return domain.INDETERMINATE_PHENOTYPE, functions
	}

	phenotype, ok := rules.Phenotypes[domain.FunctionPairKey(fnA, fnB)]
	if !ok {
		// Allele known to the nomenclature but its function pair missing
		// from the phenotype table is a reference-table inconsistency.
		p.logger.WithFields(logrus.Fields{
			"gene":      gene,
			"diplotype": diplotype.Key(),
			"pair":      domain.FunctionPairKey(fnA, fnB),
		}).Warn("Function pair missing from phenotype table")
		return domain.INDETERMINATE_PHENOTYPE, functions
	}
	return phenotype, functions
}

// alleleFunction looks up one allele's functional status. A duplicated
// normal-function allele counts as increased function, reflecting the
// extra active gene copies.
func (p *PhenotypeService) alleleFunction(rules *domain.GenePhenotypeRules, allele domain.NormalizedAllele) domain.AlleleFunction {
	if !allele.Mapped() {
		return domain.UNKNOWN_FUNCTION
	}
	fn, ok := rules.Functions[allele.Canonical]
	if !ok {
		p.logger.WithFields(logrus.Fields{
			"gene":   rules.Gene,
			"allele": allele.Canonical,
		}).Warn("Allele missing from function table")
		return domain.UNKNOWN_FUNCTION
	}
	if allele.CopyNumber > 1 && fn == domain.NORMAL_FUNCTION {
		return domain.INCREASED_FUNCTION
	}
	return fn
}
