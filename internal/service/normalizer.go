package service

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/pgx-consensus-server/internal/domain"
	"github.com/pgx-consensus-server/internal/reference"
	"github.com/pgx-consensus-server/pkg/starallele"
)

// NormalizerService maps raw tool diplotype strings onto canonical
// star-allele pairs using the injected nomenclature store. Normalization
// is best-effort: misses become field states on the result, never raised
// errors, because partial genomic information is still clinically
// meaningful downstream.
type NormalizerService struct {
	store  *reference.Store
	logger *logrus.Logger
}

// NewNormalizerService creates a new allele normalizer.
func NewNormalizerService(store *reference.Store, logger *logrus.Logger) *NormalizerService {
	return &NormalizerService{store: store, logger: logger}
}

// NormalizeRecord produces the normalized diplotype for one tool call
// record.
func (n *NormalizerService) NormalizeRecord(record domain.ToolCallRecord) domain.NormalizedDiplotype {
	raw := record.RawToolOutput.DiplotypeString

	left, right, err := starallele.SplitDiplotype(record.Gene, raw)
	if err != nil {
		return n.undelimitedDiplotype(record, raw)
	}

	a := n.normalizeHaplotype(record.Gene, left)
	b := n.normalizeHaplotype(record.Gene, right)
	n.foldStructuralVariants(record, &a, &b)

	diplotype := domain.NewNormalizedDiplotype(record.Gene, a, b, record)
	if diplotype.Status != domain.DIPLOTYPE_RESOLVED {
		n.logger.WithFields(logrus.Fields{
			"sample_id": record.SampleID,
			"gene":      record.Gene,
			"tool":      record.ToolName,
			"raw":       raw,
			"status":    diplotype.Status,
		}).Debug("Diplotype did not fully normalize")
	}
	return diplotype
}

// undelimitedDiplotype handles diplotype strings with no recognized
// separator. A tool that reports only a copy number ("2 copies, unknown
// type") still carries partial information, so it maps to the
// indeterminate-structural allele rather than a plain failure.
func (n *NormalizerService) undelimitedDiplotype(record domain.ToolCallRecord, raw string) domain.NormalizedDiplotype {
	if cn := record.RawToolOutput.CopyNumberRaw; cn != nil && *cn > 0 {
		allele := domain.NormalizedAllele{
			Status:     domain.INDETERMINATE_STRUCTURAL,
			CopyNumber: 1,
			RawString:  raw,
		}
		return domain.NewNormalizedDiplotype(record.Gene, allele, allele, record)
	}

	failed := domain.NormalizedAllele{
		Status:     domain.MAPPING_FAILED,
		CopyNumber: 1,
		RawString:  raw,
	}
	return domain.NewNormalizedDiplotype(record.Gene, failed, failed, record)
}

// normalizeHaplotype maps one parsed haplotype token through the
// nomenclature store and folds its copy count into the canonical allele.
func (n *NormalizerService) normalizeHaplotype(gene string, h starallele.Haplotype) domain.NormalizedAllele {
	allele := domain.NormalizedAllele{
		RawString:  h.Raw,
		CopyNumber: h.Copies,
	}
	if allele.CopyNumber < 1 {
		allele.CopyNumber = 1
	}

	if h.Allele == "" {
		allele.Status = domain.MAPPING_FAILED
		return allele
	}

	canonical, status := n.store.LookupAllele(gene, h.Allele)
	allele.Canonical = canonical
	allele.Status = status
	return allele
}

// foldStructuralVariants folds record-level duplication annotations into
// the allele pair when the duplicated side is unambiguous: a reported
// gene duplication with exactly one mapped allele bumps that allele's
// copy number.
func (n *NormalizerService) foldStructuralVariants(record domain.ToolCallRecord, a, b *domain.NormalizedAllele) {
	for _, sv := range record.RawToolOutput.StructuralVariantsRaw {
		if !isDuplication(sv) {
			continue
		}
		switch {
		case a.Mapped() && !b.Mapped() && a.CopyNumber == 1:
			a.CopyNumber = 2
		case b.Mapped() && !a.Mapped() && b.CopyNumber == 1:
			b.CopyNumber = 2
		}
	}
}

func isDuplication(sv domain.StructuralVariant) bool {
	t := strings.ToLower(sv.Type)
	return strings.Contains(t, "duplication") || strings.Contains(t, "multiplication")
}
