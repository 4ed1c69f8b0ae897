package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MappingStatus describes how a raw haplotype string was mapped onto the
// canonical nomenclature.
type MappingStatus string

const (
	EXACT_MATCH              MappingStatus = "EXACT"
	FUZZY_MATCH              MappingStatus = "FUZZY"
	INDETERMINATE_STRUCTURAL MappingStatus = "INDETERMINATE_STRUCTURAL"
	MAPPING_FAILED           MappingStatus = "FAILED"
)

// DiplotypeStatus describes the overall outcome of normalizing one
// tool-reported diplotype.
type DiplotypeStatus string

const (
	DIPLOTYPE_RESOLVED   DiplotypeStatus = "RESOLVED"
	DIPLOTYPE_PARTIAL    DiplotypeStatus = "PARTIAL"
	DIPLOTYPE_UNRESOLVED DiplotypeStatus = "UNRESOLVED"
)

// ResolutionMethod identifies which consensus rule produced the final call.
type ResolutionMethod string

const (
	UNANIMOUS         ResolutionMethod = "UNANIMOUS"
	PRIORITY_OVERRIDE ResolutionMethod = "PRIORITY_OVERRIDE"
	MAJORITY          ResolutionMethod = "MAJORITY"
	UNRESOLVED        ResolutionMethod = "UNRESOLVED"
)

// UnresolvedReason explains why no consensus diplotype could be produced.
type UnresolvedReason string

const (
	BUILD_MISMATCH      UnresolvedReason = "BUILD_MISMATCH"
	CONFLICTING_CALLS   UnresolvedReason = "CONFLICTING_CALLS"
	NO_RESOLVABLE_CALLS UnresolvedReason = "NO_RESOLVABLE_CALLS"
)

// AlleleFunction represents the functional status of a single star allele.
type AlleleFunction string

const (
	NORMAL_FUNCTION    AlleleFunction = "NORMAL_FUNCTION"
	DECREASED_FUNCTION AlleleFunction = "DECREASED_FUNCTION"
	NO_FUNCTION        AlleleFunction = "NO_FUNCTION"
	INCREASED_FUNCTION AlleleFunction = "INCREASED_FUNCTION"
	UNKNOWN_FUNCTION   AlleleFunction = "UNKNOWN_FUNCTION"
)

// Phenotype represents the predicted metabolizer phenotype derived from a
// resolved diplotype.
type Phenotype string

const (
	POOR_METABOLIZER         Phenotype = "POOR_METABOLIZER"
	INTERMEDIATE_METABOLIZER Phenotype = "INTERMEDIATE_METABOLIZER"
	NORMAL_METABOLIZER       Phenotype = "NORMAL_METABOLIZER"
	RAPID_METABOLIZER        Phenotype = "RAPID_METABOLIZER"
	ULTRARAPID_METABOLIZER   Phenotype = "ULTRARAPID_METABOLIZER"
	INDETERMINATE_PHENOTYPE  Phenotype = "INDETERMINATE"
)

// NormalizedAllele is the canonical representation of one haplotype plus a
// provenance tag identifying the raw string it was derived from and how
// well the mapping went.
type NormalizedAllele struct {
	Canonical  string        `json:"canonical,omitempty"`
	CopyNumber int           `json:"copy_number"`
	Status     MappingStatus `json:"status"`
	RawString  string        `json:"raw_string"`
}

// String renders the allele in star nomenclature, with the copy-number
// suffix folded in (e.g. "*1x2" for a tandem duplication).
func (a NormalizedAllele) String() string {
	switch a.Status {
	case MAPPING_FAILED:
		return fmt.Sprintf("?(%s)", a.RawString)
	case INDETERMINATE_STRUCTURAL:
		if a.CopyNumber > 1 {
			return fmt.Sprintf("*?x%d", a.CopyNumber)
		}
		return "*?"
	}
	if a.CopyNumber > 1 {
		return fmt.Sprintf("%sx%d", a.Canonical, a.CopyNumber)
	}
	return a.Canonical
}

// Mapped reports whether the allele resolved to a canonical designation.
func (a NormalizedAllele) Mapped() bool {
	return a.Status == EXACT_MATCH || a.Status == FUZZY_MATCH
}

// NormalizedDiplotype is an unordered pair of normalized alleles attributed
// to one ToolCallRecord. Allele order is not semantically meaningful:
// *1/*4 and *4/*1 are the same diplotype, so the pair is stored in
// canonical order.
type NormalizedDiplotype struct {
	Gene    string           `json:"gene"`
	Alleles [2]NormalizedAllele `json:"alleles"`
	Status  DiplotypeStatus  `json:"status"`
	Record  ToolCallRecord   `json:"-"`
}

// NewNormalizedDiplotype builds a diplotype from two normalized alleles,
// applying canonical ordering and deriving the overall status.
func NewNormalizedDiplotype(gene string, a, b NormalizedAllele, record ToolCallRecord) NormalizedDiplotype {
	if alleleSortKey(b) < alleleSortKey(a) {
		a, b = b, a
	}

	status := DIPLOTYPE_UNRESOLVED
	switch {
	case a.Mapped() && b.Mapped():
		status = DIPLOTYPE_RESOLVED
	case a.Mapped() || b.Mapped() ||
		a.Status == INDETERMINATE_STRUCTURAL || b.Status == INDETERMINATE_STRUCTURAL:
		status = DIPLOTYPE_PARTIAL
	}

	return NormalizedDiplotype{
		Gene:    gene,
		Alleles: [2]NormalizedAllele{a, b},
		Status:  status,
		Record:  record,
	}
}

func alleleSortKey(a NormalizedAllele) string {
	if a.Mapped() {
		return a.String()
	}
	// Unmapped alleles sort after mapped ones so the resolved half of a
	// partial diplotype always renders first.
	return "~" + a.RawString
}

// Key returns the order-independent canonical identity of the diplotype,
// used for equality tallies during conflict resolution.
func (d NormalizedDiplotype) Key() string {
	return d.Alleles[0].String() + "/" + d.Alleles[1].String()
}

// Resolved reports whether both constituent alleles mapped successfully.
func (d NormalizedDiplotype) Resolved() bool {
	return d.Status == DIPLOTYPE_RESOLVED
}

// SampleGeneGroup is the set of all tool call records sharing a sample and
// gene, together with their normalized diplotypes.
type SampleGeneGroup struct {
	SampleID   string                `json:"sample_id"`
	Gene       string                `json:"gene"`
	Diplotypes []NormalizedDiplotype `json:"diplotypes"`
}

// GroupKey identifies a sample-gene group.
type GroupKey struct {
	SampleID string
	Gene     string
}

// Builds returns the distinct reference genome builds reported within the
// group, sorted for deterministic output.
func (g SampleGeneGroup) Builds() []string {
	seen := map[string]bool{}
	for _, d := range g.Diplotypes {
		seen[d.Record.ReferenceGenome] = true
	}
	builds := make([]string, 0, len(seen))
	for b := range seen {
		builds = append(builds, b)
	}
	sort.Strings(builds)
	return builds
}

// ToolProvenance records one tool's contribution to a consensus call.
type ToolProvenance struct {
	ToolName           string          `json:"tool_name"`
	RawDiplotype       string          `json:"raw_diplotype"`
	NormalizedDiplotype string         `json:"normalized_diplotype"`
	Status             DiplotypeStatus `json:"status"`
	Overridden         bool            `json:"overridden"`
	ExcludedBuild      bool            `json:"excluded_build,omitempty"`
	Record             ToolCallRecord  `json:"record"`
}

// ConsensusCall is the single output unit per sample-gene group: the final
// diplotype (or an explicit unresolved marker), the derived phenotype, the
// resolution rule that fired, and full provenance for every contributing
// tool call.
type ConsensusCall struct {
	ID               string             `json:"id"`
	SampleID         string             `json:"sample_id"`
	Gene             string             `json:"gene"`
	ReferenceGenome  string             `json:"reference_genome,omitempty"`
	BuildConflict    bool               `json:"build_conflict,omitempty"`
	Diplotype        string             `json:"diplotype,omitempty"`
	Status           DiplotypeStatus    `json:"status"`
	UnresolvedReason UnresolvedReason   `json:"unresolved_reason,omitempty"`
	Candidates       []string           `json:"candidates,omitempty"`
	Method           ResolutionMethod   `json:"resolution_method"`
	Confidence       float64            `json:"confidence"`
	Phenotype        Phenotype          `json:"phenotype,omitempty"`
	AlleleFunctions  []AlleleFunction   `json:"allele_functions,omitempty"`
	Provenance       []ToolProvenance   `json:"provenance"`
	TableVersions    ReferenceVersions  `json:"table_versions"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Summary renders a short human-readable description of the call.
func (c ConsensusCall) Summary() string {
	if c.Status == DIPLOTYPE_UNRESOLVED {
		return fmt.Sprintf("%s %s: unresolved (%s)", c.SampleID, c.Gene, strings.ToLower(string(c.UnresolvedReason)))
	}
	return fmt.Sprintf("%s %s: %s [%s, confidence %.2f]", c.SampleID, c.Gene, c.Diplotype, c.Method, c.Confidence)
}
