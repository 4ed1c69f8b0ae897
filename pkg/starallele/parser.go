// Package starallele parses star-allele diplotype strings as emitted by
// PGx genotyping tools. Tools differ in separator, in whether the gene
// symbol prefixes each allele, and in how structural duplications are
// spelled ("*1x2" vs "*1/*1 duplication"), so parsing is deliberately
// permissive: it extracts tokens and leaves nomenclature mapping to the
// caller.
package starallele

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Diplotype separators in order of preference. "/" is near-universal;
// "|" shows up in phased outputs.
var separators = []string{"/", "|"}

var (
	copySuffixPattern  = regexp.MustCompile(`(?i)^(.*?)[x×](\d+)$`)
	dupKeywordPattern  = regexp.MustCompile(`(?i)\b(duplication|duplicated|dup)\b`)
	starAllelePattern  = regexp.MustCompile(`^\*\d+[A-Za-z]*(\.\d+)?$`)
	whitespacePattern  = regexp.MustCompile(`\s+`)
)

// Haplotype is one parsed side of a diplotype string.
type Haplotype struct {
	// Raw is the token exactly as it appeared in the input.
	Raw string
	// Allele is the primary star-allele token, gene prefix stripped and
	// upper-cased (e.g. "*4"). Empty when no star token was found.
	Allele string
	// Copies is the copy count folded out of an "x2" suffix, a "+*4"
	// tandem spelling, or a trailing duplication keyword. Defaults to 1.
	Copies int
	// Components lists additional sub-allele tokens joined with "+" that
	// differ from the primary allele (e.g. minor alleles from ALDY).
	Components []string
}

// ErrNoDelimiter is returned when a diplotype string contains no
// recognized haplotype separator.
type ErrNoDelimiter struct {
	Input string
}

func (e *ErrNoDelimiter) Error() string {
	return fmt.Sprintf("no recognized diplotype delimiter in %q", e.Input)
}

// SplitDiplotype splits a raw diplotype string into its two haplotype
// tokens and parses each. The gene symbol is used to strip per-allele
// gene prefixes ("CYP2D6*1/*4").
func SplitDiplotype(gene, input string) (Haplotype, Haplotype, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Haplotype{}, Haplotype{}, &ErrNoDelimiter{Input: input}
	}

	for _, sep := range separators {
		idx := strings.Index(trimmed, sep)
		if idx <= 0 || idx >= len(trimmed)-1 {
			continue
		}
		left := ParseHaplotype(gene, trimmed[:idx])
		right := ParseHaplotype(gene, trimmed[idx+1:])
		return left, right, nil
	}
	return Haplotype{}, Haplotype{}, &ErrNoDelimiter{Input: input}
}

// ParseHaplotype parses a single haplotype token: strips the gene prefix,
// folds out copy-number suffixes and duplication keywords, and splits
// "+"-joined allele components.
func ParseHaplotype(gene, token string) Haplotype {
	h := Haplotype{Raw: strings.TrimSpace(token), Copies: 1}

	work := h.Raw
	if dupKeywordPattern.MatchString(work) {
		work = strings.TrimSpace(dupKeywordPattern.ReplaceAllString(work, ""))
		h.Copies = 2
	}

	parts := strings.Split(work, "+")
	primary := ""
	for _, part := range parts {
		name, copies := parseComponent(gene, part)
		if name == "" {
			continue
		}
		if primary == "" {
			primary = name
			if copies > 1 {
				h.Copies = copies
			}
			continue
		}
		if name == primary {
			h.Copies += copies
			continue
		}
		h.Components = append(h.Components, name)
	}
	h.Allele = primary
	return h
}

// parseComponent normalizes one "+"-separated component and extracts its
// copy suffix.
func parseComponent(gene, token string) (string, int) {
	cleaned := NormalizeToken(gene, token)
	if cleaned == "" {
		return "", 1
	}

	copies := 1
	if m := copySuffixPattern.FindStringSubmatch(cleaned); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
			cleaned = strings.TrimSpace(m[1])
			copies = n
		}
	}
	return cleaned, copies
}

// NormalizeToken upper-cases a raw allele spelling, strips surrounding
// whitespace and the gene symbol prefix, and collapses internal spaces.
// "cyp2d6 *4" and "CYP2D6*4" both normalize to "*4".
func NormalizeToken(gene, token string) string {
	cleaned := strings.ToUpper(strings.TrimSpace(token))
	if gene != "" {
		cleaned = strings.TrimPrefix(cleaned, strings.ToUpper(gene))
		cleaned = strings.TrimSpace(cleaned)
	}
	cleaned = whitespacePattern.ReplaceAllString(cleaned, " ")
	return cleaned
}

// IsStarAllele reports whether a normalized token looks like a bare
// star-allele designation (e.g. "*1", "*4.021", "*17B").
func IsStarAllele(token string) bool {
	return starAllelePattern.MatchString(token)
}
