package reference

import (
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"github.com/pgx-consensus-server/internal/domain"
	"github.com/pgx-consensus-server/pkg/starallele"
)

const defaultLookupCacheSize = 4096

// lookupResult is the cached outcome of one allele lookup.
type lookupResult struct {
	Canonical string
	Status    domain.MappingStatus
}

// Store wraps an immutable reference set with a lookup layer. Allele
// lookups are memoized in an LRU cache since the same raw spellings recur
// throughout a batch.
type Store struct {
	set    domain.ReferenceSet
	cache  *lru.Cache[string, lookupResult]
	logger *logrus.Logger
}

// NewStore creates a lookup store over a loaded reference set.
func NewStore(set domain.ReferenceSet, cacheSize int, logger *logrus.Logger) (*Store, error) {
	if set.Nomenclature == nil {
		return nil, domain.NewBatchError(domain.ErrReferenceTables, "nomenclature table is required", "")
	}
	if cacheSize <= 0 {
		cacheSize = defaultLookupCacheSize
	}
	cache, err := lru.New[string, lookupResult](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Store{set: set, cache: cache, logger: logger}, nil
}

// Set returns the underlying reference set.
func (s *Store) Set() domain.ReferenceSet {
	return s.set
}

// Versions reports the version stamps of the loaded tables.
func (s *Store) Versions() domain.ReferenceVersions {
	return s.set.Versions()
}

// LookupAllele maps one raw haplotype spelling for a gene onto its
// canonical star-allele designation. Resolution order: exact canonical
// name, synonym, then format-normalized fuzzy match (sub-allele and
// suffix-letter stripping). A miss returns MAPPING_FAILED, never an error.
func (s *Store) LookupAllele(gene, raw string) (string, domain.MappingStatus) {
	token := starallele.NormalizeToken(gene, raw)
	if token == "" {
		return "", domain.MAPPING_FAILED
	}

	key := strings.ToUpper(gene) + "|" + token
	if cached, ok := s.cache.Get(key); ok {
		return cached.Canonical, cached.Status
	}

	canonical, status := s.resolve(gene, token)
	s.cache.Add(key, lookupResult{Canonical: canonical, Status: status})
	return canonical, status
}

func (s *Store) resolve(gene, token string) (string, domain.MappingStatus) {
	nom := s.set.Nomenclature.Gene(gene)
	if nom == nil {
		s.logger.WithFields(logrus.Fields{
			"gene":  gene,
			"token": token,
		}).Debug("Gene absent from nomenclature table")
		return "", domain.MAPPING_FAILED
	}

	if _, ok := nom.Alleles[token]; ok {
		return token, domain.EXACT_MATCH
	}
	if canonical, ok := nom.Synonyms[token]; ok {
		return canonical, domain.EXACT_MATCH
	}

	// Fuzzy pass: sub-allele suffixes (*4.021 -> *4) and trailing
	// suffix letters (*3A -> *3) collapse onto their core allele.
	if idx := strings.Index(token, "."); idx > 0 {
		base := token[:idx]
		if _, ok := nom.Alleles[base]; ok {
			return base, domain.FUZZY_MATCH
		}
		if canonical, ok := nom.Synonyms[base]; ok {
			return canonical, domain.FUZZY_MATCH
		}
	}
	if base := strings.TrimRight(token, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"); base != token && len(base) > 1 {
		if _, ok := nom.Alleles[base]; ok {
			return base, domain.FUZZY_MATCH
		}
	}

	return "", domain.MAPPING_FAILED
}
