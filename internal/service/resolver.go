package service

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/pgx-consensus-server/internal/domain"
)

const defaultMajorityThreshold = 0.5

// ResolverService produces one consensus call per sample-gene group by
// applying a deterministic resolution policy: build-mismatch screening,
// unanimity, tool-priority voting, then strict majority. Disagreement is a
// first-class outcome; a tie is never broken by insertion order or an
// arbitrary pick.
type ResolverService struct {
	priority          *domain.PriorityTable
	majorityThreshold float64
	logger            *logrus.Logger
}

// NewResolverService creates a conflict resolver. The priority table may
// be nil, in which case the priority rule never applies.
func NewResolverService(priority *domain.PriorityTable, cfg domain.ResolverConfig, logger *logrus.Logger) *ResolverService {
	threshold := cfg.MajorityThreshold
	if threshold <= 0 || threshold >= 1 {
		threshold = defaultMajorityThreshold
	}
	return &ResolverService{
		priority:          priority,
		majorityThreshold: threshold,
		logger:            logger,
	}
}

// outcome is the result of running the resolution ladder over one set of
// normalized diplotypes.
type outcome struct {
	key        string
	status     domain.DiplotypeStatus
	method     domain.ResolutionMethod
	reason     domain.UnresolvedReason
	confidence float64
	candidates []string
}

// Resolve applies the policy ladder to a sample-gene group.
func (r *ResolverService) Resolve(group domain.SampleGeneGroup) domain.ConsensusCall {
	call := domain.ConsensusCall{
		SampleID:   group.SampleID,
		Gene:       group.Gene,
		Method:     domain.UNRESOLVED,
		Status:     domain.DIPLOTYPE_UNRESOLVED,
		Provenance: buildProvenance(group.Diplotypes),
	}

	builds := group.Builds()
	if len(builds) == 1 {
		call.ReferenceGenome = builds[0]
		r.adopt(&call, r.resolveSet(group.Gene, group.Diplotypes))
		return call
	}

	// Coordinates are not comparable across reference builds, so no
	// allele-level merging happens here: either exactly one build's
	// subset resolves on its own, or the group is a build-mismatch
	// conflict.
	call.BuildConflict = true
	type buildOutcome struct {
		build  string
		subset []domain.NormalizedDiplotype
		out    outcome
	}
	var winners []buildOutcome
	for _, build := range builds {
		var subset []domain.NormalizedDiplotype
		for _, d := range group.Diplotypes {
			if d.Record.ReferenceGenome == build {
				subset = append(subset, d)
			}
		}
		if out := r.resolveSet(group.Gene, subset); out.status == domain.DIPLOTYPE_RESOLVED {
			winners = append(winners, buildOutcome{build: build, subset: subset, out: out})
		}
	}

	if len(winners) == 1 {
		winner := winners[0]
		call.ReferenceGenome = winner.build
		for i := range call.Provenance {
			if call.Provenance[i].Record.ReferenceGenome != winner.build {
				call.Provenance[i].ExcludedBuild = true
			}
		}
		r.adopt(&call, winner.out)
		return call
	}

	call.UnresolvedReason = domain.BUILD_MISMATCH
	call.Candidates = distinctResolvedKeys(group.Diplotypes)
	r.logger.WithFields(logrus.Fields{
		"sample_id": group.SampleID,
		"gene":      group.Gene,
		"builds":    builds,
	}).Warn("Reference build mismatch within sample-gene group")
	return call
}

// adopt copies an outcome onto the call and marks overridden provenance.
func (r *ResolverService) adopt(call *domain.ConsensusCall, out outcome) {
	call.Diplotype = out.key
	call.Status = out.status
	call.Method = out.method
	call.UnresolvedReason = out.reason
	call.Confidence = out.confidence
	call.Candidates = out.candidates

	if out.status != domain.DIPLOTYPE_RESOLVED {
		return
	}
	for i := range call.Provenance {
		p := &call.Provenance[i]
		if p.Status == domain.DIPLOTYPE_RESOLVED && p.NormalizedDiplotype != out.key {
			p.Overridden = true
		}
	}
}

// resolveSet runs the unanimity / priority / majority ladder over one set
// of diplotypes sharing a reference build. All tallies are commutative
// reductions, so the result is independent of input order.
func (r *ResolverService) resolveSet(gene string, diplotypes []domain.NormalizedDiplotype) outcome {
	var resolved []domain.NormalizedDiplotype
	for _, d := range diplotypes {
		if d.Resolved() {
			resolved = append(resolved, d)
		}
	}

	if len(resolved) == 0 {
		out := outcome{
			status: domain.DIPLOTYPE_UNRESOLVED,
			method: domain.UNRESOLVED,
			reason: domain.NO_RESOLVABLE_CALLS,
		}
		// A lone partial diplotype is still worth surfacing: the mapped
		// half participates in the output instead of vanishing.
		if len(diplotypes) == 1 && diplotypes[0].Status == domain.DIPLOTYPE_PARTIAL {
			out.status = domain.DIPLOTYPE_PARTIAL
			out.key = diplotypes[0].Key()
			out.reason = ""
		} else {
			out.candidates = distinctKeys(diplotypes)
		}
		return out
	}

	tally := map[string]int{}
	for _, d := range resolved {
		tally[d.Key()]++
	}

	if len(tally) == 1 {
		return outcome{
			key:        resolved[0].Key(),
			status:     domain.DIPLOTYPE_RESOLVED,
			method:     domain.UNANIMOUS,
			confidence: 1.0,
		}
	}

	if key, ok := r.priorityPick(gene, resolved); ok {
		return outcome{
			key:        key,
			status:     domain.DIPLOTYPE_RESOLVED,
			method:     domain.PRIORITY_OVERRIDE,
			confidence: float64(tally[key]) / float64(len(resolved)),
		}
	}

	if key, ok := r.majorityPick(tally, len(resolved)); ok {
		return outcome{
			key:        key,
			status:     domain.DIPLOTYPE_RESOLVED,
			method:     domain.MAJORITY,
			confidence: float64(tally[key]) / float64(len(resolved)),
		}
	}

	return outcome{
		status:     domain.DIPLOTYPE_UNRESOLVED,
		method:     domain.UNRESOLVED,
		reason:     domain.CONFLICTING_CALLS,
		candidates: sortedKeys(tally),
	}
}

// priorityPick selects the resolved diplotype of the highest-priority
// ranked tool. It declines when no tool is ranked or when tools sharing
// the best rank disagree.
func (r *ResolverService) priorityPick(gene string, resolved []domain.NormalizedDiplotype) (string, bool) {
	if r.priority == nil {
		return "", false
	}

	bestRank := 0
	found := false
	bestKeys := map[string]bool{}
	for _, d := range resolved {
		rank, ok := r.priority.Rank(gene, d.Record.ToolName)
		if !ok {
			continue
		}
		switch {
		case !found || rank < bestRank:
			found = true
			bestRank = rank
			bestKeys = map[string]bool{d.Key(): true}
		case rank == bestRank:
			bestKeys[d.Key()] = true
		}
	}

	if !found || len(bestKeys) != 1 {
		return "", false
	}
	for key := range bestKeys {
		return key, true
	}
	return "", false
}

// majorityPick selects the unique diplotype exceeding the strict-majority
// threshold of resolved calls.
func (r *ResolverService) majorityPick(tally map[string]int, total int) (string, bool) {
	maxCount := 0
	var maxKeys []string
	for _, key := range sortedKeys(tally) {
		switch count := tally[key]; {
		case count > maxCount:
			maxCount = count
			maxKeys = []string{key}
		case count == maxCount:
			maxKeys = append(maxKeys, key)
		}
	}

	if len(maxKeys) != 1 {
		return "", false
	}
	if float64(maxCount)/float64(total) <= r.majorityThreshold {
		return "", false
	}
	return maxKeys[0], true
}

func buildProvenance(diplotypes []domain.NormalizedDiplotype) []domain.ToolProvenance {
	provenance := make([]domain.ToolProvenance, len(diplotypes))
	for i, d := range diplotypes {
		provenance[i] = domain.ToolProvenance{
			ToolName:            d.Record.ToolName,
			RawDiplotype:        d.Record.RawToolOutput.DiplotypeString,
			NormalizedDiplotype: d.Key(),
			Status:              d.Status,
			Record:              d.Record.Clone(),
		}
	}
	return provenance
}

func distinctKeys(diplotypes []domain.NormalizedDiplotype) []string {
	seen := map[string]bool{}
	for _, d := range diplotypes {
		seen[d.Key()] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func distinctResolvedKeys(diplotypes []domain.NormalizedDiplotype) []string {
	seen := map[string]bool{}
	for _, d := range diplotypes {
		if d.Resolved() {
			seen[d.Key()] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(tally map[string]int) []string {
	keys := make([]string, 0, len(tally))
	for k := range tally {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
