package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pgx-consensus-server/internal/domain"
)

func normalize(t *testing.T, records ...domain.ToolCallRecord) domain.SampleGeneGroup {
	t.Helper()
	normalizer := NewNormalizerService(testStore(t), testLogger())

	group := domain.SampleGeneGroup{SampleID: records[0].SampleID, Gene: records[0].Gene}
	for _, record := range records {
		group.Diplotypes = append(group.Diplotypes, normalizer.NormalizeRecord(record))
	}
	return group
}

func newResolver(t *testing.T) *ResolverService {
	t.Helper()
	return NewResolverService(testPriority(), domain.ResolverConfig{}, testLogger())
}

func TestResolverService_Unanimous(t *testing.T) {
	resolver := newResolver(t)

	// *1/*4 and *4/*1 are the same diplotype.
	group := normalize(t,
		testRecord("S1", "CYP2D6", "ToolA", "GRCh38", "CYP2D6*1/*4"),
		testRecord("S1", "CYP2D6", "ToolB", "GRCh38", "CYP2D6*4/*1"),
	)

	call := resolver.Resolve(group)
	assert.Equal(t, "*1/*4", call.Diplotype)
	assert.Equal(t, domain.UNANIMOUS, call.Method)
	assert.Equal(t, 1.0, call.Confidence)
	assert.Equal(t, domain.DIPLOTYPE_RESOLVED, call.Status)
	assert.Equal(t, "GRCh38", call.ReferenceGenome)
	require.Len(t, call.Provenance, 2)
	for _, p := range call.Provenance {
		assert.False(t, p.Overridden)
	}
}

func TestResolverService_PriorityOverride(t *testing.T) {
	resolver := newResolver(t)

	group := normalize(t,
		testRecord("S1", "CYP2D6", "ToolA", "GRCh38", "*1/*1"),
		testRecord("S1", "CYP2D6", "ToolB", "GRCh38", "*1/*4"),
	)

	call := resolver.Resolve(group)
	assert.Equal(t, "*1/*1", call.Diplotype)
	assert.Equal(t, domain.PRIORITY_OVERRIDE, call.Method)
	assert.Equal(t, 0.5, call.Confidence)

	overridden := 0
	for _, p := range call.Provenance {
		if p.Overridden {
			overridden++
			assert.Equal(t, "ToolB", p.ToolName)
		}
	}
	assert.Equal(t, 1, overridden)
}

func TestResolverService_PriorityBeatsLowerPriorityMajority(t *testing.T) {
	resolver := newResolver(t)

	// Two unranked tools agree with each other, but the ranked ToolA
	// call wins regardless.
	group := normalize(t,
		testRecord("S1", "CYP2D6", "ToolA", "GRCh38", "*1/*1"),
		testRecord("S1", "CYP2D6", "ToolX", "GRCh38", "*1/*4"),
		testRecord("S1", "CYP2D6", "ToolY", "GRCh38", "*1/*4"),
	)

	call := resolver.Resolve(group)
	assert.Equal(t, "*1/*1", call.Diplotype)
	assert.Equal(t, domain.PRIORITY_OVERRIDE, call.Method)
	assert.InDelta(t, 1.0/3.0, call.Confidence, 1e-9)
}

func TestResolverService_Majority(t *testing.T) {
	resolver := NewResolverService(nil, domain.ResolverConfig{}, testLogger())

	group := normalize(t,
		testRecord("S1", "CYP2C19", "ToolX", "GRCh38", "*1/*2"),
		testRecord("S1", "CYP2C19", "ToolY", "GRCh38", "*1/*2"),
		testRecord("S1", "CYP2C19", "ToolZ", "GRCh38", "*1/*17"),
	)

	call := resolver.Resolve(group)
	assert.Equal(t, "*1/*2", call.Diplotype)
	assert.Equal(t, domain.MAJORITY, call.Method)
	assert.InDelta(t, 2.0/3.0, call.Confidence, 1e-9)
}

func TestResolverService_TieIsUnresolved(t *testing.T) {
	resolver := NewResolverService(nil, domain.ResolverConfig{}, testLogger())

	group := normalize(t,
		testRecord("S1", "CYP2C19", "ToolX", "GRCh38", "*1/*2"),
		testRecord("S1", "CYP2C19", "ToolY", "GRCh38", "*1/*17"),
	)

	call := resolver.Resolve(group)
	assert.Equal(t, domain.DIPLOTYPE_UNRESOLVED, call.Status)
	assert.Equal(t, domain.UNRESOLVED, call.Method)
	assert.Equal(t, domain.CONFLICTING_CALLS, call.UnresolvedReason)
	assert.Empty(t, call.Diplotype)
	assert.Equal(t, []string{"*1/*17", "*1/*2"}, call.Candidates)
}

func TestResolverService_BuildMismatch(t *testing.T) {
	resolver := newResolver(t)

	group := normalize(t,
		testRecord("S1", "CYP2D6", "ToolA", "GRCh37", "*1/*4"),
		testRecord("S1", "CYP2D6", "ToolB", "GRCh38", "*1/*1"),
	)

	// Both builds resolve on their own, so neither subset may silently
	// win: the group is a build-mismatch conflict.
	call := resolver.Resolve(group)
	assert.True(t, call.BuildConflict)
	assert.Equal(t, domain.DIPLOTYPE_UNRESOLVED, call.Status)
	assert.Equal(t, domain.BUILD_MISMATCH, call.UnresolvedReason)
	assert.Empty(t, call.ReferenceGenome)
	assert.ElementsMatch(t, []string{"*1/*1", "*1/*4"}, call.Candidates)
}

func TestResolverService_BuildMismatchSingleBuildRescue(t *testing.T) {
	resolver := newResolver(t)

	group := normalize(t,
		testRecord("S1", "CYP2D6", "ToolA", "GRCh38", "*1/*4"),
		testRecord("S1", "CYP2D6", "ToolB", "GRCh38", "*4/*1"),
		testRecord("S1", "CYP2D6", "ToolC", "GRCh37", "garbled"),
	)

	call := resolver.Resolve(group)
	assert.True(t, call.BuildConflict)
	assert.Equal(t, domain.DIPLOTYPE_RESOLVED, call.Status)
	assert.Equal(t, "*1/*4", call.Diplotype)
	assert.Equal(t, domain.UNANIMOUS, call.Method)
	assert.Equal(t, "GRCh38", call.ReferenceGenome)

	excluded := 0
	for _, p := range call.Provenance {
		if p.ExcludedBuild {
			excluded++
			assert.Equal(t, "ToolC", p.ToolName)
		}
	}
	assert.Equal(t, 1, excluded)
}

func TestResolverService_NoResolvableCalls(t *testing.T) {
	resolver := newResolver(t)

	group := normalize(t,
		testRecord("S1", "CYP2D6", "ToolA", "GRCh38", "garbled"),
		testRecord("S1", "CYP2D6", "ToolB", "GRCh38", "also garbled"),
	)

	call := resolver.Resolve(group)
	assert.Equal(t, domain.DIPLOTYPE_UNRESOLVED, call.Status)
	assert.Equal(t, domain.NO_RESOLVABLE_CALLS, call.UnresolvedReason)
	assert.Equal(t, 0.0, call.Confidence)
	require.Len(t, call.Provenance, 2)
}

func TestResolverService_SolePartialSurvives(t *testing.T) {
	resolver := newResolver(t)

	group := normalize(t,
		testRecord("S1", "CYP2D6", "ToolA", "GRCh38", "*1/*99"),
	)

	call := resolver.Resolve(group)
	assert.Equal(t, domain.DIPLOTYPE_PARTIAL, call.Status)
	assert.Equal(t, "*1/?(*99)", call.Diplotype)
	assert.Empty(t, call.UnresolvedReason)
}

func TestResolverService_OrderIndependence(t *testing.T) {
	resolver := newResolver(t)

	records := []domain.ToolCallRecord{
		testRecord("S1", "CYP2D6", "ToolA", "GRCh38", "*1/*4"),
		testRecord("S1", "CYP2D6", "ToolB", "GRCh38", "*4/*1"),
		testRecord("S1", "CYP2D6", "ToolC", "GRCh38", "CYP2D6*1/CYP2D6*4"),
	}

	forward := resolver.Resolve(normalize(t, records[0], records[1], records[2]))
	reversed := resolver.Resolve(normalize(t, records[2], records[1], records[0]))

	assert.Equal(t, forward.Diplotype, reversed.Diplotype)
	assert.Equal(t, forward.Method, reversed.Method)
	assert.Equal(t, forward.Confidence, reversed.Confidence)
	assert.Equal(t, forward.Candidates, reversed.Candidates)
}
