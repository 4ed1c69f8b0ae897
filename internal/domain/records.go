package domain

import (
	"encoding/json"
)

// ToolCallRecord represents a single pharmacogene call from a single
// genotyping tool for a single sample. It is the input contract between
// the tool-specific parsers and the consensus engine.
type ToolCallRecord struct {
	SampleID        string        `json:"sample_id"`
	Gene            string        `json:"gene"`
	ToolName        string        `json:"tool_name"`
	ReferenceGenome string        `json:"reference_genome"`
	InputFile       string        `json:"input_file,omitempty"`
	RawToolOutput   RawToolOutput `json:"raw_tool_output"`
}

// VariantReported represents an individual variant (SNP/indel) reported by
// a genotyping tool as contributing to the diplotype call.
type VariantReported struct {
	RsID              string   `json:"rsid,omitempty"`
	Location          string   `json:"location,omitempty"`
	RefAllele         string   `json:"ref_allele,omitempty"`
	AltAllele         string   `json:"alt_allele,omitempty"`
	Genotype          string   `json:"genotype,omitempty"`
	Zygosity          string   `json:"zygosity,omitempty"`
	QualityScore      *float64 `json:"quality_score,omitempty"`
	AlleleAssignment  string   `json:"allele_assignment,omitempty"`
	ToolSpecificFlags string   `json:"tool_specific_flags,omitempty"`
}

// StructuralVariant represents a gene-level structural variant (deletion,
// duplication, hybrid) as directly reported by a genotyping tool.
type StructuralVariant struct {
	Type           string `json:"type,omitempty"`
	Description    string `json:"description,omitempty"`
	Location       string `json:"location,omitempty"`
	ToolSpecificID string `json:"tool_specific_id,omitempty"`
}

// RawToolOutput holds the raw, tool-specific output details for a gene
// call. Known fields are typed; any additional keys emitted by a tool are
// preserved verbatim in Extra and survive every transform stage so the
// output provenance can always be traced back to the original call.
type RawToolOutput struct {
	DiplotypeString         string              `json:"diplotype_string"`
	Haplotype1Raw           string              `json:"haplotype1_raw,omitempty"`
	Haplotype2Raw           string              `json:"haplotype2_raw,omitempty"`
	CopyNumberRaw           *float64            `json:"copy_number_raw,omitempty"`
	FunctionalStatusRaw     string              `json:"functional_status_raw,omitempty"`
	PhenotypePredictionRaw  string              `json:"phenotype_prediction_raw,omitempty"`
	ConfidenceScoreRaw      *float64            `json:"confidence_score_raw,omitempty"`
	CommentsRaw             string              `json:"comments_raw,omitempty"`
	StructuralVariantsRaw   []StructuralVariant `json:"structural_variants_raw,omitempty"`
	VariantsReported        []VariantReported   `json:"variants_reported,omitempty"`

	// Extra preserves unknown tool-specific keys (and known numeric keys
	// whose values failed to parse) without interpretation.
	Extra map[string]interface{} `json:"-"`
}

// rawToolOutputAlias avoids recursing into the custom JSON methods.
type rawToolOutputAlias RawToolOutput

// knownRawOutputKeys are the schema keys of RawToolOutput; everything else
// goes into Extra.
var knownRawOutputKeys = map[string]bool{
	"diplotype_string":         true,
	"haplotype1_raw":           true,
	"haplotype2_raw":           true,
	"copy_number_raw":          true,
	"functional_status_raw":    true,
	"phenotype_prediction_raw": true,
	"confidence_score_raw":     true,
	"comments_raw":             true,
	"structural_variants_raw":  true,
	"variants_reported":        true,
}

// numericRawOutputKeys are optional numeric fields. A value that fails to
// parse as a number is demoted to Extra instead of failing the record.
var numericRawOutputKeys = map[string]bool{
	"copy_number_raw":      true,
	"confidence_score_raw": true,
}

// UnmarshalJSON decodes known fields into their typed slots and preserves
// all unknown keys in Extra. Malformed optional numerics are demoted to
// Extra rather than rejecting the whole record.
func (r *RawToolOutput) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	demoted := map[string]json.RawMessage{}
	for key := range numericRawOutputKeys {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var probe float64
		if err := json.Unmarshal(raw, &probe); err != nil {
			demoted[key] = raw
			delete(fields, key)
		}
	}

	known, err := json.Marshal(pruneUnknown(fields))
	if err != nil {
		return err
	}
	var alias rawToolOutputAlias
	if err := json.Unmarshal(known, &alias); err != nil {
		return err
	}
	*r = RawToolOutput(alias)

	for key, raw := range fields {
		if knownRawOutputKeys[key] {
			continue
		}
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		if r.Extra == nil {
			r.Extra = map[string]interface{}{}
		}
		r.Extra[key] = value
	}
	for key, raw := range demoted {
		var value interface{}
		if err := json.Unmarshal(raw, &value); err != nil {
			continue
		}
		if r.Extra == nil {
			r.Extra = map[string]interface{}{}
		}
		r.Extra[key] = value
	}
	return nil
}

// MarshalJSON emits the typed fields and re-inlines every preserved Extra
// key so the round trip keeps unknown tool fields intact.
func (r RawToolOutput) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(rawToolOutputAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return known, nil
	}

	var merged map[string]interface{}
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for key, value := range r.Extra {
		if _, taken := merged[key]; taken {
			continue
		}
		merged[key] = value
	}
	return json.Marshal(merged)
}

func pruneUnknown(fields map[string]json.RawMessage) map[string]json.RawMessage {
	pruned := make(map[string]json.RawMessage, len(fields))
	for key, raw := range fields {
		if knownRawOutputKeys[key] {
			pruned[key] = raw
		}
	}
	return pruned
}

// Clone returns a deep copy of the record so consensus output can own its
// provenance by value without sharing mutable state with the input batch.
func (t ToolCallRecord) Clone() ToolCallRecord {
	clone := t
	clone.RawToolOutput = t.RawToolOutput.clone()
	return clone
}

func (r RawToolOutput) clone() RawToolOutput {
	clone := r
	if r.CopyNumberRaw != nil {
		v := *r.CopyNumberRaw
		clone.CopyNumberRaw = &v
	}
	if r.ConfidenceScoreRaw != nil {
		v := *r.ConfidenceScoreRaw
		clone.ConfidenceScoreRaw = &v
	}
	if r.StructuralVariantsRaw != nil {
		clone.StructuralVariantsRaw = append([]StructuralVariant(nil), r.StructuralVariantsRaw...)
	}
	if r.VariantsReported != nil {
		clone.VariantsReported = make([]VariantReported, len(r.VariantsReported))
		for i, v := range r.VariantsReported {
			vc := v
			if v.QualityScore != nil {
				q := *v.QualityScore
				vc.QualityScore = &q
			}
			clone.VariantsReported[i] = vc
		}
	}
	if r.Extra != nil {
		clone.Extra = make(map[string]interface{}, len(r.Extra))
		for k, v := range r.Extra {
			clone.Extra[k] = v
		}
	}
	return clone
}
