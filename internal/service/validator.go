package service

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/pgx-consensus-server/internal/domain"
)

// ValidatorService checks incoming tool call records against the required
// field contract. Validation is pure: a structurally invalid record is
// excluded and reported individually, never aborting the batch. Only an
// input that is not a JSON array of objects at all is fatal.
type ValidatorService struct {
	logger *logrus.Logger
}

// NewValidatorService creates a new record validator.
func NewValidatorService(logger *logrus.Logger) *ValidatorService {
	return &ValidatorService{logger: logger}
}

// ValidateBatch decodes a JSON batch into validated records plus the
// per-record validation errors for everything it had to exclude.
func (v *ValidatorService) ValidateBatch(data []byte) ([]domain.ToolCallRecord, []domain.ValidationError, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, nil, domain.NewBatchError(domain.ErrInvalidInput, "input is not a JSON array of records", err.Error())
	}

	records := make([]domain.ToolCallRecord, 0, len(raws))
	var failures []domain.ValidationError

	for i, raw := range raws {
		var record domain.ToolCallRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			failures = append(failures, *domain.NewValidationError(i, "record", "not a valid record object: "+err.Error(), nil))
			continue
		}
		if verr := v.ValidateRecord(i, &record); verr != nil {
			failures = append(failures, *verr)
			continue
		}
		records = append(records, record)
	}

	v.logger.WithFields(logrus.Fields{
		"total":    len(raws),
		"valid":    len(records),
		"rejected": len(failures),
	}).Info("Batch validation completed")

	return records, failures, nil
}

// ValidateRecord checks the required fields of one decoded record. The
// returned error names the first missing field; nil means the record is
// structurally valid.
func (v *ValidatorService) ValidateRecord(index int, record *domain.ToolCallRecord) *domain.ValidationError {
	switch {
	case record.SampleID == "":
		return domain.NewValidationError(index, "sample_id", "sample identifier is required", nil)
	case record.Gene == "":
		return domain.NewValidationError(index, "gene", "gene symbol is required", nil)
	case record.ToolName == "":
		return domain.NewValidationError(index, "tool_name", "tool name is required", nil)
	case record.ReferenceGenome == "":
		return domain.NewValidationError(index, "reference_genome", "reference genome build is required", nil)
	case record.RawToolOutput.DiplotypeString == "":
		return domain.NewValidationError(index, "raw_tool_output.diplotype_string", "diplotype string is required", nil)
	}
	return nil
}
