// Package detector diffs sampled external fields against the mapping
// registry and proposes inactive mappings for anything new.
package detector

import (
	"context"
	"fmt"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/internal/registry"
	"github.com/user/fieldbridge/pkg/classify"
	"github.com/user/fieldbridge/pkg/sampler"
)

// FieldError is a per-field insertion failure. One failing field never
// aborts the remaining candidates.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldOutcome records the individual result of one candidate insertion.
type FieldOutcome struct {
	Field   string `json:"field"`
	Outcome string `json:"outcome"`
}

// Result is the aggregate outcome of one detection run.
type Result struct {
	TotalFields    int                     `json:"total_fields"`
	ExistingFields int                     `json:"existing_fields"`
	NewFields      []registry.FieldMapping `json:"new_fields"`
	Inserted       int                     `json:"inserted"`
	AlreadyExists  int                     `json:"already_exists"`
	Errors         []FieldError            `json:"errors,omitempty"`
	Details        []FieldOutcome          `json:"details,omitempty"`
	FromFallback   bool                    `json:"from_fallback,omitempty"`
}

// Detector runs drift detection: sample, classify, diff, propose.
type Detector struct {
	sampler    *sampler.Sampler
	store      registry.Storage
	rules      Rules
	detectedBy string
	logger     fieldbridge.Logger
}

func New(s *sampler.Sampler, store registry.Storage, rules Rules, detectedBy string, logger fieldbridge.Logger) *Detector {
	if detectedBy == "" {
		detectedBy = "fieldbridge"
	}
	if logger == nil {
		logger = fieldbridge.NopLogger{}
	}
	return &Detector{sampler: s, store: store, rules: rules, detectedBy: detectedBy, logger: logger}
}

// Detect samples recordType, classifies each observed field, and inserts an
// inactive proposal for every field not yet known under mappingKey. Running
// it twice with an unchanged external schema yields zero new fields on the
// second run.
func (d *Detector) Detect(ctx context.Context, mappingKey, recordType string) (*Result, error) {
	sample, err := d.sampler.Sample(ctx, recordType)
	if err != nil {
		return nil, err
	}

	existing, err := d.store.ListAll(ctx, mappingKey, true)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping registry: %w", err)
	}
	known := make(map[string]bool, len(existing))
	for _, m := range existing {
		known[m.SourceFieldName] = true
	}

	res := &Result{
		TotalFields:  len(sample.Fields),
		NewFields:    []registry.FieldMapping{},
		FromFallback: sample.FromFallback,
	}

	for _, field := range sample.Fields {
		if known[field] {
			res.ExistingFields++
			continue
		}

		var raw any
		if sample.Record != nil {
			raw = sample.Record[field]
		}
		sourceType := classify.Classify(raw)

		targetColumn, isCustom := d.rules.TargetColumn(field)
		targetType := d.rules.TargetType(field, sourceType)

		mapping := registry.FieldMapping{
			MappingKey:       mappingKey,
			RecordType:       recordType,
			SourceFieldName:  field,
			SourceFieldType:  sourceType,
			SourceFieldLabel: Label(field),
			TargetColumnName: targetColumn,
			TargetColumnType: targetType,
			Transform:        d.rules.TransformFor(sourceType, targetType),
			IsCustomField:    isCustom,
			DetectedBy:       d.detectedBy,
		}

		outcome, err := d.store.InsertIfAbsent(ctx, mapping)
		if err != nil {
			// Record and keep going: insertions are independent.
			res.Errors = append(res.Errors, FieldError{Field: field, Message: err.Error()})
			d.logger.Error("failed to insert proposed mapping", "mapping_key", mappingKey, "field", field, "error", err)
			continue
		}

		res.Details = append(res.Details, FieldOutcome{Field: field, Outcome: outcome.String()})
		switch outcome {
		case registry.OutcomeCreated:
			res.Inserted++
			res.NewFields = append(res.NewFields, mapping)
		case registry.OutcomeAlreadyExists:
			// A concurrent detection run won the race; this is benign.
			res.AlreadyExists++
		}
	}

	d.logger.Info("drift detection finished",
		"mapping_key", mappingKey,
		"record_type", recordType,
		"total", res.TotalFields,
		"new", len(res.NewFields),
		"errors", len(res.Errors))

	return res, nil
}
