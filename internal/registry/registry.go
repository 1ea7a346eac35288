// Package registry persists the field mappings that pair external recordset
// fields with destination columns.
package registry

import (
	"context"
	"errors"
	"time"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/pkg/transform"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrUnprovisioned means the mapping table does not exist yet. Reads
	// treat this as an empty registry; writes surface it.
	ErrUnprovisioned = errors.New("mapping registry not provisioned")
)

// InsertOutcome classifies the result of an idempotent insert.
type InsertOutcome int

const (
	OutcomeCreated InsertOutcome = iota
	OutcomeAlreadyExists
)

func (o InsertOutcome) String() string {
	if o == OutcomeAlreadyExists {
		return "already_exists"
	}
	return "created"
}

// FieldMapping is the persisted unit of truth: one external field paired with
// one destination column, plus the transform applied during import. Created
// inactive by drift detection; activated and overridden only by human review;
// never auto-deleted.
type FieldMapping struct {
	ID               string                `json:"id"`
	MappingKey       string                `json:"mapping_key"`
	RecordType       string                `json:"record_type,omitempty"`
	SourceFieldName  string                `json:"source_field_name"`
	SourceFieldType  fieldbridge.FieldType `json:"source_field_type"`
	SourceFieldLabel string                `json:"source_field_label,omitempty"`
	TargetColumnName string                `json:"target_column_name"`
	TargetColumnType string                `json:"target_column_type"`
	Transform        transform.Rule        `json:"transform"`
	IsActive         bool                  `json:"is_active"`
	IsCustomField    bool                  `json:"is_custom_field"`
	DetectedAt       time.Time             `json:"detected_at"`
	DetectedBy       string                `json:"detected_by,omitempty"`
}

// Storage is the persistence boundary for field mappings. (mapping_key,
// source_field_name) is unique; InsertIfAbsent never propagates the duplicate
// case as an error.
type Storage interface {
	Init(ctx context.Context) error

	// ListAll returns mappings for a key (all keys when empty), active
	// only unless includeInactive. A missing table yields an empty result.
	ListAll(ctx context.Context, mappingKey string, includeInactive bool) ([]FieldMapping, error)
	// ListActive returns the ordered active mapping set for one key.
	ListActive(ctx context.Context, mappingKey string) ([]FieldMapping, error)
	// ListPending returns proposals awaiting review; includeActive widens
	// it to every mapping.
	ListPending(ctx context.Context, mappingKey string, includeActive bool) ([]FieldMapping, error)

	// InsertIfAbsent inserts the mapping, reporting OutcomeAlreadyExists
	// instead of an error when the (mapping_key, source_field_name) pair
	// is already present.
	InsertIfAbsent(ctx context.Context, m FieldMapping) (InsertOutcome, error)

	// SetActive flips the review flag on one mapping.
	SetActive(ctx context.Context, mappingKey, sourceField string, active bool) error
	// UpdateTarget applies a human override of the destination column
	// and/or type. Empty arguments leave the stored value unchanged.
	UpdateTarget(ctx context.Context, mappingKey, sourceField, targetColumn, targetType string) error

	// RecordType resolves the external recordset type associated with a
	// mapping key.
	RecordType(ctx context.Context, mappingKey string) (string, error)
}
