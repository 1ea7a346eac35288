package detector

import (
	"context"
	"errors"
	"testing"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/internal/registry"
	"github.com/user/fieldbridge/pkg/sampler"
	"github.com/user/fieldbridge/pkg/transform"
)

type fakeQuerier struct {
	rows []fieldbridge.Record
	err  error
}

func (f *fakeQuerier) Query(_ context.Context, query string) ([]fieldbridge.Record, error) {
	return f.rows, f.err
}

type memStorage struct {
	registry.Storage
	mappings  map[string]registry.FieldMapping
	insertErr map[string]error
}

func newMemStorage() *memStorage {
	return &memStorage{mappings: make(map[string]registry.FieldMapping), insertErr: make(map[string]error)}
}

func (m *memStorage) key(mappingKey, sourceField string) string {
	return mappingKey + "/" + sourceField
}

func (m *memStorage) ListAll(_ context.Context, mappingKey string, includeInactive bool) ([]registry.FieldMapping, error) {
	var out []registry.FieldMapping
	for _, fm := range m.mappings {
		if mappingKey != "" && fm.MappingKey != mappingKey {
			continue
		}
		if !includeInactive && !fm.IsActive {
			continue
		}
		out = append(out, fm)
	}
	return out, nil
}

func (m *memStorage) InsertIfAbsent(_ context.Context, fm registry.FieldMapping) (registry.InsertOutcome, error) {
	k := m.key(fm.MappingKey, fm.SourceFieldName)
	if err := m.insertErr[fm.SourceFieldName]; err != nil {
		return 0, err
	}
	if _, ok := m.mappings[k]; ok {
		return registry.OutcomeAlreadyExists, nil
	}
	m.mappings[k] = fm
	return registry.OutcomeCreated, nil
}

func newDetector(q sampler.Querier, store registry.Storage, fallback map[string][]string) *Detector {
	return New(sampler.New(q, fallback, nil), store, DefaultRules(), "test", nil)
}

func TestDetectSubsidiary(t *testing.T) {
	q := &fakeQuerier{rows: []fieldbridge.Record{
		{"id": 1, "isinactive": "F", "legalname": "Acme Co"},
	}}
	store := newMemStorage()
	d := newDetector(q, store, nil)

	res, err := d.Detect(context.Background(), "subsidiary", "subsidiary")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}

	if res.TotalFields != 3 || res.Inserted != 3 || res.ExistingFields != 0 {
		t.Errorf("result = %+v", res)
	}

	byField := make(map[string]registry.FieldMapping)
	for _, m := range res.NewFields {
		byField[m.SourceFieldName] = m
	}

	inactive := byField["isinactive"]
	if inactive.TargetColumnName != "is_inactive" {
		t.Errorf("isinactive target column = %s", inactive.TargetColumnName)
	}
	if inactive.TargetColumnType != "boolean" {
		t.Errorf("isinactive target type = %s", inactive.TargetColumnType)
	}
	if inactive.Transform.Config["true_value"] != "T" || inactive.Transform.Config["false_value"] != "F" {
		t.Errorf("isinactive transform = %+v", inactive.Transform)
	}
	if inactive.IsActive {
		t.Error("proposals must be created inactive")
	}

	legal := byField["legalname"]
	if legal.TargetColumnName != "legal_name" || legal.TargetColumnType != "text" {
		t.Errorf("legalname mapping = %+v", legal)
	}
	if legal.Transform.Kind != transform.KindDirect || len(legal.Transform.Config) != 0 {
		t.Errorf("legalname transform = %+v", legal.Transform)
	}

	id := byField["id"]
	if id.SourceFieldType != fieldbridge.TypeInteger || id.TargetColumnType != "bigint" {
		t.Errorf("id mapping = %+v", id)
	}
}

func TestDetectIdempotent(t *testing.T) {
	q := &fakeQuerier{rows: []fieldbridge.Record{
		{"id": 1, "isinactive": "F", "legalname": "Acme Co"},
	}}
	store := newMemStorage()
	d := newDetector(q, store, nil)

	if _, err := d.Detect(context.Background(), "subsidiary", "subsidiary"); err != nil {
		t.Fatal(err)
	}

	res, err := d.Detect(context.Background(), "subsidiary", "subsidiary")
	if err != nil {
		t.Fatalf("second Detect failed: %v", err)
	}
	if len(res.NewFields) != 0 || res.Inserted != 0 {
		t.Errorf("second run should find nothing new: %+v", res)
	}
	if res.ExistingFields != 3 {
		t.Errorf("ExistingFields = %d, want 3", res.ExistingFields)
	}
}

func TestDetectCustomField(t *testing.T) {
	q := &fakeQuerier{rows: []fieldbridge.Record{
		{"custbody_priority_code": "HIGH"},
	}}
	store := newMemStorage()
	d := newDetector(q, store, nil)

	res, err := d.Detect(context.Background(), "transaction", "transaction")
	if err != nil {
		t.Fatal(err)
	}
	m := res.NewFields[0]
	if m.TargetColumnName != "custom_priority_code" {
		t.Errorf("target column = %s", m.TargetColumnName)
	}
	if !m.IsCustomField {
		t.Error("custbody_ fields must be flagged custom")
	}
	if m.SourceFieldLabel != "Custbody Priority Code" {
		t.Errorf("label = %s", m.SourceFieldLabel)
	}
}

func TestDetectFieldErrorsAreIsolated(t *testing.T) {
	q := &fakeQuerier{rows: []fieldbridge.Record{
		{"aaa": 1, "bbb": 2, "ccc": 3},
	}}
	store := newMemStorage()
	store.insertErr["bbb"] = errors.New("disk full")
	d := newDetector(q, store, nil)

	res, err := d.Detect(context.Background(), "item", "item")
	if err != nil {
		t.Fatalf("one failing field must not abort the run: %v", err)
	}
	if res.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2", res.Inserted)
	}
	if len(res.Errors) != 1 || res.Errors[0].Field != "bbb" {
		t.Errorf("Errors = %+v", res.Errors)
	}
}

func TestDetectFallbackFields(t *testing.T) {
	q := &fakeQuerier{err: errors.New("connection refused")}
	store := newMemStorage()
	d := newDetector(q, store, map[string][]string{
		"subsidiary": {"id", "name", "legalname"},
	})

	res, err := d.Detect(context.Background(), "subsidiary", "subsidiary")
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if !res.FromFallback {
		t.Error("expected fallback detection")
	}
	if res.Inserted != 3 {
		t.Errorf("Inserted = %d, want 3", res.Inserted)
	}
	// Without a live record every fallback field classifies as unknown.
	for _, m := range res.NewFields {
		if m.SourceFieldName == "legalname" && m.SourceFieldType != fieldbridge.TypeUnknown {
			t.Errorf("fallback field type = %s, want unknown", m.SourceFieldType)
		}
	}
}

func TestDetectSourceUnavailable(t *testing.T) {
	q := &fakeQuerier{err: errors.New("connection refused")}
	d := newDetector(q, newMemStorage(), nil)

	_, err := d.Detect(context.Background(), "subsidiary", "subsidiary")
	var srcErr *sampler.SourceUnavailableError
	if !errors.As(err, &srcErr) {
		t.Fatalf("expected SourceUnavailableError, got %v", err)
	}
}

func TestTargetColumnRules(t *testing.T) {
	r := DefaultRules()
	tests := []struct {
		in       string
		expected string
		custom   bool
	}{
		{"isinactive", "is_inactive", false},
		{"legalname", "legal_name", false},
		{"tranid", "transaction_number", false},
		{"custcol_discount", "custom_discount", true},
		{"CUSTENTITY_REGION", "custom_region", true},
		{"plainfield", "plainfield", false},
		{"MixedCase", "mixedcase", false},
	}
	for _, tt := range tests {
		got, custom := r.TargetColumn(tt.in)
		if got != tt.expected || custom != tt.custom {
			t.Errorf("TargetColumn(%s) = (%s, %v), want (%s, %v)", tt.in, got, custom, tt.expected, tt.custom)
		}
	}
}

func TestTargetTypeHints(t *testing.T) {
	r := DefaultRules()
	tests := []struct {
		field      string
		sourceType fieldbridge.FieldType
		expected   string
	}{
		{"isinactive", fieldbridge.TypeText, "boolean"},
		{"hasaccess", fieldbridge.TypeText, "boolean"},
		{"amountremaining", fieldbridge.TypeText, "numeric"},
		{"totalbalance", fieldbridge.TypeUnknown, "numeric"},
		{"amount", fieldbridge.TypeDecimal, "numeric"},
		{"legalname", fieldbridge.TypeText, "text"},
		{"quantity", fieldbridge.TypeInteger, "bigint"},
		{"trandate", fieldbridge.TypeDate, "timestamptz"},
	}
	for _, tt := range tests {
		if got := r.TargetType(tt.field, tt.sourceType); got != tt.expected {
			t.Errorf("TargetType(%s, %s) = %s, want %s", tt.field, tt.sourceType, got, tt.expected)
		}
	}
}

func TestLabel(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"legalname", "Legalname"},
		{"legal_name", "Legal Name"},
		{"custbody_priority_code", "Custbody Priority Code"},
	}
	for _, tt := range tests {
		if got := Label(tt.in); got != tt.expected {
			t.Errorf("Label(%s) = %s, want %s", tt.in, got, tt.expected)
		}
	}
}
