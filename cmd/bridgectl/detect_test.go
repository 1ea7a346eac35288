package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/internal/detector"
	"github.com/user/fieldbridge/internal/registry"
	"github.com/user/fieldbridge/pkg/transform"
)

func TestDecodeDetectResponse(t *testing.T) {
	// Serialize the server's actual result type inside its success envelope,
	// exactly as the detect endpoint does.
	res := detector.Result{
		TotalFields:    3,
		ExistingFields: 1,
		NewFields: []registry.FieldMapping{
			{
				MappingKey:       "subsidiary",
				SourceFieldName:  "isinactive",
				SourceFieldType:  fieldbridge.TypeText,
				TargetColumnName: "is_inactive",
				TargetColumnType: "boolean",
				Transform:        transform.BooleanCoercion("T", "F"),
			},
			{
				MappingKey:       "subsidiary",
				SourceFieldName:  "legalname",
				SourceFieldType:  fieldbridge.TypeText,
				TargetColumnName: "legal_name",
				TargetColumnType: "text",
				Transform:        transform.Direct(),
			},
		},
		Inserted:      2,
		AlreadyExists: 0,
	}

	body, err := json.Marshal(map[string]any{"success": true, "data": res})
	if err != nil {
		t.Fatal(err)
	}

	report, err := decodeDetectResponse(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("decodeDetectResponse failed: %v", err)
	}
	if report.TotalFields != 3 || report.ExistingFields != 1 || report.Inserted != 2 {
		t.Errorf("report = %+v", report)
	}
	if len(report.NewFields) != 2 {
		t.Fatalf("NewFields = %+v", report.NewFields)
	}
	if report.NewFields[0].SourceField != "isinactive" || report.NewFields[0].TargetColumn != "is_inactive" {
		t.Errorf("first proposal = %+v", report.NewFields[0])
	}
	if report.NewFields[1].TargetType != "text" {
		t.Errorf("second proposal = %+v", report.NewFields[1])
	}
}

func TestDecodeDetectResponseFallback(t *testing.T) {
	res := detector.Result{
		TotalFields:  4,
		NewFields:    []registry.FieldMapping{},
		FromFallback: true,
	}
	body, err := json.Marshal(map[string]any{"success": true, "data": res})
	if err != nil {
		t.Fatal(err)
	}

	report, err := decodeDetectResponse(bytes.NewReader(body))
	if err != nil {
		t.Fatalf("decodeDetectResponse failed: %v", err)
	}
	if !report.FromFallback {
		t.Error("fallback flag lost")
	}
	if len(report.NewFields) != 0 {
		t.Errorf("NewFields = %+v", report.NewFields)
	}
}
