package classify

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/user/fieldbridge"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected fieldbridge.FieldType
	}{
		{"nil", nil, fieldbridge.TypeUnknown},
		{"bool true", true, fieldbridge.TypeBoolean},
		{"bool false", false, fieldbridge.TypeBoolean},
		{"int", 42, fieldbridge.TypeInteger},
		{"int64", int64(-7), fieldbridge.TypeInteger},
		{"uint", uint(9), fieldbridge.TypeInteger},
		{"whole float", 3.0, fieldbridge.TypeInteger},
		{"fractional float", 3.14, fieldbridge.TypeDecimal},
		{"negative fractional", -0.5, fieldbridge.TypeDecimal},
		{"float32", float32(2.5), fieldbridge.TypeDecimal},
		{"NaN", math.NaN(), fieldbridge.TypeDecimal},
		{"Inf", math.Inf(1), fieldbridge.TypeDecimal},
		{"json integer", json.Number("17"), fieldbridge.TypeInteger},
		{"json decimal", json.Number("17.5"), fieldbridge.TypeDecimal},
		{"json garbage", json.Number("abc"), fieldbridge.TypeUnknown},
		{"iso date", "2024-06-01", fieldbridge.TypeDate},
		{"iso timestamp", "2024-06-01T12:30:00Z", fieldbridge.TypeDate},
		{"slash date", "6/1/2024", fieldbridge.TypeDate},
		{"plain text", "Acme Co", fieldbridge.TypeText},
		{"empty string", "", fieldbridge.TypeText},
		{"T literal", "T", fieldbridge.TypeText},
		{"slice", []string{"a"}, fieldbridge.TypeUnknown},
		{"map", map[string]any{"a": 1}, fieldbridge.TypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.value); got != tt.expected {
				t.Errorf("Classify(%v) = %v, want %v", tt.value, got, tt.expected)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	values := []any{nil, true, 1, 2.5, "2024-01-01", "hello", struct{}{}}
	for _, v := range values {
		first := Classify(v)
		for i := 0; i < 10; i++ {
			if got := Classify(v); got != first {
				t.Fatalf("Classify(%v) changed between calls: %v then %v", v, first, got)
			}
		}
	}
}

func TestSQLType(t *testing.T) {
	tests := []struct {
		fieldType fieldbridge.FieldType
		expected  string
	}{
		{fieldbridge.TypeBoolean, "boolean"},
		{fieldbridge.TypeInteger, "bigint"},
		{fieldbridge.TypeDecimal, "numeric"},
		{fieldbridge.TypeDate, "timestamptz"},
		{fieldbridge.TypeText, "text"},
		{fieldbridge.TypeUnknown, "text"},
	}

	for _, tt := range tests {
		if got := tt.fieldType.SQLType(); got != tt.expected {
			t.Errorf("SQLType(%s) = %s, want %s", tt.fieldType, got, tt.expected)
		}
	}
}
