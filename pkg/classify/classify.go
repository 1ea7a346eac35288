// Package classify assigns a primitive semantic type to raw sampled values.
package classify

import (
	"encoding/json"
	"math"
	"regexp"

	"github.com/user/fieldbridge"
)

var (
	isoDateRe   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	slashDateRe = regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{2,4}`)
)

// Classify maps a raw value to a FieldType. It is total and deterministic:
// any input yields a type, never an error or a panic.
func Classify(value any) fieldbridge.FieldType {
	if value == nil {
		return fieldbridge.TypeUnknown
	}

	switch v := value.(type) {
	case bool:
		return fieldbridge.TypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fieldbridge.TypeInteger
	case float32:
		return classifyFloat(float64(v))
	case float64:
		return classifyFloat(v)
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return fieldbridge.TypeInteger
		}
		if _, err := v.Float64(); err == nil {
			return fieldbridge.TypeDecimal
		}
		return fieldbridge.TypeUnknown
	case string:
		if isoDateRe.MatchString(v) || slashDateRe.MatchString(v) {
			return fieldbridge.TypeDate
		}
		return fieldbridge.TypeText
	}

	return fieldbridge.TypeUnknown
}

func classifyFloat(f float64) fieldbridge.FieldType {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fieldbridge.TypeDecimal
	}
	if f == math.Trunc(f) {
		return fieldbridge.TypeInteger
	}
	return fieldbridge.TypeDecimal
}
