package transform

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"github.com/user/fieldbridge"
)

// LookupResolver resolves a source value against a reference table, returning
// the mapped attribute. A missing match yields (nil, nil), not an error.
type LookupResolver interface {
	Lookup(ctx context.Context, table, keyColumn string, value any, returnField string) (any, error)
}

// Warning records a non-fatal per-field degradation: the field became null
// and the reason is surfaced in aggregate.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Context carries the data a rule needs at evaluation time. Row is always
// set; Lookup is required only for lookup rules.
type Context struct {
	Row    fieldbridge.Record
	Lookup LookupResolver
}

// Apply evaluates rule against the source field of the row in tc and returns
// the destination value. Failures degrade to a nil value plus a warning; they
// never abort the row.
func Apply(ctx context.Context, rule Rule, sourceField, targetType string, tc *Context) (any, *Warning) {
	value := Value(tc.Row, sourceField)

	switch rule.Kind {
	case KindDirect, KindAggregate:
		// Aggregate fields reach this point already reduced by
		// ReduceAggregate, so they coerce like a direct value.
		out, err := coerce(value, targetType, rule)
		if err != nil {
			return nil, &Warning{Field: sourceField, Message: fmt.Sprintf("coercion to %s failed, needs manual review: %v", targetType, err)}
		}
		return out, nil

	case KindDefault:
		if isEmpty(value) {
			return rule.cfg("value"), nil
		}
		return value, nil

	case KindLookup:
		if tc.Lookup == nil {
			return nil, &Warning{Field: sourceField, Message: "lookup rule without reference table access"}
		}
		out, err := tc.Lookup.Lookup(ctx, rule.cfg("table"), rule.cfg("key"), value, rule.cfg("return_field"))
		if err != nil {
			return nil, &Warning{Field: sourceField, Message: fmt.Sprintf("lookup against %s failed: %v", rule.cfg("table"), err)}
		}
		return out, nil

	case KindExpression:
		out, err := EvaluateTemplate(rule.cfg("template"), value)
		if err != nil {
			return nil, &Warning{Field: sourceField, Message: fmt.Sprintf("expression failed: %v", err)}
		}
		return out, nil
	}

	return nil, &Warning{Field: sourceField, Message: fmt.Sprintf("unknown transform kind %q", rule.Kind)}
}

// Value reads a (possibly nested, dot-separated) field from a record.
func Value(row fieldbridge.Record, path string) any {
	if path == "" || row == nil {
		return nil
	}
	if v, ok := row[path]; ok {
		return v
	}

	raw, err := json.Marshal(row)
	if err != nil {
		return nil
	}
	res := gjson.GetBytes(raw, path)
	if !res.Exists() {
		return nil
	}
	return res.Value()
}

// SetValue writes a (possibly nested) field into a record in place.
func SetValue(row fieldbridge.Record, path string, val any) {
	if path == "" || row == nil {
		return
	}
	if !strings.Contains(path, ".") {
		row[path] = val
		return
	}

	raw, err := json.Marshal(row)
	if err != nil {
		return
	}
	updated, err := sjson.SetBytes(raw, path, val)
	if err != nil {
		return
	}
	var next map[string]any
	if err := json.Unmarshal(updated, &next); err != nil {
		return
	}
	for k := range row {
		delete(row, k)
	}
	for k, v := range next {
		row[k] = v
	}
}

func isEmpty(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return strings.TrimSpace(s) == ""
	}
	return false
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
}

func coerce(value any, targetType string, rule Rule) (any, error) {
	if value == nil {
		return nil, nil
	}

	switch normalizeType(targetType) {
	case "boolean":
		if tv := rule.cfg("true_value"); tv != "" {
			s := fmt.Sprintf("%v", value)
			switch s {
			case tv:
				return true, nil
			case rule.cfg("false_value"):
				return false, nil
			}
			return nil, fmt.Errorf("value %q matches neither %q nor %q", s, tv, rule.cfg("false_value"))
		}
		if b, ok := value.(bool); ok {
			return b, nil
		}
		if b, ok := toBool(value); ok {
			return b, nil
		}
		return nil, fmt.Errorf("cannot read %v as boolean", value)

	case "integer":
		if i, ok := ToInt64(value); ok {
			return i, nil
		}
		return nil, fmt.Errorf("cannot read %v as integer", value)

	case "decimal":
		if f, ok := ToFloat64(value); ok {
			return f, nil
		}
		return nil, fmt.Errorf("cannot read %v as decimal", value)

	case "date":
		if t, ok := value.(time.Time); ok {
			return t, nil
		}
		s := strings.TrimSpace(fmt.Sprintf("%v", value))
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("cannot read %q as date", s)

	default:
		if s, ok := value.(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", value), nil
	}
}

// normalizeType folds SQL column types onto the coercion families.
func normalizeType(targetType string) string {
	switch strings.ToLower(targetType) {
	case "boolean", "bool":
		return "boolean"
	case "integer", "int", "bigint", "smallint":
		return "integer"
	case "decimal", "numeric", "real", "double precision", "float":
		return "decimal"
	case "date", "timestamp", "timestamptz", "datetime":
		return "date"
	default:
		return "text"
	}
}

// Type conversion helpers

func ToFloat64(val any) (float64, bool) {
	switch v := val.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func ToInt64(val any) (int64, bool) {
	switch v := val.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case float32:
		return ToInt64(float64(v))
	case json.Number:
		i, err := v.Int64()
		return i, err == nil
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return int64(f), true
		}
		return 0, false
	}
	return 0, false
}

func toBool(val any) (bool, bool) {
	switch v := val.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "t":
			return true, true
		case "false", "0", "no", "f":
			return false, true
		}
		return false, false
	case int, int32, int64, float32, float64:
		f, _ := ToFloat64(v)
		return f != 0, true
	}
	return false, false
}
