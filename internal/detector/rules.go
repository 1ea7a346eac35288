package detector

import (
	"strings"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/pkg/transform"
)

// Rules are the data-driven naming heuristics applied to newly observed
// fields. They are tables, not branches, so deployments can extend them in
// configuration without touching detection control flow.
type Rules struct {
	// CustomPrefixes maps a source naming-convention prefix to its
	// normalized replacement. A match also marks the mapping as a custom
	// field.
	CustomPrefixes map[string]string
	// Renames maps well-known source names to conventional column names.
	Renames map[string]string
	// BooleanHints and AmountHints are substrings of a field name that
	// override the naive type mapping.
	BooleanHints []string
	AmountHints  []string
	// BooleanTrue/BooleanFalse are the source literals coerced onto
	// boolean destination columns.
	BooleanTrue  string
	BooleanFalse string
}

// DefaultRules covers the common external naming conventions.
func DefaultRules() Rules {
	return Rules{
		CustomPrefixes: map[string]string{
			"custbody_":   "custom_",
			"custcol_":    "custom_",
			"custentity_": "custom_",
			"custitem_":   "custom_",
			"custrecord_": "custom_",
		},
		Renames: map[string]string{
			"isinactive":       "is_inactive",
			"legalname":        "legal_name",
			"entityid":         "entity_code",
			"companyname":      "company_name",
			"tranid":           "transaction_number",
			"trandate":         "transaction_date",
			"datecreated":      "created_at",
			"lastmodifieddate": "updated_at",
		},
		BooleanHints: []string{"is", "has"},
		AmountHints:  []string{"amount", "total", "rate", "price", "balance"},
		BooleanTrue:  "T",
		BooleanFalse: "F",
	}
}

// TargetColumn derives the suggested destination column name for a source
// field and reports whether the field matched a custom-field prefix.
func (r Rules) TargetColumn(sourceField string) (string, bool) {
	lower := strings.ToLower(sourceField)
	for prefix, replacement := range r.CustomPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return replacement + lower[len(prefix):], true
		}
	}
	if renamed, ok := r.Renames[lower]; ok {
		return renamed, false
	}
	return lower, false
}

// TargetType derives the suggested destination column type from the
// classified source type, overridden by naming hints.
func (r Rules) TargetType(sourceField string, sourceType fieldbridge.FieldType) string {
	lower := strings.ToLower(sourceField)
	// Substring matching is coarse and can misfire (a field named
	// "dishwasher" would hit the "is" hint); review catches those.
	for _, hint := range r.BooleanHints {
		if strings.Contains(lower, hint) {
			return "boolean"
		}
	}
	if sourceType == fieldbridge.TypeText || sourceType == fieldbridge.TypeUnknown {
		for _, hint := range r.AmountHints {
			if strings.Contains(lower, hint) {
				return "numeric"
			}
		}
	}
	return sourceType.SQLType()
}

// TransformFor suggests the transform rule for a new mapping: identity in
// general, boolean coercion when the destination is boolean but the source
// is not.
func (r Rules) TransformFor(sourceType fieldbridge.FieldType, targetType string) transform.Rule {
	if targetType == "boolean" && sourceType != fieldbridge.TypeBoolean {
		return transform.BooleanCoercion(r.BooleanTrue, r.BooleanFalse)
	}
	return transform.Direct()
}

// Label renders a human-readable review label from a source field name.
func Label(sourceField string) string {
	words := strings.FieldsFunc(strings.ToLower(sourceField), func(c rune) bool {
		return c == '_' || c == '-'
	})
	for i, w := range words {
		if len(w) > 0 {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
