// Package transform evaluates declarative transform rules that convert source
// values (or source row sets) into destination values during import.
package transform

// Kind identifies one of the five transform rule variants.
type Kind string

const (
	// KindDirect passes the source value through with a coercion to the
	// target column type. For boolean targets the config may carry
	// true_value/false_value source literals.
	KindDirect Kind = "direct"
	// KindDefault substitutes config["value"] when the source value is
	// null or empty.
	KindDefault Kind = "default_value"
	// KindLookup resolves the source value against a reference table:
	// config keys table, key, return_field.
	KindLookup Kind = "lookup"
	// KindAggregate collapses rows sharing config["group_by"] into one
	// value via config["function"] (SUM, AVG, COUNT, MAX, MIN).
	KindAggregate Kind = "aggregate"
	// KindExpression evaluates config["template"], a restricted template
	// with a single {value} placeholder.
	KindExpression Kind = "expression"
)

// Rule is a declarative transform instruction attached to a field mapping.
type Rule struct {
	Kind   Kind              `json:"type"`
	Config map[string]string `json:"config,omitempty"`
}

// Direct returns the identity rule.
func Direct() Rule { return Rule{Kind: KindDirect} }

// BooleanCoercion returns a direct rule that maps the given source literals
// onto a boolean destination column.
func BooleanCoercion(trueValue, falseValue string) Rule {
	return Rule{Kind: KindDirect, Config: map[string]string{
		"true_value":  trueValue,
		"false_value": falseValue,
	}}
}

// RowLocal reports whether the rule can be evaluated per source row in
// isolation. Lookup needs a reference table and aggregate needs the full row
// set, so neither is row-local.
func (r Rule) RowLocal() bool {
	switch r.Kind {
	case KindLookup, KindAggregate:
		return false
	}
	return true
}

func (r Rule) cfg(key string) string {
	if r.Config == nil {
		return ""
	}
	return r.Config[key]
}
