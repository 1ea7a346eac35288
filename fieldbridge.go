package fieldbridge

// FieldType is the primitive semantic type assigned to a sampled value.
type FieldType string

const (
	TypeBoolean FieldType = "boolean"
	TypeInteger FieldType = "integer"
	TypeDecimal FieldType = "decimal"
	TypeDate    FieldType = "date"
	TypeText    FieldType = "text"
	TypeUnknown FieldType = "unknown"
)

// SQLType returns the destination column type used when a mapping does not
// carry an explicit target type.
func (t FieldType) SQLType() string {
	switch t {
	case TypeBoolean:
		return "boolean"
	case TypeInteger:
		return "bigint"
	case TypeDecimal:
		return "numeric"
	case TypeDate:
		return "timestamptz"
	default:
		return "text"
	}
}

// Record is one row of source data keyed by field name.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Logger defines the interface for logging in fieldbridge.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// NopLogger discards all log output. Useful as a default in tests.
type NopLogger struct{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
