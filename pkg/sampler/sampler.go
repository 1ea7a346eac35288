// Package sampler pulls representative records from the external system to
// infer field names, falling back to static per-record-type field lists.
package sampler

import (
	"context"
	"fmt"
	"sort"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/pkg/sqlutil"
)

// Querier executes a read-only query against the external system and returns
// the resulting records. Implementations wrap whatever transport the backend
// speaks (SQL connection, HTTP query endpoint).
type Querier interface {
	Query(ctx context.Context, query string) ([]fieldbridge.Record, error)
}

// Result holds one representative record and the field names observed on it.
type Result struct {
	RecordType   string
	Fields       []string
	Record       fieldbridge.Record // nil when fields came from the static fallback
	FromFallback bool
}

// SourceUnavailableError means neither the live query nor the static fallback
// produced any fields. Empty distinguishes "query succeeded but returned no
// rows" from "query failed".
type SourceUnavailableError struct {
	RecordType string
	Empty      bool
	Err        error
}

func (e *SourceUnavailableError) Error() string {
	if e.Empty {
		return fmt.Sprintf("source unavailable for %q: query returned no records and no standard field list exists", e.RecordType)
	}
	if e.Err == nil {
		return fmt.Sprintf("source unavailable for %q: no source configured and no standard field list exists", e.RecordType)
	}
	return fmt.Sprintf("source unavailable for %q: %v", e.RecordType, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// firstRowDialects are the alternative "fetch first row" syntaxes, ordered by
// backend capability tier. All three are probed on every call; the working
// dialect is deliberately not cached because a backend is not guaranteed to
// keep accepting the same form across calls.
var firstRowDialects = []string{
	"SELECT * FROM %s FETCH FIRST 1 ROWS ONLY",
	"SELECT * FROM %s LIMIT 1",
	"SELECT TOP 1 * FROM %s",
}

// Sampler fetches one representative record per record type.
type Sampler struct {
	querier        Querier
	standardFields map[string][]string
	logger         fieldbridge.Logger
}

// New creates a Sampler. standardFields is the static fallback table keyed by
// record type; it is copied so later edits by the caller cannot leak in.
func New(q Querier, standardFields map[string][]string, logger fieldbridge.Logger) *Sampler {
	fields := make(map[string][]string, len(standardFields))
	for k, v := range standardFields {
		fields[k] = append([]string(nil), v...)
	}
	if logger == nil {
		logger = fieldbridge.NopLogger{}
	}
	return &Sampler{querier: q, standardFields: fields, logger: logger}
}

// Sample returns up to one representative record for recordType and the list
// of field names observed on it. The dialect probe is bounded: three attempts,
// then the static fallback, then failure.
func (s *Sampler) Sample(ctx context.Context, recordType string) (*Result, error) {
	if !sqlutil.ValidIdent(recordType) {
		return nil, fmt.Errorf("invalid record type: %q", recordType)
	}

	var lastErr error
	sawEmpty := false

	if s.querier != nil {
		for _, dialect := range firstRowDialects {
			rows, err := s.querier.Query(ctx, fmt.Sprintf(dialect, recordType))
			if err != nil {
				lastErr = err
				s.logger.Debug("sample dialect rejected", "record_type", recordType, "error", err)
				continue
			}
			if len(rows) == 0 {
				// The backend understood the query; probing further dialects
				// would only return the same empty set.
				sawEmpty = true
				break
			}
			rec := rows[0]
			fields := make([]string, 0, len(rec))
			for name := range rec {
				fields = append(fields, name)
			}
			sort.Strings(fields)
			return &Result{RecordType: recordType, Fields: fields, Record: rec}, nil
		}
	}

	if fields, ok := s.standardFields[recordType]; ok && len(fields) > 0 {
		s.logger.Warn("falling back to standard field list", "record_type", recordType, "empty", sawEmpty)
		return &Result{
			RecordType:   recordType,
			Fields:       append([]string(nil), fields...),
			FromFallback: true,
		}, nil
	}

	return nil, &SourceUnavailableError{RecordType: recordType, Empty: sawEmpty, Err: lastErr}
}
