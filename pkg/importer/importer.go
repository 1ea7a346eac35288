// Package importer applies compiled statements against the destination store
// row by row, isolating per-row failures.
package importer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/pkg/compiler"
	"github.com/user/fieldbridge/pkg/sqlutil"
	"github.com/user/fieldbridge/pkg/transform"
)

// Destination is the write boundary to the destination store.
type Destination interface {
	Exec(ctx context.Context, sql string, args ...any) error
	Ping(ctx context.Context) error
	Close() error
}

// ErrNoDestination means the executor has no destination store to write to.
var ErrNoDestination = errors.New("no destination store configured")

// DestinationError wraps a destination store failure that aborts the whole
// run, as opposed to per-row write failures, which are recorded and skipped.
type DestinationError struct {
	Op  string
	Err error
}

func (e *DestinationError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *DestinationError) Unwrap() error { return e.Err }

// RowError is one entry of the aggregate error report. Row is 1-based; Field
// is set for per-field transform degradations.
type RowError struct {
	Row     int    `json:"row,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// Result is the aggregate outcome of one import run.
type Result struct {
	RunID    string     `json:"run_id"`
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors,omitempty"`
}

// Request describes one import run.
type Request struct {
	TargetTable string
	Mappings    []compiler.Mapping
	PrimaryKey  string
	Mode        compiler.Mode
	Rows        []fieldbridge.Record
}

// Config tunes the executor. Workers > 1 enables a bounded worker pool over
// rows; RowsPerSecond > 0 throttles destination writes.
type Config struct {
	Workers       int
	RowsPerSecond float64
}

// Executor runs imports against a destination store.
type Executor struct {
	dest    Destination
	lookup  transform.LookupResolver
	limiter *rate.Limiter
	workers int
	logger  fieldbridge.Logger
}

func NewExecutor(dest Destination, lookup transform.LookupResolver, cfg Config, logger fieldbridge.Logger) *Executor {
	if logger == nil {
		logger = fieldbridge.NopLogger{}
	}
	e := &Executor{dest: dest, lookup: lookup, workers: cfg.Workers, logger: logger}
	if e.workers < 1 {
		e.workers = 1
	}
	if cfg.RowsPerSecond > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(cfg.RowsPerSecond), 1)
	}
	return e
}

// Execute compiles the row statement for req, reduces aggregate-bearing
// mapping sets, and writes the resulting rows one at a time. A write failure
// for one row is recorded and execution continues: a batch of mostly-good
// data is never held hostage by a few bad rows.
func (e *Executor) Execute(ctx context.Context, req Request) (*Result, error) {
	if e.dest == nil {
		return nil, ErrNoDestination
	}
	res := &Result{RunID: uuid.New().String()}

	rows := req.Rows
	for _, m := range req.Mappings {
		if m.Rule.Kind != transform.KindAggregate {
			continue
		}
		// Aggregates change row cardinality: one value per partition.
		reduced, err := transform.ReduceAggregate(rows, m.Rule, m.SourceField)
		if err != nil {
			return nil, fmt.Errorf("aggregate reduction for %q failed: %w", m.SourceField, err)
		}
		rows = reduced
	}

	stmt, err := e.rowStatement(ctx, req)
	if err != nil {
		return nil, err
	}

	e.logger.Info("starting import run", "run_id", res.RunID, "table", req.TargetTable, "rows", len(rows))

	if e.workers == 1 {
		for i, row := range rows {
			e.writeRow(ctx, stmt, req.Mappings, i, row, res)
		}
	} else {
		e.writeRowsPooled(ctx, stmt, req.Mappings, rows, res)
	}

	e.logger.Info("import run finished", "run_id", res.RunID, "imported", res.Imported, "skipped", res.Skipped, "errors", len(res.Errors))
	return res, nil
}

// rowStatement compiles the data-movement statement, creating the
// destination table first when the run is in create mode.
func (e *Executor) rowStatement(ctx context.Context, req Request) (compiler.Statement, error) {
	if req.Mode == compiler.ModeCreate {
		ddl, err := compiler.Compile(req.TargetTable, req.Mappings, req.PrimaryKey, false)
		if err != nil {
			return compiler.Statement{}, err
		}
		if err := e.dest.Exec(ctx, ddl.SQL); err != nil {
			return compiler.Statement{}, &DestinationError{Op: "create destination table", Err: err}
		}
		if req.PrimaryKey == "" {
			return compiler.InsertSQL(req.TargetTable, req.Mappings)
		}
	}
	return compiler.Compile(req.TargetTable, req.Mappings, req.PrimaryKey, true)
}

func (e *Executor) writeRow(ctx context.Context, stmt compiler.Statement, mappings []compiler.Mapping, idx int, row fieldbridge.Record, res *Result) {
	args, warnings := e.bindRow(ctx, mappings, row)
	res.Errors = append(res.Errors, warnings...)

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			res.Errors = append(res.Errors, RowError{Row: idx + 1, Message: err.Error()})
			return
		}
	}

	if err := e.dest.Exec(ctx, stmt.SQL, args...); err != nil {
		if sqlutil.IsDuplicateKey(err) {
			// Benign skip: the destination already holds this key.
			res.Skipped++
			return
		}
		res.Errors = append(res.Errors, RowError{Row: idx + 1, Message: err.Error()})
		e.logger.Warn("row write failed", "row", idx+1, "error", err)
		return
	}
	res.Imported++
}

// writeRowsPooled fans rows out to a bounded worker pool. Per-row failures
// stay isolated; results are merged under a lock in row order.
func (e *Executor) writeRowsPooled(ctx context.Context, stmt compiler.Statement, mappings []compiler.Mapping, rows []fieldbridge.Record, res *Result) {
	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, row := range rows {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, row fieldbridge.Record) {
			defer wg.Done()
			defer func() { <-sem }()

			local := &Result{}
			e.writeRow(ctx, stmt, mappings, idx, row, local)

			mu.Lock()
			res.Imported += local.Imported
			res.Skipped += local.Skipped
			res.Errors = append(res.Errors, local.Errors...)
			mu.Unlock()
		}(i, row)
	}
	wg.Wait()
}

// bindRow evaluates each mapping's transform for one row. Independent lookup
// resolutions run concurrently and are joined before the write; row-local
// rules evaluate inline.
func (e *Executor) bindRow(ctx context.Context, mappings []compiler.Mapping, row fieldbridge.Record) ([]any, []RowError) {
	args := make([]any, len(mappings))
	warns := make([]*transform.Warning, len(mappings))

	tc := &transform.Context{Row: row, Lookup: e.lookup}

	// Each goroutine touches only its own index, so no lock is needed; the
	// join below is what the row write waits on.
	var wg sync.WaitGroup
	for i, m := range mappings {
		if m.Rule.Kind != transform.KindLookup {
			continue
		}
		wg.Add(1)
		go func(i int, m compiler.Mapping) {
			defer wg.Done()
			args[i], warns[i] = transform.Apply(ctx, m.Rule, m.SourceField, m.TargetType, tc)
		}(i, m)
	}

	for i, m := range mappings {
		if m.Rule.Kind == transform.KindLookup {
			continue
		}
		args[i], warns[i] = transform.Apply(ctx, m.Rule, m.SourceField, m.TargetType, tc)
	}
	wg.Wait()

	var errs []RowError
	for _, warn := range warns {
		if warn != nil {
			errs = append(errs, RowError{Field: warn.Field, Message: warn.Message})
		}
	}
	return args, errs
}
