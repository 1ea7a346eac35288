package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/pkg/compiler"
	"github.com/user/fieldbridge/pkg/transform"
)

type fakeDest struct {
	mu    sync.Mutex
	execs []execCall
	fail  func(call execCall) error
}

type execCall struct {
	sql  string
	args []any
}

func (f *fakeDest) Exec(_ context.Context, sql string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := execCall{sql: sql, args: args}
	f.execs = append(f.execs, call)
	if f.fail != nil {
		return f.fail(call)
	}
	return nil
}

func (f *fakeDest) Ping(context.Context) error { return nil }
func (f *fakeDest) Close() error               { return nil }

func (f *fakeDest) writes() []execCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []execCall
	for _, c := range f.execs {
		if !strings.HasPrefix(c.sql, "CREATE") {
			out = append(out, c)
		}
	}
	return out
}

type fakeLookup struct {
	values map[string]any
}

func (f *fakeLookup) Lookup(_ context.Context, table, keyColumn string, value any, returnField string) (any, error) {
	v, ok := f.values[fmt.Sprintf("%v", value)]
	if !ok {
		return nil, nil
	}
	return v, nil
}

func upsertRequest(rows []fieldbridge.Record) Request {
	return Request{
		TargetTable: "subsidiaries",
		PrimaryKey:  "external_id",
		Mode:        compiler.ModeUpsert,
		Mappings: []compiler.Mapping{
			{SourceField: "id", TargetColumn: "external_id", TargetType: "bigint", Rule: transform.Direct()},
			{SourceField: "legalname", TargetColumn: "legal_name", TargetType: "text", Rule: transform.Direct()},
		},
		Rows: rows,
	}
}

func TestExecuteUpsert(t *testing.T) {
	dest := &fakeDest{}
	e := NewExecutor(dest, nil, Config{}, nil)

	rows := []fieldbridge.Record{
		{"id": 1, "legalname": "Acme Co"},
		{"id": 2, "legalname": "Globex"},
	}

	res, err := e.Execute(context.Background(), upsertRequest(rows))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if res.Imported != 2 || res.Skipped != 0 || len(res.Errors) != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.RunID == "" {
		t.Error("RunID should be assigned")
	}

	writes := dest.writes()
	if len(writes) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(writes))
	}
	if !strings.Contains(writes[0].sql, "ON CONFLICT") {
		t.Errorf("SQL = %s", writes[0].sql)
	}
	if writes[0].args[1] != "Acme Co" {
		t.Errorf("args = %v", writes[0].args)
	}
}

func TestExecuteRowFailureIsIsolated(t *testing.T) {
	dest := &fakeDest{fail: func(call execCall) error {
		if len(call.args) > 0 && call.args[0] == int64(7) {
			return errors.New("value too long for column")
		}
		return nil
	}}
	e := NewExecutor(dest, nil, Config{}, nil)

	var rows []fieldbridge.Record
	for i := 1; i <= 10; i++ {
		rows = append(rows, fieldbridge.Record{"id": int64(i), "legalname": fmt.Sprintf("Company %d", i)})
	}

	res, err := e.Execute(context.Background(), upsertRequest(rows))
	if err != nil {
		t.Fatalf("a bad row must not abort the run: %v", err)
	}
	if res.Imported != 9 {
		t.Errorf("Imported = %d, want 9", res.Imported)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("Errors = %+v", res.Errors)
	}
	if res.Errors[0].Row != 7 {
		t.Errorf("error row = %d, want 7", res.Errors[0].Row)
	}
}

func TestExecuteDuplicateIsSkipped(t *testing.T) {
	dest := &fakeDest{fail: func(call execCall) error {
		if len(call.args) > 0 && call.args[0] == int64(1) {
			return errors.New(`duplicate key value violates unique constraint "subsidiaries_pkey"`)
		}
		return nil
	}}
	e := NewExecutor(dest, nil, Config{}, nil)

	rows := []fieldbridge.Record{
		{"id": 1, "legalname": "Acme Co"},
		{"id": 2, "legalname": "Globex"},
	}

	res, err := e.Execute(context.Background(), upsertRequest(rows))
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 1 || res.Skipped != 1 || len(res.Errors) != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteCreateMode(t *testing.T) {
	dest := &fakeDest{}
	e := NewExecutor(dest, nil, Config{}, nil)

	req := upsertRequest([]fieldbridge.Record{{"id": 1, "legalname": "Acme Co"}})
	req.Mode = compiler.ModeCreate

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 1 {
		t.Errorf("result = %+v", res)
	}

	dest.mu.Lock()
	defer dest.mu.Unlock()
	if len(dest.execs) != 2 {
		t.Fatalf("expected DDL then write, got %d calls", len(dest.execs))
	}
	if !strings.HasPrefix(dest.execs[0].sql, "CREATE TABLE IF NOT EXISTS") {
		t.Errorf("first call = %s", dest.execs[0].sql)
	}
	if !strings.Contains(dest.execs[1].sql, "ON CONFLICT") {
		t.Errorf("second call = %s", dest.execs[1].sql)
	}
}

func TestExecuteCreateModeWithoutKeyInserts(t *testing.T) {
	dest := &fakeDest{}
	e := NewExecutor(dest, nil, Config{}, nil)

	req := upsertRequest([]fieldbridge.Record{{"id": 1, "legalname": "Acme Co"}})
	req.Mode = compiler.ModeCreate
	req.PrimaryKey = ""

	if _, err := e.Execute(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	writes := dest.writes()
	if len(writes) != 1 || strings.Contains(writes[0].sql, "ON CONFLICT") {
		t.Errorf("writes = %+v", writes)
	}
}

func TestExecuteLookupMissYieldsNull(t *testing.T) {
	dest := &fakeDest{}
	lookup := &fakeLookup{values: map[string]any{"SUB-1": int64(42)}}
	e := NewExecutor(dest, lookup, Config{}, nil)

	req := Request{
		TargetTable: "customers",
		PrimaryKey:  "external_id",
		Mode:        compiler.ModeUpsert,
		Mappings: []compiler.Mapping{
			{SourceField: "id", TargetColumn: "external_id", TargetType: "bigint", Rule: transform.Direct()},
			{SourceField: "subsidiary", TargetColumn: "subsidiary_id", TargetType: "bigint", Rule: transform.Rule{
				Kind:   transform.KindLookup,
				Config: map[string]string{"table": "subsidiaries", "key": "external_id", "return_field": "id"},
			}},
		},
		Rows: []fieldbridge.Record{
			{"id": 1, "subsidiary": "SUB-1"},
			{"id": 2, "subsidiary": "SUB-404"},
		},
	}

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 2 {
		t.Errorf("Imported = %d, want 2", res.Imported)
	}
	if len(res.Errors) != 0 {
		t.Errorf("a lookup miss is not an error: %+v", res.Errors)
	}

	writes := dest.writes()
	if writes[0].args[1] != int64(42) {
		t.Errorf("resolved lookup arg = %v", writes[0].args[1])
	}
	if writes[1].args[1] != nil {
		t.Errorf("missed lookup arg = %v, want nil", writes[1].args[1])
	}
}

func TestExecuteTransformWarningDegrades(t *testing.T) {
	dest := &fakeDest{}
	e := NewExecutor(dest, nil, Config{}, nil)

	req := Request{
		TargetTable: "subsidiaries",
		PrimaryKey:  "external_id",
		Mode:        compiler.ModeUpsert,
		Mappings: []compiler.Mapping{
			{SourceField: "id", TargetColumn: "external_id", TargetType: "bigint", Rule: transform.Direct()},
			{SourceField: "isinactive", TargetColumn: "is_inactive", TargetType: "boolean", Rule: transform.BooleanCoercion("T", "F")},
		},
		Rows: []fieldbridge.Record{{"id": 1, "isinactive": "Y"}},
	}

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	// The row still lands; the bad field becomes null and is reported.
	if res.Imported != 1 {
		t.Errorf("Imported = %d, want 1", res.Imported)
	}
	if len(res.Errors) != 1 || res.Errors[0].Field != "isinactive" {
		t.Errorf("Errors = %+v", res.Errors)
	}

	writes := dest.writes()
	if writes[0].args[1] != nil {
		t.Errorf("degraded field arg = %v, want nil", writes[0].args[1])
	}
}

func TestExecuteAggregateReducesRows(t *testing.T) {
	dest := &fakeDest{}
	e := NewExecutor(dest, nil, Config{}, nil)

	req := Request{
		TargetTable: "balances",
		PrimaryKey:  "subsidiary",
		Mode:        compiler.ModeUpsert,
		Mappings: []compiler.Mapping{
			{SourceField: "subsidiary", TargetColumn: "subsidiary", TargetType: "text", Rule: transform.Direct()},
			{SourceField: "amount", TargetColumn: "amount", TargetType: "numeric", Rule: transform.Rule{
				Kind:   transform.KindAggregate,
				Config: map[string]string{"function": "SUM", "group_by": "subsidiary"},
			}},
		},
		Rows: []fieldbridge.Record{
			{"subsidiary": "A", "amount": 10.0},
			{"subsidiary": "B", "amount": 5.0},
			{"subsidiary": "A", "amount": 2.5},
		},
	}

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 2 {
		t.Errorf("Imported = %d, want 2 (one row per partition)", res.Imported)
	}

	writes := dest.writes()
	if writes[0].args[0] != "A" || writes[0].args[1] != 12.5 {
		t.Errorf("partition A write = %v", writes[0].args)
	}
}

func TestExecutePooledWorkers(t *testing.T) {
	dest := &fakeDest{fail: func(call execCall) error {
		if len(call.args) > 0 && call.args[0] == int64(3) {
			return errors.New("value too long for column")
		}
		return nil
	}}
	e := NewExecutor(dest, nil, Config{Workers: 4}, nil)

	var rows []fieldbridge.Record
	for i := 1; i <= 20; i++ {
		rows = append(rows, fieldbridge.Record{"id": int64(i), "legalname": fmt.Sprintf("Company %d", i)})
	}

	res, err := e.Execute(context.Background(), upsertRequest(rows))
	if err != nil {
		t.Fatal(err)
	}
	if res.Imported != 19 || len(res.Errors) != 1 {
		t.Errorf("result = %+v", res)
	}
}

func TestExecuteWithoutDestination(t *testing.T) {
	e := NewExecutor(nil, nil, Config{}, nil)
	_, err := e.Execute(context.Background(), upsertRequest(nil))
	if !errors.Is(err, ErrNoDestination) {
		t.Fatalf("expected ErrNoDestination, got %v", err)
	}
}

func TestExecuteTableCreationFailure(t *testing.T) {
	dest := &fakeDest{fail: func(call execCall) error {
		if strings.HasPrefix(call.sql, "CREATE") {
			return errors.New("permission denied for schema public")
		}
		return nil
	}}
	e := NewExecutor(dest, nil, Config{}, nil)

	req := upsertRequest([]fieldbridge.Record{{"id": 1, "legalname": "Acme Co"}})
	req.Mode = compiler.ModeCreate

	_, err := e.Execute(context.Background(), req)
	var destErr *DestinationError
	if !errors.As(err, &destErr) {
		t.Fatalf("expected DestinationError, got %v", err)
	}
	if destErr.Unwrap() == nil {
		t.Error("DestinationError should carry the underlying cause")
	}
}
