// Package compiler turns an active mapping set into schema-definition or
// data-movement statements for the destination store.
package compiler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/pkg/sqlutil"
	"github.com/user/fieldbridge/pkg/transform"
)

// Mapping is one active field mapping as the compiler consumes it.
type Mapping struct {
	SourceField  string                `json:"source_field"`
	TargetColumn string                `json:"target_column"`
	TargetType   string                `json:"target_type,omitempty"`
	SourceType   fieldbridge.FieldType `json:"source_type,omitempty"`
	Required     bool                  `json:"required,omitempty"`
	Rule         transform.Rule        `json:"transform,omitempty"`
}

// Mode selects between schema definition and row movement.
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpsert Mode = "upsert"
)

// Statement is a compiled statement plus the metadata the executor needs to
// bind row values.
type Statement struct {
	Mode      Mode     `json:"mode"`
	SQL       string   `json:"sql"`
	Table     string   `json:"table"`
	Columns   []string `json:"columns"`
	KeyColumn string   `json:"key_column,omitempty"`
}

var (
	ErrEmptyMappingSet = errors.New("mapping set is empty")
	ErrMissingTable    = errors.New("target table is required")
)

const driver = "postgres"

// Compile emits a table-creation statement when the destination does not yet
// exist, or a parameterized row-upsert statement when it does. It fails fast,
// before producing any SQL text, on an empty mapping set or a primary key
// that is not among the mapped target columns.
func Compile(targetTable string, set []Mapping, primaryKey string, destinationExists bool) (Statement, error) {
	if targetTable == "" {
		return Statement{}, ErrMissingTable
	}
	if len(set) == 0 {
		return Statement{}, ErrEmptyMappingSet
	}

	columns := make([]string, 0, len(set))
	for _, m := range set {
		if m.TargetColumn == "" {
			return Statement{}, fmt.Errorf("mapping for source field %q has no target column", m.SourceField)
		}
		columns = append(columns, m.TargetColumn)
	}

	if primaryKey != "" {
		found := false
		for _, c := range columns {
			if c == primaryKey {
				found = true
				break
			}
		}
		if !found {
			return Statement{}, fmt.Errorf("primary key %q is not among the mapped target columns", primaryKey)
		}
	}

	table, err := sqlutil.QuoteIdent(driver, targetTable)
	if err != nil {
		return Statement{}, fmt.Errorf("invalid target table: %w", err)
	}

	if !destinationExists {
		sql, err := createSQL(table, set, primaryKey)
		if err != nil {
			return Statement{}, err
		}
		return Statement{Mode: ModeCreate, SQL: sql, Table: targetTable, Columns: columns, KeyColumn: primaryKey}, nil
	}

	if primaryKey == "" {
		return Statement{}, errors.New("upsert requires a primary key or natural key")
	}
	sql, err := upsertSQL(table, set, primaryKey)
	if err != nil {
		return Statement{}, err
	}
	return Statement{Mode: ModeUpsert, SQL: sql, Table: targetTable, Columns: columns, KeyColumn: primaryKey}, nil
}

func createSQL(table string, set []Mapping, primaryKey string) (string, error) {
	defs := make([]string, 0, len(set)+1)
	for _, m := range set {
		col, err := sqlutil.QuoteIdent(driver, m.TargetColumn)
		if err != nil {
			return "", fmt.Errorf("invalid target column %q: %w", m.TargetColumn, err)
		}
		typ := m.TargetType
		if typ == "" {
			typ = m.SourceType.SQLType()
		}
		null := "NULL"
		if m.Required || m.TargetColumn == primaryKey {
			null = "NOT NULL"
		}
		defs = append(defs, fmt.Sprintf("%s %s %s", col, typ, null))
	}
	if primaryKey != "" {
		pk, err := sqlutil.QuoteIdent(driver, primaryKey)
		if err != nil {
			return "", err
		}
		defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", pk))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", ")), nil
}

func upsertSQL(table string, set []Mapping, primaryKey string) (string, error) {
	cols := make([]string, 0, len(set))
	params := make([]string, 0, len(set))
	updates := make([]string, 0, len(set))

	for i, m := range set {
		col, err := sqlutil.QuoteIdent(driver, m.TargetColumn)
		if err != nil {
			return "", fmt.Errorf("invalid target column %q: %w", m.TargetColumn, err)
		}
		cols = append(cols, col)
		params = append(params, sqlutil.Placeholder(driver, i+1))
		if m.TargetColumn != primaryKey {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	pk, err := sqlutil.QuoteIdent(driver, primaryKey)
	if err != nil {
		return "", err
	}

	conflict := fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", pk)
	if len(updates) > 0 {
		conflict = fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", pk, strings.Join(updates, ", "))
	}

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) %s",
		table, strings.Join(cols, ", "), strings.Join(params, ", "), conflict), nil
}

// InsertSQL emits a plain parameterized insert for freshly created tables
// imported without a conflict key.
func InsertSQL(targetTable string, set []Mapping) (Statement, error) {
	if targetTable == "" {
		return Statement{}, ErrMissingTable
	}
	if len(set) == 0 {
		return Statement{}, ErrEmptyMappingSet
	}

	table, err := sqlutil.QuoteIdent(driver, targetTable)
	if err != nil {
		return Statement{}, fmt.Errorf("invalid target table: %w", err)
	}

	cols := make([]string, 0, len(set))
	quoted := make([]string, 0, len(set))
	params := make([]string, 0, len(set))
	for i, m := range set {
		col, err := sqlutil.QuoteIdent(driver, m.TargetColumn)
		if err != nil {
			return Statement{}, fmt.Errorf("invalid target column %q: %w", m.TargetColumn, err)
		}
		cols = append(cols, m.TargetColumn)
		quoted = append(quoted, col)
		params = append(params, sqlutil.Placeholder(driver, i+1))
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(quoted, ", "), strings.Join(params, ", "))
	return Statement{Mode: ModeUpsert, SQL: sql, Table: targetTable, Columns: cols}, nil
}
