package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/user/fieldbridge"
	"github.com/user/fieldbridge/pkg/sqlutil"
	"github.com/user/fieldbridge/pkg/transform"
)

type sqlStorage struct {
	db     *sql.DB
	driver string
}

// NewSQLStorage creates a Storage backed by database/sql. driver selects
// placeholder style: "sqlite", "postgres"/"pgx" or "mysql".
func NewSQLStorage(db *sql.DB, driver string) Storage {
	return &sqlStorage{db: db, driver: driver}
}

func (s *sqlStorage) Init(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS field_mappings (
			id TEXT PRIMARY KEY,
			mapping_key TEXT NOT NULL,
			record_type TEXT,
			source_field_name TEXT NOT NULL,
			source_field_type TEXT,
			source_field_label TEXT,
			target_column_name TEXT,
			target_column_type TEXT,
			transform_type TEXT,
			transform_config TEXT,
			is_active BOOLEAN NOT NULL DEFAULT FALSE,
			is_custom_field BOOLEAN NOT NULL DEFAULT FALSE,
			detected_at TIMESTAMP,
			detected_by TEXT,
			UNIQUE (mapping_key, source_field_name)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_field_mappings_key ON field_mappings(mapping_key)`,
		`CREATE INDEX IF NOT EXISTS idx_field_mappings_active ON field_mappings(mapping_key, is_active)`,
	}

	for _, q := range queries {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("failed to execute init query: %w", err)
		}
	}
	return nil
}

const mappingColumns = `id, mapping_key, record_type, source_field_name, source_field_type,
	source_field_label, target_column_name, target_column_type, transform_type,
	transform_config, is_active, is_custom_field, detected_at, detected_by`

func (s *sqlStorage) list(ctx context.Context, where string, args ...any) ([]FieldMapping, error) {
	query := "SELECT " + mappingColumns + " FROM field_mappings"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY mapping_key, source_field_name"

	rows, err := s.db.QueryContext(ctx, sqlutil.Rebind(s.driver, query), args...)
	if err != nil {
		if sqlutil.IsMissingTable(err) {
			// Not yet provisioned is a legitimate empty state, not a failure.
			return []FieldMapping{}, nil
		}
		return nil, err
	}
	defer rows.Close()

	out := []FieldMapping{}
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMapping(rows *sql.Rows) (FieldMapping, error) {
	var m FieldMapping
	var recordType, label, targetCol, targetType, trType, trConfig, detectedBy sql.NullString
	var fieldType sql.NullString
	var detectedAt sql.NullTime

	err := rows.Scan(&m.ID, &m.MappingKey, &recordType, &m.SourceFieldName, &fieldType,
		&label, &targetCol, &targetType, &trType, &trConfig,
		&m.IsActive, &m.IsCustomField, &detectedAt, &detectedBy)
	if err != nil {
		return m, err
	}

	m.RecordType = recordType.String
	m.SourceFieldType = fieldbridge.FieldType(fieldType.String)
	m.SourceFieldLabel = label.String
	m.TargetColumnName = targetCol.String
	m.TargetColumnType = targetType.String
	m.DetectedBy = detectedBy.String
	if detectedAt.Valid {
		m.DetectedAt = detectedAt.Time
	}

	m.Transform = transform.Rule{Kind: transform.Kind(trType.String)}
	if trConfig.String != "" {
		if err := json.Unmarshal([]byte(trConfig.String), &m.Transform.Config); err != nil {
			return m, fmt.Errorf("corrupt transform config for %s/%s: %w", m.MappingKey, m.SourceFieldName, err)
		}
	}
	return m, nil
}

func (s *sqlStorage) ListAll(ctx context.Context, mappingKey string, includeInactive bool) ([]FieldMapping, error) {
	where := ""
	var args []any
	if mappingKey != "" {
		where = "mapping_key = ?"
		args = append(args, mappingKey)
	}
	if !includeInactive {
		if where != "" {
			where += " AND "
		}
		where += "is_active"
	}
	return s.list(ctx, where, args...)
}

func (s *sqlStorage) ListActive(ctx context.Context, mappingKey string) ([]FieldMapping, error) {
	return s.ListAll(ctx, mappingKey, false)
}

func (s *sqlStorage) ListPending(ctx context.Context, mappingKey string, includeActive bool) ([]FieldMapping, error) {
	if includeActive {
		return s.ListAll(ctx, mappingKey, true)
	}
	where := "NOT is_active"
	var args []any
	if mappingKey != "" {
		where += " AND mapping_key = ?"
		args = append(args, mappingKey)
	}
	return s.list(ctx, where, args...)
}

func (s *sqlStorage) InsertIfAbsent(ctx context.Context, m FieldMapping) (InsertOutcome, error) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.DetectedAt.IsZero() {
		m.DetectedAt = time.Now().UTC()
	}

	var configJSON string
	if len(m.Transform.Config) > 0 {
		b, err := json.Marshal(m.Transform.Config)
		if err != nil {
			return 0, fmt.Errorf("failed to encode transform config: %w", err)
		}
		configJSON = string(b)
	}

	query := sqlutil.Rebind(s.driver, `INSERT INTO field_mappings (`+mappingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.MappingKey, m.RecordType, m.SourceFieldName, string(m.SourceFieldType),
		m.SourceFieldLabel, m.TargetColumnName, m.TargetColumnType, string(m.Transform.Kind),
		configJSON, m.IsActive, m.IsCustomField, m.DetectedAt, m.DetectedBy)
	if err != nil {
		if sqlutil.IsDuplicateKey(err) {
			return OutcomeAlreadyExists, nil
		}
		if sqlutil.IsMissingTable(err) {
			return 0, fmt.Errorf("%w: %v", ErrUnprovisioned, err)
		}
		return 0, err
	}
	return OutcomeCreated, nil
}

func (s *sqlStorage) SetActive(ctx context.Context, mappingKey, sourceField string, active bool) error {
	query := sqlutil.Rebind(s.driver,
		"UPDATE field_mappings SET is_active = ? WHERE mapping_key = ? AND source_field_name = ?")
	res, err := s.db.ExecContext(ctx, query, active, mappingKey, sourceField)
	if err != nil {
		if sqlutil.IsMissingTable(err) {
			return fmt.Errorf("%w: %v", ErrUnprovisioned, err)
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStorage) UpdateTarget(ctx context.Context, mappingKey, sourceField, targetColumn, targetType string) error {
	if targetColumn == "" && targetType == "" {
		return nil
	}

	set := ""
	var args []any
	if targetColumn != "" {
		set = "target_column_name = ?"
		args = append(args, targetColumn)
	}
	if targetType != "" {
		if set != "" {
			set += ", "
		}
		set += "target_column_type = ?"
		args = append(args, targetType)
	}
	args = append(args, mappingKey, sourceField)

	query := sqlutil.Rebind(s.driver,
		"UPDATE field_mappings SET "+set+" WHERE mapping_key = ? AND source_field_name = ?")
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		if sqlutil.IsMissingTable(err) {
			return fmt.Errorf("%w: %v", ErrUnprovisioned, err)
		}
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStorage) RecordType(ctx context.Context, mappingKey string) (string, error) {
	query := sqlutil.Rebind(s.driver,
		"SELECT record_type FROM field_mappings WHERE mapping_key = ? AND record_type <> '' LIMIT 1")
	var recordType string
	err := s.db.QueryRowContext(ctx, query, mappingKey).Scan(&recordType)
	if err != nil {
		if err == sql.ErrNoRows || sqlutil.IsMissingTable(err) {
			return "", ErrNotFound
		}
		return "", err
	}
	return recordType, nil
}
