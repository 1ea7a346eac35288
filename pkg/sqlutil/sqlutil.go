package sqlutil

import (
	"fmt"
	"regexp"
	"strings"
)

var identRe = regexp.MustCompile(`^[A-Za-z0-9_\.]+$`)

// QuoteIdent validates and quotes an SQL identifier (optionally schema-qualified)
// according to the target driver. It supports dot-separated identifiers like schema.table.
// Drivers: pgx/postgres -> "name", mysql/sqlite -> `name`, mssql -> [name].
func QuoteIdent(driver, name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("empty identifier")
	}
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("invalid identifier: %s", name)
	}
	parts := strings.Split(name, ".")

	quote := func(s string) string {
		switch driver {
		case "pgx", "postgres":
			return "\"" + s + "\""
		case "mysql", "sqlite":
			return "`" + s + "`"
		case "mssql", "sqlserver":
			return "[" + s + "]"
		default:
			// Safe fallback
			return "\"" + s + "\""
		}
	}

	for i, p := range parts {
		parts[i] = quote(p)
	}
	return strings.Join(parts, "."), nil
}

// ValidIdent reports whether name is usable as a bare identifier.
func ValidIdent(name string) bool {
	return name != "" && identRe.MatchString(name)
}

// Placeholder returns a placeholder suitable for the driver and 1-based index.
func Placeholder(driver string, index int) string {
	switch driver {
	case "pgx", "postgres":
		return fmt.Sprintf("$%d", index)
	default: // mysql, sqlite, mssql use '?'
		return "?"
	}
}

// Rebind rewrites '?' placeholders to the driver's native form. SQLite and
// MySQL keep '?', Postgres gets $1..$n.
func Rebind(driver, query string) string {
	switch driver {
	case "pgx", "postgres":
	default:
		return query
	}
	var sb strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			sb.WriteString(fmt.Sprintf("$%d", n))
			continue
		}
		sb.WriteByte(query[i])
	}
	return sb.String()
}

// IsDuplicateKey reports whether err is a unique-constraint violation on any
// of the supported drivers.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // sqlite
		strings.Contains(msg, "duplicate key value violates unique constraint") || // postgres
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "Duplicate entry") // mysql
}

// IsMissingTable reports whether err means the queried table has not been
// provisioned yet.
func IsMissingTable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no such table") || // sqlite
		strings.Contains(msg, "SQLSTATE 42P01") ||
		strings.Contains(msg, "does not exist") || // postgres
		strings.Contains(msg, "doesn't exist") // mysql
}
