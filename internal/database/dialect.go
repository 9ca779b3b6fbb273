package database

import (
	"database/sql"
	"regexp"
	"strconv"
	"strings"
)

// Dialect defines the interface for database-specific operations
type Dialect interface {
	// DriverName returns the driver name for sql.Open
	DriverName() string

	// DSN returns the data source name for the connection
	DSN(config DialectConfig) string

	// RewriteQuery converts placeholder syntax if needed (e.g., ? to $1 for postgres)
	RewriteQuery(query string) string

	// SupportsLastInsertId returns true if the driver supports LastInsertId()
	SupportsLastInsertId() bool

	// ConfigureConnection applies any database-specific connection settings
	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir returns the subdirectory name for migrations (e.g., "sqlite", "postgres")
	MigrationsSubdir() string

	// CreateMigrationsTableQuery returns the SQL to create the migrations tracking table
	CreateMigrationsTableQuery() string

	// IsUniqueViolation reports whether err was raised by a unique or primary
	// key constraint. Repositories treat it as the authoritative "already
	// exists" signal.
	IsUniqueViolation(err error) bool

	// UpsertCoalesceQuery returns an INSERT that, on conflict with conflictCols,
	// updates every other column with COALESCE(incoming, stored) so a NULL
	// never replaces a stored value. The table must have an updated_at column.
	UpsertCoalesceQuery(table string, conflictCols, cols []string) string
}

// DialectConfig holds configuration for database connection
type DialectConfig struct {
	// For SQLite
	Path string

	// For PostgreSQL/MySQL
	URL string
}

// placeholderRegexp matches ? placeholders not inside quotes
var placeholderRegexp = regexp.MustCompile(`\?`)

// rewritePlaceholdersToNumbered converts ? placeholders to $1, $2, etc.
func rewritePlaceholdersToNumbered(query string) string {
	counter := 0
	return placeholderRegexp.ReplaceAllStringFunc(query, func(match string) string {
		counter++
		return "$" + strconv.Itoa(counter)
	})
}

// insertPrefix builds "INSERT INTO table (a, b) VALUES (?, ?)".
func insertPrefix(table string, cols []string) string {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders + ")"
}

// mergeColumns returns cols minus the conflict target.
func mergeColumns(conflictCols, cols []string) []string {
	skip := make(map[string]bool, len(conflictCols))
	for _, c := range conflictCols {
		skip[c] = true
	}
	var out []string
	for _, c := range cols {
		if !skip[c] {
			out = append(out, c)
		}
	}
	return out
}

// onConflictCoalesce is the ON CONFLICT form shared by SQLite and PostgreSQL.
func onConflictCoalesce(table string, conflictCols, cols []string) string {
	var sets []string
	for _, c := range mergeColumns(conflictCols, cols) {
		sets = append(sets, c+" = COALESCE(excluded."+c+", "+table+"."+c+")")
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	return insertPrefix(table, cols) +
		" ON CONFLICT (" + strings.Join(conflictCols, ", ") + ") DO UPDATE SET " +
		strings.Join(sets, ", ")
}
