package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestDialectSQLite(t *testing.T) {
	dialect := NewSQLiteDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "sqlite3"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		if !dialect.SupportsLastInsertId() {
			t.Error("SupportsLastInsertId() should return true for SQLite")
		}
	})

	t.Run("DSN", func(t *testing.T) {
		assert.Equal(t, "dev.db?_busy_timeout=5000&_txlock=immediate", dialect.DSN(DialectConfig{Path: "dev.db"}))
		assert.Equal(t, "file:x?mode=memory&_busy_timeout=5000&_txlock=immediate", dialect.DSN(DialectConfig{Path: "file:x?mode=memory"}))
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		assert.Equal(t, "sqlite", dialect.MigrationsSubdir())
	})
}

func TestDialectPostgreSQL(t *testing.T) {
	dialect := NewPostgresDialect()

	t.Run("DriverName", func(t *testing.T) {
		assert.Equal(t, "postgres", dialect.DriverName())
	})

	t.Run("SupportsLastInsertId", func(t *testing.T) {
		if dialect.SupportsLastInsertId() {
			t.Error("SupportsLastInsertId() should return false for PostgreSQL")
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		assert.Equal(t, "postgres", dialect.MigrationsSubdir())
	})
}

func TestDialectMySQL(t *testing.T) {
	dialect := NewMySQLDialect()

	t.Run("DriverName", func(t *testing.T) {
		assert.Equal(t, "mysql", dialect.DriverName())
	})

	t.Run("DSN strips scheme", func(t *testing.T) {
		assert.Equal(t, "u:p@tcp(db:3306)/app", dialect.DSN(DialectConfig{URL: "mysql://u:p@tcp(db:3306)/app"}))
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		assert.Equal(t, "mysql", dialect.MigrationsSubdir())
	})
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT * FROM attempts WHERE id = ?",
			expected: "SELECT * FROM attempts WHERE id = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT * FROM attempts WHERE id = ?",
			expected: "SELECT * FROM attempts WHERE id = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "INSERT INTO idempotency_keys (scope, idem_key) VALUES (?, ?)",
			expected: "INSERT INTO idempotency_keys (scope, idem_key) VALUES ($1, $2)",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE mr_sessions SET mode = ? WHERE id = ?",
			expected: "UPDATE mr_sessions SET mode = ? WHERE id = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		err     error
		want    bool
	}{
		{name: "sqlite unique", dialect: NewSQLiteDialect(), err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, want: true},
		{name: "sqlite primary key", dialect: NewSQLiteDialect(), err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, want: true},
		{name: "sqlite not null", dialect: NewSQLiteDialect(), err: sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintNotNull}, want: false},
		{name: "sqlite wrapped", dialect: NewSQLiteDialect(), err: fmt.Errorf("insert: %w", sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}), want: true},
		{name: "postgres unique", dialect: NewPostgresDialect(), err: &pq.Error{Code: "23505"}, want: true},
		{name: "postgres fk", dialect: NewPostgresDialect(), err: &pq.Error{Code: "23503"}, want: false},
		{name: "mysql dup entry", dialect: NewMySQLDialect(), err: &mysql.MySQLError{Number: 1062}, want: true},
		{name: "mysql other", dialect: NewMySQLDialect(), err: &mysql.MySQLError{Number: 1048}, want: false},
		{name: "plain error", dialect: NewPostgresDialect(), err: errors.New("boom"), want: false},
		{name: "nil", dialect: NewMySQLDialect(), err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.dialect.IsUniqueViolation(tt.err))
		})
	}
}

func TestUpsertCoalesceQuery(t *testing.T) {
	conflict := []string{"device_id", "client_session_id"}
	cols := []string{"device_id", "client_session_id", "mode"}

	t.Run("SQLite", func(t *testing.T) {
		assert.Equal(t,
			"INSERT INTO mr_sessions (device_id, client_session_id, mode) VALUES (?, ?, ?)"+
				" ON CONFLICT (device_id, client_session_id) DO UPDATE SET"+
				" mode = COALESCE(excluded.mode, mr_sessions.mode), updated_at = CURRENT_TIMESTAMP",
			NewSQLiteDialect().UpsertCoalesceQuery("mr_sessions", conflict, cols))
	})

	t.Run("PostgreSQL after rewrite", func(t *testing.T) {
		d := NewPostgresDialect()
		q := d.RewriteQuery(d.UpsertCoalesceQuery("mr_sessions", conflict, cols))
		assert.Contains(t, q, "VALUES ($1, $2, $3)")
		assert.Contains(t, q, "ON CONFLICT (device_id, client_session_id)")
	})

	t.Run("MySQL", func(t *testing.T) {
		assert.Equal(t,
			"INSERT INTO mr_sessions (device_id, client_session_id, mode) VALUES (?, ?, ?)"+
				" ON DUPLICATE KEY UPDATE mode = COALESCE(VALUES(mode), mode), updated_at = CURRENT_TIMESTAMP",
			NewMySQLDialect().UpsertCoalesceQuery("mr_sessions", conflict, cols))
	})
}

func TestSplitStatements(t *testing.T) {
	content := `-- header comment
CREATE TABLE a (id INTEGER);

CREATE INDEX idx_a ON a (id);
`
	stmts := splitStatements(content)
	assert.Equal(t, []string{"CREATE TABLE a (id INTEGER)", "CREATE INDEX idx_a ON a (id)"}, stmts)
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"", "sqlite", "sqlite3", "postgres", "PostgreSQL", "mysql"} {
		_, err := DialectFor(name)
		assert.NoError(t, err, name)
	}
	_, err := DialectFor("oracle")
	assert.Error(t, err)
}
