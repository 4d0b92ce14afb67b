package db

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"
)

func TestApplyMigrationFileCreatesSchemaAndIsRepeatable(t *testing.T) {
	sqdb, err := OpenSQLite(filepath.Join(t.TempDir(), "app.db"), 1, 1, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqdb.Close() })

	migration := filepath.Join("..", "..", "migrations", "sqlite", "001_init.sql")
	for i := 0; i < 2; i++ {
		if err := ApplyMigrationFile(sqdb, migration); err != nil {
			t.Fatalf("apply migration pass %d: %v", i+1, err)
		}
	}

	for table, cols := range map[string][]string{
		"users":          {"email", "role", "status", "suspend_reason", "last_logged_in"},
		"products":       {"id", "quantity", "show_on_home", "details"},
		"orders":         {"id", "product_id", "quantity", "email", "status", "approved_at"},
		"order_tracking": {"order_id", "seq", "event", "at"},
	} {
		for _, col := range cols {
			if !hasColumn(t, sqdb, table, col) {
				t.Fatalf("expected %s.%s to exist after migration", table, col)
			}
		}
	}
}

func TestSplitStatements(t *testing.T) {
	script := `
-- comment
CREATE TABLE a (
  id TEXT
);

CREATE INDEX i ON a(id);
SELECT 1`
	got := splitStatements(script)
	if len(got) != 3 {
		t.Fatalf("expected 3 statements, got %d: %q", len(got), got)
	}
	if got[1] != "CREATE INDEX i ON a(id);" {
		t.Fatalf("unexpected second statement %q", got[1])
	}
}

func hasColumn(t *testing.T, sqdb *sql.DB, tableName, colName string) bool {
	t.Helper()
	rows, err := sqdb.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		t.Fatalf("table_info %s: %v", tableName, err)
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notNull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			t.Fatalf("scan table_info %s: %v", tableName, err)
		}
		if name == colName {
			return true
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate table_info %s: %v", tableName, err)
	}
	return false
}
