package query

import "testing"

func TestClassifyStatement(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"SELECT * FROM users", "SELECT"},
		{"select id from t", "SELECT"},
		{"  INSERT INTO t VALUES (1)", "INSERT"},
		{"-- comment\nupdate t set x=1", "UPDATE"},
		{"-- only a comment", "OTHER"},
		{"\n\n  \nDELETE FROM t", "DELETE"},
		{"CREATE TABLE t (id int)", "CREATE"},
		{"ALTER TABLE t ADD c int", "ALTER"},
		{"DROP TABLE t", "DROP"},
		{"TRUNCATE t", "TRUNCATE"},
		{"EXPLAIN SELECT 1", "OTHER"},
		{"", "OTHER"},
	}
	for _, tc := range cases {
		if got := ClassifyStatement(tc.query); got != tc.want {
			t.Errorf("ClassifyStatement(%q) = %q, want %q", tc.query, got, tc.want)
		}
	}
}

func TestEnsureLimit(t *testing.T) {
	cases := []struct {
		query string
		limit int
		want  string
	}{
		{"SELECT * FROM users", 50, "SELECT * FROM users LIMIT 50"},
		{"SELECT * FROM users;", 50, "SELECT * FROM users LIMIT 50"},
		{"SELECT * FROM users LIMIT 10", 50, "SELECT * FROM users LIMIT 10"},
		{"select * from t limit 5", 50, "select * from t limit 5"},
		{"SELECT * FROM users", 0, "SELECT * FROM users"},
		{"DELETE FROM users", 50, "DELETE FROM users"},
	}
	for _, tc := range cases {
		if got := EnsureLimit(tc.query, tc.limit); got != tc.want {
			t.Errorf("EnsureLimit(%q, %d) = %q, want %q", tc.query, tc.limit, got, tc.want)
		}
	}
}

func TestNormalizeSQLValue(t *testing.T) {
	if got := normalizeSQLValue([]byte("hello")); got != "hello" {
		t.Errorf("expected byte slice converted to string, got %v", got)
	}
	if got := normalizeSQLValue(int64(42)); got != int64(42) {
		t.Errorf("expected int64 passed through, got %v", got)
	}
	if got := normalizeSQLValue(nil); got != nil {
		t.Errorf("expected nil passed through, got %v", got)
	}
}
