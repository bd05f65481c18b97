package query

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/sirrobot01/dbforge/pkg/storage"
)

// maxResultRows caps how many rows a single query may return.
const maxResultRows = 10000

var sqlStatementTypes = map[string]bool{
	"SELECT":   true,
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"CREATE":   true,
	"ALTER":    true,
	"DROP":     true,
	"TRUNCATE": true,
}

var limitClause = regexp.MustCompile(`(?is)\blimit\s+\d+`)

// ClassifyStatement returns the statement type of a SQL query: the first
// keyword after stripping "--" comment lines and blanks, uppercased, or
// OTHER when it is not a recognized statement.
func ClassifyStatement(query string) string {
	for _, line := range strings.Split(query, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) == 0 {
			continue
		}
		keyword := strings.ToUpper(fields[0])
		if sqlStatementTypes[keyword] {
			return keyword
		}
		return "OTHER"
	}
	return "OTHER"
}

// EnsureLimit appends a LIMIT clause to a SELECT that has none. Queries
// that already limit themselves are left alone.
func EnsureLimit(query string, limit int) string {
	if limit <= 0 {
		return query
	}
	if ClassifyStatement(query) != "SELECT" {
		return query
	}
	if limitClause.MatchString(query) {
		return query
	}
	trimmed := strings.TrimRight(strings.TrimSpace(query), ";")
	return fmt.Sprintf("%s LIMIT %d", trimmed, limit)
}

// sqlExecutor runs statements on relational instances through database/sql.
type sqlExecutor struct{}

func (e *sqlExecutor) Execute(ctx context.Context, inst *storage.Instance, req *Request) *Result {
	queryType := ClassifyStatement(req.Query)
	start := time.Now()

	db, err := OpenSQL(inst)
	if err != nil {
		return Failure(queryType, err.Error())
	}
	defer db.Close()

	var result *Result
	if queryType == "SELECT" {
		result = e.runQuery(ctx, db, EnsureLimit(req.Query, req.Limit))
	} else {
		result = e.runExec(ctx, db, req.Query)
	}
	result.QueryType = queryType
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result
}

// runQuery executes a row-returning statement.
func (e *sqlExecutor) runQuery(ctx context.Context, db *sql.DB, query string) *Result {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return Failure("SELECT", err.Error())
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Failure("SELECT", err.Error())
	}

	result := &Result{
		Columns: columns,
		Rows:    []map[string]interface{}{},
		Success: true,
	}

	values := make([]interface{}, len(columns))
	scanTargets := make([]interface{}, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if len(result.Rows) >= maxResultRows {
			result.Message = fmt.Sprintf("Result truncated at %d rows", maxResultRows)
			break
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return Failure("SELECT", err.Error())
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = normalizeSQLValue(values[i])
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return Failure("SELECT", err.Error())
	}

	result.RowCount = len(result.Rows)
	return result
}

// runExec executes a statement that returns no rows.
func (e *sqlExecutor) runExec(ctx context.Context, db *sql.DB, query string) *Result {
	res, err := db.ExecContext(ctx, query)
	if err != nil {
		return Failure("", err.Error())
	}

	affected, err := res.RowsAffected()
	if err != nil {
		// Not every driver reports affected rows for DDL.
		affected = 0
	}

	return &Result{
		Columns:      []string{},
		Rows:         []map[string]interface{}{},
		AffectedRows: affected,
		Message:      fmt.Sprintf("Statement executed, %d row(s) affected", affected),
		Success:      true,
	}
}

// normalizeSQLValue converts driver byte slices into strings for display.
func normalizeSQLValue(v interface{}) interface{} {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
