package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/sirrobot01/dbforge/pkg/query"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

func (i *Introspector) inspectRelational(ctx context.Context, inst *storage.Instance) (*Schema, error) {
	db, err := query.OpenSQL(inst)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	postgres := inst.Engine == "postgresql"

	tables, err := listTables(ctx, db, postgres)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	schema := &Schema{DatabaseName: inst.Database}
	for _, t := range tables {
		table := Table{Name: t.name, Type: t.kind}

		table.Columns, err = listColumns(ctx, db, postgres, t.name)
		if err != nil {
			return nil, fmt.Errorf("failed to list columns of %s: %w", t.name, err)
		}

		if t.kind == "TABLE" {
			table.Indexes, err = listIndexes(ctx, db, postgres, t.name)
			if err != nil {
				return nil, fmt.Errorf("failed to list indexes of %s: %w", t.name, err)
			}
			markPrimaryColumns(table.Columns, table.Indexes)
		}

		// Counting can fail on exotic objects or time out on big tables;
		// the schema is still useful without it.
		if n, err := countRows(ctx, db, postgres, t.name); err == nil {
			table.RowCount = &n
		} else {
			log.Debug().Err(err).Str("table", t.name).Msg("Row count failed")
		}

		schema.Tables = append(schema.Tables, table)
	}
	return schema, nil
}

type catalogTable struct {
	name string
	kind string
}

func listTables(ctx context.Context, db *sql.DB, postgres bool) ([]catalogTable, error) {
	q := `SELECT table_name, table_type FROM information_schema.tables
	      WHERE table_schema = DATABASE() ORDER BY table_name`
	if postgres {
		q = `SELECT table_name, table_type FROM information_schema.tables
		     WHERE table_schema = 'public' ORDER BY table_name`
	}

	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []catalogTable
	for rows.Next() {
		var name, kind string
		if err := rows.Scan(&name, &kind); err != nil {
			return nil, err
		}
		if strings.Contains(strings.ToUpper(kind), "VIEW") {
			kind = "VIEW"
		} else {
			kind = "TABLE"
		}
		tables = append(tables, catalogTable{name: name, kind: kind})
	}
	return tables, rows.Err()
}

func listColumns(ctx context.Context, db *sql.DB, postgres bool, table string) ([]Column, error) {
	var q string
	if postgres {
		q = `SELECT column_name, data_type, is_nullable, column_default, character_maximum_length, ''
		     FROM information_schema.columns
		     WHERE table_schema = 'public' AND table_name = $1
		     ORDER BY ordinal_position`
	} else {
		q = `SELECT column_name, data_type, is_nullable, column_default, character_maximum_length, extra
		     FROM information_schema.columns
		     WHERE table_schema = DATABASE() AND table_name = ?
		     ORDER BY ordinal_position`
	}

	rows, err := db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []Column
	for rows.Next() {
		var (
			name, dataType, nullable string
			colDefault               sql.NullString
			maxLength                sql.NullInt64
			extra                    string
		)
		if err := rows.Scan(&name, &dataType, &nullable, &colDefault, &maxLength, &extra); err != nil {
			return nil, err
		}

		col := Column{
			Name:     name,
			DataType: dataType,
			Nullable: strings.EqualFold(nullable, "YES"),
		}
		if colDefault.Valid {
			col.Default = colDefault.String
		}
		if maxLength.Valid {
			col.MaxLength = &maxLength.Int64
		}
		if postgres {
			col.AutoIncrement = strings.HasPrefix(col.Default, "nextval(")
		} else {
			col.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// listIndexes returns indexes grouped by name, one entry per index with its
// column list in order.
func listIndexes(ctx context.Context, db *sql.DB, postgres bool, table string) ([]Index, error) {
	var q string
	if postgres {
		q = `SELECT i.relname, ix.indisunique, a.attname
		     FROM pg_class t
		     JOIN pg_index ix ON t.oid = ix.indrelid
		     JOIN pg_class i ON i.oid = ix.indexrelid
		     JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		     WHERE t.relname = $1
		     ORDER BY i.relname, a.attnum`
	} else {
		q = `SELECT index_name, non_unique = 0, column_name
		     FROM information_schema.statistics
		     WHERE table_schema = DATABASE() AND table_name = ?
		     ORDER BY index_name, seq_in_index`
	}

	rows, err := db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		order   []string
		grouped = map[string]*Index{}
	)
	for rows.Next() {
		var (
			name, column string
			unique       bool
		)
		if err := rows.Scan(&name, &unique, &column); err != nil {
			return nil, err
		}
		idx, ok := grouped[name]
		if !ok {
			idx = &Index{Name: name, Type: classifyIndex(name, unique)}
			grouped[name] = idx
			order = append(order, name)
		}
		idx.Columns = append(idx.Columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]Index, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *grouped[name])
	}
	return indexes, nil
}

// markPrimaryColumns flags columns that belong to the primary key index.
func markPrimaryColumns(columns []Column, indexes []Index) {
	primary := map[string]bool{}
	for _, idx := range indexes {
		if idx.Type == "PRIMARY" {
			for _, c := range idx.Columns {
				primary[c] = true
			}
		}
	}
	for i := range columns {
		if primary[columns[i].Name] {
			columns[i].PrimaryKey = true
		}
	}
}

func countRows(ctx context.Context, db *sql.DB, postgres bool, table string) (int64, error) {
	ident := quoteIdent(table, postgres)
	var n int64
	err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", ident)).Scan(&n)
	return n, err
}

func quoteIdent(name string, postgres bool) string {
	if postgres {
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}
