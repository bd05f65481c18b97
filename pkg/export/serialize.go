package export

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirrobot01/dbforge/pkg/schema"
)

// serializeCSV renders the dataset with RFC 4180 escaping: fields holding
// a comma, quote or line break are quote-wrapped with internal quotes
// doubled.
func serializeCSV(ds dataset, includeHeaders bool) []byte {
	var b strings.Builder
	if includeHeaders {
		writeCSVRow(&b, ds.Columns)
	}
	for _, row := range ds.Rows {
		fields := make([]string, len(row))
		for i, v := range row {
			fields[i] = renderPlain(v)
		}
		writeCSVRow(&b, fields)
	}
	return []byte(b.String())
}

func writeCSVRow(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(csvField(f))
	}
	b.WriteString("\r\n")
}

func csvField(f string) string {
	if strings.ContainsAny(f, ",\"\r\n") {
		return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
	}
	return f
}

// serializeJSON renders rows as a pretty-printed array of objects keyed
// by column name.
func serializeJSON(ds dataset) ([]byte, error) {
	records := make([]map[string]interface{}, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		record := make(map[string]interface{}, len(ds.Columns))
		for i, col := range ds.Columns {
			record[col] = row[i]
		}
		records = append(records, record)
	}
	return json.MarshalIndent(records, "", "  ")
}

// serializeSQL renders one INSERT statement per row, optionally preceded
// by a commented description of the table's columns.
func serializeSQL(ds dataset, table *schema.Table) []byte {
	var b strings.Builder
	if table != nil {
		b.WriteString(fmt.Sprintf("-- Schema for %s\n", ds.Object))
		for _, col := range table.Columns {
			nullable := "NOT NULL"
			if col.Nullable {
				nullable = "NULL"
			}
			b.WriteString(fmt.Sprintf("--   %s %s %s\n", col.Name, col.DataType, nullable))
		}
		b.WriteString("\n")
	}

	columnList := strings.Join(ds.Columns, ", ")
	for _, row := range ds.Rows {
		values := make([]string, len(row))
		for i, v := range row {
			values[i] = sqlValue(v)
		}
		b.WriteString(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);\n",
			ds.Object, columnList, strings.Join(values, ", ")))
	}
	return []byte(b.String())
}

// sqlValue renders a Go value as a SQL literal. Strings are single-quoted
// with internal quotes doubled.
func sqlValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", val)
	case float32, float64:
		return fmt.Sprintf("%v", val)
	default:
		return "'" + strings.ReplaceAll(renderPlain(v), "'", "''") + "'"
	}
}

func renderPlain(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
