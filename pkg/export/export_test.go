package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/sirrobot01/dbforge/pkg/database"
	"github.com/sirrobot01/dbforge/pkg/engine"
	"github.com/sirrobot01/dbforge/pkg/schema"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

func TestCSVFieldEscaping(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{`a,"b"`, `"a,""b"""`},
		{"with,comma", `"with,comma"`},
		{"line\nbreak", "\"line\nbreak\""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := csvField(tc.in); got != tc.want {
			t.Errorf("csvField(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSerializeCSV(t *testing.T) {
	ds := dataset{
		Object:  "users",
		Columns: []string{"id", "name"},
		Rows: [][]interface{}{
			{int64(1), "alice"},
			{int64(2), `bob, "the builder"`},
		},
	}
	data := serializeCSV(ds, true)
	lines := strings.Split(strings.TrimRight(string(data), "\r\n"), "\r\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), lines)
	}
	if lines[0] != "id,name" {
		t.Errorf("unexpected header: %q", lines[0])
	}
	if lines[2] != `2,"bob, ""the builder"""` {
		t.Errorf("unexpected escaped row: %q", lines[2])
	}

	withoutHeaders := serializeCSV(ds, false)
	if strings.HasPrefix(string(withoutHeaders), "id,name") {
		t.Error("headers should be omitted when not requested")
	}
}

func TestSerializeJSON(t *testing.T) {
	ds := dataset{
		Object:  "users",
		Columns: []string{"id", "name"},
		Rows:    [][]interface{}{{int64(1), "alice"}},
	}
	data, err := serializeJSON(ds)
	if err != nil {
		t.Fatalf("serializeJSON failed: %v", err)
	}

	var records []map[string]interface{}
	if err := json.Unmarshal(data, &records); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if len(records) != 1 || records[0]["name"] != "alice" {
		t.Errorf("unexpected records: %v", records)
	}
}

func TestSQLValueFormatting(t *testing.T) {
	cases := []struct {
		in   interface{}
		want string
	}{
		{nil, "NULL"},
		{int64(42), "42"},
		{3.14, "3.14"},
		{true, "TRUE"},
		{false, "FALSE"},
		{"plain", "'plain'"},
		{"it's", "'it''s'"},
	}
	for _, tc := range cases {
		if got := sqlValue(tc.in); got != tc.want {
			t.Errorf("sqlValue(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSerializeSQLWithSchemaHeader(t *testing.T) {
	ds := dataset{
		Object:  "users",
		Columns: []string{"id", "name"},
		Rows:    [][]interface{}{{int64(1), "alice"}},
	}
	table := &schema.Table{
		Name: "users",
		Columns: []schema.Column{
			{Name: "id", DataType: "integer"},
			{Name: "name", DataType: "text", Nullable: true},
		},
	}
	out := string(serializeSQL(ds, table))
	if !strings.HasPrefix(out, "-- Schema for users\n") {
		t.Errorf("missing schema header: %q", out)
	}
	if !strings.Contains(out, "INSERT INTO users (id, name) VALUES (1, 'alice');") {
		t.Errorf("missing insert statement: %q", out)
	}
}

// stubFetcher serves a single-column row per object without a live engine.
type stubFetcher struct {
	fetched []string
}

func (s *stubFetcher) fetch(ctx context.Context, inst *storage.Instance, category engine.Category, object string, limit int) (*dataset, error) {
	s.fetched = append(s.fetched, object)
	return &dataset{
		Object:  object,
		Columns: []string{"id"},
		Rows:    [][]interface{}{{int64(1)}},
	}, nil
}

func testExporter() (*Exporter, *stubFetcher) {
	stub := &stubFetcher{}
	return &Exporter{source: stub}, stub
}

func runningInstance(engineName string) *storage.Instance {
	return &storage.Instance{
		ID:       "db-export",
		OwnerID:  7,
		Name:     "Sales DB",
		Engine:   engineName,
		Status:   storage.StatusRunning,
		Host:     "localhost",
		Database: "sales_db",
	}
}

func TestExportSingleObjectFlatFile(t *testing.T) {
	exporter, stub := testExporter()

	file, err := exporter.Export(context.Background(), runningInstance("postgresql"), Request{
		Objects:        []string{"users"},
		Format:         "csv",
		IncludeHeaders: true,
	})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if file.ContentType != "text/csv" {
		t.Errorf("unexpected content type %s", file.ContentType)
	}
	if !strings.HasPrefix(file.Filename, "users-export-") || !strings.HasSuffix(file.Filename, ".csv") {
		t.Errorf("unexpected filename %s", file.Filename)
	}
	if string(file.Data) != "id\r\n1\r\n" {
		t.Errorf("unexpected file body %q", file.Data)
	}
	if len(stub.fetched) != 1 || stub.fetched[0] != "users" {
		t.Errorf("unexpected fetches %v", stub.fetched)
	}
}

func TestExportMultipleObjectsProducesZip(t *testing.T) {
	exporter, stub := testExporter()

	file, err := exporter.Export(context.Background(), runningInstance("postgresql"), Request{
		Objects:        []string{"users", "orders", "Line Items"},
		Format:         "csv",
		IncludeHeaders: true,
	})
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}

	if file.ContentType != "application/zip" {
		t.Errorf("unexpected content type %s", file.ContentType)
	}
	// The outer name carries the sanitized instance name and a timestamp.
	if !strings.HasPrefix(file.Filename, "sales_db-export-") || !strings.HasSuffix(file.Filename, ".zip") {
		t.Errorf("unexpected filename %s", file.Filename)
	}
	if len(stub.fetched) != 3 {
		t.Errorf("expected 3 fetches, got %v", stub.fetched)
	}

	zr, err := zip.NewReader(bytes.NewReader(file.Data), int64(len(file.Data)))
	if err != nil {
		t.Fatalf("output is not a valid zip: %v", err)
	}
	if len(zr.File) != 3 {
		t.Fatalf("expected 3 zip entries, got %d", len(zr.File))
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"users.csv", "orders.csv", "line_items.csv"} {
		if !names[want] {
			t.Errorf("zip missing entry %s", want)
		}
	}
}

func TestExportSQLRequiresRelationalEngine(t *testing.T) {
	exporter, _ := testExporter()

	_, err := exporter.Export(context.Background(), runningInstance("redis"), Request{
		Objects: []string{"session:*"},
		Format:  "sql",
	})
	if !errors.Is(err, database.ErrUnsupportedOperation) {
		t.Errorf("expected ErrUnsupportedOperation, got %v", err)
	}
}

func TestExportRejectsStoppedInstance(t *testing.T) {
	exporter, _ := testExporter()

	inst := runningInstance("postgresql")
	inst.Status = storage.StatusStopped
	if _, err := exporter.Export(context.Background(), inst, Request{Objects: []string{"users"}, Format: "csv"}); err == nil {
		t.Error("expected an error for a stopped instance")
	}
}

func TestResolveFormat(t *testing.T) {
	if _, _, _, err := resolveFormat("xml"); err == nil {
		t.Error("expected error for unsupported format")
	}
	_, ext, contentType, err := resolveFormat("csv")
	if err != nil || ext != "csv" || contentType != "text/csv" {
		t.Errorf("unexpected csv format resolution: %s %s %v", ext, contentType, err)
	}
}
