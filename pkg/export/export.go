// Package export streams instance data into CSV, JSON or SQL-insert form,
// bundling multiple objects into a zip archive.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/sirrobot01/dbforge/pkg/database"
	"github.com/sirrobot01/dbforge/pkg/engine"
	"github.com/sirrobot01/dbforge/pkg/schema"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

const defaultRowLimit = 10000

// Request selects what to export and how to serialize it. An empty
// Objects list means every discoverable table, collection or key pattern.
type Request struct {
	Objects        []string `json:"objects"`
	Format         string   `json:"format"`
	IncludeSchema  bool     `json:"includeSchema"`
	IncludeHeaders bool     `json:"includeHeaders"`
	Limit          int      `json:"limit"`
}

// File is a finished export ready to be written to a response.
type File struct {
	Data        []byte
	Filename    string
	ContentType string
}

// dataset is one object's rows with a stable column order.
type dataset struct {
	Object  string
	Columns []string
	Rows    [][]interface{}
}

// fetcher reads one object's rows from an instance. The live implementation
// dispatches on engine category; tests substitute their own.
type fetcher interface {
	fetch(ctx context.Context, inst *storage.Instance, category engine.Category, object string, limit int) (*dataset, error)
}

// liveFetcher reads through the same connectors the query executors use.
type liveFetcher struct{}

func (liveFetcher) fetch(ctx context.Context, inst *storage.Instance, category engine.Category, object string, limit int) (*dataset, error) {
	switch category {
	case engine.Relational:
		return fetchRelational(ctx, inst, object, limit)
	case engine.Document:
		return fetchDocument(ctx, inst, object, limit)
	case engine.KeyValue:
		return fetchKeyValue(ctx, inst, object, limit)
	default:
		return nil, fmt.Errorf("no exporter for category %s", category)
	}
}

// Exporter resolves, reads and serializes instance data per object.
type Exporter struct {
	introspector *schema.Introspector
	source       fetcher
}

// NewExporter creates an exporter backed by the given introspector.
func NewExporter(introspector *schema.Introspector) *Exporter {
	return &Exporter{introspector: introspector, source: liveFetcher{}}
}

// Export resolves the requested objects, reads their rows and returns a
// single file, or a zip when more than one object is selected.
func (e *Exporter) Export(ctx context.Context, inst *storage.Instance, req Request) (*File, error) {
	eng, err := engine.Get(inst.Engine)
	if err != nil {
		return nil, err
	}
	if inst.Status != storage.StatusRunning {
		return nil, fmt.Errorf("instance %s is not running (status %s)", inst.ID, inst.Status)
	}

	format, ext, contentType, err := resolveFormat(req.Format)
	if err != nil {
		return nil, err
	}
	if format == "sql" && eng.Category() != engine.Relational {
		return nil, fmt.Errorf("%w: sql export is only available for relational engines", database.ErrUnsupportedOperation)
	}

	limit := req.Limit
	if limit <= 0 || limit > defaultRowLimit {
		limit = defaultRowLimit
	}

	objects := req.Objects
	if len(objects) == 0 {
		objects, err = e.discoverObjects(ctx, inst)
		if err != nil {
			return nil, err
		}
	}
	if len(objects) == 0 {
		return nil, fmt.Errorf("nothing to export from %s", inst.Database)
	}

	datasets := make([]dataset, 0, len(objects))
	for _, object := range objects {
		ds, err := e.source.fetch(ctx, inst, eng.Category(), object, limit)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", object, err)
		}
		datasets = append(datasets, *ds)
	}

	stamp := time.Now().Format("20060102-150405")

	if len(datasets) == 1 {
		data, err := e.serialize(ctx, inst, datasets[0], format, req)
		if err != nil {
			return nil, err
		}
		name := fmt.Sprintf("%s-export-%s.%s", database.SanitizeName(datasets[0].Object), stamp, ext)
		return &File{Data: data, Filename: name, ContentType: contentType}, nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, ds := range datasets {
		data, err := e.serialize(ctx, inst, ds, format, req)
		if err != nil {
			return nil, err
		}
		entry, err := zw.Create(fmt.Sprintf("%s.%s", database.SanitizeName(ds.Object), ext))
		if err != nil {
			return nil, err
		}
		if _, err := entry.Write(data); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s-export-%s.zip", database.SanitizeName(inst.Name), stamp)
	return &File{Data: buf.Bytes(), Filename: name, ContentType: "application/zip"}, nil
}

func resolveFormat(format string) (name, ext, contentType string, err error) {
	switch format {
	case "csv":
		return "csv", "csv", "text/csv", nil
	case "json":
		return "json", "json", "application/json", nil
	case "sql":
		return "sql", "sql", "application/sql", nil
	default:
		return "", "", "", fmt.Errorf("unsupported export format: %s", format)
	}
}

// discoverObjects lists every exportable object on the instance.
func (e *Exporter) discoverObjects(ctx context.Context, inst *storage.Instance) ([]string, error) {
	info, err := e.introspector.Inspect(ctx, inst)
	if err != nil {
		return nil, err
	}
	objects := make([]string, 0, len(info.Tables))
	for _, t := range info.Tables {
		objects = append(objects, t.Name)
	}
	return objects, nil
}

func (e *Exporter) serialize(ctx context.Context, inst *storage.Instance, ds dataset, format string, req Request) ([]byte, error) {
	switch format {
	case "csv":
		return serializeCSV(ds, req.IncludeHeaders), nil
	case "json":
		return serializeJSON(ds)
	case "sql":
		var header *schema.Table
		if req.IncludeSchema {
			header = e.lookupTable(ctx, inst, ds.Object)
		}
		return serializeSQL(ds, header), nil
	default:
		return nil, fmt.Errorf("unsupported export format: %s", format)
	}
}

// lookupTable fetches the table description for the schema header. A
// failed lookup drops the header rather than failing the export.
func (e *Exporter) lookupTable(ctx context.Context, inst *storage.Instance, object string) *schema.Table {
	info, err := e.introspector.Inspect(ctx, inst)
	if err != nil {
		return nil
	}
	for i := range info.Tables {
		if info.Tables[i].Name == object {
			return &info.Tables[i]
		}
	}
	return nil
}
