// Package schema introspects provisioned instances into a uniform shape:
// relational catalogs walk information_schema, document stores sample a
// collection's first document, key-value stores group keys by prefix.
package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirrobot01/dbforge/pkg/engine"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

// Schema is the introspected structure of one instance's database.
type Schema struct {
	DatabaseName string  `json:"databaseName"`
	Tables       []Table `json:"tables"`
}

// Table is one schema object: a table, view, collection or key pattern.
// RowCount is nil when counting failed; a count is best-effort.
type Table struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	RowCount *int64   `json:"rowCount"`
	Columns  []Column `json:"columns"`
	Indexes  []Index  `json:"indexes,omitempty"`
}

// Column describes one field of a table or sampled document.
type Column struct {
	Name          string `json:"name"`
	DataType      string `json:"dataType"`
	Nullable      bool   `json:"nullable"`
	Default       string `json:"default,omitempty"`
	PrimaryKey    bool   `json:"primaryKey"`
	AutoIncrement bool   `json:"autoIncrement"`
	MaxLength     *int64 `json:"maxLength,omitempty"`
}

// Index describes one index, classified as PRIMARY, UNIQUE or INDEX.
type Index struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Columns []string `json:"columns"`
}

// Introspector inspects instances by engine category.
type Introspector struct{}

// NewIntrospector creates an introspector
func NewIntrospector() *Introspector {
	return &Introspector{}
}

// Inspect returns the schema of a running instance.
func (i *Introspector) Inspect(ctx context.Context, inst *storage.Instance) (*Schema, error) {
	eng, err := engine.Get(inst.Engine)
	if err != nil {
		return nil, err
	}
	if inst.Status != storage.StatusRunning {
		return nil, fmt.Errorf("instance %s is not running (status %s)", inst.ID, inst.Status)
	}

	switch eng.Category() {
	case engine.Relational:
		return i.inspectRelational(ctx, inst)
	case engine.Document:
		return i.inspectDocument(ctx, inst)
	case engine.KeyValue:
		return i.inspectKeyValue(ctx, inst)
	default:
		return nil, fmt.Errorf("no introspector for category %s", eng.Category())
	}
}

// classifyIndex maps an index to PRIMARY, UNIQUE or INDEX. Primary keys
// surface as "PRIMARY" on the mysql family and as "<table>_pkey" on
// postgres.
func classifyIndex(name string, unique bool) string {
	if name == "PRIMARY" || strings.HasSuffix(name, "_pkey") {
		return "PRIMARY"
	}
	if unique {
		return "UNIQUE"
	}
	return "INDEX"
}
