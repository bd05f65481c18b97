package query

import (
	"context"
	"fmt"
	"time"

	"github.com/sirrobot01/dbforge/pkg/engine"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

// defaultTimeout bounds query execution when the caller sets none.
const defaultTimeout = 30 * time.Second

// Router dispatches a request to the executor for the instance's engine
// category. The category set is closed; adding an engine to an existing
// category needs no changes here.
type Router struct {
	sql sqlExecutor
	doc mongoExecutor
	kv  kvExecutor
}

// NewRouter creates a query router
func NewRouter() *Router {
	return &Router{}
}

// Execute runs a query against an instance. Errors are returned only for
// dispatch problems (unknown engine, instance not running); execution
// failures come back inside the Result.
func (r *Router) Execute(ctx context.Context, inst *storage.Instance, req *Request) (*Result, error) {
	eng, err := engine.Get(inst.Engine)
	if err != nil {
		return nil, err
	}
	if inst.Status != storage.StatusRunning {
		return nil, fmt.Errorf("instance %s is not running (status %s)", inst.ID, inst.Status)
	}

	timeout := defaultTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	switch eng.Category() {
	case engine.Relational:
		return r.sql.Execute(ctx, inst, req), nil
	case engine.Document:
		return r.doc.Execute(ctx, inst, req), nil
	case engine.KeyValue:
		return r.kv.Execute(ctx, inst, req), nil
	default:
		return nil, fmt.Errorf("no executor for category %s", eng.Category())
	}
}
