// Package query executes user queries against provisioned instances with
// the engine's native driver, normalizing every outcome into one result
// shape. Execution failures are payloads, not errors: a bad query returns
// Success=false with the engine's message, never a transport error.
package query

// Request holds a query submitted against an instance
type Request struct {
	Query          string `json:"query"`
	Limit          int    `json:"limit,omitempty"`
	TimeoutSeconds int    `json:"timeoutSeconds,omitempty"`
}

// Result is the normalized outcome of a query on any engine. Rows are maps
// keyed by column name; Columns carries the display order.
type Result struct {
	Columns         []string                 `json:"columns"`
	Rows            []map[string]interface{} `json:"rows"`
	RowCount        int                      `json:"rowCount"`
	ExecutionTimeMs int64                    `json:"executionTimeMs"`
	QueryType       string                   `json:"queryType,omitempty"`
	AffectedRows    int64                    `json:"affectedRows,omitempty"`
	Message         string                   `json:"message,omitempty"`
	Success         bool                     `json:"success"`
	Error           string                   `json:"error,omitempty"`
}

// Failure builds a failed result with the given query type and error text.
func Failure(queryType, errText string) *Result {
	return &Result{
		Columns:   []string{},
		Rows:      []map[string]interface{}{},
		QueryType: queryType,
		Success:   false,
		Error:     errText,
	}
}
