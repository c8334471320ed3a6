// Package model holds the shared record types for mapping runs.
package model

import "time"

// RunKind says which entry point produced a run.
type RunKind string

const (
	RunKindMap   RunKind = "map"
	RunKindBatch RunKind = "batch"
	RunKindServe RunKind = "serve"
)

// Run records one completed mapping: the inputs, the columns the resolver
// (or the user) settled on, the duplicate policy, and the match counts.
type Run struct {
	ID        string    `json:"id"`
	Kind      RunKind   `json:"kind"`
	Report    string    `json:"report"`
	Reference string    `json:"reference"`
	Sheet     string    `json:"sheet,omitempty"`
	StyleCol  string    `json:"style_col"`
	DeptCol   string    `json:"dept_col,omitempty"`
	ValueCol  string    `json:"value_col"`
	Policy    string    `json:"policy"`
	Total     int       `json:"total"`
	Matched   int       `json:"matched"`
	Unmatched int       `json:"unmatched"`
	CreatedAt time.Time `json:"created_at"`
}
