// Package replicate is the template replication and dependency resolution
// engine. One Run replicates every batch's template pages into the tasks
// collection under a shared reference date, then rewires blocking /
// blocked-by relations between the freshly created pages.
package replicate

import (
	"encoding/json"
	"time"

	"github.com/koiibenvenutto/koii-server/internal/notion"
)

// Template is one source page to be replicated. Read-only; fetched fresh
// each run.
type Template struct {
	ID   string
	Name string // derived display name; empty when none was derivable
	Date *notion.DateValue
	Icon json.RawMessage

	Properties map[string]notion.PropertyValue
}

// Epic is the grouping context for a batch: title prefix and, when no
// explicit date is given anywhere, a fallback anchor date.
type Epic struct {
	ID         string
	Name       string
	AnchorDate *time.Time
}

// BatchSpec is one caller-specified batch: the owning epic, the tag
// selecting which templates to replicate, and an optional explicit run date.
type BatchSpec struct {
	EpicID       string `json:"epicId"`
	TemplateTag  string `json:"templateTag,omitempty"`
	ExplicitDate string `json:"explicitDate,omitempty"` // YYYY-MM-DD or RFC 3339
}

// Request is one replication run.
type Request struct {
	Batches []BatchSpec `json:"batches"`
}

// RecordFailure is one template that failed to replicate.
type RecordFailure struct {
	TemplateID string `json:"templateId"`
	Error      string `json:"error"`
}

// BatchResult is the per-batch slice of the run summary.
type BatchResult struct {
	EpicID      string          `json:"epicId"`
	EpicName    string          `json:"epicName,omitempty"`
	CopiedCount int             `json:"copiedCount"`
	Failed      []RecordFailure `json:"failed,omitempty"`
	// Error is set for batch-level configuration failures that excluded
	// the whole batch from replication.
	Error string `json:"error,omitempty"`
}

// Summary is the structured partial-success result of a run. A run never
// fails outright.
type Summary struct {
	PerBatch             []BatchResult `json:"perBatch"`
	TotalCopied          int           `json:"totalCopied"`
	DependenciesResolved int           `json:"dependenciesResolved"`
}

// NameMap is the run-scoped mapping from template name to replica id. Built
// incrementally during replication, read-only during resolution.
//
// Template names are a soft natural key: the map requires them to be unique
// within a run for resolution to be unambiguous. Duplicates are
// last-write-wins; Register reports the collision so callers can log it.
type NameMap struct {
	m map[string]string
}

// NewNameMap returns an empty map.
func NewNameMap() *NameMap {
	return &NameMap{m: make(map[string]string)}
}

// Register records name -> replicaID, returning true when an existing entry
// was overwritten.
func (n *NameMap) Register(name, replicaID string) bool {
	_, collided := n.m[name]
	n.m[name] = replicaID
	return collided
}

// Lookup returns the replica id registered for a template name.
func (n *NameMap) Lookup(name string) (string, bool) {
	id, ok := n.m[name]
	return id, ok
}

// Len returns the number of registered names.
func (n *NameMap) Len() int {
	return len(n.m)
}
