// Package notion is the record store client: a typed data model, a capability
// interface consumed by the replication engine, an HTTP implementation, and an
// in-memory fake for tests and dry runs.
package notion

import (
	"context"
	"encoding/json"
)

// Client is the capability set the engine consumes. Implementations:
// HTTPClient (production), MemClient (tests, dry runs).
//
// All calls are synchronous request/response. Failures carry a coarse
// *APIError kind callers may switch on; see KindOf.
type Client interface {
	// RetrievePage fetches one page by id.
	RetrievePage(ctx context.Context, id string) (*Page, error)

	// QueryDatabase returns pages in a collection matching the filter, in
	// the order requested by sorts. Nil filter/sorts mean unfiltered and
	// store-default order.
	QueryDatabase(ctx context.Context, databaseID string, filter, sorts json.RawMessage) ([]Page, error)

	// CreatePage creates a page in the collection with the given
	// properties and optional icon, returning the stored page with its
	// assigned id.
	CreatePage(ctx context.Context, databaseID string, properties map[string]PropertyValue, icon json.RawMessage) (*Page, error)

	// UpdatePage patches the given properties on an existing page.
	UpdatePage(ctx context.Context, id string, properties map[string]PropertyValue) (*Page, error)

	// ListChildren returns the direct child blocks of a page or block.
	ListChildren(ctx context.Context, blockID string) ([]Block, error)

	// AppendChildren appends blocks under a page or block and returns the
	// created blocks with their assigned ids.
	AppendChildren(ctx context.Context, blockID string, blocks []Block) ([]Block, error)

	// GetSchema returns the property names and types of a collection.
	GetSchema(ctx context.Context, databaseID string) (Schema, error)
}

// Filter builders for the query shapes this service uses.

// SelectEquals filters pages whose select property equals the given option.
func SelectEquals(property, value string) json.RawMessage {
	f, _ := json.Marshal(map[string]any{
		"property": property,
		"select":   map[string]string{"equals": value},
	})
	return f
}

// CheckboxEquals filters pages on a checkbox property.
func CheckboxEquals(property string, value bool) json.RawMessage {
	f, _ := json.Marshal(map[string]any{
		"property": property,
		"checkbox": map[string]bool{"equals": value},
	})
	return f
}

// TitleEquals filters pages whose title property equals the given text.
func TitleEquals(property, value string) json.RawMessage {
	f, _ := json.Marshal(map[string]any{
		"property": property,
		"title":    map[string]string{"equals": value},
	})
	return f
}

// RelationContains filters pages whose relation property contains the id.
func RelationContains(property, id string) json.RawMessage {
	f, _ := json.Marshal(map[string]any{
		"property": property,
		"relation": map[string]string{"contains": id},
	})
	return f
}
