package notion

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Compile-time assertion: *MemClient satisfies Client.
var _ Client = (*MemClient)(nil)

// MemClient implements Client using Go maps. Thread-safe via sync.RWMutex.
// Tests use the recorded call counters and the failure hooks to drive
// per-record error paths.
type MemClient struct {
	mu       sync.RWMutex
	pages    map[string]*Page
	dbPages  map[string][]string // database id -> page ids, insertion order
	children map[string][]Block  // parent id -> child blocks, insertion order
	schemas  map[string]Schema

	// Call counters.
	CreateCalls int
	UpdateCalls int
	UpdatedIDs  []string

	// Failure hooks. When non-nil and returning a non-nil error, the call
	// fails without touching state.
	FailCreate func(databaseID string, properties map[string]PropertyValue) error
	FailAppend func(blockID string) error
	FailUpdate func(id string) error
}

// NewMemClient returns an initialized MemClient ready for use.
func NewMemClient() *MemClient {
	return &MemClient{
		pages:    make(map[string]*Page),
		dbPages:  make(map[string][]string),
		children: make(map[string][]Block),
		schemas:  make(map[string]Schema),
	}
}

// SeedSchema registers a collection schema.
func (m *MemClient) SeedSchema(databaseID string, schema Schema) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.schemas[databaseID] = schema
}

// SeedPage inserts a page into a collection with the given id.
func (m *MemClient) SeedPage(databaseID string, page Page) *Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	if page.ID == "" {
		page.ID = uuid.NewString()
	}
	p := page
	m.pages[p.ID] = &p
	m.dbPages[databaseID] = append(m.dbPages[databaseID], p.ID)
	return &p
}

// SeedChildren registers child blocks under a parent, minting block ids.
func (m *MemClient) SeedChildren(parentID string, blocks []Block) []Block {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attach(parentID, blocks)
}

func (m *MemClient) attach(parentID string, blocks []Block) []Block {
	stored := make([]Block, 0, len(blocks))
	for _, b := range blocks {
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		stored = append(stored, b)
	}
	m.children[parentID] = append(m.children[parentID], stored...)
	return stored
}

// RetrievePage returns the page or a not_found APIError.
func (m *MemClient) RetrievePage(_ context.Context, id string) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[id]
	if !ok {
		return nil, notFound("page", id)
	}
	copied := *p
	return &copied, nil
}

// QueryDatabase returns the collection's pages in insertion order, applying
// the select / checkbox / title filter shapes this service builds.
func (m *MemClient) QueryDatabase(_ context.Context, databaseID string, filter, _ json.RawMessage) ([]Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids, ok := m.dbPages[databaseID]
	if !ok && m.schemas[databaseID] == nil {
		return nil, notFound("database", databaseID)
	}
	match, err := compileFilter(filter)
	if err != nil {
		return nil, err
	}
	var out []Page
	for _, id := range ids {
		p := m.pages[id]
		if p == nil || !match(p) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

// CreatePage stores a new page with a minted id.
func (m *MemClient) CreatePage(_ context.Context, databaseID string, properties map[string]PropertyValue, icon json.RawMessage) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if m.FailCreate != nil {
		if err := m.FailCreate(databaseID, properties); err != nil {
			return nil, err
		}
	}
	if _, ok := m.dbPages[databaseID]; !ok && m.schemas[databaseID] == nil {
		return nil, notFound("database", databaseID)
	}
	props := make(map[string]PropertyValue, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	p := &Page{ID: uuid.NewString(), Properties: props, Icon: icon}
	m.pages[p.ID] = p
	m.dbPages[databaseID] = append(m.dbPages[databaseID], p.ID)
	return p, nil
}

// UpdatePage patches properties on an existing page.
func (m *MemClient) UpdatePage(_ context.Context, id string, properties map[string]PropertyValue) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++
	m.UpdatedIDs = append(m.UpdatedIDs, id)
	if m.FailUpdate != nil {
		if err := m.FailUpdate(id); err != nil {
			return nil, err
		}
	}
	p, ok := m.pages[id]
	if !ok {
		return nil, notFound("page", id)
	}
	if p.Properties == nil {
		p.Properties = make(map[string]PropertyValue)
	}
	for k, v := range properties {
		p.Properties[k] = v
	}
	copied := *p
	return &copied, nil
}

// ListChildren returns the direct children of a parent, empty when none.
func (m *MemClient) ListChildren(_ context.Context, blockID string) ([]Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Block, len(m.children[blockID]))
	copy(out, m.children[blockID])
	return out, nil
}

// AppendChildren attaches blocks under a parent, minting ids for them.
func (m *MemClient) AppendChildren(_ context.Context, blockID string, blocks []Block) ([]Block, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailAppend != nil {
		if err := m.FailAppend(blockID); err != nil {
			return nil, err
		}
	}
	return m.attach(blockID, blocks), nil
}

// GetSchema returns the seeded schema for a collection.
func (m *MemClient) GetSchema(_ context.Context, databaseID string) (Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.schemas[databaseID]
	if !ok {
		return nil, notFound("database", databaseID)
	}
	out := make(Schema, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}

// Page returns the stored page by id for test assertions, nil when absent.
func (m *MemClient) Page(id string) *Page {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.pages[id]
	if !ok {
		return nil
	}
	copied := *p
	return &copied
}

// Children returns the stored children of a parent for test assertions.
func (m *MemClient) Children(parentID string) []Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Block, len(m.children[parentID]))
	copy(out, m.children[parentID])
	return out
}

// PagesIn returns the ids of a collection's pages in insertion order.
func (m *MemClient) PagesIn(databaseID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.dbPages[databaseID]))
	copy(out, m.dbPages[databaseID])
	return out
}

func notFound(object, id string) *APIError {
	return &APIError{
		StatusCode: 404,
		Code:       "object_not_found",
		Kind:       KindNotFound,
		Message:    fmt.Sprintf("could not find %s with id %s", object, id),
	}
}

// compileFilter turns a filter payload into a predicate. Only the shapes
// produced by the builders in client.go are understood; anything else
// matches nothing so tests fail loudly rather than silently over-matching.
func compileFilter(filter json.RawMessage) (func(*Page) bool, error) {
	if len(filter) == 0 {
		return func(*Page) bool { return true }, nil
	}
	var f struct {
		Property string             `json:"property"`
		Select   *struct{ Equals string }   `json:"select"`
		Checkbox *struct{ Equals bool }     `json:"checkbox"`
		Title    *struct{ Equals string }   `json:"title"`
		Relation *struct{ Contains string } `json:"relation"`
	}
	if err := json.Unmarshal(filter, &f); err != nil {
		return nil, fmt.Errorf("notion: memclient filter: %w", err)
	}
	return func(p *Page) bool {
		pv, ok := p.Properties[f.Property]
		if !ok {
			return false
		}
		switch {
		case f.Select != nil:
			return pv.Select != nil && pv.Select.Name == f.Select.Equals
		case f.Checkbox != nil:
			return pv.Type == TypeCheckbox && pv.Checkbox == f.Checkbox.Equals
		case f.Title != nil:
			return pv.PlainText() == f.Title.Equals
		case f.Relation != nil:
			for _, id := range pv.RelationIDs() {
				if id == f.Relation.Contains {
					return true
				}
			}
			return false
		default:
			return false
		}
	}, nil
}
