package notion

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Wire date layouts. Notion sends all-day dates as bare dates and timed
// dates as RFC 3339.
const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = time.RFC3339
)

// DateValue is a date property payload: a single date or a start/end range,
// either all-day or timestamped.
type DateValue struct {
	Start  time.Time
	End    time.Time
	HasEnd bool
	AllDay bool
}

// Shift returns a copy with both endpoints moved by d.
func (v DateValue) Shift(d time.Duration) DateValue {
	out := v
	out.Start = v.Start.Add(d)
	if v.HasEnd {
		out.End = v.End.Add(d)
	}
	return out
}

func (v DateValue) format(t time.Time) string {
	if v.AllDay {
		return t.Format(dateLayout)
	}
	return t.Format(dateTimeLayout)
}

type wireDate struct {
	Start string  `json:"start"`
	End   *string `json:"end,omitempty"`
}

// MarshalJSON encodes the value in the record store's wire shape.
func (v DateValue) MarshalJSON() ([]byte, error) {
	w := wireDate{Start: v.format(v.Start)}
	if v.HasEnd {
		end := v.format(v.End)
		w.End = &end
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes either a bare date or a timestamp for each endpoint.
func (v *DateValue) UnmarshalJSON(data []byte) error {
	var w wireDate
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	start, allDay, err := parseWireTime(w.Start)
	if err != nil {
		return fmt.Errorf("notion: date start: %w", err)
	}
	v.Start = start
	v.AllDay = allDay
	v.HasEnd = false
	if w.End != nil && *w.End != "" {
		end, _, err := parseWireTime(*w.End)
		if err != nil {
			return fmt.Errorf("notion: date end: %w", err)
		}
		v.End = end
		v.HasEnd = true
	}
	return nil
}

func parseWireTime(s string) (time.Time, bool, error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(dateTimeLayout, s)
	return t, false, err
}

// TextContent is the editable inner text of a rich text span.
type TextContent struct {
	Content string `json:"content"`
}

// RichText is one span of formatted text. Only the plain content matters to
// this service; annotations pass through untouched in PlainText.
type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

// Text builds a single-span rich text slice from a plain string.
func Text(s string) []RichText {
	return []RichText{{Type: "text", Text: &TextContent{Content: s}, PlainText: s}}
}

// Plain flattens a rich text slice to its concatenated content.
func Plain(spans []RichText) string {
	var b strings.Builder
	for _, s := range spans {
		if s.PlainText != "" {
			b.WriteString(s.PlainText)
		} else if s.Text != nil {
			b.WriteString(s.Text.Content)
		}
	}
	return strings.TrimSpace(b.String())
}

// Relation points at another page.
type Relation struct {
	ID string `json:"id"`
}

// Person is a user reference. Cached display fields beyond the id are
// dropped when properties are sanitized for creation.
type Person struct {
	Object string `json:"object,omitempty"`
	ID     string `json:"id"`
}

// SelectOption is a select / status choice.
type SelectOption struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

// Property value types this service understands natively. Anything else is
// carried opaquely in Raw.
const (
	TypeTitle    = "title"
	TypeRichText = "rich_text"
	TypeDate     = "date"
	TypeRelation = "relation"
	TypePeople   = "people"
	TypeCheckbox = "checkbox"
	TypeSelect   = "select"
)

// PropertyValue is a tagged union over the record store's property payloads.
type PropertyValue struct {
	Type     string
	Title    []RichText
	RichText []RichText
	Date     *DateValue
	Relation []Relation
	People   []Person
	Checkbox bool
	Select   *SelectOption
	// Raw carries the payload of property types the engine does not
	// interpret, so they survive a read-modify-write round trip.
	Raw json.RawMessage
}

// TitleValue builds a title property from a plain string.
func TitleValue(s string) PropertyValue {
	return PropertyValue{Type: TypeTitle, Title: Text(s)}
}

// RelationValue builds a relation property pointing at the given page ids.
func RelationValue(ids ...string) PropertyValue {
	rels := make([]Relation, 0, len(ids))
	for _, id := range ids {
		rels = append(rels, Relation{ID: id})
	}
	return PropertyValue{Type: TypeRelation, Relation: rels}
}

// DateProperty wraps a DateValue as a property.
func DateProperty(v DateValue) PropertyValue {
	return PropertyValue{Type: TypeDate, Date: &v}
}

// PlainText returns the text carried by a title or rich_text property,
// empty otherwise.
func (p PropertyValue) PlainText() string {
	switch p.Type {
	case TypeTitle:
		return Plain(p.Title)
	case TypeRichText:
		return Plain(p.RichText)
	}
	return ""
}

// RelationIDs returns the ids of a relation property, nil otherwise.
func (p PropertyValue) RelationIDs() []string {
	if p.Type != TypeRelation {
		return nil
	}
	ids := make([]string, 0, len(p.Relation))
	for _, r := range p.Relation {
		ids = append(ids, r.ID)
	}
	return ids
}

// MarshalJSON writes {"<type>": payload} keyed by the property type.
func (p PropertyValue) MarshalJSON() ([]byte, error) {
	body := map[string]any{}
	switch p.Type {
	case TypeTitle:
		body[TypeTitle] = p.Title
	case TypeRichText:
		body[TypeRichText] = p.RichText
	case TypeDate:
		body[TypeDate] = p.Date
	case TypeRelation:
		body[TypeRelation] = p.Relation
	case TypePeople:
		body[TypePeople] = p.People
	case TypeCheckbox:
		body[TypeCheckbox] = p.Checkbox
	case TypeSelect:
		body[TypeSelect] = p.Select
	default:
		if p.Raw == nil {
			return nil, fmt.Errorf("notion: cannot marshal property type %q without raw payload", p.Type)
		}
		body[p.Type] = p.Raw
	}
	return json.Marshal(body)
}

// UnmarshalJSON reads the tagged wire form, falling back to an opaque Raw
// payload for unknown types.
func (p *PropertyValue) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	typ := envelope.Type
	if typ == "" {
		// Write-shaped payloads omit the type tag; infer it from the
		// single payload key.
		for k := range fields {
			if k != "id" && k != "type" {
				typ = k
				break
			}
		}
	}
	payload, ok := fields[typ]
	if !ok {
		return fmt.Errorf("notion: property payload missing for type %q", typ)
	}
	p.Type = typ
	switch typ {
	case TypeTitle:
		return json.Unmarshal(payload, &p.Title)
	case TypeRichText:
		return json.Unmarshal(payload, &p.RichText)
	case TypeDate:
		if string(payload) == "null" {
			p.Date = nil
			return nil
		}
		p.Date = &DateValue{}
		return json.Unmarshal(payload, p.Date)
	case TypeRelation:
		return json.Unmarshal(payload, &p.Relation)
	case TypePeople:
		return json.Unmarshal(payload, &p.People)
	case TypeCheckbox:
		return json.Unmarshal(payload, &p.Checkbox)
	case TypeSelect:
		if string(payload) == "null" {
			p.Select = nil
			return nil
		}
		p.Select = &SelectOption{}
		return json.Unmarshal(payload, p.Select)
	default:
		p.Raw = payload
		return nil
	}
}

// Page is one record in a collection.
type Page struct {
	ID         string                   `json:"id"`
	Properties map[string]PropertyValue `json:"properties"`
	Icon       json.RawMessage          `json:"icon,omitempty"`
	URL        string                   `json:"url,omitempty"`
}

// Block is one content unit under a page or another block. Payload holds the
// type-keyed body; provenance stamps are kept only so they can be stripped
// before re-attachment.
type Block struct {
	ID          string
	Type        string
	HasChildren bool
	Payload     json.RawMessage
}

// blockContainerTypes are layout or grouping blocks that may legally hold
// children even when HasChildren is false on a fresh copy.
var blockContainerTypes = map[string]bool{
	"toggle":             true,
	"column_list":        true,
	"column":             true,
	"callout":            true,
	"quote":              true,
	"bulleted_list_item": true,
	"numbered_list_item": true,
	"to_do":              true,
	"synced_block":       true,
	"table":              true,
}

// IsContainer reports whether the block can receive appended children.
func (b Block) IsContainer() bool {
	return b.HasChildren || blockContainerTypes[b.Type]
}

// Clean returns a copy with identity and provenance stripped, suitable for
// appending under a new parent.
func (b Block) Clean() Block {
	return Block{Type: b.Type, Payload: b.Payload}
}

// MarshalJSON writes the append-children wire shape.
func (b Block) MarshalJSON() ([]byte, error) {
	body := map[string]any{
		"object": "block",
		"type":   b.Type,
	}
	if b.Payload != nil {
		body[b.Type] = b.Payload
	}
	return json.Marshal(body)
}

// UnmarshalJSON reads the block wire shape, capturing the type-keyed payload
// and discarding provenance fields.
func (b *Block) UnmarshalJSON(data []byte) error {
	var envelope struct {
		ID          string `json:"id"`
		Type        string `json:"type"`
		HasChildren bool   `json:"has_children"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	b.ID = envelope.ID
	b.Type = envelope.Type
	b.HasChildren = envelope.HasChildren
	b.Payload = fields[envelope.Type]
	return nil
}

// Schema maps a collection's property names to their types.
type Schema map[string]string

// Has reports whether the schema defines a property with the given name.
func (s Schema) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// TitleProperty returns the name of the schema's title property, defaulting
// to "Name" when the schema does not declare one.
func (s Schema) TitleProperty() string {
	for name, typ := range s {
		if typ == TypeTitle {
			return name
		}
	}
	return "Name"
}
