package replicate

import (
	"fmt"
	"sort"

	"github.com/koiibenvenutto/koii-server/internal/notion"
)

// DefaultTaskName is the synthesized name used when a template carries no
// derivable name.
const DefaultTaskName = "Workflow Task"

// nameCandidates are the property names checked for a template's display
// name before falling back to a schema scan.
var nameCandidates = []string{"Name", "Task Name", "Title"}

// dependencyProps holds every accepted dependency property variant; these
// are never copied verbatim during sanitization.
var dependencyProps = func() map[string]bool {
	m := make(map[string]bool)
	for _, k := range blockingVariants {
		m[k] = true
	}
	for _, k := range blockedByVariants {
		m[k] = true
	}
	return m
}()

// DeriveName extracts a template's display name and the property it came
// from. Shapes are tried in order: a plain title property, then a rich text
// property under one of the usual names. Empty name means none was
// derivable.
func DeriveName(props map[string]notion.PropertyValue) (name, sourceKey string) {
	for _, key := range nameCandidates {
		if pv, ok := props[key]; ok && pv.Type == notion.TypeTitle {
			if text := pv.PlainText(); text != "" {
				return text, key
			}
		}
	}
	// Title properties under non-standard names.
	for _, key := range sortedKeys(props) {
		pv := props[key]
		if pv.Type == notion.TypeTitle {
			if text := pv.PlainText(); text != "" {
				return text, key
			}
		}
	}
	for _, key := range nameCandidates {
		if pv, ok := props[key]; ok && pv.Type == notion.TypeRichText {
			if text := pv.PlainText(); text != "" {
				return text, key
			}
		}
	}
	return "", ""
}

// SanitizeProperties reshapes a template's properties for creation in the
// destination collection. Pure function over (properties, allowed set):
//
//   - properties absent from the destination schema are dropped (warned);
//   - the template-filter property is always dropped, schema or not;
//   - the name-bearing property is consumed for the title, then dropped;
//   - people references are reduced to bare ids;
//   - the destination title becomes "<epic>: <name>" (DefaultTaskName when
//     no name was derivable) and a relation to the owning epic is attached.
func SanitizeProperties(tmpl Template, epic Epic, schema notion.Schema, filterProp, epicRelProp string) (map[string]notion.PropertyValue, []string) {
	name, nameKey := DeriveName(tmpl.Properties)

	out := make(map[string]notion.PropertyValue, len(tmpl.Properties)+2)
	var warnings []string
	for _, key := range sortedKeys(tmpl.Properties) {
		if key == nameKey || key == filterProp {
			continue
		}
		if dependencyProps[key] {
			// Template-side dependency relations point at other
			// templates; the resolver writes the replica-side ones
			// after every instance exists.
			continue
		}
		pv := tmpl.Properties[key]
		if pv.Type == notion.TypeTitle {
			// The destination title is composed below; stray title
			// properties cannot be written alongside it.
			continue
		}
		if !schema.Has(key) {
			warnings = append(warnings, fmt.Sprintf("property %q absent from destination schema, dropped", key))
			continue
		}
		if pv.Type == notion.TypePeople {
			pv = flattenPeople(pv)
		}
		out[key] = pv
	}

	if name == "" {
		name = DefaultTaskName
	}
	out[schema.TitleProperty()] = notion.TitleValue(fmt.Sprintf("%s: %s", epic.Name, name))
	out[epicRelProp] = notion.RelationValue(epic.ID)
	return out, warnings
}

// flattenPeople strips cached display data from user references, keeping
// only the ids the record store needs.
func flattenPeople(pv notion.PropertyValue) notion.PropertyValue {
	people := make([]notion.Person, 0, len(pv.People))
	for _, p := range pv.People {
		people = append(people, notion.Person{Object: "user", ID: p.ID})
	}
	return notion.PropertyValue{Type: notion.TypePeople, People: people}
}

func sortedKeys(props map[string]notion.PropertyValue) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
