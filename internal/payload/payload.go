// Package payload turns webhook trigger pages into replication batch specs.
// Concepts are located by trying an ordered list of plausible property names,
// because trigger collections are user-built and rarely agree on naming.
package payload

import (
	"time"

	"github.com/koiibenvenutto/koii-server/internal/notion"
	"github.com/koiibenvenutto/koii-server/internal/replicate"
)

// Candidate property names per concept, most specific first. The first
// present, non-empty candidate wins.
var (
	epicCandidates = []string{"Epic", "Epics", "Parent Epic"}
	dateCandidates = []string{"Target Date", "Launch Date", "Date"}
	tagCandidates  = []string{"Template Tag", "Template", "Tag"}
)

// BatchFromTrigger extracts one batch spec from a trigger page's properties.
// Anything it cannot locate stays empty; the engine reports missing epic ids
// as per-batch configuration errors, so extraction never fails hard.
func BatchFromTrigger(page *notion.Page) replicate.BatchSpec {
	spec := replicate.BatchSpec{}
	if page == nil {
		return spec
	}
	spec.EpicID = firstRelationID(page.Properties, epicCandidates)
	spec.TemplateTag = firstSelectOrText(page.Properties, tagCandidates)
	if d := firstDate(page.Properties, dateCandidates); d != nil {
		spec.ExplicitDate = d.Format("2006-01-02")
	}
	return spec
}

func firstRelationID(props map[string]notion.PropertyValue, candidates []string) string {
	for _, key := range candidates {
		if pv, ok := props[key]; ok {
			if ids := pv.RelationIDs(); len(ids) > 0 {
				return ids[0]
			}
		}
	}
	return ""
}

func firstSelectOrText(props map[string]notion.PropertyValue, candidates []string) string {
	for _, key := range candidates {
		pv, ok := props[key]
		if !ok {
			continue
		}
		if pv.Type == notion.TypeSelect && pv.Select != nil && pv.Select.Name != "" {
			return pv.Select.Name
		}
		if text := pv.PlainText(); text != "" {
			return text
		}
	}
	return ""
}

func firstDate(props map[string]notion.PropertyValue, candidates []string) *time.Time {
	for _, key := range candidates {
		if pv, ok := props[key]; ok && pv.Type == notion.TypeDate && pv.Date != nil {
			d := pv.Date.Start
			return &d
		}
	}
	return nil
}
