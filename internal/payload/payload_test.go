package payload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/koiibenvenutto/koii-server/internal/notion"
)

func TestBatchFromTrigger_CandidateOrder(t *testing.T) {
	page := &notion.Page{
		ID: "trigger",
		Properties: map[string]notion.PropertyValue{
			// "Epic" beats "Epics" even though both are present.
			"Epic":  notion.RelationValue("epic-1"),
			"Epics": notion.RelationValue("epic-2"),
			"Template Tag": {
				Type:   notion.TypeSelect,
				Select: &notion.SelectOption{Name: "launch"},
			},
			"Launch Date": notion.DateProperty(notion.DateValue{
				Start:  time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
				AllDay: true,
			}),
		},
	}

	spec := BatchFromTrigger(page)
	assert.Equal(t, "epic-1", spec.EpicID)
	assert.Equal(t, "launch", spec.TemplateTag)
	assert.Equal(t, "2024-03-10", spec.ExplicitDate)
}

func TestBatchFromTrigger_TextTagFallback(t *testing.T) {
	page := &notion.Page{
		Properties: map[string]notion.PropertyValue{
			"Tag": {Type: notion.TypeRichText, RichText: notion.Text("beta")},
		},
	}

	spec := BatchFromTrigger(page)
	assert.Equal(t, "beta", spec.TemplateTag)
	assert.Empty(t, spec.EpicID)
	assert.Empty(t, spec.ExplicitDate)
}

func TestBatchFromTrigger_EmptyCandidatesSkipped(t *testing.T) {
	page := &notion.Page{
		Properties: map[string]notion.PropertyValue{
			"Epic":        notion.RelationValue(), // present but empty
			"Parent Epic": notion.RelationValue("epic-9"),
		},
	}

	assert.Equal(t, "epic-9", BatchFromTrigger(page).EpicID)
}

func TestBatchFromTrigger_NilPage(t *testing.T) {
	assert.Zero(t, BatchFromTrigger(nil))
}
