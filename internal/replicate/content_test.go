package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/koiibenvenutto/koii-server/internal/notion"
)

func paragraph(text string) notion.Block {
	payload, _ := json.Marshal(map[string]any{"rich_text": notion.Text(text)})
	return notion.Block{Type: "paragraph", Payload: payload}
}

func TestCopyContent_CopiesBlocksInOrder(t *testing.T) {
	mem := notion.NewMemClient()
	src := notion.Page{ID: "src"}
	mem.SeedPage("db-templates", src)
	mem.SeedChildren("src", []notion.Block{paragraph("one"), paragraph("two")})

	CopyContent(context.Background(), mem, "src", "dst", zaptest.NewLogger(t))

	got := mem.Children("dst")
	require.Len(t, got, 2)
	assert.Equal(t, "paragraph", got[0].Type)
	assert.NotEmpty(t, got[0].ID, "appended blocks get fresh ids")
}

func TestCopyContent_StripsProvenance(t *testing.T) {
	mem := notion.NewMemClient()
	mem.SeedPage("db-templates", notion.Page{ID: "src"})
	seeded := mem.SeedChildren("src", []notion.Block{paragraph("one")})

	CopyContent(context.Background(), mem, "src", "dst", zaptest.NewLogger(t))

	got := mem.Children("dst")
	require.Len(t, got, 1)
	assert.NotEqual(t, seeded[0].ID, got[0].ID, "source block identity must not be re-attached")
	assert.Equal(t, seeded[0].Payload, got[0].Payload, "block content survives the copy")
}

func TestCopyContent_NestedChildrenUnderLastContainer(t *testing.T) {
	mem := notion.NewMemClient()
	mem.SeedPage("db-templates", notion.Page{ID: "src"})

	toggle := notion.Block{Type: "toggle", Payload: json.RawMessage(`{"rich_text":[]}`), HasChildren: true}
	seeded := mem.SeedChildren("src", []notion.Block{paragraph("intro"), toggle})
	mem.SeedChildren(seeded[1].ID, []notion.Block{paragraph("nested")})

	CopyContent(context.Background(), mem, "src", "dst", zaptest.NewLogger(t))

	top := mem.Children("dst")
	require.Len(t, top, 2)
	last := top[len(top)-1]
	require.Equal(t, "toggle", last.Type)

	nested := mem.Children(last.ID)
	require.Len(t, nested, 1)
	assert.Equal(t, "paragraph", nested[0].Type)
}

func TestCopyContent_NonContainerTail_SubtreeSkipped(t *testing.T) {
	mem := notion.NewMemClient()
	mem.SeedPage("db-templates", notion.Page{ID: "src"})

	// The block with children is first; the last appended block is a plain
	// paragraph, so the nested subtree has nowhere to go.
	parent := notion.Block{Type: "toggle", Payload: json.RawMessage(`{"rich_text":[]}`), HasChildren: true}
	seeded := mem.SeedChildren("src", []notion.Block{parent, paragraph("tail")})
	mem.SeedChildren(seeded[0].ID, []notion.Block{paragraph("nested")})

	CopyContent(context.Background(), mem, "src", "dst", zaptest.NewLogger(t))

	top := mem.Children("dst")
	require.Len(t, top, 2)
	assert.Empty(t, mem.Children(top[1].ID), "nested blocks are dropped, not misplaced")
}

func TestCopyContent_AppendFailure_DoesNotPanicOrPropagate(t *testing.T) {
	mem := notion.NewMemClient()
	mem.SeedPage("db-templates", notion.Page{ID: "src"})
	mem.SeedChildren("src", []notion.Block{paragraph("one")})
	mem.FailAppend = func(string) error { return errors.New("boom") }

	// Content loss is acceptable; the call must simply return.
	CopyContent(context.Background(), mem, "src", "dst", zaptest.NewLogger(t))

	assert.Empty(t, mem.Children("dst"))
}
