package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/koiibenvenutto/koii-server/internal/channels"
	"github.com/koiibenvenutto/koii-server/internal/config"
	"github.com/koiibenvenutto/koii-server/internal/notion"
	"github.com/koiibenvenutto/koii-server/internal/replicate"
)

func newTestServer(t *testing.T) (*Server, *notion.MemClient) {
	mem := notion.NewMemClient()
	mem.SeedSchema("db-tasks", notion.Schema{
		"Name": notion.TypeTitle,
		"Epic": notion.TypeRelation,
		"Date": notion.TypeDate,
	})

	logger := zaptest.NewLogger(t)
	runner := replicate.NewRunner(mem, replicate.Config{
		TasksDB:     "db-tasks",
		TemplatesDB: "db-templates",
	}, logger)
	channelSvc := channels.NewService(mem, channels.Config{
		ChannelsDB: "db-channels",
		TasksDB:    "db-tasks",
	}, logger)

	cfg := &config.Config{}
	cfg.Notion.Token = "secret"
	return New(runner, channelSvc, cfg, logger), mem
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleReplicate_ReturnsSummary(t *testing.T) {
	srv, mem := newTestServer(t)
	epic := mem.SeedPage("db-epics", notion.Page{
		Properties: map[string]notion.PropertyValue{"Name": notion.TitleValue("Sprint 7")},
	})
	mem.SeedPage("db-templates", notion.Page{
		Properties: map[string]notion.PropertyValue{
			"Name": notion.TitleValue("Kickoff"),
			"Template Tag": {
				Type:   notion.TypeSelect,
				Select: &notion.SelectOption{Name: "alpha"},
			},
		},
	})

	rec := postJSON(t, srv.Handler(), "/replicate", map[string]any{
		"batches": []map[string]string{{"epicId": epic.ID, "templateTag": "alpha"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var summary replicate.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 1, summary.TotalCopied)
	require.Len(t, summary.PerBatch, 1)
	assert.Equal(t, "Sprint 7", summary.PerBatch[0].EpicName)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestHandleReplicate_PartialFailureStillOK(t *testing.T) {
	srv, _ := newTestServer(t)

	// Batch with a missing epic id fails inside the summary, not at the
	// HTTP layer.
	rec := postJSON(t, srv.Handler(), "/replicate", map[string]any{
		"batches": []map[string]string{{"templateTag": "alpha"}},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	var summary replicate.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Len(t, summary.PerBatch, 1)
	assert.Equal(t, "missing epic id", summary.PerBatch[0].Error)
}

func TestHandleReplicate_EmptyRequest_BadRequest(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/replicate", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleChannelTasks_UnknownStory_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postJSON(t, srv.Handler(), "/channel-tasks", map[string]string{"storyId": "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleDebugConfig_TokenMasked(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/debug/config", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.Contains(t, rec.Body.String(), "[set]")
}
