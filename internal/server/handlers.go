package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/koiibenvenutto/koii-server/internal/notion"
	"github.com/koiibenvenutto/koii-server/internal/payload"
	"github.com/koiibenvenutto/koii-server/internal/replicate"
)

// replicateRequest accepts either explicit batch specs or a record-store
// automation trigger carrying the page the button lives on.
type replicateRequest struct {
	Batches []replicate.BatchSpec `json:"batches,omitempty"`
	Data    *notion.Page          `json:"data,omitempty"`
}

func (s *Server) handleReplicate(w http.ResponseWriter, r *http.Request) {
	var req replicateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	batches := req.Batches
	if len(batches) == 0 && req.Data != nil {
		batches = []replicate.BatchSpec{payload.BatchFromTrigger(req.Data)}
	}
	if len(batches) == 0 {
		writeError(w, http.StatusBadRequest, "no batches in request")
		return
	}

	// The run never fails outright; whatever happened is in the summary.
	summary := s.runner.Run(r.Context(), replicate.Request{Batches: batches})
	writeJSON(w, http.StatusOK, summary)
}

type channelTasksRequest struct {
	StoryID string       `json:"storyId,omitempty"`
	Data    *notion.Page `json:"data,omitempty"`
}

func (s *Server) handleChannelTasks(w http.ResponseWriter, r *http.Request) {
	var req channelTasksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	storyID := req.StoryID
	if storyID == "" && req.Data != nil {
		storyID = req.Data.ID
	}
	if storyID == "" {
		writeError(w, http.StatusBadRequest, "no story id in request")
		return
	}

	res, err := s.channels.CreateChannelTasks(r.Context(), storyID)
	if err != nil {
		status := http.StatusInternalServerError
		if notion.IsNotFound(err) {
			status = http.StatusNotFound
		}
		s.logger.Error("channel fan-out failed", zap.String("story", storyID), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDebugConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Redacted())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
