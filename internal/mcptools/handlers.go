// Package mcptools exposes the replication engine and the channel fan-out as
// MCP tools so agent clients can drive them directly.
package mcptools

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/koiibenvenutto/koii-server/internal/channels"
	"github.com/koiibenvenutto/koii-server/internal/replicate"
)

// ReplicationService holds the engine and the channel service used by the
// MCP tool handlers.
type ReplicationService struct {
	runner   *replicate.Runner
	channels *channels.Service
}

// NewReplicationService wires the service.
func NewReplicationService(runner *replicate.Runner, channelSvc *channels.Service) *ReplicationService {
	return &ReplicationService{runner: runner, channels: channelSvc}
}

// RunReplicationInput is the run_replication tool input.
type RunReplicationInput struct {
	Batches []BatchInput `json:"batches"`
}

// BatchInput mirrors one batch spec.
type BatchInput struct {
	EpicID       string `json:"epicId"`
	TemplateTag  string `json:"templateTag,omitempty"`
	ExplicitDate string `json:"explicitDate,omitempty"`
}

// RunReplicationOutput is the run_replication tool output.
type RunReplicationOutput struct {
	Summary replicate.Summary `json:"summary"`
}

// RunReplication executes one replication run across the given batches.
func (s *ReplicationService) RunReplication(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RunReplicationInput,
) (*mcp.CallToolResult, RunReplicationOutput, error) {
	if len(input.Batches) == 0 {
		return nil, RunReplicationOutput{}, fmt.Errorf("at least one batch is required")
	}
	req := replicate.Request{}
	for _, b := range input.Batches {
		req.Batches = append(req.Batches, replicate.BatchSpec{
			EpicID:       b.EpicID,
			TemplateTag:  b.TemplateTag,
			ExplicitDate: b.ExplicitDate,
		})
	}
	summary := s.runner.Run(ctx, req)
	return nil, RunReplicationOutput{Summary: summary}, nil
}

// CreateChannelTasksInput is the create_channel_tasks tool input.
type CreateChannelTasksInput struct {
	StoryID string `json:"storyId"`
}

// CreateChannelTasksOutput is the create_channel_tasks tool output.
type CreateChannelTasksOutput struct {
	Result channels.Result `json:"result"`
}

// CreateChannelTasks fans a story out into per-channel sub-tasks.
func (s *ReplicationService) CreateChannelTasks(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input CreateChannelTasksInput,
) (*mcp.CallToolResult, CreateChannelTasksOutput, error) {
	if input.StoryID == "" {
		return nil, CreateChannelTasksOutput{}, fmt.Errorf("storyId is required")
	}
	res, err := s.channels.CreateChannelTasks(ctx, input.StoryID)
	if err != nil {
		return nil, CreateChannelTasksOutput{}, err
	}
	return nil, CreateChannelTasksOutput{Result: res}, nil
}
