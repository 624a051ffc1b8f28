// Package channels creates per-channel sub-tasks for a story: every channel
// whose project matches one of the story's projects gets a task, unless a
// task with the same title already exists.
package channels

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/koiibenvenutto/koii-server/internal/notion"
	"github.com/koiibenvenutto/koii-server/internal/replicate"
)

// Config holds the collection ids and property names the service works
// against.
type Config struct {
	ChannelsDB string
	TasksDB    string

	// ProjectProperty is the channel-side relation to a project.
	ProjectProperty string
	// ProjectsProperty is the story-side relation to its projects.
	ProjectsProperty string
	// StoryRelationProperty links a created task back to its story.
	StoryRelationProperty string
}

func (c Config) withDefaults() Config {
	if c.ProjectProperty == "" {
		c.ProjectProperty = "Project"
	}
	if c.ProjectsProperty == "" {
		c.ProjectsProperty = "Projects"
	}
	if c.StoryRelationProperty == "" {
		c.StoryRelationProperty = "Story"
	}
	return c
}

// Result summarizes one fan-out.
type Result struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Tasks   []string `json:"tasks,omitempty"` // titles of created tasks
}

// Service matches channels to stories and creates the sub-tasks.
type Service struct {
	client notion.Client
	cfg    Config
	logger *zap.Logger
}

// NewService wires a channel task service. A nil logger disables logging.
func NewService(client notion.Client, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{client: client, cfg: cfg.withDefaults(), logger: logger}
}

// CreateChannelTasks finds every channel sharing a project with the story
// and creates one sub-task per channel, skipping titles that already exist.
// Per-channel failures are counted and logged, never fatal to the fan-out.
func (s *Service) CreateChannelTasks(ctx context.Context, storyID string) (Result, error) {
	var res Result
	if s.cfg.ChannelsDB == "" || s.cfg.TasksDB == "" {
		return res, fmt.Errorf("channels: missing collection ids")
	}

	story, err := s.client.RetrievePage(ctx, storyID)
	if err != nil {
		return res, fmt.Errorf("channels: fetch story %s: %w", storyID, err)
	}
	storyName, _ := replicate.DeriveName(story.Properties)
	if storyName == "" {
		storyName = replicate.DefaultTaskName
	}

	projects := make(map[string]bool)
	if pv, ok := story.Properties[s.cfg.ProjectsProperty]; ok {
		for _, id := range pv.RelationIDs() {
			projects[id] = true
		}
	}
	if len(projects) == 0 {
		s.logger.Info("story has no projects, no channel tasks to create",
			zap.String("story", storyID))
		return res, nil
	}

	chans, err := s.client.QueryDatabase(ctx, s.cfg.ChannelsDB, nil, nil)
	if err != nil {
		return res, fmt.Errorf("channels: query channels: %w", err)
	}

	schema, err := s.client.GetSchema(ctx, s.cfg.TasksDB)
	if err != nil {
		return res, fmt.Errorf("channels: fetch tasks schema: %w", err)
	}
	titleProp := schema.TitleProperty()

	for _, ch := range chans {
		if !s.channelMatches(ch, projects) {
			continue
		}
		chName, _ := replicate.DeriveName(ch.Properties)
		if chName == "" {
			s.logger.Warn("channel has no name, skipped", zap.String("channel", ch.ID))
			continue
		}
		title := fmt.Sprintf("%s: %s", chName, storyName)

		exists, err := s.taskExists(ctx, titleProp, title)
		if err != nil {
			s.logger.Error("duplicate check failed, channel skipped",
				zap.String("channel", chName), zap.Error(err))
			res.Failed++
			continue
		}
		if exists {
			s.logger.Info("task already exists, skipped", zap.String("title", title))
			res.Skipped++
			continue
		}

		props := map[string]notion.PropertyValue{
			titleProp: notion.TitleValue(title),
		}
		if schema.Has(s.cfg.StoryRelationProperty) {
			props[s.cfg.StoryRelationProperty] = notion.RelationValue(storyID)
		}
		if _, err := s.client.CreatePage(ctx, s.cfg.TasksDB, props, nil); err != nil {
			s.logger.Error("channel task creation failed",
				zap.String("title", title), zap.Error(err))
			res.Failed++
			continue
		}
		res.Created++
		res.Tasks = append(res.Tasks, title)
	}

	s.logger.Info("channel fan-out finished",
		zap.String("story", storyName),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed))
	return res, nil
}

func (s *Service) channelMatches(ch notion.Page, projects map[string]bool) bool {
	pv, ok := ch.Properties[s.cfg.ProjectProperty]
	if !ok {
		return false
	}
	for _, id := range pv.RelationIDs() {
		if projects[id] {
			return true
		}
	}
	return false
}

func (s *Service) taskExists(ctx context.Context, titleProp, title string) (bool, error) {
	pages, err := s.client.QueryDatabase(ctx, s.cfg.TasksDB, notion.TitleEquals(titleProp, title), nil)
	if err != nil {
		return false, err
	}
	return len(pages) > 0, nil
}
