package channels

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/koiibenvenutto/koii-server/internal/notion"
)

const (
	channelsDB = "db-channels"
	tasksDB    = "db-tasks"
	storiesDB  = "db-stories"
)

func newService(t *testing.T) (*Service, *notion.MemClient) {
	mem := notion.NewMemClient()
	mem.SeedSchema(tasksDB, notion.Schema{
		"Name":  notion.TypeTitle,
		"Story": notion.TypeRelation,
	})
	svc := NewService(mem, Config{ChannelsDB: channelsDB, TasksDB: tasksDB}, zaptest.NewLogger(t))
	return svc, mem
}

func seedChannel(mem *notion.MemClient, name string, projectIDs ...string) *notion.Page {
	return mem.SeedPage(channelsDB, notion.Page{
		Properties: map[string]notion.PropertyValue{
			"Name":    notion.TitleValue(name),
			"Project": notion.RelationValue(projectIDs...),
		},
	})
}

func seedStory(mem *notion.MemClient, name string, projectIDs ...string) *notion.Page {
	return mem.SeedPage(storiesDB, notion.Page{
		Properties: map[string]notion.PropertyValue{
			"Name":     notion.TitleValue(name),
			"Projects": notion.RelationValue(projectIDs...),
		},
	})
}

func TestCreateChannelTasks_MatchingChannelsOnly(t *testing.T) {
	svc, mem := newService(t)
	story := seedStory(mem, "Big Launch", "proj-1")
	seedChannel(mem, "Newsletter", "proj-1")
	seedChannel(mem, "Podcast", "proj-2") // different project, no task

	res, err := svc.CreateChannelTasks(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Skipped)
	assert.Equal(t, []string{"Newsletter: Big Launch"}, res.Tasks)

	require.Len(t, mem.PagesIn(tasksDB), 1)
	task := mem.Page(mem.PagesIn(tasksDB)[0])
	assert.Equal(t, "Newsletter: Big Launch", notion.Plain(task.Properties["Name"].Title))
	assert.Equal(t, []string{story.ID}, task.Properties["Story"].RelationIDs())
}

func TestCreateChannelTasks_SkipsDuplicates(t *testing.T) {
	svc, mem := newService(t)
	story := seedStory(mem, "Big Launch", "proj-1")
	seedChannel(mem, "Newsletter", "proj-1")

	// Pre-existing task with the exact title.
	mem.SeedPage(tasksDB, notion.Page{
		Properties: map[string]notion.PropertyValue{
			"Name": notion.TitleValue("Newsletter: Big Launch"),
		},
	})

	res, err := svc.CreateChannelTasks(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Created)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, mem.PagesIn(tasksDB), 1, "no duplicate task created")
}

func TestCreateChannelTasks_NoProjects_NoWork(t *testing.T) {
	svc, mem := newService(t)
	story := seedStory(mem, "Orphan")
	seedChannel(mem, "Newsletter", "proj-1")

	res, err := svc.CreateChannelTasks(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Zero(t, res.Created)
	assert.Zero(t, res.Skipped)
}

func TestCreateChannelTasks_PerChannelFailureIsolated(t *testing.T) {
	svc, mem := newService(t)
	story := seedStory(mem, "Big Launch", "proj-1")
	seedChannel(mem, "Doomed", "proj-1")
	seedChannel(mem, "Newsletter", "proj-1")

	mem.FailCreate = func(_ string, props map[string]notion.PropertyValue) error {
		if notion.Plain(props["Name"].Title) == "Doomed: Big Launch" {
			return errors.New("simulated failure")
		}
		return nil
	}

	res, err := svc.CreateChannelTasks(context.Background(), story.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Failed)
}

func TestCreateChannelTasks_MissingStory_Error(t *testing.T) {
	svc, _ := newService(t)

	_, err := svc.CreateChannelTasks(context.Background(), "nope")
	require.Error(t, err)
	assert.True(t, notion.IsNotFound(err))
}
