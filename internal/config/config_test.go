package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile_DefaultsAndEnv(t *testing.T) {
	t.Setenv("NOTION_TOKEN", "secret")
	t.Setenv("KOII_ADDR", "")
	t.Setenv("KOII_MCP_ADDR", "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "secret", cfg.Notion.Token)
}

func TestLoad_YamlAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	content := `
addr: ":9000"
databases:
  tasks: db-tasks
  templates: db-templates
properties:
  templateFilter: "Template Tag"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "koii.yml"), []byte(content), 0o644))
	t.Setenv("NOTION_TOKEN", "secret")
	t.Setenv("KOII_ADDR", ":7777")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Addr, "environment overrides the file")
	assert.Equal(t, "db-tasks", cfg.Databases.Tasks)
	assert.Equal(t, "Template Tag", cfg.Properties.TemplateFilter)
}

func TestRedacted_MasksToken(t *testing.T) {
	cfg := &Config{}
	cfg.Notion.Token = "super-secret"

	redacted := cfg.Redacted()
	notion := redacted["notion"].(map[string]any)
	assert.Equal(t, "[set]", notion["token"])
}
