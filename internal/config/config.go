// Package config loads service settings from koii.yml plus environment
// overrides for secrets and addresses.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds service-level settings.
type Config struct {
	Addr    string `yaml:"addr,omitempty"`
	MCPAddr string `yaml:"mcpAddr,omitempty"`
	Verbose bool   `yaml:"verbose,omitempty"`

	Notion struct {
		// Token comes from NOTION_TOKEN only; never from the file.
		Token   string `yaml:"-"`
		Version string `yaml:"version,omitempty"`
		BaseURL string `yaml:"baseUrl,omitempty"`
	} `yaml:"notion,omitempty"`

	Databases struct {
		Tasks     string `yaml:"tasks,omitempty"`
		Templates string `yaml:"templates,omitempty"`
		Channels  string `yaml:"channels,omitempty"`
	} `yaml:"databases,omitempty"`

	Properties struct {
		TemplateFilter string `yaml:"templateFilter,omitempty"`
		EpicRelation   string `yaml:"epicRelation,omitempty"`
		Date           string `yaml:"date,omitempty"`
		Blocking       string `yaml:"blocking,omitempty"`
		BlockedBy      string `yaml:"blockedBy,omitempty"`
		ChannelProject string `yaml:"channelProject,omitempty"`
		StoryProjects  string `yaml:"storyProjects,omitempty"`
		StoryRelation  string `yaml:"storyRelation,omitempty"`
	} `yaml:"properties,omitempty"`
}

// Load reads koii.yml or koii.yaml from the given directory, applies
// environment overrides, and fills defaults. A missing file yields a usable
// config driven entirely by environment and defaults.
func Load(dir string) (*Config, error) {
	cfg := &Config{}
	for _, name := range []string{"koii.yml", "koii.yaml"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
		break
	}

	cfg.Notion.Token = os.Getenv("NOTION_TOKEN")
	if v := os.Getenv("KOII_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("KOII_MCP_ADDR"); v != "" {
		cfg.MCPAddr = v
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	return cfg, nil
}

// Redacted returns the config as a loggable map with secrets masked, used by
// the debug endpoint.
func (c *Config) Redacted() map[string]any {
	token := ""
	if c.Notion.Token != "" {
		token = "[set]"
	}
	return map[string]any{
		"addr":    c.Addr,
		"mcpAddr": c.MCPAddr,
		"notion": map[string]any{
			"token":   token,
			"version": c.Notion.Version,
			"baseUrl": c.Notion.BaseURL,
		},
		"databases": map[string]any{
			"tasks":     c.Databases.Tasks,
			"templates": c.Databases.Templates,
			"channels":  c.Databases.Channels,
		},
	}
}
