package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr    string `yaml:"addr" json:"addr"`
	DataDir string `yaml:"data_dir" json:"data_dir"`

	Asana Asana `yaml:"asana" json:"asana"`

	// DeepLinkBase is prepended to per-question deep links written into
	// task notes, e.g. "app://brief" yields "app://brief/<id>#q<n>".
	DeepLinkBase string `yaml:"deep_link_base" json:"deep_link_base"`

	// TaskFanout bounds how many task-creation calls run at once.
	TaskFanout int `yaml:"task_fanout" json:"task_fanout"`
}

type Asana struct {
	Token      string `yaml:"token" json:"-"`
	TemplateID string `yaml:"template_id" json:"template_id"`
	BaseURL    string `yaml:"base_url" json:"base_url"`

	// ProjectURLBase is the public project link prefix returned to callers.
	ProjectURLBase string `yaml:"project_url_base" json:"project_url_base"`
}

func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":5000"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.DeepLinkBase == "" {
		c.DeepLinkBase = "app://brief"
	}
	if c.TaskFanout <= 0 {
		c.TaskFanout = 8
	}
	if c.Asana.BaseURL == "" {
		c.Asana.BaseURL = "https://app.asana.com/api/1.0"
	}
	if c.Asana.ProjectURLBase == "" {
		c.Asana.ProjectURLBase = "https://app.asana.com/0"
	}
}

// Load reads a yaml config file. A missing file is not an error: env
// overrides and defaults are enough to run the service.
func Load(path string) (*Config, error) {
	var c Config
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.ApplyDefaults()
			return &c, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	c.ApplyDefaults()
	return &c, nil
}
