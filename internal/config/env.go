package config

import (
	"os"
	"strconv"
)

// ApplyEnv layers environment overrides on top of an already-loaded config.
// Falls back to the existing value if a variable is not set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("BRIEF_TOOL_ADDR"); v != "" {
		c.Addr = v
	}
	if v := os.Getenv("BRIEF_TOOL_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("APP_BASE_URL"); v != "" {
		c.DeepLinkBase = v
	}
	if v := getEnvInt("TASK_FANOUT"); v > 0 {
		c.TaskFanout = v
	}
	if v := os.Getenv("ASANA_ACCESS_TOKEN"); v != "" {
		c.Asana.Token = v
	}
	if v := os.Getenv("ASANA_TEMPLATE_ID"); v != "" {
		c.Asana.TemplateID = v
	}
	if v := os.Getenv("ASANA_BASE_URL"); v != "" {
		c.Asana.BaseURL = v
	}
}

func getEnvInt(key string) int {
	val := os.Getenv(key)
	if val == "" {
		return 0
	}
	num, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return num
}
