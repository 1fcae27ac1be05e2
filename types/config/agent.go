package config

import (
	"github.com/cockroachdb/errors"
)

// AgentConfig configures the executor process.
type AgentConfig struct {
	Host string
	Port int
	// Token overrides the machine-derived token when set.
	Token    string
	JSONLogs bool
}

func NewAgentConfig() *AgentConfig {
	return &AgentConfig{
		Host: DefaultAgentHost,
		Port: DefaultAgentPort,
	}
}

func (c *AgentConfig) Validate() error {
	if c.Host == "" {
		return errors.New("agent host is required")
	}
	if c.Port < 1 || c.Port > 65535 {
		return errors.Newf("agent port %d is out of range", c.Port)
	}
	return nil
}
