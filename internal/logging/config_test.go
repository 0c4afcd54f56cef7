package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad format", func(c *Config) { c.Format = "text" }},
		{"no outputs", func(c *Config) { c.Output = OutputConfig{} }},
		{"zero tick", func(c *Config) { c.Sampling.Tick = 0 }},
		{"bad pattern", func(c *Config) { c.Redaction.Patterns = []string{"[a-"} }},
		{"empty field key", func(c *Config) { c.Fields = map[string]string{"": "x"} }},
		{"empty field value", func(c *Config) { c.Fields = map[string]string{"lab": ""} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_FileOnlyIsValid(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Output = OutputConfig{File: "/tmp/bioadapt.log"}
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfig_RedactsSubject(t *testing.T) {
	fields := NewDefaultConfig().Redaction.Fields
	assert.Contains(t, fields, "subject")
	assert.Contains(t, fields, "subject_name")
}
