package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed settings.yaml
var defaultSettingsYAML []byte

var settingsValidate = validator.New()

// Settings is the per-format settings resource
type Settings struct {
	TSM FormatSettings `yaml:"tsm"`
	DA  FormatSettings `yaml:"da"`
}

// FormatSettings configures decoding and the initial modifier chain for one format
type FormatSettings struct {
	ChannelCount     int           `yaml:"channel_count" validate:"gte=1"`
	ElecChannelCount int           `yaml:"electrophysiology_channel_count" validate:"gte=0,lte=8"`
	Chain            ChainSettings `yaml:"chain"`
}

// ChainSettings lists the stages to create and their default parameters
type ChainSettings struct {
	Stages []string `yaml:"stages" validate:"dive,required"`
	// Defaults maps a category or stage name to a parameter value
	Defaults map[string]any `yaml:"defaults"`
}

// Default returns the parameter for a stage, preferring an entry under the
// stage's own name over one under its category
func (c ChainSettings) Default(stage, category string) (any, bool) {
	if v, ok := c.Defaults[stage]; ok {
		return v, true
	}
	v, ok := c.Defaults[category]
	return v, ok
}

// Format returns the settings for a format name such as "tsm"
func (s *Settings) Format(name string) (FormatSettings, error) {
	switch strings.ToLower(name) {
	case "tsm":
		return s.TSM, nil
	case "da":
		return s.DA, nil
	}
	return FormatSettings{}, fmt.Errorf("no settings for format %q", name)
}

// Validate validates the settings
func (s *Settings) Validate() error {
	return settingsValidate.Struct(s)
}

// DefaultSettings returns the embedded settings resource
func DefaultSettings() (*Settings, error) {
	return ParseSettings(defaultSettingsYAML)
}

// LoadSettings reads settings from path, or the embedded default when path is empty
func LoadSettings(path string) (*Settings, error) {
	if path == "" {
		return DefaultSettings()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes and validates a settings document
func ParseSettings(data []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &s, nil
}
