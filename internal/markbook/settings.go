package markbook

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed settings.yaml
var defaultSettingsYAML []byte

type House struct {
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color" json:"color"`
}

type MetricInfo struct {
	Key   MetricKey `yaml:"key" json:"key"`
	Label string    `yaml:"label" json:"label"`
	Color string    `yaml:"color" json:"color"`
}

// Settings are the presentation choices of a markbook: the house list
// offered to the user, the defaults for new students and metric styling.
type Settings struct {
	DefaultHouse      string       `yaml:"defaultHouse" json:"defaultHouse"`
	DefaultStatus     string       `yaml:"defaultStatus" json:"defaultStatus"`
	UnknownHouseColor string       `yaml:"unknownHouseColor" json:"unknownHouseColor"`
	Houses            []House      `yaml:"houses" json:"houses"`
	Metrics           []MetricInfo `yaml:"metrics" json:"metrics"`
}

// DefaultSettings parses the embedded settings file.
func DefaultSettings() Settings {
	s, err := ParseSettings(defaultSettingsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded settings.yaml is invalid: %v", err))
	}
	return s
}

// LoadSettings reads path over the embedded defaults. An empty path returns the defaults.
func LoadSettings(path string) (Settings, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultSettings(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("read settings %q: %w", path, err)
	}
	s, err := ParseSettings(raw)
	if err != nil {
		return Settings{}, fmt.Errorf("parse settings %q: %w", path, err)
	}
	return s, nil
}

// ParseSettings decodes yaml; omitted sections are taken from the defaults.
func ParseSettings(raw []byte) (Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, err
	}
	if len(s.Houses) == 0 || len(s.Metrics) == 0 || s.DefaultHouse == "" || s.DefaultStatus == "" || s.UnknownHouseColor == "" {
		var base Settings
		if err := yaml.Unmarshal(defaultSettingsYAML, &base); err != nil {
			return Settings{}, err
		}
		if len(s.Houses) == 0 {
			s.Houses = base.Houses
		}
		if len(s.Metrics) == 0 {
			s.Metrics = base.Metrics
		}
		if s.DefaultHouse == "" {
			s.DefaultHouse = s.Houses[0].Name
		}
		if s.DefaultStatus == "" {
			s.DefaultStatus = base.DefaultStatus
		}
		if s.UnknownHouseColor == "" {
			s.UnknownHouseColor = base.UnknownHouseColor
		}
	}
	for _, m := range s.Metrics {
		if !IsMetric(m.Key) {
			return Settings{}, fmt.Errorf("unknown metric key %q", m.Key)
		}
	}
	return s, nil
}

// IsHouse reports whether name is one of the configured houses. Imports are
// not checked against this list.
func (s Settings) IsHouse(name string) bool {
	for _, h := range s.Houses {
		if h.Name == name {
			return true
		}
	}
	return false
}

func (s Settings) HouseColor(name string) string {
	for _, h := range s.Houses {
		if h.Name == name {
			return h.Color
		}
	}
	return s.UnknownHouseColor
}

// Metric returns the display info for key, falling back to the key itself as label.
func (s Settings) Metric(key MetricKey) MetricInfo {
	for _, m := range s.Metrics {
		if m.Key == key {
			return m
		}
	}
	return MetricInfo{Key: key, Label: string(key), Color: s.UnknownHouseColor}
}
