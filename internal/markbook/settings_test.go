package markbook

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if len(s.Houses) != 4 {
		t.Fatalf("houses: want=4 got=%d", len(s.Houses))
	}
	if s.DefaultHouse != "Dragons" || s.DefaultStatus != "Active" {
		t.Fatalf("defaults: got house=%q status=%q", s.DefaultHouse, s.DefaultStatus)
	}
	if got := s.HouseColor("Eagles"); got != "#3b82f6" {
		t.Fatalf("HouseColor(Eagles): want=#3b82f6 got=%q", got)
	}
	if got := s.HouseColor("Unicorns"); got != "#6b7280" {
		t.Fatalf("HouseColor(unknown): want=#6b7280 got=%q", got)
	}
	if s.IsHouse("Unicorns") {
		t.Fatalf("IsHouse(Unicorns): want=false")
	}
	if got := s.Metric(MetricReadingSessions).Label; got != "Reading Sessions" {
		t.Fatalf("metric label: got=%q", got)
	}
}

func TestLoadSettingsOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	raw := "houses:\n  - name: Oak\n    color: \"#123456\"\n  - name: Ash\n    color: \"#654321\"\n"
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	s, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if s.DefaultHouse != "Oak" {
		t.Fatalf("DefaultHouse: want=Oak got=%q", s.DefaultHouse)
	}
	if len(s.Metrics) != 3 {
		t.Fatalf("metrics should fall back to defaults, got=%d", len(s.Metrics))
	}
	if s.DefaultStatus != "Active" {
		t.Fatalf("DefaultStatus: want=Active got=%q", s.DefaultStatus)
	}
}

func TestParseSettingsRejectsUnknownMetric(t *testing.T) {
	_, err := ParseSettings([]byte("metrics:\n  - key: attendance\n    label: Attendance\n"))
	if err == nil {
		t.Fatalf("ParseSettings: expected error for unknown metric key")
	}
}
