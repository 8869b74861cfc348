package treelstm

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Manifest describes a run next to its checkpoints.
type Manifest struct {
	RunID        string      `yaml:"run_id"`
	ConfigString string      `yaml:"config_string"`
	StartedAt    time.Time   `yaml:"started_at"`
	ResumedFrom  string      `yaml:"resumed_from,omitempty"`
	TrainSize    int         `yaml:"train_size"`
	EvalSize     int         `yaml:"eval_size"`
	Glove        bool        `yaml:"glove"`
	Config       TrainConfig `yaml:"config"`
}

func WriteManifest(path string, m Manifest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	return os.WriteFile(path, b, 0o644)
}

func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}
