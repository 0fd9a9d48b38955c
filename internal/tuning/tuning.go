package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	SampleIntervalS  float64 `yaml:"sample_interval_s"`
	VelocityEpsilonS float64 `yaml:"velocity_epsilon_s"`
	MinLogBytes      int64   `yaml:"min_log_bytes"`

	BuildOrderMax int `yaml:"build_order_max"`

	// Index keeps one snapshot row every IndexStrideS seconds of game time.
	IndexStrideS float64 `yaml:"index_stride_s"`

	Playback Playback `yaml:"playback"`
}

type Playback struct {
	MaxSpeed     float64 `yaml:"max_speed"`
	SendQueue    int     `yaml:"send_queue"`
	WriteTimeout int     `yaml:"write_timeout_ms"`
}

func Defaults() Tuning {
	return Tuning{
		SampleIntervalS:  0.1,
		VelocityEpsilonS: 1e-3,
		MinLogBytes:      1024,
		BuildOrderMax:    15,
		IndexStrideS:     1,
		Playback: Playback{
			MaxSpeed:     16,
			SendQueue:    32,
			WriteTimeout: 5000,
		},
	}
}

// Load reads a tuning file. Keys absent from the file keep their defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	switch {
	case t.SampleIntervalS <= 0:
		return fmt.Errorf("sample_interval_s must be > 0")
	case t.VelocityEpsilonS < 0:
		return fmt.Errorf("velocity_epsilon_s must be >= 0")
	case t.MinLogBytes < 0:
		return fmt.Errorf("min_log_bytes must be >= 0")
	case t.BuildOrderMax < 0:
		return fmt.Errorf("build_order_max must be >= 0")
	case t.IndexStrideS < t.SampleIntervalS:
		return fmt.Errorf("index_stride_s must be >= sample_interval_s")
	case t.Playback.MaxSpeed <= 0:
		return fmt.Errorf("playback.max_speed must be > 0")
	}
	return nil
}
