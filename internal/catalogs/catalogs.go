package catalogs

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"replayline.ai/internal/timeline"
)

//go:embed classifier.default.yaml
var defaultClassifierYAML []byte

// ClassifierCatalog is the static table behind entity classification.
type ClassifierCatalog struct {
	DenyPrefixes []string            `yaml:"deny_prefixes"`
	Structures   map[string][]string `yaml:"structures"` // faction -> structure labels

	Digest string `yaml:"-"`
	Source string `yaml:"-"`
}

// Load reads <configDir>/classifier.yaml, falling back to the embedded
// defaults when the file does not exist.
func Load(configDir string) (*ClassifierCatalog, error) {
	path := filepath.Join(configDir, "classifier.yaml")
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default()
	}
	if err != nil {
		return nil, err
	}
	c, err := parse(raw)
	if err != nil {
		return nil, fmt.Errorf("classifier.yaml: %w", err)
	}
	c.Source = path
	return c, nil
}

func Default() (*ClassifierCatalog, error) {
	c, err := parse(defaultClassifierYAML)
	if err != nil {
		return nil, fmt.Errorf("embedded classifier: %w", err)
	}
	c.Source = "embedded"
	return c, nil
}

func parse(raw []byte) (*ClassifierCatalog, error) {
	var c ClassifierCatalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	for i, p := range c.DenyPrefixes {
		if strings.TrimSpace(p) == "" {
			return nil, fmt.Errorf("deny_prefixes[%d]: empty prefix", i)
		}
	}
	seen := map[string]string{}
	for faction, labels := range c.Structures {
		for _, l := range labels {
			if strings.TrimSpace(l) == "" {
				return nil, fmt.Errorf("structures.%s: empty label", faction)
			}
			if prev, ok := seen[l]; ok && prev != faction {
				return nil, fmt.Errorf("structure %q listed for both %s and %s", l, prev, faction)
			}
			seen[l] = faction
		}
	}
	c.Digest = sha256Hex(raw)
	return &c, nil
}

// Factions returns the faction names in sorted order.
func (c *ClassifierCatalog) Factions() []string {
	out := make([]string, 0, len(c.Structures))
	for f := range c.Structures {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// StationaryLabels flattens all factions' structures.
func (c *ClassifierCatalog) StationaryLabels() []string {
	var out []string
	for _, f := range c.Factions() {
		out = append(out, c.Structures[f]...)
	}
	return out
}

func (c *ClassifierCatalog) Classifier() *timeline.Classifier {
	return timeline.NewClassifier(c.DenyPrefixes, c.StationaryLabels())
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
