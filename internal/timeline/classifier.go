package timeline

import "strings"

// Classification is the verdict for one type label.
type Classification struct {
	Accepted   bool
	Stationary bool
}

// Classifier decides which entities are tracked and whether they are
// stationary infrastructure. It is immutable once built.
type Classifier struct {
	denyPrefixes []string
	stationary   map[string]struct{}
}

// NewClassifier builds a classifier from a denylist of label prefixes and the
// set of stationary structure labels (all factions merged).
func NewClassifier(denyPrefixes []string, stationary []string) *Classifier {
	c := &Classifier{
		denyPrefixes: make([]string, 0, len(denyPrefixes)),
		stationary:   make(map[string]struct{}, len(stationary)),
	}
	for _, p := range denyPrefixes {
		if p = strings.TrimSpace(p); p != "" {
			c.denyPrefixes = append(c.denyPrefixes, p)
		}
	}
	for _, s := range stationary {
		if s = strings.TrimSpace(s); s != "" {
			c.stationary[s] = struct{}{}
		}
	}
	return c
}

// Classify never fails: unknown labels that survive the denylist are mobile.
func (c *Classifier) Classify(label string) Classification {
	for _, p := range c.denyPrefixes {
		if strings.HasPrefix(label, p) {
			return Classification{}
		}
	}
	_, st := c.stationary[label]
	return Classification{Accepted: true, Stationary: st}
}
