package catalogs

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_ClassifiesSC2Labels(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if c.Digest == "" {
		t.Fatalf("missing digest")
	}
	if got := c.Factions(); len(got) != 3 || got[0] != "Protoss" || got[2] != "Zerg" {
		t.Fatalf("factions=%v", got)
	}

	cls := c.Classifier()
	for _, label := range []string{"MineralField750", "RichVespeneGeyser", "DestructibleDebris6x6", "XelNagaTower"} {
		if cls.Classify(label).Accepted {
			t.Fatalf("%s should be rejected", label)
		}
	}
	for _, label := range []string{"Nexus", "SupplyDepotLowered", "SpineCrawler", "FleetBeacon"} {
		if got := cls.Classify(label); !got.Accepted || !got.Stationary {
			t.Fatalf("%s: %+v want accepted stationary", label, got)
		}
	}
	for _, label := range []string{"Marine", "Probe", "Overlord", "SiegeTank"} {
		if got := cls.Classify(label); !got.Accepted || got.Stationary {
			t.Fatalf("%s: %+v want accepted mobile", label, got)
		}
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	raw := []byte("deny_prefixes: [Tree]\nstructures:\n  Elves: [Hut]\n")
	if err := os.WriteFile(filepath.Join(dir, "classifier.yaml"), raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cls := c.Classifier()
	if cls.Classify("TreeOak").Accepted {
		t.Fatalf("Tree prefix not applied")
	}
	if !cls.Classify("MineralField").Accepted {
		t.Fatalf("defaults should be fully replaced by the file")
	}
	if got := cls.Classify("Hut"); !got.Stationary {
		t.Fatalf("Hut: %+v want stationary", got)
	}
}

func TestLoad_MissingFileUsesEmbedded(t *testing.T) {
	c, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Source != "embedded" {
		t.Fatalf("source=%q", c.Source)
	}
}

func TestLoad_RejectsConflictingStructures(t *testing.T) {
	dir := t.TempDir()
	raw := []byte("structures:\n  A: [Tower]\n  B: [Tower]\n")
	if err := os.WriteFile(filepath.Join(dir, "classifier.yaml"), raw, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("expected error for structure listed under two factions")
	}
}
