package seriesfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"replayline.ai/internal/analysis"
	"replayline.ai/internal/timeline"
)

func sampleFile(t *testing.T, id string) FileV1 {
	t.Helper()
	in := timeline.Input{
		Players: []timeline.Player{
			{ID: 1, Name: "alice", Faction: "Terran", Team: 1, Result: "Win"},
			{ID: 2, Name: "bob", Faction: "Zerg", Team: 2, Result: "Loss"},
		},
		Duration: 0.6,
		Events: []timeline.Event{
			timeline.Created{EntityID: 1, TypeLabel: "Marine", Owner: 1, Time: 0},
			timeline.Created{EntityID: 2, TypeLabel: "Hatchery", Owner: 2, Pos: timeline.Vec2{X: 40, Y: 40}, Time: 0.1},
			timeline.PositionBatch{Updates: []timeline.PositionUpdate{{EntityID: 1, Pos: timeline.Vec2{X: 1}}}, Time: 0.2},
			timeline.Destroyed{EntityID: 1, Time: 0.5},
		},
	}
	res, err := timeline.Build(in, timeline.DefaultConfig(timeline.NewClassifier(nil, []string{"Hatchery"})))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return FileV1{
		Header:      Header{ReplayID: id, MapName: "Alcyone LE"},
		Series:      res.Series,
		Diagnostics: res.Diagnostics,
		Summary:     analysis.Summarize(analysis.GameInfo{MapName: "Alcyone LE", Duration: 0.6}, in, analysis.Options{}),
	}
}

func TestWriteRead_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := sampleFile(t, "r1")
	path := PathFor(dir, "r1")
	if err := Write(path, f); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Header.Frames != 7 || got.Header.Interval != 0.1 || got.Header.Duration != 0.6 || got.Header.Version != Version {
		t.Fatalf("header=%+v", got.Header)
	}
	// gob does not distinguish nil from empty slices.
	opts := cmpopts.EquateEmpty()
	if diff := cmp.Diff(f.Series, got.Series, opts); diff != "" {
		t.Fatalf("series (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(f.Summary, got.Summary, opts); diff != "" {
		t.Fatalf("summary (-want +got):\n%s", diff)
	}
}

func TestReadHeaderAndList(t *testing.T) {
	dir := t.TempDir()
	for _, id := range []string{"b", "a"} {
		if err := Write(PathFor(dir, id), sampleFile(t, id)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "junk"+Ext), []byte("nope"), 0o644); err != nil {
		t.Fatalf("write junk: %v", err)
	}

	h, err := ReadHeader(PathFor(dir, "a"))
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if h.ReplayID != "a" || h.MapName != "Alcyone LE" {
		t.Fatalf("header=%+v", h)
	}

	hs, err := List(dir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var ids []string
	for _, h := range hs {
		ids = append(ids, h.ReplayID)
	}
	if diff := cmp.Diff([]string{"a", "b"}, ids); diff != "" {
		t.Fatalf("ids (-want +got):\n%s", diff)
	}
	if ReplayID(PathFor(dir, "a")) != "a" {
		t.Fatalf("ReplayID mismatch")
	}
}

func TestWrite_RequiresReplayID(t *testing.T) {
	if err := Write(filepath.Join(t.TempDir(), "x"+Ext), FileV1{}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestRead_NotZstd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad"+Ext)
	if err := os.WriteFile(path, []byte("plain text\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Read(path); err == nil {
		t.Fatalf("expected error")
	}
}
