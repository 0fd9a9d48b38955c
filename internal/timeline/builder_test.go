package timeline

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func testClassifier() *Classifier {
	return NewClassifier(
		[]string{"MineralField", "VespeneGeyser", "Destructible"},
		[]string{"CommandCenter", "SupplyDepot", "Nexus", "Hatchery"},
	)
}

func testPlayers() []Player {
	return []Player{
		{ID: 1, Name: "alice", Faction: "Terran", Team: 1, Result: "Win"},
		{ID: 2, Name: "bob", Faction: "Zerg", Team: 2, Result: "Loss"},
		{ID: 3, Name: "watcher", Result: "Unknown"},
	}
}

func mustBuild(t *testing.T, in Input) Result {
	t.Helper()
	res, err := Build(in, DefaultConfig(testClassifier()))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return res
}

func TestBuild_MarineScenario(t *testing.T) {
	res := mustBuild(t, Input{
		Players:  testPlayers(),
		Duration: 0.6,
		Events: []Event{
			Created{EntityID: 1, TypeLabel: "Marine", Owner: 1, Pos: Vec2{0, 0}, Time: 0.0},
			PositionBatch{Updates: []PositionUpdate{{EntityID: 1, Pos: Vec2{1, 0}}}, Time: 0.2},
			Destroyed{EntityID: 1, Time: 0.5},
		},
	})
	s := res.Series
	if len(s.Snapshots) != 7 {
		t.Fatalf("len=%d want 7", len(s.Snapshots))
	}
	for i := 0; i < 7; i++ {
		r, ok := s.Roster(i, 1)
		if !ok {
			t.Fatalf("snapshot %d: missing roster for player 1", i)
		}
		if len(r.Stationary) != 0 {
			t.Fatalf("snapshot %d: marine classified stationary", i)
		}
		if i >= 5 {
			if len(r.Mobile) != 0 {
				t.Fatalf("snapshot %d: marine still present: %+v", i, r.Mobile)
			}
			continue
		}
		if len(r.Mobile) != 1 {
			t.Fatalf("snapshot %d: mobile=%d want 1", i, len(r.Mobile))
		}
		v := r.Mobile[0]
		wantVX, wantX := 0.0, 0.0
		if i >= 2 {
			wantVX, wantX = 5, 1
		}
		if math.Abs(v.VX-wantVX) > 1e-9 || v.VY != 0 || v.X != wantX {
			t.Fatalf("snapshot %d: got x=%v vx=%v vy=%v want x=%v vx=%v", i, v.X, v.VX, v.VY, wantX, wantVX)
		}
	}
}

func TestBuild_SeriesLengthAndTimestamps(t *testing.T) {
	for _, d := range []float64{0.05, 0.1, 0.3, 0.6, 1.0, 7.25, 600} {
		res := mustBuild(t, Input{
			Players:  testPlayers(),
			Duration: d,
			Events:   []Event{Action{PlayerID: 1, Time: 0}},
		})
		want := int(math.Floor(d/DefaultInterval+1e-9)) + 1
		if got := len(res.Series.Snapshots); got != want {
			t.Fatalf("duration=%v: len=%d want %d", d, got, want)
		}
		for i, s := range res.Series.Snapshots {
			if s.Timestamp != float64(i)*DefaultInterval {
				t.Fatalf("duration=%v: snapshot %d timestamp=%v", d, i, s.Timestamp)
			}
		}
	}
}

func TestBuild_CreateAndDestroyInSameBucketNeverVisible(t *testing.T) {
	res := mustBuild(t, Input{
		Players:  testPlayers(),
		Duration: 1,
		Events: []Event{
			Created{EntityID: 7, TypeLabel: "Zergling", Owner: 2, Time: 0.31},
			Destroyed{EntityID: 7, Time: 0.39},
		},
	})
	for i := range res.Series.Snapshots {
		if _, _, ok := res.Series.Find(i, 7); ok {
			t.Fatalf("entity 7 visible in snapshot %d", i)
		}
	}
}

func TestBuild_NeverDestroyedVisibleFromCreationBucket(t *testing.T) {
	res := mustBuild(t, Input{
		Players:  testPlayers(),
		Duration: 2,
		Events: []Event{
			Created{EntityID: 9, TypeLabel: "SupplyDepot", Owner: 1, Pos: Vec2{10, 12}, Time: 0.73},
		},
	})
	for i := range res.Series.Snapshots {
		v, owner, ok := res.Series.Find(i, 9)
		if i < 7 {
			if ok {
				t.Fatalf("entity visible before creation at snapshot %d", i)
			}
			continue
		}
		if !ok || owner != 1 {
			t.Fatalf("snapshot %d: ok=%v owner=%d", i, ok, owner)
		}
		if v.X != 10 || v.Y != 12 {
			t.Fatalf("snapshot %d: pos=(%v,%v)", i, v.X, v.Y)
		}
		r, _ := res.Series.Roster(i, 1)
		if len(r.Stationary) != 1 || len(r.Mobile) != 0 {
			t.Fatalf("snapshot %d: depot should be stationary: %+v", i, r)
		}
	}
}

func TestBuild_VelocityAfterOneUpdate(t *testing.T) {
	res := mustBuild(t, Input{
		Players:  testPlayers(),
		Duration: 3,
		Events: []Event{
			Created{EntityID: 4, TypeLabel: "Hellion", Owner: 1, Pos: Vec2{2, 2}, Time: 1.0},
			PositionBatch{Updates: []PositionUpdate{{EntityID: 4, Pos: Vec2{4, -1}}}, Time: 1.5},
		},
	})
	v, _, _ := res.Series.Find(10, 4)
	if v.VX != 0 || v.VY != 0 {
		t.Fatalf("creation bucket velocity=(%v,%v) want zero", v.VX, v.VY)
	}
	v, _, _ = res.Series.Find(15, 4)
	if math.Abs(v.VX-4) > 1e-9 || math.Abs(v.VY+6) > 1e-9 {
		t.Fatalf("velocity=(%v,%v) want (4,-6)", v.VX, v.VY)
	}
	// Held constant until the next sample.
	v, _, _ = res.Series.Find(30, 4)
	if v.X != 4 || v.Y != -1 || math.Abs(v.VX-4) > 1e-9 {
		t.Fatalf("held state mismatch: %+v", v)
	}
}

func TestBuild_Deterministic(t *testing.T) {
	in := Input{
		Players:  testPlayers(),
		Duration: 5,
		Events: []Event{
			Created{EntityID: 1, TypeLabel: "SCV", Owner: 1, Time: 0},
			Created{EntityID: 2, TypeLabel: "CommandCenter", Owner: 1, Pos: Vec2{5, 5}, Time: 0},
			Created{EntityID: 3, TypeLabel: "Drone", Owner: 2, Pos: Vec2{50, 50}, Time: 0},
			PositionBatch{Updates: []PositionUpdate{{1, Vec2{1, 1}}, {3, Vec2{49, 48}}}, Time: 1.2},
			Destroyed{EntityID: 3, Time: 3.3},
			PositionBatch{Updates: []PositionUpdate{{1, Vec2{2, 3}}}, Time: 2.0},
		},
	}
	a := mustBuild(t, in)
	b := mustBuild(t, in)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("replay not deterministic (-a +b):\n%s", diff)
	}
}

func TestBuild_UnorderedLogIsSorted(t *testing.T) {
	ordered := []Event{
		Created{EntityID: 1, TypeLabel: "Probe", Owner: 1, Time: 0.1},
		PositionBatch{Updates: []PositionUpdate{{1, Vec2{3, 0}}}, Time: 0.4},
		Destroyed{EntityID: 1, Time: 0.8},
	}
	shuffled := []Event{ordered[2], ordered[0], ordered[1]}

	a := mustBuild(t, Input{Players: testPlayers(), Duration: 1, Events: ordered})
	b := mustBuild(t, Input{Players: testPlayers(), Duration: 1, Events: shuffled})
	if diff := cmp.Diff(a.Series, b.Series); diff != "" {
		t.Fatalf("storage order changed output (-ordered +shuffled):\n%s", diff)
	}
}

func TestBuild_ObserversExcluded(t *testing.T) {
	res := mustBuild(t, Input{
		Players:  testPlayers(),
		Duration: 0.5,
		Events: []Event{
			Created{EntityID: 1, TypeLabel: "Marine", Owner: 3, Time: 0},
		},
	})
	if len(res.Series.Players) != 2 {
		t.Fatalf("players=%d want 2", len(res.Series.Players))
	}
	if res.Series.PlayerIndex(3) != -1 {
		t.Fatalf("observer must not have a roster")
	}
	for i, s := range res.Series.Snapshots {
		if len(s.Rosters) != 2 {
			t.Fatalf("snapshot %d rosters=%d", i, len(s.Rosters))
		}
	}
}

func TestBuild_Diagnostics(t *testing.T) {
	res := mustBuild(t, Input{
		Players:  testPlayers(),
		Duration: 1,
		Events: []Event{
			Created{EntityID: 1, TypeLabel: "MineralField750", Owner: 0, Time: 0},
			Created{EntityID: 2, TypeLabel: "Marine", Owner: 1, Time: 0},
			Created{EntityID: 2, TypeLabel: "Marauder", Owner: 1, Time: 0.2},
			Created{EntityID: 0, TypeLabel: "Marine", Owner: 1, Time: 0.2},
			Created{EntityID: 5, TypeLabel: "", Owner: 1, Time: 0.2},
			Destroyed{EntityID: 99, Time: 0.3},
			PositionBatch{Updates: []PositionUpdate{{1, Vec2{1, 1}}, {2, Vec2{1, 1}}}, Time: 0.4},
			PositionBatch{Time: 0.4},
			Created{EntityID: 3, TypeLabel: "Marine", Owner: 1, Time: 1.5},
			Created{EntityID: 4, TypeLabel: "Marine", Owner: 1, Time: -0.1},
			Malformed{Line: 12, Reason: "unmarshal: unexpected end of JSON input"},
		},
	})
	want := Diagnostics{
		Skipped:          8,
		Malformed:        4,
		OutOfRange:       2,
		UnknownDestroys:  1,
		UnknownUpdates:   1,
		Rejected:         1,
		DuplicateCreates: 1,
		ExcludedPlayers:  1,
	}
	if diff := cmp.Diff(want, res.Diagnostics); diff != "" {
		t.Fatalf("diagnostics mismatch (-want +got):\n%s", diff)
	}
	v, _, ok := res.Series.Find(5, 2)
	if !ok || v.TypeLabel != "Marine" {
		t.Fatalf("first creation should win: %+v ok=%v", v, ok)
	}
}

func TestBuild_InvalidInput(t *testing.T) {
	cases := []struct {
		name string
		in   Input
		cfg  Config
	}{
		{"empty log", Input{Duration: 10}, DefaultConfig(nil)},
		{"zero duration", Input{Duration: 0, Events: []Event{Action{}}}, DefaultConfig(nil)},
		{"negative duration", Input{Duration: -1, Events: []Event{Action{}}}, DefaultConfig(nil)},
		{"nan duration", Input{Duration: math.NaN(), Events: []Event{Action{}}}, DefaultConfig(nil)},
		{"zero interval", Input{Duration: 1, Events: []Event{Action{}}}, Config{}},
		{"huge duration", Input{Duration: 1e19, Events: []Event{Action{}}}, DefaultConfig(nil)},
		{"enormous duration", Input{Duration: 1e300, Events: []Event{Action{}}}, DefaultConfig(nil)},
		{"tiny interval", Input{Duration: 60, Events: []Event{Action{}}}, Config{Interval: 1e-12}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := Build(tc.in, tc.cfg)
			var te *Error
			if !errors.As(err, &te) || te.Kind != KindInvalidInput {
				t.Fatalf("err=%v want %s", err, KindInvalidInput)
			}
			if len(res.Series.Snapshots) != 0 {
				t.Fatalf("no snapshots expected on failure")
			}
		})
	}
}

func TestBuild_EventAtDurationLandsInLastBucket(t *testing.T) {
	res := mustBuild(t, Input{
		Players:  testPlayers(),
		Duration: 0.6,
		Events: []Event{
			Created{EntityID: 1, TypeLabel: "Marine", Owner: 1, Time: 0.6},
		},
	})
	last := len(res.Series.Snapshots) - 1
	if _, _, ok := res.Series.Find(last, 1); !ok {
		t.Fatalf("entity created at duration should appear in last snapshot")
	}
	if _, _, ok := res.Series.Find(last-1, 1); ok {
		t.Fatalf("entity should not appear before its bucket")
	}
}

func TestBuild_HeaderWithoutResultsHasNoRosters(t *testing.T) {
	res := mustBuild(t, Input{
		Players:  []Player{{ID: 1, Name: "a"}, {ID: 2, Name: "b"}},
		Duration: 1,
		Events:   []Event{Created{EntityID: 1, TypeLabel: "Marine", Owner: 1, Time: 0}},
	})
	if len(res.Series.Players) != 0 {
		t.Fatalf("players=%+v", res.Series.Players)
	}
	if res.Diagnostics.ExcludedPlayers != 2 {
		t.Fatalf("excluded=%d want 2", res.Diagnostics.ExcludedPlayers)
	}
}
