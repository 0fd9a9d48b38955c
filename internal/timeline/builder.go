package timeline

import "sort"

type Config struct {
	Interval        float64
	VelocityEpsilon float64
	Classifier      *Classifier
}

func DefaultConfig(c *Classifier) Config {
	return Config{
		Interval:        DefaultInterval,
		VelocityEpsilon: DefaultVelocityEpsilon,
		Classifier:      c,
	}
}

// Input is a fully loaded replay: the participant list, the game length in
// seconds and the raw event log.
type Input struct {
	Players  []Player
	Duration float64
	Events   []Event
}

// Diagnostics counts anomalies absorbed during a build. Skipped counts whole
// events plus individual position updates that were dropped.
type Diagnostics struct {
	Skipped          int `json:"skipped"`
	Malformed        int `json:"malformed"`
	OutOfRange       int `json:"out_of_range"`
	UnknownDestroys  int `json:"unknown_destroys"`
	UnknownUpdates   int `json:"unknown_updates"`
	Rejected         int `json:"rejected"`
	DuplicateCreates int `json:"duplicate_creates"`

	// ExcludedPlayers are header players without a result (observers,
	// referees); they get no roster.
	ExcludedPlayers int `json:"excluded_players"`
}

type Result struct {
	Series      Series
	Diagnostics Diagnostics
}

type bucket struct {
	creates  []Created
	destroys []Destroyed
	batches  []PositionBatch
}

// Build reconstructs the fixed-rate series for in. The returned error is
// always a *Error of KindInvalidInput; per-event problems only show up in
// the diagnostics.
func Build(in Input, cfg Config) (Result, error) {
	if cfg.Interval <= 0 || !finite(cfg.Interval) {
		return Result{}, InvalidInput("sample interval must be positive, got %v", cfg.Interval)
	}
	if in.Duration <= 0 || !finite(in.Duration) {
		return Result{}, InvalidInput("duration must be positive, got %v", in.Duration)
	}
	if frames := in.Duration / cfg.Interval; frames >= MaxFrames {
		return Result{}, InvalidInput("duration %v exceeds %d samples at interval %v", in.Duration, MaxFrames, cfg.Interval)
	}
	if len(in.Events) == 0 {
		return Result{}, InvalidInput("event log is empty")
	}
	if cfg.Classifier == nil {
		cfg.Classifier = NewClassifier(nil, nil)
	}

	var diag Diagnostics
	n := SeriesLen(in.Duration, cfg.Interval)
	buckets := bucketize(in, cfg.Interval, n, &diag)

	players, index := participants(in.Players)
	diag.ExcludedPlayers = len(in.Players) - len(players)
	reg := NewRegistry(cfg.Classifier, cfg.VelocityEpsilon)
	snaps := make([]Snapshot, n)

	for b := 0; b < n; b++ {
		bk := &buckets[b]
		for _, c := range bk.creates {
			switch reg.Create(c.EntityID, c.TypeLabel, c.Owner, c.Pos, c.Time) {
			case CreateRejected:
				diag.Rejected++
			case CreateDuplicate:
				diag.DuplicateCreates++
			}
		}
		for _, d := range bk.destroys {
			if !reg.Destroy(d.EntityID) {
				diag.UnknownDestroys++
				diag.Skipped++
			}
		}
		for _, pb := range bk.batches {
			for _, u := range pb.Updates {
				if !finite(u.Pos.X) || !finite(u.Pos.Y) || !reg.UpdatePosition(u.EntityID, u.Pos, pb.Time) {
					diag.UnknownUpdates++
					diag.Skipped++
				}
			}
		}
		snaps[b] = assemble(reg, float64(b)*cfg.Interval, len(players), index)
	}

	return Result{
		Series: Series{
			Interval:  cfg.Interval,
			Duration:  in.Duration,
			Players:   players,
			Snapshots: snaps,
		},
		Diagnostics: diag,
	}, nil
}

// bucketize is the first pass: it validates, range-checks and time-orders the
// log, then files every lifecycle and position event under its bucket.
func bucketize(in Input, interval float64, n int, diag *Diagnostics) []bucket {
	evs := make([]Event, 0, len(in.Events))
	for _, ev := range in.Events {
		if err := validateEvent(ev); err != nil {
			diag.Malformed++
			diag.Skipped++
			continue
		}
		t := ev.EventTime()
		if t < 0 || t > in.Duration {
			diag.OutOfRange++
			diag.Skipped++
			continue
		}
		evs = append(evs, ev)
	}
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].EventTime() < evs[j].EventTime() })

	buckets := make([]bucket, n)
	for _, ev := range evs {
		b := bucketOf(ev.EventTime(), interval)
		b = max(0, min(b, n-1))
		switch e := ev.(type) {
		case Created:
			buckets[b].creates = append(buckets[b].creates, e)
		case Destroyed:
			buckets[b].destroys = append(buckets[b].destroys, e)
		case PositionBatch:
			buckets[b].batches = append(buckets[b].batches, e)
		}
	}
	return buckets
}

func assemble(reg *Registry, ts float64, nPlayers int, index map[int]int) Snapshot {
	rosters := make([]Roster, nPlayers)
	reg.Each(func(e *TrackedEntity) {
		pi, ok := index[e.Owner]
		if !ok {
			return
		}
		if e.Stationary {
			rosters[pi].Stationary = append(rosters[pi].Stationary, view(e))
		} else {
			rosters[pi].Mobile = append(rosters[pi].Mobile, view(e))
		}
	})
	return Snapshot{Timestamp: ts, Rosters: rosters}
}
