// Package synthetic generates plausible two-player event logs for demos,
// load tests and end-to-end tests of the timeline tooling.
package synthetic

import (
	"math"
	"math/rand"
	"sort"

	"replayline.ai/internal/timeline"
)

type Options struct {
	Seed     int64
	Duration float64 // seconds
	MapName  string
}

type Game struct {
	MapName  string
	Duration float64
	Players  []timeline.Player
	Events   []timeline.Event
}

type faction struct {
	name    string
	base    string
	worker  string
	army    []string
	builds  []string
	upgrade string
}

var factions = []faction{
	{"Terran", "CommandCenter", "SCV", []string{"Marine", "Marauder"}, []string{"SupplyDepot", "Barracks", "Refinery", "Factory"}, "Stimpack"},
	{"Protoss", "Nexus", "Probe", []string{"Zealot", "Stalker"}, []string{"Pylon", "Gateway", "Assimilator", "CyberneticsCore"}, "WarpGateResearch"},
}

type unit struct {
	id    uint64
	owner int
	pos   timeline.Vec2
	goal  timeline.Vec2
	speed float64
}

// Generate builds a game deterministically from opts.Seed. Events come out
// in time order.
func Generate(opts Options) Game {
	if opts.Duration <= 0 {
		opts.Duration = 300
	}
	if opts.MapName == "" {
		opts.MapName = "Synthetic LE"
	}
	rng := rand.New(rand.NewSource(opts.Seed))

	g := Game{
		MapName:  opts.MapName,
		Duration: opts.Duration,
		Players: []timeline.Player{
			{ID: 1, Name: "player1", Faction: factions[0].name, Team: 1, Result: "Win"},
			{ID: 2, Name: "player2", Faction: factions[1].name, Team: 2, Result: "Loss"},
			{ID: 16, Name: "observer", Team: 0},
		},
	}

	var (
		nextID uint64 = 1
		evs    []timeline.Event
		mobile []*unit
	)
	newID := func() uint64 {
		id := nextID
		nextID++
		return id
	}
	bases := []timeline.Vec2{{X: 30, Y: 30}, {X: 130, Y: 130}}

	// Neutral map decoration, rejected by the default classifier.
	for i := 0; i < 8; i++ {
		evs = append(evs, timeline.Created{
			EntityID:  newID(),
			TypeLabel: "MineralField",
			Pos:       timeline.Vec2{X: 20 + float64(i), Y: 22},
		})
	}

	spawn := func(pid int, label string, at timeline.Vec2, t float64, moves bool) {
		id := newID()
		evs = append(evs, timeline.Created{EntityID: id, TypeLabel: label, Owner: pid, Pos: at, Time: t})
		if moves {
			mobile = append(mobile, &unit{id: id, owner: pid, pos: at, goal: at, speed: 2 + rng.Float64()*2})
		}
	}

	for i, f := range factions {
		pid := i + 1
		spawn(pid, f.base, bases[i], 0, false)
		for w := 0; w < 12; w++ {
			spawn(pid, f.worker, jitter(rng, bases[i], 4), 0, true)
		}
		for k, b := range f.builds {
			t := 18 + float64(k)*25 + rng.Float64()*10
			if t < opts.Duration {
				spawn(pid, b, jitter(rng, bases[i], 10), round1(t), false)
			}
		}
		for t := 12.0; t < opts.Duration; t += 12 + rng.Float64()*6 {
			spawn(pid, f.worker, jitter(rng, bases[i], 4), round1(t), true)
		}
		for t := 90.0; t < opts.Duration; t += 8 + rng.Float64()*8 {
			spawn(pid, f.army[rng.Intn(len(f.army))], jitter(rng, bases[i], 8), round1(t), true)
		}
		if t := 140 + rng.Float64()*20; t < opts.Duration {
			evs = append(evs, timeline.Upgrade{PlayerID: pid, Name: f.upgrade, Time: round1(t)})
		}
		for t := 0.5; t < opts.Duration; t += 0.2 + rng.Float64()*0.8 {
			evs = append(evs, timeline.Action{PlayerID: pid, Time: round1(t)})
		}
		for t := 10.0; t <= opts.Duration; t += 10 {
			evs = append(evs, timeline.PlayerStats{
				PlayerID:               pid,
				Time:                   t,
				MineralsCollectionRate: math.Min(1800, 400+t*6),
				VespeneCollectionRate:  math.Max(0, math.Min(900, (t-60)*4)),
				MineralsKilled:         math.Max(0, (t-120)*3),
				VespeneKilled:          math.Max(0, (t-150)*1),
				MineralsUsedArmy:       math.Max(0, (t-90)*8),
				VespeneUsedArmy:        math.Max(0, (t-90)*2),
			})
		}
	}

	// Move units once per second; kill a few army units along the way.
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].EventTime() < evs[j].EventTime() })
	born := map[uint64]float64{}
	for _, ev := range evs {
		if c, ok := ev.(timeline.Created); ok {
			born[c.EntityID] = c.Time
		}
	}
	dead := map[uint64]bool{}
	for t := 1.0; t <= opts.Duration; t++ {
		var ups []timeline.PositionUpdate
		for _, u := range mobile {
			if dead[u.id] || born[u.id] >= t {
				continue
			}
			if dist(u.pos, u.goal) < 1 {
				u.goal = jitter(rng, bases[u.owner-1], 20)
			}
			u.pos = step(u.pos, u.goal, u.speed)
			ups = append(ups, timeline.PositionUpdate{EntityID: u.id, Pos: u.pos})
		}
		if len(ups) > 0 {
			evs = append(evs, timeline.PositionBatch{Updates: ups, Time: t})
		}
		if t > 120 && t+0.5 <= opts.Duration && rng.Intn(10) == 0 {
			if u := pickAlive(rng, mobile, dead, born, t); u != nil {
				dead[u.id] = true
				evs = append(evs, timeline.Destroyed{EntityID: u.id, Time: t + 0.5})
			}
		}
	}

	sort.SliceStable(evs, func(i, j int) bool { return evs[i].EventTime() < evs[j].EventTime() })
	g.Events = evs
	return g
}

func pickAlive(rng *rand.Rand, us []*unit, dead map[uint64]bool, born map[uint64]float64, t float64) *unit {
	var alive []*unit
	for _, u := range us {
		if !dead[u.id] && born[u.id] < t {
			alive = append(alive, u)
		}
	}
	if len(alive) == 0 {
		return nil
	}
	return alive[rng.Intn(len(alive))]
}

func jitter(rng *rand.Rand, p timeline.Vec2, r float64) timeline.Vec2 {
	return timeline.Vec2{
		X: round1(p.X + (rng.Float64()*2-1)*r),
		Y: round1(p.Y + (rng.Float64()*2-1)*r),
	}
}

func step(from, to timeline.Vec2, speed float64) timeline.Vec2 {
	d := dist(from, to)
	if d <= speed {
		return to
	}
	k := speed / d
	return timeline.Vec2{
		X: round1(from.X + (to.X-from.X)*k),
		Y: round1(from.Y + (to.Y-from.Y)*k),
	}
}

func dist(a, b timeline.Vec2) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
