// Package analysis derives per-player summaries from a replay event log:
// economy and army statistics, actions per minute and the opening build
// order. It runs alongside the timeline builder over the same input.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"replayline.ai/internal/timeline"
)

const DefaultBuildOrderMax = 15

type GameInfo struct {
	Filename    string  `json:"filename"`
	MapName     string  `json:"map_name"`
	GameVersion string  `json:"game_version"`
	Duration    float64 `json:"duration"`
	PlayedAt    int64   `json:"played_at,omitempty"`
}

type PlayerSummary struct {
	PlayerID           int         `json:"pid"`
	Name               string      `json:"name"`
	Race               string      `json:"race"`
	Team               int         `json:"team"`
	Result             string      `json:"result"`
	APM                int         `json:"apm"`
	ResourcesCollected int         `json:"resources_collected"`
	UnitsKilled        int         `json:"units_killed"`
	ArmyValueMax       int         `json:"army_value_max"`
	BuildOrder         []BuildStep `json:"build_order"`
}

type BuildStep struct {
	ActionName    string `json:"action_name"`
	UnitType      string `json:"unit_type,omitempty"`
	Timestamp     int    `json:"timestamp"`
	OrderIndex    int    `json:"order_index"`
	FormattedTime string `json:"formatted_time"`
}

type Summary struct {
	Game    GameInfo        `json:"game_info"`
	Players []PlayerSummary `json:"players"`
}

type Options struct {
	BuildOrderMax int
	// Classifier, when set, keeps map decoration out of build orders.
	Classifier *timeline.Classifier
}

type statsAcc struct {
	minerals float64
	vespene  float64
	killed   float64
	army     float64
}

type playerAcc struct {
	actions int
	stats   statsAcc
	build   []BuildStep
}

// Summarize computes one PlayerSummary per participant, in input order.
func Summarize(game GameInfo, in timeline.Input, opts Options) Summary {
	if opts.BuildOrderMax <= 0 {
		opts.BuildOrderMax = DefaultBuildOrderMax
	}

	accs := map[int]*playerAcc{}
	for _, p := range in.Players {
		if p.IsParticipant() {
			accs[p.ID] = &playerAcc{}
		}
	}

	evs := append([]timeline.Event(nil), in.Events...)
	sort.SliceStable(evs, func(i, j int) bool { return evs[i].EventTime() < evs[j].EventTime() })

	for _, ev := range evs {
		switch e := ev.(type) {
		case timeline.Action:
			if a := accs[e.PlayerID]; a != nil {
				a.actions++
			}
		case timeline.PlayerStats:
			if a := accs[e.PlayerID]; a != nil {
				a.stats.observe(e)
			}
		case timeline.Created:
			a := accs[e.Owner]
			if a == nil {
				continue
			}
			if opts.Classifier != nil && !opts.Classifier.Classify(e.TypeLabel).Accepted {
				continue
			}
			a.addStep(opts.BuildOrderMax, "Build "+e.TypeLabel, e.TypeLabel, e.Time)
		case timeline.Upgrade:
			if a := accs[e.PlayerID]; a != nil {
				a.addStep(opts.BuildOrderMax, "Upgrade "+e.Name, "", e.Time)
			}
		}
	}

	minutes := game.Duration / 60
	if minutes <= 0 {
		minutes = 1
	}

	out := Summary{Game: game}
	for _, p := range in.Players {
		a := accs[p.ID]
		if a == nil {
			continue
		}
		accs[p.ID] = nil // duplicate player entries keep the first
		out.Players = append(out.Players, PlayerSummary{
			PlayerID:           p.ID,
			Name:               p.Name,
			Race:               p.Faction,
			Team:               p.Team,
			Result:             p.Result,
			APM:                int(float64(a.actions) / minutes),
			ResourcesCollected: int(a.stats.minerals + a.stats.vespene),
			UnitsKilled:        int(a.stats.killed),
			ArmyValueMax:       int(a.stats.army),
			BuildOrder:         a.build,
		})
	}
	return out
}

// observe folds one stats sample in. Collection totals are estimated from the
// instantaneous rate (per minute) times elapsed game time; every figure keeps
// its running maximum.
func (s *statsAcc) observe(e timeline.PlayerStats) {
	if e.Time > 0 {
		s.minerals = math.Max(s.minerals, e.MineralsCollectionRate*e.Time/60)
		s.vespene = math.Max(s.vespene, e.VespeneCollectionRate*e.Time/60)
	}
	s.killed = math.Max(s.killed, e.MineralsKilled+e.VespeneKilled)
	s.army = math.Max(s.army, e.MineralsUsedArmy+e.VespeneUsedArmy)
}

func (a *playerAcc) addStep(limit int, name, unitType string, t float64) {
	if len(a.build) >= limit {
		return
	}
	sec := int(t)
	if sec <= 0 {
		return
	}
	a.build = append(a.build, BuildStep{
		ActionName:    name,
		UnitType:      unitType,
		Timestamp:     sec,
		OrderIndex:    len(a.build) + 1,
		FormattedTime: FormatTimestamp(sec),
	})
}

// FormatTimestamp renders whole seconds as MM:SS.
func FormatTimestamp(sec int) string {
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}
