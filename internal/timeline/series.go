package timeline

import "math"

// DefaultInterval is the sample spacing of a series, in seconds.
const DefaultInterval = 0.1

// MaxFrames bounds the length of a series.
const MaxFrames = 1 << 24

// bucketSlack absorbs binary rounding so that decimal multiples of the
// interval (0.3, 0.6, ...) land on their nominal bucket.
const bucketSlack = 1e-9

type Player struct {
	ID      int    `json:"pid"`
	Name    string `json:"name"`
	Faction string `json:"race"`
	Team    int    `json:"team"`
	Result  string `json:"result"`
}

// IsParticipant is false for observers and referees, whose result is unset.
func (p Player) IsParticipant() bool {
	return p.Result != "" && p.Result != "Unknown"
}

// EntityView is a value copy of an entity at one sample instant.
type EntityView struct {
	ID        uint64  `json:"id"`
	TypeLabel string  `json:"type"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	VX        float64 `json:"vx"`
	VY        float64 `json:"vy"`
}

type Roster struct {
	Mobile     []EntityView `json:"units"`
	Stationary []EntityView `json:"buildings"`
}

// Snapshot holds one roster per participant, indexed like Series.Players.
type Snapshot struct {
	Timestamp float64  `json:"timestamp"`
	Rosters   []Roster `json:"rosters"`
}

type Series struct {
	Interval  float64    `json:"interval"`
	Duration  float64    `json:"duration"`
	Players   []Player   `json:"players"`
	Snapshots []Snapshot `json:"snapshots"`
}

// SeriesLen is the number of samples covering [0, duration] inclusive.
func SeriesLen(duration, interval float64) int {
	return bucketOf(duration, interval) + 1
}

func bucketOf(t, interval float64) int {
	return int(math.Floor(t/interval + bucketSlack))
}

// PlayerIndex returns the roster index of player pid, or -1.
func (s *Series) PlayerIndex(pid int) int {
	for i, p := range s.Players {
		if p.ID == pid {
			return i
		}
	}
	return -1
}

// Roster returns pid's roster in snapshot i.
func (s *Series) Roster(i, pid int) (Roster, bool) {
	idx := s.PlayerIndex(pid)
	if idx < 0 || i < 0 || i >= len(s.Snapshots) {
		return Roster{}, false
	}
	return s.Snapshots[i].Rosters[idx], true
}

// At returns the latest snapshot whose timestamp is <= t.
func (s *Series) At(t float64) (Snapshot, bool) {
	if len(s.Snapshots) == 0 || t < 0 {
		return Snapshot{}, false
	}
	i := bucketOf(t, s.Interval)
	if i >= len(s.Snapshots) {
		i = len(s.Snapshots) - 1
	}
	return s.Snapshots[i], true
}

// Find looks up entity id across all rosters of snapshot i.
func (s *Series) Find(i int, id uint64) (EntityView, int, bool) {
	if i < 0 || i >= len(s.Snapshots) {
		return EntityView{}, 0, false
	}
	for pi, r := range s.Snapshots[i].Rosters {
		for _, v := range r.Mobile {
			if v.ID == id {
				return v, s.Players[pi].ID, true
			}
		}
		for _, v := range r.Stationary {
			if v.ID == id {
				return v, s.Players[pi].ID, true
			}
		}
	}
	return EntityView{}, 0, false
}

// participants builds the fixed roster table. Duplicate player ids keep the
// first entry.
func participants(players []Player) ([]Player, map[int]int) {
	out := make([]Player, 0, len(players))
	index := make(map[int]int, len(players))
	for _, p := range players {
		if !p.IsParticipant() {
			continue
		}
		if _, dup := index[p.ID]; dup {
			continue
		}
		index[p.ID] = len(out)
		out = append(out, p)
	}
	return out, index
}

func view(e *TrackedEntity) EntityView {
	return EntityView{
		ID:        e.ID,
		TypeLabel: e.TypeLabel,
		X:         e.Pos.X,
		Y:         e.Pos.Y,
		VX:        e.Vel.X,
		VY:        e.Vel.Y,
	}
}
