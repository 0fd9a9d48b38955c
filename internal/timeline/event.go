package timeline

import (
	"errors"
	"math"
)

// Event is one record of a replay log. The set of variants is closed; the
// builder dispatches on the concrete type.
type Event interface {
	EventTime() float64
	isEvent()
}

type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Created struct {
	EntityID  uint64
	TypeLabel string
	Owner     int
	Pos       Vec2
	Time      float64
}

type Destroyed struct {
	EntityID uint64
	Time     float64
}

type PositionUpdate struct {
	EntityID uint64
	Pos      Vec2
}

type PositionBatch struct {
	Updates []PositionUpdate
	Time    float64
}

// PlayerStats is a periodic economy/army sample for one player.
type PlayerStats struct {
	PlayerID int
	Time     float64

	MineralsCollectionRate float64
	VespeneCollectionRate  float64
	MineralsKilled         float64
	VespeneKilled          float64
	MineralsUsedArmy       float64
	VespeneUsedArmy        float64
}

// Action is a single player command or selection.
type Action struct {
	PlayerID int
	Time     float64
}

type Upgrade struct {
	PlayerID int
	Name     string
	Time     float64
}

// Malformed stands in for a log record that could not be decoded into one of
// the typed variants. It is always skipped.
type Malformed struct {
	Line   int
	Reason string
	Time   float64
}

func (e Created) EventTime() float64       { return e.Time }
func (e Destroyed) EventTime() float64     { return e.Time }
func (e PositionBatch) EventTime() float64 { return e.Time }
func (e PlayerStats) EventTime() float64   { return e.Time }
func (e Action) EventTime() float64        { return e.Time }
func (e Upgrade) EventTime() float64       { return e.Time }
func (e Malformed) EventTime() float64     { return e.Time }

func (Created) isEvent()       {}
func (Destroyed) isEvent()     {}
func (PositionBatch) isEvent() {}
func (PlayerStats) isEvent()   {}
func (Action) isEvent()        {}
func (Upgrade) isEvent()       {}
func (Malformed) isEvent()     {}

var (
	errMissingID    = errors.New("missing entity id")
	errMissingLabel = errors.New("missing type label")
	errBadTime      = errors.New("non-finite time")
	errBadPosition  = errors.New("non-finite position")
	errEmptyBatch   = errors.New("empty position batch")
)

// validateEvent reports whether ev carries every field the sweep needs.
func validateEvent(ev Event) error {
	if !finite(ev.EventTime()) {
		return errBadTime
	}
	switch e := ev.(type) {
	case Created:
		if e.EntityID == 0 {
			return errMissingID
		}
		if e.TypeLabel == "" {
			return errMissingLabel
		}
		if !finite(e.Pos.X) || !finite(e.Pos.Y) {
			return errBadPosition
		}
	case Destroyed:
		if e.EntityID == 0 {
			return errMissingID
		}
	case PositionBatch:
		if len(e.Updates) == 0 {
			return errEmptyBatch
		}
	case Malformed:
		if e.Reason == "" {
			return errors.New("malformed record")
		}
		return errors.New(e.Reason)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
