package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"

	"replayline.ai/internal/protocol"
	"replayline.ai/internal/timeline"
)

// Writer produces an event log. The header is written on creation; records
// follow one per line.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// Create opens path for writing, compressing with zstd when the name ends in
// .zst.
func Create(path string, h protocol.HeaderRecord) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	lw := &Writer{f: f}
	var sink io.Writer = f
	if strings.HasSuffix(path, ".zst") {
		enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			_ = f.Close()
			return nil, err
		}
		lw.enc = enc
		sink = enc
	}
	lw.w = bufio.NewWriterSize(sink, 128*1024)

	h.Type = protocol.RecHeader
	if h.Version == 0 {
		h.Version = protocol.LogVersion
	}
	if err := lw.Write(h); err != nil {
		_ = lw.Close()
		return nil, err
	}
	return lw, nil
}

// Write appends one JSON record.
func (w *Writer) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// WriteEvent encodes a typed event as its wire record.
func (w *Writer) WriteEvent(ev timeline.Event) error {
	rec, err := Record(ev)
	if err != nil {
		return err
	}
	return w.Write(rec)
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err1 error
	if w.w != nil {
		err1 = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		if err := w.enc.Close(); err1 == nil {
			err1 = err
		}
		w.enc = nil
	}
	if w.f != nil {
		if err := w.f.Close(); err1 == nil {
			err1 = err
		}
		w.f = nil
	}
	return err1
}

// Record maps a typed event back onto its wire form.
func Record(ev timeline.Event) (any, error) {
	switch e := ev.(type) {
	case timeline.Created:
		return protocol.UnitBornRecord{
			Type:     protocol.RecUnitBorn,
			T:        e.Time,
			UnitID:   e.EntityID,
			UnitType: e.TypeLabel,
			PID:      e.Owner,
			X:        e.Pos.X,
			Y:        e.Pos.Y,
		}, nil
	case timeline.Destroyed:
		return protocol.UnitDiedRecord{Type: protocol.RecUnitDied, T: e.Time, UnitID: e.EntityID}, nil
	case timeline.PositionBatch:
		units := make([]protocol.UnitPosition, 0, len(e.Updates))
		for _, u := range e.Updates {
			units = append(units, protocol.UnitPosition{UnitID: u.EntityID, X: u.Pos.X, Y: u.Pos.Y})
		}
		return protocol.UnitPositionsRecord{Type: protocol.RecUnitPositions, T: e.Time, Units: units}, nil
	case timeline.PlayerStats:
		return protocol.PlayerStatsRecord{
			Type:                   protocol.RecPlayerStats,
			T:                      e.Time,
			PID:                    e.PlayerID,
			MineralsCollectionRate: e.MineralsCollectionRate,
			VespeneCollectionRate:  e.VespeneCollectionRate,
			MineralsKilled:         e.MineralsKilled,
			VespeneKilled:          e.VespeneKilled,
			MineralsUsedArmy:       e.MineralsUsedArmy,
			VespeneUsedArmy:        e.VespeneUsedArmy,
		}, nil
	case timeline.Action:
		return protocol.CommandRecord{Type: protocol.RecCommand, T: e.Time, PID: e.PlayerID}, nil
	case timeline.Upgrade:
		return protocol.UpgradeRecord{Type: protocol.RecUpgrade, T: e.Time, PID: e.PlayerID, Name: e.Name}, nil
	}
	return nil, fmt.Errorf("eventlog: cannot encode %T", ev)
}

// Header builds the header record for a set of players.
func Header(mapName string, duration float64, ps []timeline.Player) protocol.HeaderRecord {
	h := protocol.HeaderRecord{
		Type:     protocol.RecHeader,
		Version:  protocol.LogVersion,
		MapName:  mapName,
		Duration: duration,
	}
	for _, p := range ps {
		h.Players = append(h.Players, protocol.PlayerRecord{
			PID:    p.ID,
			Name:   p.Name,
			Race:   p.Faction,
			Team:   p.Team,
			Result: p.Result,
		})
	}
	return h
}
