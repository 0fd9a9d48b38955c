package eventlog

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"replayline.ai/internal/protocol"
	"replayline.ai/internal/timeline"
)

// Log is a loaded replay event log.
type Log struct {
	Path   string
	Bytes  int64
	Header protocol.HeaderRecord
	Input  timeline.Input

	// Lines is the number of records read after the header.
	Lines int
}

// Load opens path (zstd-compressed when it ends in .zst) and decodes it.
// Structural failures (missing, unreadable, empty or implausibly small file,
// bad header) come back as *timeline.Error of KindInvalidInput. Individual
// bad records never fail the load; they are passed on as timeline.Malformed.
func Load(path string, minBytes int64) (*Log, error) {
	if strings.TrimSpace(path) == "" {
		return nil, timeline.InvalidInput("no event log path provided")
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, timeline.WrapInvalidInput(err, "event log not found: %s", path)
	}
	if st.IsDir() {
		return nil, timeline.InvalidInput("event log is a directory: %s", path)
	}
	if st.Size() == 0 {
		return nil, timeline.InvalidInput("event log is empty: %s", filepath.Base(path))
	}
	if st.Size() < minBytes {
		return nil, timeline.InvalidInput("event log appears to be corrupted (too small): %d bytes < %d", st.Size(), minBytes)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, timeline.WrapInvalidInput(err, "open event log")
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, timeline.WrapInvalidInput(err, "zstd reader")
		}
		defer dec.Close()
		r = dec
	}

	lg, err := Decode(r)
	if err != nil {
		return nil, err
	}
	lg.Path = path
	lg.Bytes = st.Size()
	return lg, nil
}

// Decode reads a JSONL event log from r.
func Decode(r io.Reader) (*Log, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	lg := &Log{}
	lineNo := 0
	haveHeader := false
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if !haveHeader {
			h, err := decodeHeader(line)
			if err != nil {
				return nil, timeline.WrapInvalidInput(err, "line %d: bad header", lineNo)
			}
			lg.Header = h
			lg.Input.Duration = h.Duration
			lg.Input.Players = players(h.Players)
			haveHeader = true
			continue
		}
		lg.Lines++
		lg.Input.Events = append(lg.Input.Events, decodeRecord(lineNo, line))
	}
	if err := sc.Err(); err != nil {
		return nil, timeline.WrapInvalidInput(err, "read event log")
	}
	if !haveHeader {
		return nil, timeline.InvalidInput("event log has no header")
	}
	return lg, nil
}

func decodeHeader(line []byte) (protocol.HeaderRecord, error) {
	var h protocol.HeaderRecord
	var raw any
	if err := json.Unmarshal(line, &raw); err != nil {
		return h, fmt.Errorf("unmarshal: %w", err)
	}
	if err := protocol.ValidateRecord(protocol.RecHeader, raw); err != nil {
		return h, err
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("unmarshal: %w", err)
	}
	if h.Version > protocol.LogVersion {
		return h, fmt.Errorf("unsupported log version %d", h.Version)
	}
	return h, nil
}

func decodeRecord(lineNo int, line []byte) timeline.Event {
	var raw any
	if err := json.Unmarshal(line, &raw); err != nil {
		return timeline.Malformed{Line: lineNo, Reason: "unmarshal: " + err.Error()}
	}
	obj, _ := raw.(map[string]any)
	typ, _ := obj["type"].(string)
	t, _ := obj["t"].(float64)
	if typ == "" {
		return timeline.Malformed{Line: lineNo, Reason: "missing record type", Time: t}
	}
	if err := protocol.ValidateRecord(typ, raw); err != nil {
		return timeline.Malformed{Line: lineNo, Reason: fmt.Sprintf("%s: %v", typ, err), Time: t}
	}

	ev, err := toEvent(typ, line)
	if err != nil {
		return timeline.Malformed{Line: lineNo, Reason: fmt.Sprintf("%s: %v", typ, err), Time: t}
	}
	return ev
}

func toEvent(typ string, line []byte) (timeline.Event, error) {
	switch typ {
	case protocol.RecUnitBorn:
		var r protocol.UnitBornRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, err
		}
		return timeline.Created{
			EntityID:  r.UnitID,
			TypeLabel: r.UnitType,
			Owner:     r.PID,
			Pos:       timeline.Vec2{X: r.X, Y: r.Y},
			Time:      r.T,
		}, nil
	case protocol.RecUnitDied:
		var r protocol.UnitDiedRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, err
		}
		return timeline.Destroyed{EntityID: r.UnitID, Time: r.T}, nil
	case protocol.RecUnitPositions:
		var r protocol.UnitPositionsRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, err
		}
		ups := make([]timeline.PositionUpdate, 0, len(r.Units))
		for _, u := range r.Units {
			ups = append(ups, timeline.PositionUpdate{EntityID: u.UnitID, Pos: timeline.Vec2{X: u.X, Y: u.Y}})
		}
		return timeline.PositionBatch{Updates: ups, Time: r.T}, nil
	case protocol.RecPlayerStats:
		var r protocol.PlayerStatsRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, err
		}
		return timeline.PlayerStats{
			PlayerID:               r.PID,
			Time:                   r.T,
			MineralsCollectionRate: r.MineralsCollectionRate,
			VespeneCollectionRate:  r.VespeneCollectionRate,
			MineralsKilled:         r.MineralsKilled,
			VespeneKilled:          r.VespeneKilled,
			MineralsUsedArmy:       r.MineralsUsedArmy,
			VespeneUsedArmy:        r.VespeneUsedArmy,
		}, nil
	case protocol.RecCommand:
		var r protocol.CommandRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, err
		}
		return timeline.Action{PlayerID: r.PID, Time: r.T}, nil
	case protocol.RecUpgrade:
		var r protocol.UpgradeRecord
		if err := json.Unmarshal(line, &r); err != nil {
			return nil, err
		}
		return timeline.Upgrade{PlayerID: r.PID, Name: r.Name, Time: r.T}, nil
	}
	return nil, fmt.Errorf("unhandled record type")
}

func players(in []protocol.PlayerRecord) []timeline.Player {
	out := make([]timeline.Player, 0, len(in))
	for _, p := range in {
		out = append(out, timeline.Player{
			ID:      p.PID,
			Name:    p.Name,
			Faction: p.Race,
			Team:    p.Team,
			Result:  p.Result,
		})
	}
	return out
}
