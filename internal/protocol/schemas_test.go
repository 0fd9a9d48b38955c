package protocol_test

import (
	"encoding/json"
	"testing"

	"replayline.ai/internal/protocol"
)

func TestValidateRecord_Samples(t *testing.T) {
	decode := func(s string) any {
		t.Helper()
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return v
	}

	good := map[string]string{
		protocol.RecHeader: `{
		  "type":"HEADER","version":1,"map_name":"Alcyone LE","game_version":"5.0.13",
		  "duration":612.5,"played_at":1717000000,
		  "players":[{"pid":1,"name":"alice","race":"Terran","team":1,"result":"Win"}]
		}`,
		protocol.RecUnitBorn:      `{"type":"UNIT_BORN","t":1.5,"unit_id":42,"unit_type":"Marine","pid":1,"x":10,"y":20.5}`,
		protocol.RecUnitDied:      `{"type":"UNIT_DIED","t":3,"unit_id":42}`,
		protocol.RecUnitPositions: `{"type":"UNIT_POSITIONS","t":2,"units":[{"unit_id":42,"x":11,"y":20}]}`,
		protocol.RecPlayerStats:   `{"type":"PLAYER_STATS","t":10,"pid":1,"minerals_collection_rate":500}`,
		protocol.RecCommand:       `{"type":"COMMAND","t":0.4,"pid":2}`,
		protocol.RecUpgrade:       `{"type":"UPGRADE","t":300,"pid":2,"name":"Stimpack"}`,
	}
	for typ, raw := range good {
		if err := protocol.ValidateRecord(typ, decode(raw)); err != nil {
			t.Fatalf("%s: %v", typ, err)
		}
	}

	bad := map[string]string{
		protocol.RecUnitBorn:      `{"type":"UNIT_BORN","t":1.5,"unit_id":42,"pid":1,"x":10,"y":20}`,
		protocol.RecUnitDied:      `{"type":"UNIT_DIED","unit_id":42}`,
		protocol.RecUnitPositions: `{"type":"UNIT_POSITIONS","t":2,"units":[]}`,
		protocol.RecUpgrade:       `{"type":"UPGRADE","t":300,"pid":2,"name":""}`,
		protocol.RecHeader:        `{"type":"HEADER","version":0,"duration":1,"players":[]}`,
	}
	for typ, raw := range bad {
		if err := protocol.ValidateRecord(typ, decode(raw)); err == nil {
			t.Fatalf("%s: expected validation error", typ)
		}
	}

	if err := protocol.ValidateRecord("NOPE", decode(`{}`)); err == nil {
		t.Fatalf("unknown record type should fail")
	}
}
