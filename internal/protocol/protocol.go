package protocol

import "encoding/json"

// Version is the playback websocket protocol version.
const Version = "1.0"

// LogVersion is the event-log format version carried in the HEADER record.
const LogVersion = 1

// Event-log record types.
const (
	RecHeader        = "HEADER"
	RecUnitBorn      = "UNIT_BORN"
	RecUnitDied      = "UNIT_DIED"
	RecUnitPositions = "UNIT_POSITIONS"
	RecPlayerStats   = "PLAYER_STATS"
	RecCommand       = "COMMAND"
	RecUpgrade       = "UPGRADE"
)

// Playback message types.
const (
	TypeSubscribe = "SUBSCRIBE"
	TypeFrame     = "FRAME"
	TypeEnd       = "END"
	TypeError     = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
