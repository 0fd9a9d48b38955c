package protocol

import "replayline.ai/internal/timeline"

// SUBSCRIBE (client -> server). First message on a playback connection; may be
// re-sent to seek or change speed.
type SubscribeMsg struct {
	Type            string  `json:"type"`
	ProtocolVersion string  `json:"protocol_version"`
	ReplayID        string  `json:"replay_id"`
	FromS           float64 `json:"from_s,omitempty"`
	Speed           float64 `json:"speed,omitempty"`
	Players         []int   `json:"players,omitempty"` // empty = all participants
}

// HTTP response for GET /v1/replays/{id}.
type BootstrapResponse struct {
	ProtocolVersion string            `json:"protocol_version"`
	ReplayID        string            `json:"replay_id"`
	MapName         string            `json:"map_name,omitempty"`
	Interval        float64           `json:"interval"`
	Duration        float64           `json:"duration"`
	Frames          int               `json:"frames"`
	Players         []timeline.Player `json:"players"`
}

// FRAME (server -> client). One per snapshot.
type FrameMsg struct {
	Type            string                  `json:"type"`
	ProtocolVersion string                  `json:"protocol_version"`
	Index           int                     `json:"index"`
	Timestamp       float64                 `json:"timestamp"`
	Players         map[int]timeline.Roster `json:"players"`
}

// END (server -> client) after the last frame.
type EndMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Frames          int    `json:"frames"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}
