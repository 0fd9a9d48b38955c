package protocol

// HEADER: first line of every event log.
type HeaderRecord struct {
	Type        string         `json:"type"`
	Version     int            `json:"version"`
	MapName     string         `json:"map_name,omitempty"`
	GameVersion string         `json:"game_version,omitempty"`
	Duration    float64        `json:"duration"`
	PlayedAt    int64          `json:"played_at,omitempty"`
	Players     []PlayerRecord `json:"players"`
}

type PlayerRecord struct {
	PID    int    `json:"pid"`
	Name   string `json:"name"`
	Race   string `json:"race,omitempty"`
	Team   int    `json:"team"`
	Result string `json:"result,omitempty"`
}

type UnitBornRecord struct {
	Type     string  `json:"type"`
	T        float64 `json:"t"`
	UnitID   uint64  `json:"unit_id"`
	UnitType string  `json:"unit_type"`
	PID      int     `json:"pid"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type UnitDiedRecord struct {
	Type   string  `json:"type"`
	T      float64 `json:"t"`
	UnitID uint64  `json:"unit_id"`
}

type UnitPositionsRecord struct {
	Type  string         `json:"type"`
	T     float64        `json:"t"`
	Units []UnitPosition `json:"units"`
}

type UnitPosition struct {
	UnitID uint64  `json:"unit_id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

type PlayerStatsRecord struct {
	Type string  `json:"type"`
	T    float64 `json:"t"`
	PID  int     `json:"pid"`

	MineralsCollectionRate float64 `json:"minerals_collection_rate"`
	VespeneCollectionRate  float64 `json:"vespene_collection_rate"`
	MineralsKilled         float64 `json:"minerals_killed"`
	VespeneKilled          float64 `json:"vespene_killed"`
	MineralsUsedArmy       float64 `json:"minerals_used_current_army"`
	VespeneUsedArmy        float64 `json:"vespene_used_current_army"`
}

type CommandRecord struct {
	Type string  `json:"type"`
	T    float64 `json:"t"`
	PID  int     `json:"pid"`
}

type UpgradeRecord struct {
	Type string  `json:"type"`
	T    float64 `json:"t"`
	PID  int     `json:"pid"`
	Name string  `json:"name"`
}
