package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"replayline.ai/internal/analysis"
	"replayline.ai/internal/catalogs"
	"replayline.ai/internal/timeline"
	"replayline.ai/internal/tuning"
)

const schemaVersion = 1

var ErrClosed = errors.New("indexdb: closed")

// SQLiteIndex is a read model over analyzed replays. Series files remain the
// source of truth; the index can always be rebuilt from them.
type SQLiteIndex struct {
	db *sql.DB

	mu     sync.RWMutex
	ch     chan req
	wg     sync.WaitGroup
	closed bool
}

// req is one unit of work for the writer goroutine.
type req struct {
	do    func() error
	reply chan error
}

// ReplayRecord is everything indexed for one analyzed replay.
type ReplayRecord struct {
	Key        string
	SourcePath string
	SeriesPath string

	Game             analysis.GameInfo
	Series           *timeline.Series
	Diagnostics      timeline.Diagnostics
	Summary          analysis.Summary
	ClassifierDigest string

	// StrideS is the game-time spacing of stored snapshot rows. Zero or
	// negative stores none.
	StrideS float64
}

type replayRows struct {
	id        string
	key       string
	replay    []any
	players   [][]any
	steps     [][]any
	snapshots [][]any
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 64),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS replays (
			id TEXT PRIMARY KEY,
			replay_key TEXT NOT NULL UNIQUE,
			filename TEXT NOT NULL,
			source_path TEXT NOT NULL,
			series_path TEXT NOT NULL,
			map_name TEXT NOT NULL,
			game_version TEXT NOT NULL,
			duration REAL NOT NULL,
			played_at INTEGER NOT NULL,
			sample_interval REAL NOT NULL,
			frames INTEGER NOT NULL,
			classifier_digest TEXT NOT NULL,
			diagnostics_json TEXT NOT NULL,
			indexed_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS players (
			name TEXT PRIMARY KEY,
			last_race TEXT NOT NULL,
			last_seen_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS replay_players (
			replay_id TEXT NOT NULL REFERENCES replays(id) ON DELETE CASCADE,
			pid INTEGER NOT NULL,
			name TEXT NOT NULL REFERENCES players(name),
			race TEXT NOT NULL,
			team INTEGER NOT NULL,
			result TEXT NOT NULL,
			apm INTEGER NOT NULL,
			resources_collected INTEGER NOT NULL,
			units_killed INTEGER NOT NULL,
			army_value_max INTEGER NOT NULL,
			PRIMARY KEY (replay_id, pid)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_replay_players_name ON replay_players(name);`,
		`CREATE TABLE IF NOT EXISTS build_orders (
			replay_id TEXT NOT NULL REFERENCES replays(id) ON DELETE CASCADE,
			pid INTEGER NOT NULL,
			order_index INTEGER NOT NULL,
			action_name TEXT NOT NULL,
			unit_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			formatted_time TEXT NOT NULL,
			PRIMARY KEY (replay_id, pid, order_index)
		);`,
		`CREATE TABLE IF NOT EXISTS replay_snapshots (
			replay_id TEXT NOT NULL REFERENCES replays(id) ON DELETE CASCADE,
			second REAL NOT NULL,
			frame INTEGER NOT NULL,
			units INTEGER NOT NULL,
			buildings INTEGER NOT NULL,
			data_json TEXT NOT NULL,
			PRIMARY KEY (replay_id, frame)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	_, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version',?)`, strconv.Itoa(schemaVersion))
	return err
}

func (s *SQLiteIndex) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	s.wg.Wait()
	return s.db.Close()
}

// RecordReplay indexes one replay, replacing any earlier entry with the same
// key. It returns the new replay id.
func (s *SQLiteIndex) RecordReplay(ctx context.Context, rec ReplayRecord) (string, error) {
	if s == nil {
		return "", nil
	}
	rows, err := buildRows(rec)
	if err != nil {
		return "", err
	}
	if err := s.submit(ctx, func() error { return s.write(rows) }); err != nil {
		return "", err
	}
	return rows.id, nil
}

// submit hands fn to the writer goroutine and waits for its result.
func (s *SQLiteIndex) submit(ctx context.Context, fn func() error) error {
	r := req{do: fn, reply: make(chan error, 1)}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrClosed
	}
	select {
	case s.ch <- r:
	case <-ctx.Done():
		s.mu.RUnlock()
		return ctx.Err()
	}
	s.mu.RUnlock()

	select {
	case err := <-r.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func buildRows(rec ReplayRecord) (replayRows, error) {
	if rec.Key == "" {
		return replayRows{}, fmt.Errorf("indexdb: replay key required")
	}
	if rec.Series == nil {
		return replayRows{}, fmt.Errorf("indexdb: %s: no series", rec.Key)
	}
	diag, err := json.Marshal(rec.Diagnostics)
	if err != nil {
		return replayRows{}, err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	id := uuid.NewString()

	out := replayRows{id: id, key: rec.Key}
	out.replay = []any{
		id,
		rec.Key,
		rec.Game.Filename,
		rec.SourcePath,
		rec.SeriesPath,
		rec.Game.MapName,
		rec.Game.GameVersion,
		rec.Series.Duration,
		rec.Game.PlayedAt,
		rec.Series.Interval,
		len(rec.Series.Snapshots),
		rec.ClassifierDigest,
		string(diag),
		now,
	}
	for _, p := range rec.Summary.Players {
		out.players = append(out.players, []any{
			id, p.PlayerID, p.Name, p.Race, p.Team, p.Result,
			p.APM, p.ResourcesCollected, p.UnitsKilled, p.ArmyValueMax,
			now,
		})
		for _, st := range p.BuildOrder {
			out.steps = append(out.steps, []any{
				id, p.PlayerID, st.OrderIndex, st.ActionName, st.UnitType, st.Timestamp, st.FormattedTime,
			})
		}
	}
	for _, f := range strideFrames(rec.Series, rec.StrideS) {
		snap := rec.Series.Snapshots[f]
		doc := snapshotDoc{Timestamp: snap.Timestamp, Players: make(map[int]timeline.Roster, len(snap.Rosters))}
		units, buildings := 0, 0
		for i, r := range snap.Rosters {
			doc.Players[rec.Series.Players[i].ID] = r
			units += len(r.Mobile)
			buildings += len(r.Stationary)
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return replayRows{}, err
		}
		out.snapshots = append(out.snapshots, []any{id, snap.Timestamp, f, units, buildings, string(b)})
	}
	return out, nil
}

type snapshotDoc struct {
	Timestamp float64                 `json:"timestamp"`
	Players   map[int]timeline.Roster `json:"players"`
}

// strideFrames picks one frame index per stride of game time.
func strideFrames(s *timeline.Series, stride float64) []int {
	if stride <= 0 || len(s.Snapshots) == 0 || s.Interval <= 0 {
		return nil
	}
	step := int(stride/s.Interval + 1e-9)
	if step < 1 {
		step = 1
	}
	out := make([]int, 0, len(s.Snapshots)/step+1)
	for f := 0; f < len(s.Snapshots); f += step {
		out = append(out, f)
	}
	return out
}

// UpsertCatalogs stores the classifier tables and tuning a run applied, so
// indexed replays can be traced back to their configuration.
func (s *SQLiteIndex) UpsertCatalogs(cat *catalogs.ClassifierCatalog, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var rows []catalogRow
	if cat != nil {
		b, _ := json.Marshal(map[string]any{
			"deny_prefixes": cat.DenyPrefixes,
			"structures":    cat.Structures,
			"source":        cat.Source,
		})
		rows = append(rows, catalogRow{name: "classifier", digest: cat.Digest, json: b})
	}
	{
		b, _ := json.Marshal(tune)
		sum := sha256.Sum256(b)
		rows = append(rows, catalogRow{name: "tuning", digest: hex.EncodeToString(sum[:]), json: b})
	}

	return s.submit(context.Background(), func() error { return s.writeCatalogs(rows, now) })
}

type catalogRow struct {
	name   string
	digest string
	json   []byte
}

func (s *SQLiteIndex) writeCatalogs(rows []catalogRow, now string) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" || len(r.json) == 0 {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	for r := range s.ch {
		r.reply <- r.do()
	}
}

func (s *SQLiteIndex) write(rows replayRows) error {
	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM replays WHERE replay_key=?`, rows.key); err != nil {
		return fmt.Errorf("delete %s: %w", rows.key, err)
	}
	if _, err := tx.Exec(`INSERT INTO replays(id,replay_key,filename,source_path,series_path,map_name,game_version,duration,played_at,sample_interval,frames,classifier_digest,diagnostics_json,indexed_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`, rows.replay...); err != nil {
		return fmt.Errorf("insert replay %s: %w", rows.key, err)
	}

	upsertPlayer, err := tx.Prepare(`INSERT INTO players(name,last_race,last_seen_at) VALUES(?,?,?)
		ON CONFLICT(name) DO UPDATE SET last_race=excluded.last_race, last_seen_at=excluded.last_seen_at`)
	if err != nil {
		return err
	}
	defer upsertPlayer.Close()
	insertPlayer, err := tx.Prepare(`INSERT INTO replay_players(replay_id,pid,name,race,team,result,apm,resources_collected,units_killed,army_value_max) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insertPlayer.Close()
	for _, p := range rows.players {
		// p[2]=name p[3]=race p[10]=seen
		if _, err := upsertPlayer.Exec(p[2], p[3], p[10]); err != nil {
			return fmt.Errorf("upsert player: %w", err)
		}
		if _, err := insertPlayer.Exec(p[:10]...); err != nil {
			return fmt.Errorf("insert replay player: %w", err)
		}
	}

	insertStep, err := tx.Prepare(`INSERT INTO build_orders(replay_id,pid,order_index,action_name,unit_type,timestamp,formatted_time) VALUES(?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insertStep.Close()
	for _, st := range rows.steps {
		if _, err := insertStep.Exec(st...); err != nil {
			return fmt.Errorf("insert build order: %w", err)
		}
	}

	insertSnap, err := tx.Prepare(`INSERT INTO replay_snapshots(replay_id,second,frame,units,buildings,data_json) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer insertSnap.Close()
	for _, sn := range rows.snapshots {
		if _, err := insertSnap.Exec(sn...); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}
	return tx.Commit()
}

// ReplayRow is the listing view of an indexed replay.
type ReplayRow struct {
	ID         string  `json:"id"`
	Key        string  `json:"replay_key"`
	MapName    string  `json:"map_name"`
	Duration   float64 `json:"duration"`
	Frames     int     `json:"frames"`
	SeriesPath string  `json:"series_path"`
	Players    int     `json:"players"`
	IndexedAt  string  `json:"indexed_at"`
}

// ListReplays returns the most recently indexed replays first.
func (s *SQLiteIndex) ListReplays(ctx context.Context, limit int) ([]ReplayRow, error) {
	if limit <= 0 {
		limit = 100
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.replay_key, r.map_name, r.duration, r.frames, r.series_path, r.indexed_at,
			(SELECT COUNT(*) FROM replay_players p WHERE p.replay_id = r.id)
		FROM replays r
		ORDER BY r.indexed_at DESC, r.replay_key
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ReplayRow
	for rows.Next() {
		var r ReplayRow
		if err := rows.Scan(&r.ID, &r.Key, &r.MapName, &r.Duration, &r.Frames, &r.SeriesPath, &r.IndexedAt, &r.Players); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
