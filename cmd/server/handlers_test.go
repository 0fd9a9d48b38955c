package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/caarlos0/env/v11"

	"replayline.ai/internal/analysis"
	"replayline.ai/internal/persistence/indexdb"
	"replayline.ai/internal/timeline"
	"replayline.ai/internal/transport/playback"
	"replayline.ai/internal/tuning"
)

func TestMux_HealthMetricsIndex(t *testing.T) {
	dir := t.TempDir()
	idx, err := indexdb.OpenSQLite(filepath.Join(dir, "replays.sqlite"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	res, err := timeline.Build(timeline.Input{
		Players:  []timeline.Player{{ID: 1, Name: "a", Result: "Win"}},
		Duration: 1,
		Events:   []timeline.Event{timeline.Created{EntityID: 1, TypeLabel: "Probe", Owner: 1}},
	}, timeline.DefaultConfig(nil))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, err := idx.RecordReplay(context.Background(), indexdb.ReplayRecord{
		Key:     "k1",
		Game:    analysis.GameInfo{MapName: "m"},
		Series:  &res.Series,
		StrideS: 1,
	}); err != nil {
		t.Fatalf("RecordReplay: %v", err)
	}

	pb := playback.NewServer(playback.NewLibrary(dir), tuning.Defaults().Playback, log.New(io.Discard, "", 0))
	hs := httptest.NewServer(newMux(pb, idx, false))
	defer hs.Close()

	get := func(path string) (int, string) {
		t.Helper()
		resp, err := http.Get(hs.URL + path)
		if err != nil {
			t.Fatalf("get %s: %v", path, err)
		}
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	if code, body := get("/healthz"); code != 200 || body != "ok" {
		t.Fatalf("healthz: %d %q", code, body)
	}
	if code, body := get("/metrics"); code != 200 || !strings.Contains(body, "replayline_playback_connections 0") {
		t.Fatalf("metrics: %d %q", code, body)
	}
	if code, _ := get("/debug/pprof/"); code != http.StatusNotFound {
		t.Fatalf("pprof should be disabled, got %d", code)
	}

	code, body := get("/v1/index?limit=5")
	if code != 200 {
		t.Fatalf("index: %d %s", code, body)
	}
	var out struct {
		Replays []indexdb.ReplayRow `json:"replays"`
	}
	if err := json.Unmarshal([]byte(body), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Replays) != 1 || out.Replays[0].Key != "k1" || out.Replays[0].Frames != 11 {
		t.Fatalf("index=%+v", out.Replays)
	}

	if code, body := get("/v1/replays"); code != 200 || !strings.Contains(body, `"replays":[]`) {
		t.Fatalf("replays: %d %s", code, body)
	}
}

func TestMux_PprofWhenEnabled(t *testing.T) {
	t.Setenv("RL_DATA_DIR", "/srv/replays")
	t.Setenv("RL_ENABLE_PPROF_HTTP", "true")
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		t.Fatalf("env: %v", err)
	}
	if ec.DataDir != "/srv/replays" || !ec.EnablePprofHTTP {
		t.Fatalf("env=%+v", ec)
	}

	pb := playback.NewServer(playback.NewLibrary(t.TempDir()), tuning.Defaults().Playback, log.New(io.Discard, "", 0))
	hs := httptest.NewServer(newMux(pb, nil, ec.EnablePprofHTTP))
	defer hs.Close()

	resp, err := http.Get(hs.URL + "/debug/pprof/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("pprof status=%d", resp.StatusCode)
	}

	// No index database: the route is not registered.
	resp, err = http.Get(hs.URL + "/v1/index")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("index status=%d", resp.StatusCode)
	}
}
