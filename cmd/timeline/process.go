package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"replayline.ai/internal/analysis"
	"replayline.ai/internal/catalogs"
	"replayline.ai/internal/persistence/eventlog"
	"replayline.ai/internal/persistence/indexdb"
	"replayline.ai/internal/persistence/seriesfile"
	"replayline.ai/internal/protocol"
	"replayline.ai/internal/timeline"
	"replayline.ai/internal/tuning"
)

// outcome is the per-log summary line printed to stdout.
type outcome struct {
	ReplayID    string               `json:"replay_id"`
	Source      string               `json:"source"`
	SeriesPath  string               `json:"series_path,omitempty"`
	IndexID     string               `json:"index_id,omitempty"`
	Frames      int                  `json:"frames"`
	Diagnostics timeline.Diagnostics `json:"diagnostics"`
	Summary     *analysis.Summary    `json:"summary,omitempty"`

	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

type pipeline struct {
	tune   tuning.Tuning
	cat    *catalogs.ClassifierCatalog
	outDir string
	idx    *indexdb.SQLiteIndex // nil when indexing is disabled
	logger *log.Logger

	classifier *timeline.Classifier
}

func newPipeline(tune tuning.Tuning, cat *catalogs.ClassifierCatalog, outDir string, idx *indexdb.SQLiteIndex, logger *log.Logger) *pipeline {
	return &pipeline{
		tune:       tune,
		cat:        cat,
		outDir:     outDir,
		idx:        idx,
		logger:     logger,
		classifier: cat.Classifier(),
	}
}

// run processes paths with at most workers in flight. Outcomes keep input
// order.
func (p *pipeline) run(ctx context.Context, paths []string, workers int) []outcome {
	if workers < 1 {
		workers = 1
	}
	out := make([]outcome, len(paths))
	ids, dups := assignReplayIDs(paths)
	for i, d := range dups {
		if d >= 0 {
			out[i] = failed(paths[i], ids[i], fmt.Errorf("duplicate input: same file as %s", paths[d]))
		}
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out[i] = p.process(ctx, paths[i], ids[i])
			}
		}()
	}
	for i := range paths {
		if dups[i] >= 0 {
			continue
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}
	close(jobs)
	wg.Wait()
	for i := range out {
		if out[i].Source == "" {
			out[i] = failed(paths[i], ids[i], ctx.Err())
		}
	}
	return out
}

func (p *pipeline) process(ctx context.Context, path, id string) outcome {
	if err := ctx.Err(); err != nil {
		return failed(path, id, err)
	}

	lg, err := eventlog.Load(path, p.tune.MinLogBytes)
	if err != nil {
		return failed(path, id, err)
	}
	cfg := timeline.Config{
		Interval:        p.tune.SampleIntervalS,
		VelocityEpsilon: p.tune.VelocityEpsilonS,
		Classifier:      p.classifier,
	}
	res, err := timeline.Build(lg.Input, cfg)
	if err != nil {
		return failed(path, id, err)
	}

	game := analysis.GameInfo{
		Filename:    filepath.Base(path),
		MapName:     lg.Header.MapName,
		GameVersion: lg.Header.GameVersion,
		Duration:    lg.Header.Duration,
		PlayedAt:    lg.Header.PlayedAt,
	}
	sum := analysis.Summarize(game, lg.Input, analysis.Options{
		BuildOrderMax: p.tune.BuildOrderMax,
		Classifier:    p.classifier,
	})

	o := outcome{
		ReplayID:    id,
		Source:      path,
		Frames:      len(res.Series.Snapshots),
		Diagnostics: res.Diagnostics,
		Summary:     &sum,
	}

	if p.outDir != "" {
		o.SeriesPath = seriesfile.PathFor(p.outDir, id)
		f := seriesfile.FileV1{
			Header: seriesfile.Header{
				ReplayID:         id,
				MapName:          lg.Header.MapName,
				ClassifierDigest: p.cat.Digest,
			},
			Series:      res.Series,
			Diagnostics: res.Diagnostics,
			Summary:     sum,
		}
		if err := seriesfile.Write(o.SeriesPath, f); err != nil {
			o.Code, o.Error = protocol.ErrInternal, "write series: "+err.Error()
			return o
		}
	}

	if p.idx != nil {
		rid, err := p.idx.RecordReplay(ctx, indexdb.ReplayRecord{
			Key:              id,
			SourcePath:       path,
			SeriesPath:       o.SeriesPath,
			Game:             game,
			Series:           &res.Series,
			Diagnostics:      res.Diagnostics,
			Summary:          sum,
			ClassifierDigest: p.cat.Digest,
			StrideS:          p.tune.IndexStrideS,
		})
		if err != nil {
			// The series file is already written; the index can be rebuilt.
			p.logger.Printf("index %s: %v", id, err)
		} else {
			o.IndexID = rid
		}
	}

	if len(res.Series.Players) == 0 {
		p.logger.Printf("%s: no participants (%d players without a result)", id, res.Diagnostics.ExcludedPlayers)
	}
	if d := res.Diagnostics; d.Skipped > 0 || d.Rejected > 0 {
		p.logger.Printf("%s: frames=%d skipped=%d malformed=%d rejected=%d", id, o.Frames, d.Skipped, d.Malformed, d.Rejected)
	}
	return o
}

func failed(path, id string, err error) outcome {
	o := outcome{ReplayID: id, Source: path, Code: protocol.ErrInternal}
	if err == nil {
		err = errors.New("not processed")
	}
	o.Error = err.Error()
	var te *timeline.Error
	if errors.As(err, &te) {
		o.Code = string(te.Kind)
	}
	return o
}

// replayIDFor derives a replay id from a log file name.
func replayIDFor(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{".jsonl.zst", ".jsonl"} {
		if strings.HasSuffix(base, ext) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// assignReplayIDs gives every path a distinct replay id. Logs sharing a file
// name in different directories get a short hash of their absolute path
// appended. dups[i] is the index of an earlier identical path, or -1.
func assignReplayIDs(paths []string) (ids []string, dups []int) {
	ids = make([]string, len(paths))
	dups = make([]int, len(paths))
	abs := make([]string, len(paths))
	byBase := map[string][]int{}
	seen := map[string]int{}
	for i, p := range paths {
		dups[i] = -1
		a, err := filepath.Abs(p)
		if err != nil {
			a = filepath.Clean(p)
		}
		abs[i] = a
		if j, ok := seen[a]; ok {
			dups[i] = j
			continue
		}
		seen[a] = i
		base := replayIDFor(p)
		byBase[base] = append(byBase[base], i)
	}
	for base, idx := range byBase {
		for _, i := range idx {
			ids[i] = base
			if len(idx) > 1 {
				sum := sha256.Sum256([]byte(abs[i]))
				ids[i] = base + "-" + hex.EncodeToString(sum[:4])
			}
		}
	}
	for i, d := range dups {
		if d >= 0 {
			ids[i] = ids[d]
		}
	}
	return ids, dups
}

// listEventLogs expands each argument: directories contribute their
// *.jsonl and *.jsonl.zst files (sorted), files are taken as is.
func listEventLogs(args []string) ([]string, error) {
	var out []string
	for _, a := range args {
		st, err := os.Stat(a)
		if err != nil {
			// Let the loader report it per file.
			out = append(out, a)
			continue
		}
		if !st.IsDir() {
			out = append(out, a)
			continue
		}
		ents, err := os.ReadDir(a)
		if err != nil {
			return nil, err
		}
		var names []string
		for _, e := range ents {
			if e.IsDir() {
				continue
			}
			name := e.Name()
			if strings.HasSuffix(name, ".jsonl") || strings.HasSuffix(name, ".jsonl.zst") {
				names = append(names, name)
			}
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, filepath.Join(a, name))
		}
	}
	return out, nil
}
