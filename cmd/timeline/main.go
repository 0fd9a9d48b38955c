// Command timeline reconstructs fixed-rate timelines from replay event logs,
// writes them as series files and indexes the results.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/caarlos0/env/v11"

	"replayline.ai/internal/catalogs"
	"replayline.ai/internal/persistence/indexdb"
	"replayline.ai/internal/tuning"
)

// envConfig holds settings taken from the environment. Flags override them.
type envConfig struct {
	DataDir string `env:"RL_DATA_DIR" envDefault:"./data"`
	Workers int    `env:"RL_WORKERS" envDefault:"4"`
}

func main() {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		fmt.Fprintln(os.Stderr, "environment:", err)
		os.Exit(2)
	}

	var (
		events     = flag.String("events", "", "event log file or directory (comma separated; positional args also accepted)")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir    = flag.String("data", ec.DataDir, "runtime data directory (env RL_DATA_DIR)")
		outDir     = flag.String("out", "", "series output directory (default: <data>/series; \"-\" to skip writing)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite replay index")
		workers    = flag.Int("workers", ec.Workers, "logs processed concurrently (env RL_WORKERS)")
		summary    = flag.Bool("summary", true, "include per-player summaries in the output lines")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[timeline] ", log.LstdFlags|log.Lmicroseconds)

	var args []string
	for _, s := range strings.Split(*events, ",") {
		if s = strings.TrimSpace(s); s != "" {
			args = append(args, s)
		}
	}
	args = append(args, flag.Args()...)
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "missing -events")
		os.Exit(2)
	}

	cat, err := catalogs.Load(*configDir)
	if err != nil {
		logger.Fatalf("load catalogs: %v", err)
	}

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", tp)
		tune = tuning.Defaults()
	}

	od := strings.TrimSpace(*outDir)
	switch od {
	case "":
		od = filepath.Join(*dataDir, "series")
	case "-":
		od = ""
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index", "replays.sqlite"))
		if err != nil {
			logger.Fatalf("open index: %v", err)
		}
		defer idx.Close()
		if err := idx.UpsertCatalogs(cat, tune); err != nil {
			logger.Printf("index catalogs: %v", err)
		}
	}

	paths, err := listEventLogs(args)
	if err != nil {
		logger.Fatalf("list events: %v", err)
	}
	if len(paths) == 0 {
		logger.Fatalf("no event logs found in %s", strings.Join(args, ", "))
	}

	ctx, cancel := signalContext()
	defer cancel()

	logger.Printf("processing %d logs (workers=%d classifier=%s)", len(paths), *workers, cat.Source)
	p := newPipeline(tune, cat, od, idx, logger)
	results := p.run(ctx, paths, *workers)

	enc := json.NewEncoder(os.Stdout)
	failures := 0
	for _, o := range results {
		if o.Error != "" {
			failures++
		}
		if !*summary {
			o.Summary = nil
		}
		_ = enc.Encode(o)
	}
	logger.Printf("done: %d ok, %d failed", len(results)-failures, failures)
	if failures > 0 {
		if idx != nil {
			_ = idx.Close()
		}
		os.Exit(1)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
