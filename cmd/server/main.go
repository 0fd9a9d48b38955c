// Command server streams reconstructed replay timelines to websocket viewers.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"replayline.ai/internal/persistence/indexdb"
	"replayline.ai/internal/transport/playback"
	"replayline.ai/internal/tuning"
)

type envConfig struct {
	DataDir         string `env:"RL_DATA_DIR" envDefault:"./data"`
	EnablePprofHTTP bool   `env:"RL_ENABLE_PPROF_HTTP" envDefault:"false"`
	AllowRemote     bool   `env:"RL_ALLOW_REMOTE" envDefault:"false"`
}

func main() {
	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		log.Fatalf("environment: %v", err)
	}

	var (
		addr        = flag.String("addr", ":8080", "http listen address")
		configDir   = flag.String("configs", "./configs", "config directory")
		tuningPath  = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		dataDir     = flag.String("data", ec.DataDir, "runtime data directory (env RL_DATA_DIR)")
		seriesDir   = flag.String("series", "", "series directory (default: <data>/series)")
		disableDB   = flag.Bool("disable_db", false, "do not open the sqlite replay index")
		allowRemote = flag.Bool("allow_remote", ec.AllowRemote, "serve non-loopback clients (env RL_ALLOW_REMOTE)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

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

	sd := strings.TrimSpace(*seriesDir)
	if sd == "" {
		sd = filepath.Join(*dataDir, "series")
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		dbPath := filepath.Join(*dataDir, "index", "replays.sqlite")
		if _, err := os.Stat(dbPath); err == nil {
			idx, err = indexdb.OpenSQLite(dbPath)
			if err != nil {
				logger.Fatalf("open index: %v", err)
			}
			defer idx.Close()
		} else {
			logger.Printf("index not found (%s); /v1/index disabled", dbPath)
		}
	}

	pb := playback.NewServer(playback.NewLibrary(sd), tune.Playback, logger)
	pb.AllowRemote = *allowRemote

	enablePprofHTTP := ec.EnablePprofHTTP
	mux := newMux(pb, idx, enablePprofHTTP)
	if !enablePprofHTTP {
		logger.Printf("pprof endpoints disabled (RL_ENABLE_PPROF_HTTP=false)")
	}

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := signalContext()
	defer cancel()
	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("serving %s on %s", sd, *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}
