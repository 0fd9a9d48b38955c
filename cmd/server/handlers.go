package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"replayline.ai/internal/persistence/indexdb"
	"replayline.ai/internal/transport/playback"
)

func newMux(pb *playback.Server, idx *indexdb.SQLiteIndex, enablePprof bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		active, total := pb.Stats()

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP replayline_playback_connections Open playback connections.\n")
		fmt.Fprintf(rw, "# TYPE replayline_playback_connections gauge\n")
		fmt.Fprintf(rw, "replayline_playback_connections %d\n", active)
		fmt.Fprintf(rw, "# HELP replayline_playback_sessions_total Playback sessions accepted since start.\n")
		fmt.Fprintf(rw, "# TYPE replayline_playback_sessions_total counter\n")
		fmt.Fprintf(rw, "replayline_playback_sessions_total %d\n", total)
	})
	if idx != nil {
		mux.HandleFunc("/v1/index", func(rw http.ResponseWriter, r *http.Request) {
			limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
			rows, err := idx.ListReplays(r.Context(), limit)
			if err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(rw).Encode(map[string]any{"replays": rows})
		})
	}
	if enablePprof {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/replays", pb.ListHandler())
	mux.HandleFunc("/v1/replays/", pb.BootstrapHandler())
	mux.HandleFunc("/v1/ws", pb.WSHandler())
	return mux
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
