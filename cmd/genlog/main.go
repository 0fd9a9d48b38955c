// Command genlog writes synthetic replay event logs for testing the timeline
// tooling.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"replayline.ai/internal/persistence/eventlog"
	"replayline.ai/internal/synthetic"
)

func main() {
	var (
		outDir   = flag.String("o", ".", "output directory")
		count    = flag.Int("n", 1, "number of logs")
		duration = flag.Float64("duration", 300, "game length in seconds")
		seed     = flag.Int64("seed", 1, "seed of the first log; later logs use seed+i")
		plain    = flag.Bool("plain", false, "write uncompressed .jsonl")
	)
	flag.Parse()

	logger := log.New(os.Stderr, "[genlog] ", log.LstdFlags|log.Lmicroseconds)

	ext := ".jsonl.zst"
	if *plain {
		ext = ".jsonl"
	}
	for i := 0; i < *count; i++ {
		g := synthetic.Generate(synthetic.Options{Seed: *seed + int64(i), Duration: *duration})
		path := filepath.Join(*outDir, fmt.Sprintf("synthetic-%04d%s", i+1, ext))

		w, err := eventlog.Create(path, eventlog.Header(g.MapName, g.Duration, g.Players))
		if err != nil {
			logger.Fatalf("create %s: %v", path, err)
		}
		for _, ev := range g.Events {
			if err := w.WriteEvent(ev); err != nil {
				_ = w.Close()
				logger.Fatalf("write %s: %v", path, err)
			}
		}
		if err := w.Close(); err != nil {
			logger.Fatalf("close %s: %v", path, err)
		}
		logger.Printf("created %s (%d events)", path, len(g.Events))
	}
}
