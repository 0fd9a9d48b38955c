package playback

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"replayline.ai/internal/persistence/seriesfile"
)

var ErrNotFound = errors.New("replay not found")

// Source resolves replay ids to loaded series files. Returned files are
// shared between connections and must not be mutated.
type Source interface {
	Get(replayID string) (*seriesfile.FileV1, error)
	List() ([]seriesfile.Header, error)
}

// Library serves series files from a directory, keeping decoded files in
// memory after first use.
type Library struct {
	dir string

	mu    sync.Mutex
	cache map[string]*seriesfile.FileV1
}

func NewLibrary(dir string) *Library {
	return &Library{dir: dir, cache: map[string]*seriesfile.FileV1{}}
}

func (l *Library) Get(replayID string) (*seriesfile.FileV1, error) {
	if replayID == "" || strings.ContainsAny(replayID, `/\`) || strings.HasPrefix(replayID, ".") {
		return nil, ErrNotFound
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if f, ok := l.cache[replayID]; ok {
		return f, nil
	}
	f, err := seriesfile.Read(seriesfile.PathFor(l.dir, replayID))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", replayID, err)
	}
	l.cache[replayID] = &f
	return &f, nil
}

func (l *Library) List() ([]seriesfile.Header, error) {
	return seriesfile.List(l.dir)
}
