// Package seriesfile stores reconstructed timelines as zstd-compressed files:
// one JSON header line followed by a gob body. The header alone is enough to
// list a replay without decoding its snapshots.
package seriesfile

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"replayline.ai/internal/analysis"
	"replayline.ai/internal/timeline"
)

const (
	Version = 1
	Ext     = ".series.zst"
)

type Header struct {
	Version  int     `json:"version"`
	ReplayID string  `json:"replay_id"`
	MapName  string  `json:"map_name,omitempty"`
	Interval float64 `json:"interval"`
	Duration float64 `json:"duration"`
	Frames   int     `json:"frames"`

	ClassifierDigest string `json:"classifier_digest,omitempty"`
}

type FileV1 struct {
	Header      Header
	Series      timeline.Series
	Diagnostics timeline.Diagnostics
	Summary     analysis.Summary
}

// PathFor returns the series file path for replayID under dir.
func PathFor(dir, replayID string) string {
	return filepath.Join(dir, replayID+Ext)
}

// ReplayID strips the directory and extension from a series file path.
func ReplayID(path string) string {
	return strings.TrimSuffix(filepath.Base(path), Ext)
}

func Write(path string, f FileV1) (err error) {
	if f.Header.ReplayID == "" {
		return errors.New("seriesfile: missing replay id")
	}
	f.Header.Version = Version
	f.Header.Interval = f.Series.Interval
	f.Header.Duration = f.Series.Duration
	f.Header.Frames = len(f.Series.Snapshots)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	// Write to a sibling temp file so readers never see a partial series.
	tmp := path + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = out.Close()
			_ = os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(f.Header)
	if err != nil {
		return err
	}
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&f); err != nil {
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func Read(path string) (FileV1, error) {
	var f FileV1
	in, err := os.Open(path)
	if err != nil {
		return f, err
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return f, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)
	h, err := readHeader(br)
	if err != nil {
		return f, err
	}
	if err := gob.NewDecoder(br).Decode(&f); err != nil {
		return f, fmt.Errorf("gob decode: %w", err)
	}
	if f.Header != h {
		return f, fmt.Errorf("seriesfile: header line does not match body")
	}
	return f, nil
}

// ReadHeader decodes only the header line of a series file.
func ReadHeader(path string) (Header, error) {
	in, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer in.Close()

	dec, err := zstd.NewReader(in)
	if err != nil {
		return Header{}, err
	}
	defer dec.Close()
	return readHeader(bufio.NewReader(dec))
}

func readHeader(br *bufio.Reader) (Header, error) {
	var h Header
	line, err := br.ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("read header: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("decode header: %w", err)
	}
	if h.Version != Version {
		return h, fmt.Errorf("unsupported series version %d", h.Version)
	}
	return h, nil
}

// List returns the headers of every series file in dir, sorted by file name.
// Unreadable files are skipped.
func List(dir string) ([]Header, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+Ext))
	if err != nil {
		return nil, err
	}
	out := make([]Header, 0, len(matches))
	for _, p := range matches {
		h, err := ReadHeader(p)
		if err != nil {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}
