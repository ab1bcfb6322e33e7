package log

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauspost/compress/zstd"

	"gathersim/internal/sim/world"
)

// ReadTickEntries decodes every journal entry under worldDir/events, oldest
// file first. Used by tooling and tests; the server never reads its own
// journal back.
func ReadTickEntries(worldDir string) ([]world.TickLogEntry, error) {
	dir := filepath.Join(worldDir, "events")
	matches, err := filepath.Glob(filepath.Join(dir, "events-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var out []world.TickLogEntry
	for _, path := range matches {
		entries, err := readFile(path)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
	}
	return out, nil
}

func readFile(path string) ([]world.TickLogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []world.TickLogEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var e world.TickLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
