package flow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// StreamInfo describes one output stream found on disk.
type StreamInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// TaskFacts is what the filesystem says about one task directory,
// independent of the manifest.
type TaskFacts struct {
	ID      string
	Dir     string
	HasDeck bool
	Streams []StreamInfo
}

// Stream returns the named stream's info and whether it exists.
func (tf *TaskFacts) Stream(name string) (StreamInfo, bool) {
	for _, s := range tf.Streams {
		if s.Name == name {
			return s, true
		}
	}
	return StreamInfo{}, false
}

// Walk discovers the task tree under workdir by listing directories rather
// than reading the manifest. It reports the deck and every output stream
// present with sizes and mtimes, in node order. Stray files and unrelated
// directories are ignored.
func Walk(workdir string) ([]TaskFacts, error) {
	workEntries, err := os.ReadDir(workdir)
	if err != nil {
		return nil, fmt.Errorf("failed to list flow directory: %w", err)
	}

	var facts []TaskFacts
	for _, we := range workEntries {
		wi, ok := dirIndex(we, "w")
		if !ok {
			continue
		}
		workDir := filepath.Join(workdir, we.Name())

		taskEntries, err := os.ReadDir(workDir)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", workDir, err)
		}
		for _, te := range taskEntries {
			ti, ok := dirIndex(te, "t")
			if !ok {
				continue
			}
			facts = append(facts, inspect(NodeID(wi, ti), filepath.Join(workDir, te.Name())))
		}
	}

	sort.Slice(facts, func(i, j int) bool {
		wi, ti, _ := ParseNodeID(facts[i].ID)
		wj, tj, _ := ParseNodeID(facts[j].ID)
		if wi != wj {
			return wi < wj
		}
		return ti < tj
	})
	return facts, nil
}

// dirIndex extracts the numeric index from a directory entry named
// <prefix><n>, rejecting files and other names.
func dirIndex(e os.DirEntry, prefix string) (int, bool) {
	if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(e.Name(), prefix))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// inspect stats the well-known files of one task directory.
func inspect(id, dir string) TaskFacts {
	tf := TaskFacts{ID: id, Dir: dir}

	if _, err := os.Stat(filepath.Join(dir, DeckFile)); err == nil {
		tf.HasDeck = true
	}
	for _, name := range []string{OutputFile, LogFile, ErrFile, ScriptFile} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			continue
		}
		tf.Streams = append(tf.Streams, StreamInfo{
			Name:    name,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return tf
}
