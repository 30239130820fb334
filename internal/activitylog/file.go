package activitylog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"
)

const (
	defaultMaxBytes   = int64(4 << 20) // 4 MiB
	defaultMaxBackups = 3

	activeSegment = "events.jsonl"
	maxListLimit  = 1000
)

type FileOptions struct {
	Logger *slog.Logger
	// StateDir is the agent state directory; segments go to <StateDir>/activity.
	StateDir string

	// MaxBytes is the size at which the active segment is rotated.
	// If <= 0, a safe default is used.
	MaxBytes int64
	// MaxBackups is the number of rotated segments kept. If <= 0, a safe
	// default is used.
	MaxBackups int
}

// FileWriter mirrors entries into size-rotated JSONL segments. The active
// segment stays open between writes.
type FileWriter struct {
	log *slog.Logger

	dir        string
	maxBytes   int64
	maxBackups int

	mu   sync.Mutex
	f    *os.File
	size int64
}

func NewFileWriter(opts FileOptions) (*FileWriter, error) {
	stateDir := strings.TrimSpace(opts.StateDir)
	if stateDir == "" {
		return nil, errors.New("missing StateDir")
	}
	w := &FileWriter{
		log:        opts.Logger,
		dir:        filepath.Join(stateDir, "activity"),
		maxBytes:   opts.MaxBytes,
		maxBackups: opts.MaxBackups,
	}
	if w.log == nil {
		w.log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	if w.maxBytes <= 0 {
		w.maxBytes = defaultMaxBytes
	}
	if w.maxBackups <= 0 {
		w.maxBackups = defaultMaxBackups
	}
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.openActiveLocked(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *FileWriter) activePath() string { return filepath.Join(w.dir, activeSegment) }

func (w *FileWriter) openActiveLocked() error {
	f, err := os.OpenFile(w.activePath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.size = st.Size()
	return nil
}

func (w *FileWriter) Write(_ context.Context, e Entry) error {
	if w == nil {
		return errors.New("nil file writer")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	line, err := json.Marshal(&e)
	if err != nil {
		return err
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.f == nil {
		if err := w.openActiveLocked(); err != nil {
			return err
		}
	}
	// A single oversized entry still lands in an empty segment.
	if w.size > 0 && w.size+int64(len(line)) > w.maxBytes {
		if err := w.rotateLocked(); err != nil {
			w.log.Warn("activity log rotate failed", "error", err)
		}
	}
	n, err := w.f.Write(line)
	w.size += int64(n)
	return err
}

func (w *FileWriter) rotateLocked() error {
	if err := w.f.Close(); err != nil {
		w.log.Warn("activity log close failed", "error", err)
	}
	w.f = nil

	dst := filepath.Join(w.dir, fmt.Sprintf("events-%020d.jsonl", time.Now().UnixNano()))
	renameErr := os.Rename(w.activePath(), dst)
	if err := w.openActiveLocked(); err != nil {
		return err
	}
	if renameErr != nil {
		return renameErr
	}

	rotated, err := w.rotatedLocked()
	if err != nil {
		return err
	}
	if extra := len(rotated) - w.maxBackups; extra > 0 {
		for _, name := range rotated[:extra] {
			_ = os.Remove(filepath.Join(w.dir, name))
		}
	}
	return nil
}

// rotatedLocked returns rotated segment names, oldest first. The zero-padded
// timestamp makes lexical order chronological.
func (w *FileWriter) rotatedLocked() ([]string, error) {
	ents, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, ent := range ents {
		name := ent.Name()
		if ent.IsDir() || name == activeSegment {
			continue
		}
		if strings.HasPrefix(name, "events-") && strings.HasSuffix(name, ".jsonl") {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out, nil
}

// List returns up to limit entries, newest first. A non-empty ownerID keeps
// only that owner's entries.
func (w *FileWriter) List(ownerID string, limit int) ([]Entry, error) {
	if w == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 200
	}
	limit = min(limit, maxListLimit)
	ownerID = strings.TrimSpace(ownerID)

	w.mu.Lock()
	rotated, err := w.rotatedLocked()
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}
	segments := []string{w.activePath()}
	for i := len(rotated) - 1; i >= 0; i-- {
		segments = append(segments, filepath.Join(w.dir, rotated[i]))
	}

	out := make([]Entry, 0, limit)
	for _, path := range segments {
		entries, err := readSegment(path, ownerID)
		if err != nil {
			w.log.Warn("activity log read failed", "path", path, "error", err)
			continue
		}
		for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
			out = append(out, entries[i])
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close releases the active segment. Later writes reopen it.
func (w *FileWriter) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f == nil {
		return nil
	}
	err := w.f.Close()
	w.f = nil
	return err
}

// readSegment returns a segment's entries in write order. Unparseable lines
// are skipped; a segment pruned mid-read is treated as empty.
func readSegment(path string, ownerID string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var entries []Entry
	for sc.Scan() {
		line := sc.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		if ownerID != "" && e.OwnerID != ownerID {
			continue
		}
		entries = append(entries, e)
	}
	return entries, sc.Err()
}
