package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// RotatingWriter is an io.Writer that rotates its backing file once it
// crosses maxSize, keeping at most maxFiles rotated generations
// (path.1 is newest, path.N is oldest; anything past maxFiles is
// deleted). It backs every vecthornctl log file: the CLI's own
// activity log and, when a caller wires it in, a migration sweep's
// progress log.
type RotatingWriter struct {
	path     string
	maxSize  int64
	maxFiles int

	mu            sync.Mutex
	file          *os.File
	written       int64
	immediateSync bool
}

// NewRotatingWriter opens (creating if absent) the log file at path,
// rotating once writes would cross maxSizeMB. Immediate sync is on by
// default.
func NewRotatingWriter(path string, maxSizeMB, maxFiles int) (*RotatingWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	w := &RotatingWriter{
		path:          path,
		maxSize:       int64(maxSizeMB) * 1024 * 1024,
		maxFiles:      maxFiles,
		immediateSync: true,
	}
	if err := w.openFile(); err != nil {
		return nil, err
	}
	return w, nil
}

// SetImmediateSync toggles whether Write fsyncs after every call.
func (w *RotatingWriter) SetImmediateSync(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.immediateSync = enabled
}

// Write implements io.Writer, rotating first if p would overflow the
// current file. A rotation failure is logged to stderr and swallowed:
// the write still lands in the (oversized) current file rather than
// being dropped.
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.written+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	if w.immediateSync && err == nil {
		_ = w.file.Sync()
	}
	return n, err
}

// Close closes the underlying file.
func (w *RotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Close()
}

// Sync flushes the underlying file to disk.
func (w *RotatingWriter) Sync() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.file.Sync()
}

func (w *RotatingWriter) openFile() error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	w.file = f
	w.written = info.Size()
	return nil
}

// generation is one rotated file, path.N. Generations are handled
// oldest (highest N) first so shifting can proceed without clobbering
// a not-yet-moved neighbor.
type generation struct {
	path string
	num  int
}

// rotatedGenerations lists a rotating writer's path.N siblings,
// oldest (highest num) first.
func rotatedGenerations(path string) ([]generation, error) {
	matches, err := filepath.Glob(path + ".*")
	if err != nil {
		return nil, fmt.Errorf("failed to find rotated files: %w", err)
	}

	base := filepath.Base(path)
	gens := make([]generation, 0, len(matches))
	for _, m := range matches {
		suffix := strings.TrimPrefix(filepath.Base(m), base+".")
		num, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		gens = append(gens, generation{path: m, num: num})
	}
	sort.Slice(gens, func(i, j int) bool { return gens[i].num > gens[j].num })
	return gens, nil
}

// rotate closes the current file, ages every path.N to path.N+1
// (dropping anything that would age past maxFiles), and reopens path
// as a fresh file.
func (w *RotatingWriter) rotate() error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
		w.file = nil
	}

	gens, err := rotatedGenerations(w.path)
	if err != nil {
		return err
	}

	for _, g := range gens {
		if g.num >= w.maxFiles {
			_ = os.Remove(g.path)
		}
	}
	for _, g := range gens {
		if g.num < w.maxFiles {
			_ = os.Rename(g.path, fmt.Sprintf("%s.%d", w.path, g.num+1))
		}
	}

	if _, err := os.Stat(w.path); err == nil {
		if err := os.Rename(w.path, w.path+".1"); err != nil {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	}

	w.written = 0
	return w.openFile()
}
