package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var numberedLogFile = regexp.MustCompile(`^app-\d{4}-W\d{2}_(\d{2})\.log$`)

// RotatingWriter writes to app-YYYY-Www.log, starting a new file every ISO
// week and a numbered sibling (app-YYYY-Www_NN.log) once maxFileSize is hit.
// Files older than the retention period are removed once a day.
type RotatingWriter struct {
	dir         string
	retention   time.Duration
	maxFileSize int64

	mu   sync.Mutex
	file *os.File
	week string
	size int64

	cancel context.CancelFunc
	done   chan struct{}
	now    func() time.Time
}

// NewRotatingWriter opens the current week's file in dir, creating dir if needed
func NewRotatingWriter(dir string, retentionWeeks int, maxFileSize int64) (*RotatingWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &RotatingWriter{
		dir:         dir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
		cancel:      cancel,
		done:        make(chan struct{}),
		now:         time.Now,
	}

	w.mu.Lock()
	err := w.rotate(weekKey(w.now()), false)
	w.mu.Unlock()
	if err != nil {
		cancel()
		return nil, err
	}

	go w.cleanupLoop(ctx)
	return w, nil
}

// weekKey returns the ISO week in YYYY-Www format
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	week := weekKey(w.now())
	switch {
	case week != w.week:
		if err := w.rotate(week, false); err != nil {
			return 0, err
		}
	case w.maxFileSize > 0 && w.size+int64(len(p)) > w.maxFileSize:
		if err := w.rotate(week, true); err != nil {
			return 0, err
		}
	}

	if w.file == nil {
		return 0, fmt.Errorf("no log file available")
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// rotate switches to the file for week; caller holds mu
func (w *RotatingWriter) rotate(week string, full bool) error {
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			slog.Warn("Failed to close log file during rotation", "error", err)
		}
		w.file = nil
	}

	name := w.pickFile(week, full)
	path := filepath.Join(w.dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	w.size = 0
	if info, err := f.Stat(); err == nil {
		w.size = info.Size()
	}
	w.file = f
	w.week = week
	return nil
}

// pickFile returns the file to continue writing for week. A full file (or
// full=true, meaning the current one just filled up) moves on to the next
// numbered sibling.
func (w *RotatingWriter) pickFile(week string, full bool) string {
	highest, last := w.highestNumbered(week)
	if highest == 0 {
		base := fmt.Sprintf("app-%s.log", week)
		if !full && !w.isFull(filepath.Join(w.dir, base)) {
			return base
		}
		return fmt.Sprintf("app-%s_01.log", week)
	}
	if !full && !w.isFull(last) {
		return filepath.Base(last)
	}
	return fmt.Sprintf("app-%s_%02d.log", week, highest+1)
}

func (w *RotatingWriter) isFull(path string) bool {
	if w.maxFileSize <= 0 {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Size() >= w.maxFileSize
}

func (w *RotatingWriter) highestNumbered(week string) (int, string) {
	matches, _ := filepath.Glob(filepath.Join(w.dir, fmt.Sprintf("app-%s_??.log", week)))
	highest, last := 0, ""
	for _, m := range matches {
		sub := numberedLogFile.FindStringSubmatch(filepath.Base(m))
		if len(sub) < 2 {
			continue
		}
		if n, _ := strconv.Atoi(sub[1]); n > highest {
			highest, last = n, m
		}
	}
	return highest, last
}

func (w *RotatingWriter) cleanupLoop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.cleanup(); err != nil {
				slog.Warn("Failed to cleanup old logs", "error", err)
			}
		}
	}
}

// cleanup removes app-*.log files older than the retention period
func (w *RotatingWriter) cleanup() (int, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read log directory: %w", err)
	}

	cutoff := w.now().Add(-w.retention)
	deleted := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "app-") || !strings.HasSuffix(name, ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if os.Remove(filepath.Join(w.dir, name)) == nil {
			deleted++
		}
	}
	return deleted, nil
}

// Close stops the cleanup goroutine and closes the current file
func (w *RotatingWriter) Close() error {
	w.cancel()
	<-w.done

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
