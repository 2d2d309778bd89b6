package log

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// backupTimeFormat names the hourly archive files this writer produces
// on top of lumberjack's own size-based rotation: <filePath>.<hour>.
const backupTimeFormat = "2006-01-02T15"

// AsyncFileWriter buffers writes through a channel so callers never
// block on file I/O, and layers an hourly archival rotation (its own
// naming scheme) on top of lumberjack's size/backup-count rotation of
// the live file.
type AsyncFileWriter struct {
	filePath    string
	maxBackups  int
	rotateHours uint

	logger *lumberjack.Logger

	mu     sync.Mutex
	queue  chan []byte
	done   chan struct{}
	wg     sync.WaitGroup
}

// NewAsyncFileWriter creates a writer for filePath, rotating the live
// file past maxSizeMB (lumberjack's MaxSize, in megabytes) and keeping
// at most maxBackups hourly archives spaced rotateHours apart.
func NewAsyncFileWriter(filePath string, maxSizeMB, maxBackups int, rotateHours uint) *AsyncFileWriter {
	return &AsyncFileWriter{
		filePath:    filePath,
		maxBackups:  maxBackups,
		rotateHours: rotateHours,
		logger: &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		},
		queue: make(chan []byte, 4096),
		done:  make(chan struct{}),
	}
}

// Start launches the background writer goroutine.
func (w *AsyncFileWriter) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Write enqueues p for asynchronous writing. It never blocks: a full
// queue drops the write rather than stall the caller's logging path.
func (w *AsyncFileWriter) Write(p []byte) (int, error) {
	cp := append([]byte(nil), p...)
	select {
	case w.queue <- cp:
	default:
	}
	return len(p), nil
}

// Sync satisfies zapcore.WriteSyncer; writes are already asynchronous
// and best-effort, so there is nothing to flush synchronously.
func (w *AsyncFileWriter) Sync() error { return nil }

// Stop drains any queued writes, closes the background goroutine, and
// closes the underlying file.
func (w *AsyncFileWriter) Stop() {
	close(w.done)
	w.wg.Wait()
	w.mu.Lock()
	w.logger.Close()
	w.mu.Unlock()
}

func (w *AsyncFileWriter) loop() {
	defer w.wg.Done()
	timer := w.scheduleNextRotation()
	defer timer.Stop()
	for {
		select {
		case b := <-w.queue:
			w.writeLocked(b)
		case <-timer.C:
			w.rotateHourly()
			timer = w.scheduleNextRotation()
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *AsyncFileWriter) drain() {
	for {
		select {
		case b := <-w.queue:
			w.writeLocked(b)
		default:
			return
		}
	}
}

func (w *AsyncFileWriter) writeLocked(b []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger.Write(b)
}

// scheduleNextRotation arms a timer for the next hourly boundary
// getNextRotationHour names.
func (w *AsyncFileWriter) scheduleNextRotation() *time.Timer {
	now := time.Now()
	nextHour := getNextRotationHour(now, w.rotateHours)
	next := time.Date(now.Year(), now.Month(), now.Day(), nextHour, 0, 0, 0, now.Location())
	if nextHour <= now.Hour() {
		next = next.AddDate(0, 0, 1)
	}
	return time.NewTimer(time.Until(next))
}

// getNextRotationHour returns the hour-of-day (0-23) of the next
// rotation boundary, delta hours after now, wrapping at 24.
func getNextRotationHour(now time.Time, delta uint) int {
	return (now.Hour() + int(delta)) % 24
}

// rotateHourly archives the live file's current contents under the
// hourly naming scheme, rotates lumberjack's own file, and prunes one
// expired archive if the retention window has been exceeded.
func (w *AsyncFileWriter) rotateHourly() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if data, err := os.ReadFile(w.filePath); err == nil {
		name := w.filePath + "." + time.Now().Format(backupTimeFormat)
		_ = os.WriteFile(name, data, 0644)
	}
	_ = w.logger.Rotate()
	w.removeExpiredFileLocked()
}

// removeExpiredFile deletes the oldest hourly archive past the
// maxBackups*rotateHours retention window, if one exists.
func (w *AsyncFileWriter) removeExpiredFile() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.removeExpiredFileLocked()
}

func (w *AsyncFileWriter) removeExpiredFileLocked() {
	if path := w.getExpiredFile(w.filePath, w.maxBackups, w.rotateHours); path != "" {
		os.Remove(path)
	}
}

type backupFile struct {
	path string
	at   time.Time
}

// getExpiredFile finds the oldest hourly archive of filePath, if it
// has aged past the maxBackups*rotateHours retention window.
func (w *AsyncFileWriter) getExpiredFile(filePath string, maxBackups int, rotateHours uint) string {
	dir := filepath.Dir(filePath)
	base := filepath.Base(filePath)
	prefix := base + "."

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var backups []backupFile
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		ts, err := time.Parse(backupTimeFormat, strings.TrimPrefix(name, prefix))
		if err != nil {
			continue
		}
		backups = append(backups, backupFile{path: filepath.Join(dir, name), at: ts})
	}
	if len(backups) == 0 {
		return ""
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].at.Before(backups[j].at) })

	retention := time.Duration(maxBackups) * time.Duration(rotateHours) * time.Hour
	oldest := backups[0]
	if oldest.at.Before(time.Now().Add(-retention)) {
		return oldest.path
	}
	return ""
}
