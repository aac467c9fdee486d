// Package storage persists applied data updates as date-partitioned JSONL
// files with size-based rotation.
package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Record is one journal line: the applied delta summary of a single data
// mutation.
type Record struct {
	At                     time.Time `json:"at"`
	ChartID                string    `json:"chartId"`
	SeriesID               uint64    `json:"seriesId"`
	Op                     string    `json:"op"`
	BaseIndex              *int      `json:"baseIndex"`
	FirstChangedPointIndex int       `json:"firstChangedPointIndex"`
	TimeScaleChanged       bool      `json:"timeScaleChanged"`
	PointCount             int       `json:"pointCount"`
	RowCount               int       `json:"rowCount"`
}

// Journal writes records asynchronously into <baseDir>/<date>/updates.jsonl
// files rotated by size.
type Journal struct {
	baseDir   string
	maxSizeMB int

	writeCh chan Record
	done    chan struct{}
	wg      sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
}

// NewJournal starts the async writer. bufferSize bounds the in-flight
// queue; writes beyond it are dropped with a warning instead of blocking
// the engine.
func NewJournal(baseDir string, bufferSize, maxSizeMB int) *Journal {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	j := &Journal{
		baseDir:   baseDir,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan Record, bufferSize),
		done:      make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writeLoop()
	return j
}

// Write queues a record. Non-blocking.
func (j *Journal) Write(rec Record) error {
	select {
	case <-j.done:
		return fmt.Errorf("journal is closed")
	default:
	}
	select {
	case j.writeCh <- rec:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "chart_id", rec.ChartID)
		return fmt.Errorf("buffer full")
	}
}

// Close drains pending records and shuts the writer down.
func (j *Journal) Close() error {
	close(j.done)
	j.wg.Wait()

	// drain whatever was queued after the loop exited
	for {
		select {
		case rec := <-j.writeCh:
			j.writeRecord(rec)
		default:
			j.mu.Lock()
			defer j.mu.Unlock()
			if j.logger != nil {
				return j.logger.Close()
			}
			return nil
		}
	}
}

func (j *Journal) writeLoop() {
	defer j.wg.Done()
	for {
		select {
		case rec := <-j.writeCh:
			j.writeRecord(rec)
		case <-j.done:
			return
		}
	}
}

func (j *Journal) writeRecord(rec Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("journal marshal failed", "error", err, "chart_id", rec.ChartID)
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	date := rec.At.UTC().Format("2006-01-02")
	if date != j.currentDate || j.logger == nil {
		j.rotateForDate(date)
	}
	if j.logger == nil {
		return
	}
	if _, err := j.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "error", err, "chart_id", rec.ChartID)
	}
}

func (j *Journal) rotateForDate(date string) {
	if j.logger != nil {
		if err := j.logger.Close(); err != nil {
			slog.Debug("journal close on rotate failed", "error", err)
		}
	}
	dir := filepath.Join(j.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("journal mkdir failed", "error", err, "dir", dir)
		j.logger = nil
		return
	}
	j.logger = &lumberjack.Logger{
		Filename:   filepath.Join(dir, "updates.jsonl"),
		MaxSize:    j.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
		LocalTime:  false,
	}
	j.currentDate = date
	slog.Info("journal file opened", "file", j.logger.Filename)
}
