package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestJournal_WriteAndClose(t *testing.T) {
	dir := t.TempDir()
	j := NewJournal(dir, 16, 10)

	at := time.Date(2026, 8, 6, 12, 0, 0, 0, time.UTC)
	base := 4
	if err := j.Write(Record{
		At: at, ChartID: "chart-1", SeriesID: 2, Op: "update",
		BaseIndex: &base, FirstChangedPointIndex: -1, PointCount: 5, RowCount: 5,
	}); err != nil {
		t.Fatalf("Write() = %v; want nil", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() = %v; want nil", err)
	}

	path := filepath.Join(dir, "2026-08-06", "updates.jsonl")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read journal: %v", err)
	}
	var rec Record
	if err := json.Unmarshal(data[:len(data)-1], &rec); err != nil {
		t.Fatalf("unmarshal journal line: %v", err)
	}
	if rec.ChartID != "chart-1" || rec.SeriesID != 2 || rec.Op != "update" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if rec.BaseIndex == nil || *rec.BaseIndex != 4 {
		t.Fatalf("baseIndex = %v; want 4", rec.BaseIndex)
	}
}

func TestJournal_WriteAfterCloseFails(t *testing.T) {
	j := NewJournal(t.TempDir(), 4, 10)
	if err := j.Close(); err != nil {
		t.Fatalf("Close() = %v; want nil", err)
	}
	if err := j.Write(Record{At: time.Now(), ChartID: "c"}); err == nil {
		t.Fatalf("Write() after close = nil; want error")
	}
}
