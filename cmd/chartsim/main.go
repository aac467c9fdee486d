// chartsim replays a synthetic candle feed through a chart engine and
// journals the applied deltas. It exists to exercise the full data path
// without a browser or an HTTP client.
package main

import (
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dgnsrekt/chartcore/internal/chartdata"
	"github.com/dgnsrekt/chartcore/internal/engine"
	"github.com/dgnsrekt/chartcore/internal/storage"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	days := envInt("CHARTSIM_DAYS", 120)
	ticks := envInt("CHARTSIM_TICKS", 200)
	seed := envInt("CHARTSIM_SEED", 1)
	journalDir := envStr("CHARTSIM_JOURNAL_DIR", "journal")
	logFile := envStr("CHARTSIM_LOG_FILE", "logs/chartsim.log")

	if err := setupLogger(logFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	journal := storage.NewJournal(journalDir, 1024, 50)
	defer func() {
		if err := journal.Close(); err != nil {
			slog.Error("journal close failed", "error", err)
		}
	}()

	eng := engine.New(engine.Options{StrictTime: true, FrameInterval: 4 * time.Millisecond})
	defer eng.Destroy()

	eng.OnDataApplied(func(ev engine.UpdateEvent) {
		rec := storage.Record{
			At:                     time.Now().UTC(),
			ChartID:                "chartsim",
			SeriesID:               ev.SeriesID,
			Op:                     ev.Op,
			BaseIndex:              ev.BaseIndex,
			FirstChangedPointIndex: ev.FirstChangedPointIndex,
			TimeScaleChanged:       ev.TimeScaleChanged,
			PointCount:             ev.PointCount,
			RowCount:               ev.RowCount,
		}
		if err := journal.Write(rec); err != nil {
			slog.Debug("journal write skipped", "error", err)
		}
	})

	candles, err := eng.AddSeries(chartdata.SeriesCandlestick, 0)
	if err != nil {
		slog.Error("add candlestick series failed", "error", err)
		os.Exit(1)
	}
	volume, err := eng.AddSeries(chartdata.SeriesHistogram, 1)
	if err != nil {
		slog.Error("add histogram series failed", "error", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(int64(seed)))
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	candleItems, volumeItems := history(rng, start, days)

	if _, err := eng.SetSeriesData(candles.ID, candleItems); err != nil {
		slog.Error("set candle history failed", "error", err)
		os.Exit(1)
	}
	if _, err := eng.SetSeriesData(volume.ID, volumeItems); err != nil {
		slog.Error("set volume history failed", "error", err)
		os.Exit(1)
	}
	if err := eng.FitContent(); err != nil {
		slog.Error("fit content failed", "error", err)
		os.Exit(1)
	}
	slog.Info("history loaded", "days", days)

	// live phase: edit the last bar a few times, then roll to the next one
	lastDay := start.AddDate(0, 0, days-1)
	price := lastClose(candleItems)
	for i := 0; i < ticks; i++ {
		if i%10 == 9 {
			lastDay = lastDay.AddDate(0, 0, 1)
		}
		price *= 1 + (rng.Float64()-0.5)/100
		item := candleItem(lastDay, price, rng)
		if _, err := eng.UpdateSeriesData(candles.ID, item); err != nil {
			slog.Error("tick update failed", "tick", i, "error", err)
			os.Exit(1)
		}
	}

	// let the scheduler drain the final frame before reading counters
	time.Sleep(50 * time.Millisecond)
	stats, err := eng.FrameStats()
	if err != nil {
		slog.Error("frame stats failed", "error", err)
		os.Exit(1)
	}
	ts, _ := eng.TimeScale(false)
	slog.Info("simulation finished",
		"ticks", ticks,
		"points", ts.PointCount,
		"frames_drawn", stats.FramesDrawn,
		"masks_merged", stats.MasksMerged,
	)
}

func history(rng *rand.Rand, start time.Time, days int) ([]chartdata.DataItem, []chartdata.DataItem) {
	price := 100.0
	candleItems := make([]chartdata.DataItem, 0, days)
	volumeItems := make([]chartdata.DataItem, 0, days)
	for i := 0; i < days; i++ {
		day := start.AddDate(0, 0, i)
		item := candleItem(day, price, rng)
		price = *item.Close
		candleItems = append(candleItems, item)

		vol := 1000 + rng.Float64()*9000
		volumeItems = append(volumeItems, chartdata.DataItem{
			Time:  chartdata.NewBusinessDayTime(day.Year(), int(day.Month()), day.Day()),
			Value: &vol,
		})
	}
	return candleItems, volumeItems
}

func candleItem(day time.Time, open float64, rng *rand.Rand) chartdata.DataItem {
	closePrice := open * (1 + (rng.Float64()-0.5)/25)
	high := max(open, closePrice) * (1 + rng.Float64()/100)
	low := min(open, closePrice) * (1 - rng.Float64()/100)
	return chartdata.DataItem{
		Time:  chartdata.NewBusinessDayTime(day.Year(), int(day.Month()), day.Day()),
		Open:  &open,
		High:  &high,
		Low:   &low,
		Close: &closePrice,
	}
}

func lastClose(items []chartdata.DataItem) float64 {
	if len(items) == 0 {
		return 100
	}
	return *items[len(items)-1].Close
}

func envStr(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func setupLogger(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}
	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 5,
		MaxAge:     7,
		Compress:   true,
	}
	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(h))
	return nil
}
