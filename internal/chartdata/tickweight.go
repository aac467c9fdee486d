package chartdata

import "time"

// TickMarkWeight ranks a time point by the coarsest calendar unit that
// rolls over at it. The time axis keeps higher-weight labels when space is
// tight.
type TickMarkWeight int

const (
	WeightLessThanSecond TickMarkWeight = 0
	WeightSecond         TickMarkWeight = 10
	WeightMinute         TickMarkWeight = 20
	WeightHour           TickMarkWeight = 30
	WeightDay            TickMarkWeight = 50
	WeightMonth          TickMarkWeight = 60
	WeightYear           TickMarkWeight = 70
)

func weightByTime(current, prev int64) TickMarkWeight {
	cur := time.Unix(current, 0).UTC()
	prv := time.Unix(prev, 0).UTC()
	switch {
	case cur.Year() != prv.Year():
		return WeightYear
	case cur.Month() != prv.Month():
		return WeightMonth
	case cur.Day() != prv.Day():
		return WeightDay
	case cur.Hour() != prv.Hour():
		return WeightHour
	case cur.Minute() != prv.Minute():
		return WeightMinute
	case cur.Second() != prv.Second():
		return WeightSecond
	default:
		return WeightLessThanSecond
	}
}

// fillWeightsForPoints assigns tick-mark weights from startIndex to the end
// of the sorted points. Weights before startIndex survive untouched. On a
// full recompute the first point has no predecessor, so its weight is
// estimated against a synthetic one placed an average step earlier.
func fillWeightsForPoints(points []TimeScalePoint, startIndex int) {
	if len(points) == 0 {
		return
	}
	var prevTime int64
	hasPrev := false
	if startIndex > 0 {
		prevTime = points[startIndex-1].Time.Timestamp
		hasPrev = true
	}
	var totalTimeDiff int64
	for i := startIndex; i < len(points); i++ {
		ts := points[i].Time.Timestamp
		if hasPrev {
			points[i].TimeWeight = weightByTime(ts, prevTime)
			totalTimeDiff += ts - prevTime
		}
		prevTime = ts
		hasPrev = true
	}
	if startIndex == 0 && len(points) > 1 {
		averageTimeDiff := totalTimeDiff / int64(len(points)-1)
		if averageTimeDiff <= 0 {
			averageTimeDiff = 1
		}
		approxPrevTime := points[0].Time.Timestamp - averageTimeDiff
		points[0].TimeWeight = weightByTime(points[0].Time.Timestamp, approxPrevTime)
	}
}
