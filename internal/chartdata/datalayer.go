package chartdata

import (
	"fmt"
	"sort"
)

// timePointData aggregates every series' row at one timestamp. The same
// record is reachable from the timestamp map and from the sorted points;
// index changes must hit the record and every mapped row in one step.
type timePointData struct {
	index        int
	timePoint    TimePoint
	originalTime Time
	mapping      map[*Series]*PlotRow
}

func newEmptyTimePointData(tp TimePoint, originalTime Time) *timePointData {
	return &timePointData{timePoint: tp, originalTime: originalTime, mapping: make(map[*Series]*PlotRow)}
}

// TimeScalePoint is one slot of the globally sorted, densely indexed time
// index shared by all series.
type TimeScalePoint struct {
	Time         TimePoint      `json:"time"`
	OriginalTime Time           `json:"originalTime"`
	TimeWeight   TickMarkWeight `json:"timeWeight"`

	pointData *timePointData
}

// SeriesUpdateInfo qualifies how an update touched a series.
type SeriesUpdateInfo struct {
	// LastBarUpdatedOrNewBarsAddedToTheRight is set when the change was an
	// edit at the tail or an append past it.
	LastBarUpdatedOrNewBarsAddedToTheRight bool `json:"lastBarUpdatedOrNewBarsAddedToTheRight"`
}

// SeriesChanges carries a series' full current row list after an update.
// The rows are shared with the layer's internal state; callers must treat
// them as immutable snapshots.
type SeriesChanges struct {
	Data []*PlotRow
	Info *SeriesUpdateInfo
}

// TimeScaleChanges describes how an update moved the shared time index.
// Points and FirstChangedPointIndex are only populated when the index
// actually changed; FirstChangedPointIndex is -1 otherwise.
type TimeScaleChanges struct {
	BaseIndex              *int
	Points                 []TimeScalePoint
	FirstChangedPointIndex int
}

// DataUpdateResponse is the delta record returned by every data layer
// mutation.
type DataUpdateResponse struct {
	Series    map[*Series]SeriesChanges
	TimeScale TimeScaleChanges
}

// DataLayer owns the cross-series time index and the per-series row lists.
// It is not safe for concurrent use; the owning engine serializes access.
type DataLayer struct {
	pointDataByTimePoint map[int64]*timePointData
	seriesRowsBySeries   map[*Series][]*PlotRow
	seriesLastTimePoint  map[*Series]TimePoint
	sortedTimePoints     []TimeScalePoint
	strictTime           bool
}

// NewDataLayer builds an empty layer. strictTime controls calendar
// validation of date strings (shape validation is unconditional).
func NewDataLayer(strictTime bool) *DataLayer {
	return &DataLayer{
		pointDataByTimePoint: make(map[int64]*timePointData),
		seriesRowsBySeries:   make(map[*Series][]*PlotRow),
		seriesLastTimePoint:  make(map[*Series]TimePoint),
		strictTime:           strictTime,
	}
}

// SortedTimePoints exposes the current shared index. Read-only for callers.
func (d *DataLayer) SortedTimePoints() []TimeScalePoint { return d.sortedTimePoints }

// SeriesRows returns the current row list of a series. Read-only for
// callers; nil when the series holds no data.
func (d *DataLayer) SeriesRows(series *Series) []*PlotRow { return d.seriesRowsBySeries[series] }

// SetSeriesData replaces the whole dataset of a series and reconciles the
// shared time index, returning the minimal delta. Input must be strictly
// ascending by time.
func (d *DataLayer) SetSeriesData(series *Series, data []DataItem) (DataUpdateResponse, error) {
	needCleanupPoints := len(d.pointDataByTimePoint) != 0
	isTimeScaleAffected := false

	prevSeriesRows, hadSeries := d.seriesRowsBySeries[series]
	if hadSeries {
		if len(d.seriesRowsBySeries) == 1 {
			// the only registered series: wiping the map wholesale beats
			// walking every point
			needCleanupPoints = false
			isTimeScaleAffected = true
			d.pointDataByTimePoint = make(map[int64]*timePointData)
		} else {
			for _, point := range d.sortedTimePoints {
				if _, ok := point.pointData.mapping[series]; ok {
					delete(point.pointData.mapping, series)
					isTimeScaleAffected = true
				}
			}
		}
	}

	var seriesRows []*PlotRow
	if len(data) != 0 {
		originalTimes := make([]Time, len(data))
		for i := range data {
			originalTimes[i] = data[i].Time
			if err := convertStringToBusinessDay(&data[i].Time, d.strictTime); err != nil {
				return DataUpdateResponse{}, err
			}
		}
		convert := SelectTimeConverter(data)
		createRow := newSeriesRowFactory(series.Type())

		seriesRows = make([]*PlotRow, 0, len(data))
		var prevTimestamp int64
		for i, item := range data {
			tp, err := convert(item.Time)
			if err != nil {
				return DataUpdateResponse{}, err
			}
			if i > 0 && tp.Timestamp <= prevTimestamp {
				return DataUpdateResponse{}, NewError(CodeUnorderedInput,
					fmt.Sprintf("data must be asc ordered by time, index=%d, time=%d, prev time=%d", i, tp.Timestamp, prevTimestamp), nil)
			}
			prevTimestamp = tp.Timestamp

			pointData, ok := d.pointDataByTimePoint[tp.Timestamp]
			if !ok {
				pointData = newEmptyTimePointData(tp, originalTimes[i])
				d.pointDataByTimePoint[tp.Timestamp] = pointData
				isTimeScaleAffected = true
			}
			row := createRow(tp, pointData.index, item, originalTimes[i])
			// the mapping and the per-series list must share storage so an
			// index resync is visible through both routes
			pointData.mapping[series] = &row
			seriesRows = append(seriesRows, &row)
		}
	}

	if needCleanupPoints {
		// deleting a series' contribution may have emptied some points
		d.cleanupPointsData()
	}

	d.setRowsToSeries(series, seriesRows)

	firstChangedPointIndex := -1
	if isTimeScaleAffected {
		newTimePoints := make([]TimeScalePoint, 0, len(d.pointDataByTimePoint))
		for _, pointData := range d.pointDataByTimePoint {
			newTimePoints = append(newTimePoints, TimeScalePoint{
				Time:         pointData.timePoint,
				OriginalTime: pointData.originalTime,
				pointData:    pointData,
			})
		}
		sort.Slice(newTimePoints, func(i, j int) bool {
			return newTimePoints[i].Time.Timestamp < newTimePoints[j].Time.Timestamp
		})
		firstChangedPointIndex = d.replaceTimeScalePoints(newTimePoints)
	}

	info := seriesUpdateInfo(d.seriesRowsBySeries[series], prevSeriesRows, hadSeries)
	return d.updateResponse(series, firstChangedPointIndex, info), nil
}

// UpdateSeriesData applies a single-point edit or append to a series.
func (d *DataLayer) UpdateSeriesData(series *Series, item DataItem) (DataUpdateResponse, error) {
	last, registered := d.seriesLastTimePoint[series]
	if !registered {
		return DataUpdateResponse{}, NewError(CodeUnknownSeries,
			fmt.Sprintf("series %d is not registered with the data layer", series.ID()), nil)
	}

	originalTime := item.Time
	if err := convertStringToBusinessDay(&item.Time, d.strictTime); err != nil {
		return DataUpdateResponse{}, err
	}
	convert := SelectTimeConverter([]DataItem{item})
	tp, err := convert(item.Time)
	if err != nil {
		return DataUpdateResponse{}, err
	}

	if tp.Timestamp < last.Timestamp {
		return DataUpdateResponse{}, NewError(CodeUpdateOutOfOrder,
			fmt.Sprintf("cannot update oldest data, last time=%d, new time=%d", last.Timestamp, tp.Timestamp), nil)
	}

	pointData, ok := d.pointDataByTimePoint[tp.Timestamp]
	affectsTimeScale := !ok
	if !ok {
		pointData = newEmptyTimePointData(tp, originalTime)
		d.pointDataByTimePoint[tp.Timestamp] = pointData
	}

	createRow := newSeriesRowFactory(series.Type())
	row := createRow(tp, pointData.index, item, originalTime)
	pointData.mapping[series] = &row
	d.updateLastSeriesRow(series, &row)

	info := &SeriesUpdateInfo{LastBarUpdatedOrNewBarsAddedToTheRight: !row.IsWhitespace()}

	if !affectsTimeScale {
		return d.updateResponse(series, -1, info), nil
	}

	newPoint := TimeScalePoint{Time: pointData.timePoint, OriginalTime: originalTime, pointData: pointData}
	insertIndex := sort.Search(len(d.sortedTimePoints), func(i int) bool {
		return d.sortedTimePoints[i].Time.Timestamp >= newPoint.Time.Timestamp
	})

	// the sorted points are read-only on their public surface; splicing
	// here avoids an O(N) rebuild on an append-heavy workload, and the
	// indexes are resynced before the response leaves this method
	d.sortedTimePoints = append(d.sortedTimePoints, TimeScalePoint{})
	copy(d.sortedTimePoints[insertIndex+1:], d.sortedTimePoints[insertIndex:])
	d.sortedTimePoints[insertIndex] = newPoint

	for i := insertIndex; i < len(d.sortedTimePoints); i++ {
		assignIndexToPointData(d.sortedTimePoints[i].pointData, i)
	}
	fillWeightsForPoints(d.sortedTimePoints, insertIndex)

	return d.updateResponse(series, insertIndex, info), nil
}

// RemoveSeries unbinds a series from the layer. Defined as setting its data
// to empty; every index invariant follows from SetSeriesData.
func (d *DataLayer) RemoveSeries(series *Series) (DataUpdateResponse, error) {
	return d.SetSeriesData(series, nil)
}

// Destroy drops all layer state.
func (d *DataLayer) Destroy() {
	d.pointDataByTimePoint = make(map[int64]*timePointData)
	d.seriesRowsBySeries = make(map[*Series][]*PlotRow)
	d.seriesLastTimePoint = make(map[*Series]TimePoint)
	d.sortedTimePoints = nil
}

func (d *DataLayer) cleanupPointsData() {
	for ts, pointData := range d.pointDataByTimePoint {
		if len(pointData.mapping) == 0 {
			delete(d.pointDataByTimePoint, ts)
		}
	}
}

// setRowsToSeries binds only value-bearing rows to the series; the last
// time point tracks the raw tail, whitespace included.
func (d *DataLayer) setRowsToSeries(series *Series, seriesRows []*PlotRow) {
	if len(seriesRows) != 0 {
		defined := make([]*PlotRow, 0, len(seriesRows))
		for _, row := range seriesRows {
			if !row.IsWhitespace() {
				defined = append(defined, row)
			}
		}
		d.seriesRowsBySeries[series] = defined
		d.seriesLastTimePoint[series] = seriesRows[len(seriesRows)-1].Time
	} else {
		delete(d.seriesRowsBySeries, series)
		delete(d.seriesLastTimePoint, series)
	}
}

// updateLastSeriesRow maintains the per-series tail for a single-point
// update: a value beyond the tail appends, a value at the tail replaces,
// whitespace at the tail pops the trailing row. Whitespace rows never enter
// the list.
func (d *DataLayer) updateLastSeriesRow(series *Series, row *PlotRow) {
	seriesData := d.seriesRowsBySeries[series]
	var lastRow *PlotRow
	if len(seriesData) != 0 {
		lastRow = seriesData[len(seriesData)-1]
	}
	if lastRow == nil || row.Time.Timestamp > lastRow.Time.Timestamp {
		if !row.IsWhitespace() {
			seriesData = append(seriesData, row)
		}
	} else {
		if !row.IsWhitespace() {
			seriesData[len(seriesData)-1] = row
		} else {
			seriesData = seriesData[:len(seriesData)-1]
		}
	}
	d.seriesRowsBySeries[series] = seriesData
	d.seriesLastTimePoint[series] = row.Time
}

// replaceTimeScalePoints diffs the new sorted points against the current
// ones and re-indexes the changed tail, preserving prefix indexes and
// weights. Returns the first changed index, or -1 when nothing moved.
func (d *DataLayer) replaceTimeScalePoints(newTimePoints []TimeScalePoint) int {
	firstChangedPointIndex := -1
	for i := 0; i < len(d.sortedTimePoints) && i < len(newTimePoints); i++ {
		oldPoint := d.sortedTimePoints[i]
		if oldPoint.Time.Timestamp != newTimePoints[i].Time.Timestamp {
			firstChangedPointIndex = i
			break
		}
		// matching prefix: carry the weight over and resync the index
		newTimePoints[i].TimeWeight = oldPoint.TimeWeight
		assignIndexToPointData(newTimePoints[i].pointData, i)
	}

	if firstChangedPointIndex == -1 && len(d.sortedTimePoints) != len(newTimePoints) {
		// the common prefix matches, so the first change is right after it
		firstChangedPointIndex = min(len(d.sortedTimePoints), len(newTimePoints))
	}
	if firstChangedPointIndex == -1 {
		// identical content still swaps the array: after a wholesale wipe
		// the map holds fresh records, and the sorted points must keep
		// referencing the same objects
		d.sortedTimePoints = newTimePoints
		return -1
	}

	for i := firstChangedPointIndex; i < len(newTimePoints); i++ {
		assignIndexToPointData(newTimePoints[i].pointData, i)
	}
	fillWeightsForPoints(newTimePoints, firstChangedPointIndex)
	d.sortedTimePoints = newTimePoints
	return firstChangedPointIndex
}

// assignIndexToPointData propagates an index to the point record and every
// mapped row in the same step.
func assignIndexToPointData(pointData *timePointData, index int) {
	pointData.index = index
	for _, row := range pointData.mapping {
		row.Index = index
	}
}

func (d *DataLayer) baseIndex() *int {
	if len(d.seriesRowsBySeries) == 0 {
		return nil
	}
	base := 0
	for _, rows := range d.seriesRowsBySeries {
		if len(rows) != 0 && rows[len(rows)-1].Index > base {
			base = rows[len(rows)-1].Index
		}
	}
	return &base
}

func (d *DataLayer) updateResponse(updatedSeries *Series, firstChangedPointIndex int, info *SeriesUpdateInfo) DataUpdateResponse {
	resp := DataUpdateResponse{
		Series:    make(map[*Series]SeriesChanges),
		TimeScale: TimeScaleChanges{BaseIndex: d.baseIndex(), FirstChangedPointIndex: firstChangedPointIndex},
	}
	if firstChangedPointIndex != -1 {
		// a moved index invalidates every series' row indexes
		for s, rows := range d.seriesRowsBySeries {
			var seriesInfo *SeriesUpdateInfo
			if s == updatedSeries {
				seriesInfo = info
			}
			resp.Series[s] = SeriesChanges{Data: rows, Info: seriesInfo}
		}
		// a wiped series has no entry above but must still be reported
		if _, ok := d.seriesRowsBySeries[updatedSeries]; !ok {
			resp.Series[updatedSeries] = SeriesChanges{Data: []*PlotRow{}, Info: info}
		}
		resp.TimeScale.Points = d.sortedTimePoints
	} else {
		resp.Series[updatedSeries] = SeriesChanges{Data: d.seriesRowsBySeries[updatedSeries], Info: info}
	}
	return resp
}

func seriesUpdateInfo(seriesRows, prevSeriesRows []*PlotRow, hadSeries bool) *SeriesUpdateInfo {
	if !hadSeries || len(seriesRows) == 0 || len(prevSeriesRows) == 0 {
		return nil
	}
	lastNew := seriesRows[len(seriesRows)-1].Time.Timestamp
	lastOld := prevSeriesRows[len(prevSeriesRows)-1].Time.Timestamp
	firstNew := seriesRows[0].Time.Timestamp
	firstOld := prevSeriesRows[0].Time.Timestamp
	return &SeriesUpdateInfo{
		LastBarUpdatedOrNewBarsAddedToTheRight: lastNew >= lastOld && firstNew >= firstOld,
	}
}
