package chartdata

// Indexes into PlotValue.
const (
	PlotOpen = iota
	PlotHigh
	PlotLow
	PlotClose
)

// PlotValue is the uniform per-row price quadruple. Single-value series
// store the same scalar in all four slots.
type PlotValue [4]float64

// DataItem is one user-supplied point for any series type. Price fields are
// pointers so a zero price is distinguishable from an absent one; an item
// with neither value nor open is a whitespace marker.
type DataItem struct {
	Time        Time     `json:"time"`
	Value       *float64 `json:"value,omitempty"`
	Open        *float64 `json:"open,omitempty"`
	High        *float64 `json:"high,omitempty"`
	Low         *float64 `json:"low,omitempty"`
	Close       *float64 `json:"close,omitempty"`
	Color       string   `json:"color,omitempty"`
	BorderColor string   `json:"borderColor,omitempty"`
	WickColor   string   `json:"wickColor,omitempty"`
}

// IsWhitespace reports whether the item carries no price.
func (it DataItem) IsWhitespace() bool { return it.Value == nil && it.Open == nil }

// PlotRow is the normalized per-series, per-time datum. A nil Value marks a
// whitespace row: it occupies a slot on the shared time index but carries
// no price.
type PlotRow struct {
	Index        int        `json:"index"`
	Time         TimePoint  `json:"time"`
	Value        *PlotValue `json:"value,omitempty"`
	OriginalTime Time       `json:"originalTime"`
	Color        string     `json:"color,omitempty"`
	BorderColor  string     `json:"borderColor,omitempty"`
	WickColor    string     `json:"wickColor,omitempty"`
}

// IsWhitespace reports whether the row carries no price.
func (r PlotRow) IsWhitespace() bool { return r.Value == nil }

type rowFactory func(tp TimePoint, index int, item DataItem, originalTime Time) PlotRow

func singleValue(v float64) *PlotValue { return &PlotValue{v, v, v, v} }

func lineRow(tp TimePoint, index int, item DataItem, originalTime Time) PlotRow {
	return PlotRow{Index: index, Time: tp, Value: singleValue(*item.Value), OriginalTime: originalTime, Color: item.Color}
}

func areaRow(tp TimePoint, index int, item DataItem, originalTime Time) PlotRow {
	return PlotRow{Index: index, Time: tp, Value: singleValue(*item.Value), OriginalTime: originalTime}
}

func ohlcValue(item DataItem) *PlotValue {
	return &PlotValue{*item.Open, *item.High, *item.Low, *item.Close}
}

func barRow(tp TimePoint, index int, item DataItem, originalTime Time) PlotRow {
	return PlotRow{Index: index, Time: tp, Value: ohlcValue(item), OriginalTime: originalTime, Color: item.Color}
}

func candlestickRow(tp TimePoint, index int, item DataItem, originalTime Time) PlotRow {
	return PlotRow{
		Index: index, Time: tp, Value: ohlcValue(item), OriginalTime: originalTime,
		Color: item.Color, BorderColor: item.BorderColor, WickColor: item.WickColor,
	}
}

// withWhitespaceGuard emits a bare whitespace row for priceless items and
// defers to the type-specific builder otherwise.
func withWhitespaceGuard(fn rowFactory) rowFactory {
	return func(tp TimePoint, index int, item DataItem, originalTime Time) PlotRow {
		if item.IsWhitespace() {
			return PlotRow{Index: index, Time: tp, OriginalTime: originalTime}
		}
		return fn(tp, index, item, originalTime)
	}
}

// newSeriesRowFactory returns the row builder for a series type.
func newSeriesRowFactory(t SeriesType) rowFactory {
	switch t {
	case SeriesLine, SeriesHistogram:
		return withWhitespaceGuard(lineRow)
	case SeriesArea, SeriesBaseline:
		return withWhitespaceGuard(areaRow)
	case SeriesBar:
		return withWhitespaceGuard(barRow)
	case SeriesCandlestick:
		return withWhitespaceGuard(candlestickRow)
	default:
		return withWhitespaceGuard(lineRow)
	}
}
