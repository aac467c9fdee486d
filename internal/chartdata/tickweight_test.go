package chartdata

import "testing"

func TestWeightByTime(t *testing.T) {
	day := int64(86400)
	jan1 := int64(1577836800) // 2020-01-01T00:00:00Z
	cases := []struct {
		name     string
		cur, prv int64
		want     TickMarkWeight
	}{
		{"year_rollover", jan1, jan1 - day, WeightYear},
		{"month_rollover", jan1 + 31*day, jan1 + 30*day, WeightMonth},
		{"day_rollover", jan1 + day, jan1, WeightDay},
		{"hour_rollover", jan1 + 3600, jan1, WeightHour},
		{"minute_rollover", jan1 + 60, jan1, WeightMinute},
		{"second_rollover", jan1 + 1, jan1, WeightSecond},
		{"same_instant", jan1, jan1, WeightLessThanSecond},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := weightByTime(tc.cur, tc.prv); got != tc.want {
				t.Fatalf("weightByTime(%d, %d) = %d; want %d", tc.cur, tc.prv, got, tc.want)
			}
		})
	}
}

func pointsAt(timestamps ...int64) []TimeScalePoint {
	points := make([]TimeScalePoint, len(timestamps))
	for i, ts := range timestamps {
		points[i] = TimeScalePoint{Time: TimePoint{Timestamp: ts}}
	}
	return points
}

func TestFillWeightsForPoints(t *testing.T) {
	jan1 := int64(1577836800)
	day := int64(86400)

	t.Run("full_recompute_estimates_first_point", func(t *testing.T) {
		points := pointsAt(jan1, jan1+day, jan1+31*day, jan1+366*day)
		fillWeightsForPoints(points, 0)
		if points[1].TimeWeight != WeightDay {
			t.Fatalf("point[1] weight = %d; want %d", points[1].TimeWeight, WeightDay)
		}
		if points[2].TimeWeight != WeightMonth {
			t.Fatalf("point[2] weight = %d; want %d", points[2].TimeWeight, WeightMonth)
		}
		if points[3].TimeWeight != WeightYear {
			t.Fatalf("point[3] weight = %d; want %d", points[3].TimeWeight, WeightYear)
		}
		// first point measured against a synthetic predecessor one average
		// step back, which lands in the previous year here
		if points[0].TimeWeight != WeightYear {
			t.Fatalf("point[0] weight = %d; want %d", points[0].TimeWeight, WeightYear)
		}
	})

	t.Run("tail_recompute_preserves_prefix", func(t *testing.T) {
		points := pointsAt(jan1, jan1+day, jan1+2*day, jan1+3*day)
		fillWeightsForPoints(points, 0)
		points[0].TimeWeight = 99 // sentinel
		points[1].TimeWeight = 98
		fillWeightsForPoints(points, 2)
		if points[0].TimeWeight != 99 || points[1].TimeWeight != 98 {
			t.Fatalf("prefix weights touched: %d %d", points[0].TimeWeight, points[1].TimeWeight)
		}
		if points[2].TimeWeight != WeightDay || points[3].TimeWeight != WeightDay {
			t.Fatalf("tail weights = %d %d; want %d", points[2].TimeWeight, points[3].TimeWeight, WeightDay)
		}
	})

	t.Run("empty_and_single", func(t *testing.T) {
		fillWeightsForPoints(nil, 0)
		single := pointsAt(jan1)
		fillWeightsForPoints(single, 0)
		if single[0].TimeWeight != WeightLessThanSecond {
			t.Fatalf("single point weight = %d; want %d", single[0].TimeWeight, WeightLessThanSecond)
		}
	})
}
