package analyze

import (
	"math"
	"time"

	"wspranalytics/spot"
)

// HourlyStat is one hour's distance statistics. Only hours with at least one
// observation appear; Min and Max truncate toward zero, Mean rounds to two
// decimals. JSON keys match the persisted column contract.
type HourlyStat struct {
	Time  time.Time `json:"Time"`
	Mean  float64   `json:"Mean"`
	Min   int       `json:"Min"`
	Max   int       `json:"Max"`
	Spots int       `json:"Spots"`
}

// HourlyStats buckets rows carrying both a parsed timestamp and a valid
// distance into hourly slots. The slot grid is calendar-complete: it spans
// from the floor of the earliest day to the ceiling of the latest day minus
// one second, one slot per hour, and the output is exactly the non-empty
// subset of that grid in ascending order. The dense-grid-then-sparse-output
// shape guards against duplicated or timezone-shifted hours and is kept
// deliberately, not zero-filled.
func HourlyStats(rs *spot.RecordSet) ([]HourlyStat, error) {
	if !rs.HasTimeColumn() {
		return nil, ErrNoTimeColumn
	}

	type acc struct {
		sum      float64
		min, max float64
		n        int
	}
	buckets := make(map[int64]*acc)
	var minT, maxT time.Time
	for _, r := range rs.Rows() {
		if !r.HasTime || !r.HasDistance {
			continue
		}
		if minT.IsZero() || r.Time.Before(minT) {
			minT = r.Time
		}
		if maxT.IsZero() || r.Time.After(maxT) {
			maxT = r.Time
		}
		key := r.Time.Truncate(time.Hour).Unix()
		a, ok := buckets[key]
		if !ok {
			a = &acc{min: r.Distance, max: r.Distance}
			buckets[key] = a
		}
		a.sum += r.Distance
		a.n++
		if r.Distance < a.min {
			a.min = r.Distance
		}
		if r.Distance > a.max {
			a.max = r.Distance
		}
	}
	if len(buckets) == 0 {
		return nil, ErrNoTimestamps
	}

	start := floorDay(minT)
	end := ceilDay(maxT).Add(-time.Second)

	out := make([]HourlyStat, 0, len(buckets))
	for slot := start; !slot.After(end); slot = slot.Add(time.Hour) {
		a, ok := buckets[slot.Unix()]
		if !ok {
			continue
		}
		out = append(out, HourlyStat{
			Time:  slot,
			Mean:  round2(a.sum / float64(a.n)),
			Min:   int(a.min),
			Max:   int(a.max),
			Spots: a.n,
		})
	}
	return out, nil
}

func floorDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ceilDay returns the next midnight, or t itself when already on one.
func ceilDay(t time.Time) time.Time {
	d := floorDay(t)
	if d.Equal(t.UTC()) {
		return d
	}
	return d.Add(24 * time.Hour)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
