package analyze

import (
	"fmt"
	"math"
	"sort"

	"wspranalytics/spot"
)

// Bin is one labeled distance interval. Bounds are kilometers; Label follows
// the "{floor(lower)}-{floor(upper)} km" contract.
type Bin struct {
	Lower float64
	Upper float64
	Label string
}

// BinCount is one histogram row. JSON keys match the persisted column
// contract of both distance tables.
type BinCount struct {
	Range string `json:"Distance Range"`
	Spots int    `json:"Number of Spots"`
}

// LinearBins partitions rows with a valid distance into n equal-frequency
// bins using linear-interpolation quantile boundaries. Intervals are
// (lower, upper] with the first bin also including its lower bound, so the
// minimum lands in bin zero. Degenerate data (fewer distinct values than
// bins) produces duplicate quantile boundaries; duplicates are collapsed and
// the resulting empty bins omitted from the output.
func LinearBins(rs *spot.RecordSet, n int) ([]BinCount, error) {
	if n < 1 {
		n = DefaultBins
	}
	values := validDistances(rs)
	if len(values) == 0 {
		return nil, ErrNoDistances
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	edges := make([]float64, 0, n+1)
	for k := 0; k <= n; k++ {
		q := quantile(sorted, float64(k)/float64(n))
		if len(edges) == 0 || q != edges[len(edges)-1] {
			edges = append(edges, q)
		}
	}
	bins := makeBins(edges)
	counts := make([]int, len(bins))
	for _, v := range values {
		counts[searchRightClosed(edges, v)]++
	}
	return nonEmpty(bins, counts), nil
}

// LogBins partitions rows with a valid distance into n equal-width bins in
// log space: distances transform through log1p, boundaries spread evenly
// across [min, max] of the transformed values, and labels convert back
// through expm1. Intervals are [lower, upper) except the final bin, which
// closes on the right so the maximum distance is counted.
func LogBins(rs *spot.RecordSet, n int) ([]BinCount, error) {
	if n < 1 {
		n = DefaultBins
	}
	values := validDistances(rs)
	if len(values) == 0 {
		return nil, ErrNoDistances
	}
	logs := make([]float64, len(values))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range values {
		l := math.Log1p(v)
		logs[i] = l
		if l < lo {
			lo = l
		}
		if l > hi {
			hi = l
		}
	}
	if lo == hi {
		v := math.Expm1(lo)
		return []BinCount{{Range: binLabel(v, v), Spots: len(values)}}, nil
	}

	edges := linspace(lo, hi, n+1)
	bins := make([]Bin, n)
	for i := 0; i < n; i++ {
		lower := math.Expm1(edges[i])
		upper := math.Expm1(edges[i+1])
		bins[i] = Bin{Lower: lower, Upper: upper, Label: binLabel(lower, upper)}
	}
	counts := make([]int, n)
	for _, l := range logs {
		counts[searchLeftClosed(edges, l)]++
	}
	return nonEmpty(bins, counts), nil
}

func validDistances(rs *spot.RecordSet) []float64 {
	out := make([]float64, 0, rs.Len())
	for _, r := range rs.Rows() {
		if r.HasDistance {
			out = append(out, r.Distance)
		}
	}
	return out
}

// quantile returns the p-quantile of ascending-sorted values using linear
// interpolation between closest ranks.
func quantile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// linspace returns count evenly spaced points from lo to hi, both inclusive.
func linspace(lo, hi float64, count int) []float64 {
	step := (hi - lo) / float64(count-1)
	out := make([]float64, count)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	out[count-1] = hi
	return out
}

func makeBins(edges []float64) []Bin {
	// A single surviving edge means every distance is identical; one
	// degenerate bin holds all rows.
	if len(edges) == 1 {
		return []Bin{{Lower: edges[0], Upper: edges[0], Label: binLabel(edges[0], edges[0])}}
	}
	bins := make([]Bin, len(edges)-1)
	for i := range bins {
		bins[i] = Bin{Lower: edges[i], Upper: edges[i+1], Label: binLabel(edges[i], edges[i+1])}
	}
	return bins
}

// searchRightClosed locates v within right-closed intervals (e[i], e[i+1]],
// the first interval additionally including its lower bound.
func searchRightClosed(edges []float64, v float64) int {
	if len(edges) < 2 {
		return 0
	}
	i := sort.SearchFloat64s(edges[1:], v)
	if i >= len(edges)-1 {
		i = len(edges) - 2
	}
	return i
}

// searchLeftClosed locates v within left-closed intervals [e[i], e[i+1]);
// a value on the top edge belongs to the final bin.
func searchLeftClosed(edges []float64, v float64) int {
	i := sort.SearchFloat64s(edges, v)
	if i < len(edges) && edges[i] == v {
		if i == len(edges)-1 {
			return len(edges) - 2
		}
		return i
	}
	return i - 1
}

func nonEmpty(bins []Bin, counts []int) []BinCount {
	out := make([]BinCount, 0, len(bins))
	for i, b := range bins {
		if counts[i] == 0 {
			continue
		}
		out = append(out, BinCount{Range: b.Label, Spots: counts[i]})
	}
	return out
}

func binLabel(lower, upper float64) string {
	return fmt.Sprintf("%d-%d km", int(math.Floor(lower)), int(math.Floor(upper)))
}
