package analyze

import (
	"sort"

	"wspranalytics/spot"
)

// FurthestStation is one furthest-ranking row: the receiver's single
// longest-distance spot joined with its total row count. JSON keys match the
// persisted column contract.
type FurthestStation struct {
	RxSign   string  `json:"rx_sign"`
	RxLoc    string  `json:"rx_loc"`
	Distance float64 `json:"distance"`
	Count    int     `json:"Count"`
}

// ReceiverCount is one receiver-frequency row: total rows for the sign and
// the most frequent locator reported by it.
type ReceiverCount struct {
	RxSign  string `json:"rx_sign"`
	Count   int    `json:"Count"`
	GridRef string `json:"gridRef"`
}

// FurthestStations selects, per receiver sign, the row with the maximum
// distance (ties keep the first occurrence in input order) and joins it with
// the sign's total row count over the full set. Signs without a single
// parseable distance have no maximum and are omitted. Sorted by distance
// descending; equal distances keep first-encounter order.
func FurthestStations(rs *spot.RecordSet) []FurthestStation {
	counts := make(map[string]int)
	for _, r := range rs.Rows() {
		counts[r.RxSign]++
	}

	type maxRow struct {
		loc  string
		dist float64
	}
	best := make(map[string]maxRow)
	var order []string
	for _, r := range rs.Rows() {
		if !r.HasDistance {
			continue
		}
		b, ok := best[r.RxSign]
		if !ok {
			best[r.RxSign] = maxRow{loc: r.RxLoc, dist: r.Distance}
			order = append(order, r.RxSign)
			continue
		}
		if r.Distance > b.dist {
			best[r.RxSign] = maxRow{loc: r.RxLoc, dist: r.Distance}
		}
	}

	out := make([]FurthestStation, 0, len(order))
	for _, sign := range order {
		b := best[sign]
		out = append(out, FurthestStation{
			RxSign:   sign,
			RxLoc:    b.loc,
			Distance: b.dist,
			Count:    counts[sign],
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance > out[j].Distance })
	return out
}

// ReceiverCounts builds the receiver frequency table: per sign, the total
// row count and the mode of its locators. Mode ties resolve to the
// lexicographically smallest locator so repeat runs stay deterministic.
// Sorted by count descending; equal counts keep first-encounter order.
func ReceiverCounts(rs *spot.RecordSet) []ReceiverCount {
	type group struct {
		count int
		locs  map[string]int
	}
	groups := make(map[string]*group)
	var order []string
	for _, r := range rs.Rows() {
		g, ok := groups[r.RxSign]
		if !ok {
			g = &group{locs: make(map[string]int)}
			groups[r.RxSign] = g
			order = append(order, r.RxSign)
		}
		g.count++
		g.locs[r.RxLoc]++
	}

	out := make([]ReceiverCount, 0, len(order))
	for _, sign := range order {
		g := groups[sign]
		mode := ""
		modeN := -1
		for loc, n := range g.locs {
			if n > modeN || (n == modeN && loc < mode) {
				mode, modeN = loc, n
			}
		}
		out = append(out, ReceiverCount{RxSign: sign, Count: g.count, GridRef: mode})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}
