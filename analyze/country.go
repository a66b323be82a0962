package analyze

import (
	"sort"

	"wspranalytics/spot"
)

// CountryCount is one per-country row. JSON keys match the persisted column
// contract.
type CountryCount struct {
	Country string `json:"Country"`
	Spots   int    `json:"Spots"`
}

// Countries resolves every row's receiver sign to a country and counts spots
// per country. Empty signs, failed lookups, and a nil resolver all land in
// UnknownCountry; this aggregation has no failure path and its counts always
// sum to the row count. Sorted by count descending; equal counts keep
// first-encounter order.
func Countries(rs *spot.RecordSet, res Resolver) []CountryCount {
	counts := make(map[string]int)
	var order []string
	for _, r := range rs.Rows() {
		country := UnknownCountry
		if res != nil && r.RxSign != "" {
			if c := res.Resolve(r.RxSign); c != "" {
				country = c
			}
		}
		if _, ok := counts[country]; !ok {
			order = append(order, country)
		}
		counts[country]++
	}

	out := make([]CountryCount, 0, len(order))
	for _, country := range order {
		out = append(out, CountryCount{Country: country, Spots: counts[country]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Spots > out[j].Spots })
	return out
}
