package analyze

import "wspranalytics/spot"

// SummaryMetric is one labeled scalar of the dataset summary.
type SummaryMetric struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// Summarize computes the four dataset-level counts: total rows, distinct
// receiver signs, and distinct grid squares at 4-character and full locator
// precision. Zero counts are valid output; the loader already rejects empty
// datasets before this runs.
func Summarize(rs *spot.RecordSet) []SummaryMetric {
	signs := make(map[string]struct{})
	grid6 := make(map[string]struct{})
	grid4 := make(map[string]struct{})
	for _, r := range rs.Rows() {
		signs[r.RxSign] = struct{}{}
		grid6[r.RxLoc] = struct{}{}
		grid4[r.Grid4()] = struct{}{}
	}
	return []SummaryMetric{
		{Label: "Total spots", Value: rs.Len()},
		{Label: "Total unique spots", Value: len(signs)},
		{Label: "Total unique grid squares (4 digits)", Value: len(grid4)},
		{Label: "Total unique grid squares (6 digits)", Value: len(grid6)},
	}
}
