package analyze

import "wspranalytics/spot"

// Table is the uniform persisted shape of a derived table: a stable name, an
// ordered column list, and rows of cells. Cells are string, int, or float64;
// the sink renders them per output format.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]any
}

// Tables converts the result bundle into persistable tables, one per
// aggregation, in pipeline order.
func (r *Result) Tables() []Table {
	summary := Table{Name: TableSummary, Columns: []string{"label", "value"}}
	for _, m := range r.Summary {
		summary.Rows = append(summary.Rows, []any{m.Label, m.Value})
	}

	furthest := Table{Name: TableFurthest, Columns: []string{"rx_sign", "rx_loc", "distance", "Count"}}
	for _, s := range r.Furthest {
		furthest.Rows = append(furthest.Rows, []any{s.RxSign, s.RxLoc, s.Distance, s.Count})
	}

	signs := Table{Name: TableCallSigns, Columns: []string{"rx_sign", "Count", "gridRef"}}
	for _, s := range r.Receivers {
		signs.Rows = append(signs.Rows, []any{s.RxSign, s.Count, s.GridRef})
	}

	countries := Table{Name: TableCountries, Columns: []string{"Country", "Spots"}}
	for _, c := range r.Countries {
		countries.Rows = append(countries.Rows, []any{c.Country, c.Spots})
	}

	hourly := Table{Name: TableHourly, Columns: []string{"Time", "Mean", "Min", "Max", "Spots"}}
	for _, h := range r.Hourly {
		hourly.Rows = append(hourly.Rows, []any{h.Time.Format(spot.TimeLayout), h.Mean, h.Min, h.Max, h.Spots})
	}

	return []Table{
		summary,
		binTable(TableLinear, r.Linear),
		binTable(TableLog, r.Log),
		furthest,
		signs,
		countries,
		hourly,
	}
}

func binTable(name string, bins []BinCount) Table {
	t := Table{Name: name, Columns: []string{"Distance Range", "Number of Spots"}}
	for _, b := range bins {
		t.Rows = append(t.Rows, []any{b.Range, b.Spots})
	}
	return t
}
