// Package spot defines the in-memory dataset the analytics pipeline consumes:
// one Record per WSPR reception report, loaded and validated from the
// wspr.live CSV export, plus the RecordSet container the aggregations derive
// their views from.
package spot

import "time"

// TimeLayout is the timestamp format used by the wspr.live export. All
// timestamps are UTC.
const TimeLayout = "2006-01-02 15:04:05"

// Record is one reception report. RxSign and RxLoc are kept verbatim apart
// from surrounding-whitespace trimming; duplicate rows are independent spots
// and all count. Distance and Time carry presence flags so count-based
// aggregations keep rows that numeric aggregations must skip.
type Record struct {
	RxSign      string    // receiving station callsign, primary grouping key
	RxLoc       string    // receiver Maidenhead locator, 4-6 characters
	TxSign      string    // transmitting station callsign (optional column)
	Band        string    // band tag as reported upstream (optional column)
	Distance    float64   // great-circle distance in km
	HasDistance bool      // false when the distance field failed numeric parse
	Time        time.Time // spot timestamp, UTC
	HasTime     bool      // false when absent or unparseable
}

// Grid4 returns the 4-character locator prefix, or the whole locator when it
// is shorter than 4 characters.
func (r Record) Grid4() string {
	if len(r.RxLoc) <= 4 {
		return r.RxLoc
	}
	return r.RxLoc[:4]
}

// RecordSet is an ordered collection of Records, immutable after load. Each
// aggregation builds its own derived view; none may modify the rows in place.
type RecordSet struct {
	rows        []Record
	hasTimeCol  bool
	fingerprint uint64
	stats       LoadStats
}

// Rows returns the loaded records in input order. The slice is shared, not
// copied; callers must treat it as read-only.
func (rs *RecordSet) Rows() []Record { return rs.rows }

// Len returns the number of loaded records.
func (rs *RecordSet) Len() int { return len(rs.rows) }

// HasTimeColumn reports whether the source payload carried a time column.
// Hourly statistics require it; every other aggregation runs without it.
func (rs *RecordSet) HasTimeColumn() bool { return rs.hasTimeCol }

// Fingerprint returns a 64-bit xxh3 hash over the raw row content in input
// order. Two loads of byte-identical payloads produce the same fingerprint.
func (rs *RecordSet) Fingerprint() uint64 { return rs.fingerprint }

// Stats returns the loader's row accounting for this set.
func (rs *RecordSet) Stats() LoadStats { return rs.stats }
