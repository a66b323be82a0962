package analyze

import (
	"errors"
	"testing"
	"time"
)

func TestHourlyStatsSingleHour(t *testing.T) {
	rs := threeRowSet(t)
	got, err := HourlyStats(rs)
	if err != nil {
		t.Fatalf("HourlyStats failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("row count got=%d want 1", len(got))
	}
	h := got[0]
	want := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	if !h.Time.Equal(want) {
		t.Errorf("hour got=%v want %v", h.Time, want)
	}
	if h.Spots != 3 {
		t.Errorf("spots got=%d want 3", h.Spots)
	}
	if h.Mean != 200 {
		t.Errorf("mean got=%v want 200", h.Mean)
	}
	if h.Min != 100 || h.Max != 300 {
		t.Errorf("min/max got=%d/%d want 100/300", h.Min, h.Max)
	}
}

func TestHourlyStatsSparseGrid(t *testing.T) {
	rs := loadSet(t, "time,rx_sign,rx_loc,distance\n"+
		"2024-03-01 10:10:00,A,AA11,100\n"+
		"2024-03-01 10:50:00,A,AA11,305\n"+
		"2024-03-01 12:30:00,B,BB22,200\n")
	got, err := HourlyStats(rs)
	if err != nil {
		t.Fatalf("HourlyStats failed: %v", err)
	}
	// Hour 11 has no observations and is dropped, not zero-filled.
	if len(got) != 2 {
		t.Fatalf("row count got=%d want 2 (%v)", len(got), got)
	}
	if got[0].Time.Hour() != 10 || got[1].Time.Hour() != 12 {
		t.Fatalf("hours got=[%d %d] want [10 12]", got[0].Time.Hour(), got[1].Time.Hour())
	}
	if got[0].Mean != 202.5 || got[0].Spots != 2 {
		t.Errorf("hour 10 got mean=%v spots=%d want 202.5/2", got[0].Mean, got[0].Spots)
	}
	if got[1].Spots != 1 || got[1].Min != 200 || got[1].Max != 200 {
		t.Errorf("hour 12 got=%+v want single 200 km spot", got[1])
	}

	dayStart := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)
	for _, h := range got {
		if h.Time.Before(dayStart) || !h.Time.Before(dayEnd) {
			t.Errorf("hour %v outside calendar span [%v, %v)", h.Time, dayStart, dayEnd)
		}
		if h.Spots < 1 {
			t.Errorf("hour %v has zero spots in output", h.Time)
		}
	}
}

func TestHourlyStatsSpansDays(t *testing.T) {
	rs := loadSet(t, "time,rx_sign,rx_loc,distance\n"+
		"2024-03-01 23:30:00,A,AA11,100\n"+
		"2024-03-02 01:10:00,B,BB22,200\n")
	got, err := HourlyStats(rs)
	if err != nil {
		t.Fatalf("HourlyStats failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("row count got=%d want 2", len(got))
	}
	want0 := time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)
	want1 := time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC)
	if !got[0].Time.Equal(want0) || !got[1].Time.Equal(want1) {
		t.Fatalf("hours got=[%v %v] want [%v %v]", got[0].Time, got[1].Time, want0, want1)
	}
}

func TestHourlyStatsTruncatesMinMax(t *testing.T) {
	rs := loadSet(t, "time,rx_sign,rx_loc,distance\n"+
		"2024-03-01 10:00:00,A,AA11,100.9\n"+
		"2024-03-01 10:30:00,B,BB22,200.7\n")
	got, err := HourlyStats(rs)
	if err != nil {
		t.Fatalf("HourlyStats failed: %v", err)
	}
	if got[0].Min != 100 || got[0].Max != 200 {
		t.Errorf("min/max got=%d/%d want truncated 100/200", got[0].Min, got[0].Max)
	}
	if got[0].Mean != 150.8 {
		t.Errorf("mean got=%v want 150.8", got[0].Mean)
	}
}

func TestHourlyStatsDropsDegradedRows(t *testing.T) {
	rs := loadSet(t, "time,rx_sign,rx_loc,distance\n"+
		"2024-03-01 10:00:00,A,AA11,100\n"+
		"bogus,B,BB22,200\n"+
		"2024-03-01 10:30:00,C,CC33,bogus\n")
	got, err := HourlyStats(rs)
	if err != nil {
		t.Fatalf("HourlyStats failed: %v", err)
	}
	if len(got) != 1 || got[0].Spots != 1 {
		t.Fatalf("got=%v want one hour with one countable row", got)
	}
}

func TestHourlyStatsErrors(t *testing.T) {
	t.Run("no time column", func(t *testing.T) {
		rs := loadSet(t, "rx_sign,rx_loc,distance\nA,AA11,100\n")
		if _, err := HourlyStats(rs); !errors.Is(err, ErrNoTimeColumn) {
			t.Fatalf("err got=%v want ErrNoTimeColumn", err)
		}
	})
	t.Run("no usable timestamps", func(t *testing.T) {
		rs := loadSet(t, "time,rx_sign,rx_loc,distance\nbogus,A,AA11,100\n")
		if _, err := HourlyStats(rs); !errors.Is(err, ErrNoTimestamps) {
			t.Fatalf("err got=%v want ErrNoTimestamps", err)
		}
	})
}

func TestCeilDayOnBoundary(t *testing.T) {
	midnight := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	if got := ceilDay(midnight); !got.Equal(midnight) {
		t.Errorf("ceilDay(midnight) got=%v want unchanged", got)
	}
	later := time.Date(2024, 3, 2, 0, 0, 1, 0, time.UTC)
	if got := ceilDay(later); !got.Equal(midnight.Add(24*time.Hour)) {
		t.Errorf("ceilDay got=%v want next midnight", got)
	}
}
