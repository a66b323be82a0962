package analyze

import "testing"

func TestFurthestStationsScenario(t *testing.T) {
	got := FurthestStations(threeRowSet(t))
	want := []FurthestStation{
		{RxSign: "A", RxLoc: "AA11", Distance: 300, Count: 2},
		{RxSign: "B", RxLoc: "BB22", Distance: 200, Count: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("row count got=%d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d got=%+v want %+v", i, got[i], want[i])
		}
	}
}

func TestFurthestStationsTieKeepsFirstOccurrence(t *testing.T) {
	rs := loadSet(t, "rx_sign,rx_loc,distance\n"+
		"A,FIRST,300\n"+
		"A,LATER,300\n")
	got := FurthestStations(rs)
	if len(got) != 1 {
		t.Fatalf("row count got=%d want 1", len(got))
	}
	if got[0].RxLoc != "FIRST" {
		t.Errorf("tie-break locator got=%q want FIRST", got[0].RxLoc)
	}
	if got[0].Count != 2 {
		t.Errorf("count got=%d want 2", got[0].Count)
	}
}

func TestFurthestStationsCountsFullSet(t *testing.T) {
	// The unparseable-distance row cannot be the maximum but still counts
	// toward the receiver's total.
	rs := loadSet(t, "rx_sign,rx_loc,distance\n"+
		"A,AA11,bogus\n"+
		"A,AA11,100\n"+
		"B,BB22,bogus\n")
	got := FurthestStations(rs)
	if len(got) != 1 {
		t.Fatalf("row count got=%d want 1 (B has no parseable distance)", len(got))
	}
	if got[0].RxSign != "A" || got[0].Distance != 100 || got[0].Count != 2 {
		t.Fatalf("row got=%+v want A/100/count 2", got[0])
	}
}

func TestFurthestStationsSortedDescending(t *testing.T) {
	rs := loadSet(t, "rx_sign,rx_loc,distance\n"+
		"NEAR,AA11,50\n"+
		"FAR,BB22,5000\n"+
		"MID,CC33,500\n")
	got := FurthestStations(rs)
	for i := 1; i < len(got); i++ {
		if got[i].Distance > got[i-1].Distance {
			t.Fatalf("not descending at %d: %v after %v", i, got[i].Distance, got[i-1].Distance)
		}
	}
	if got[0].RxSign != "FAR" {
		t.Errorf("first row got=%q want FAR", got[0].RxSign)
	}
}

func TestReceiverCountsModeAndOrder(t *testing.T) {
	rs := loadSet(t, "rx_sign,rx_loc,distance\n"+
		"A,AA11,1\n"+
		"A,AA12,2\n"+
		"A,AA11,3\n"+
		"B,BB22,4\n")
	got := ReceiverCounts(rs)
	if len(got) != 2 {
		t.Fatalf("row count got=%d want 2", len(got))
	}
	if got[0].RxSign != "A" || got[0].Count != 3 {
		t.Fatalf("first row got=%+v want A with count 3", got[0])
	}
	if got[0].GridRef != "AA11" {
		t.Errorf("mode got=%q want AA11", got[0].GridRef)
	}
	if got[1].RxSign != "B" || got[1].Count != 1 || got[1].GridRef != "BB22" {
		t.Errorf("second row got=%+v want B/1/BB22", got[1])
	}
}

func TestReceiverCountsModeTieDeterministic(t *testing.T) {
	rs := loadSet(t, "rx_sign,rx_loc,distance\n"+
		"A,ZZ99,1\n"+
		"A,AA11,2\n")
	got := ReceiverCounts(rs)
	if len(got) != 1 {
		t.Fatalf("row count got=%d want 1", len(got))
	}
	// Tied locator frequencies resolve to the lexicographically smallest.
	if got[0].GridRef != "AA11" {
		t.Errorf("tie mode got=%q want AA11", got[0].GridRef)
	}
}

func TestReceiverCountsEqualCountsKeepInputOrder(t *testing.T) {
	rs := loadSet(t, "rx_sign,rx_loc,distance\n"+
		"ZULU,AA11,1\n"+
		"ALFA,BB22,2\n")
	got := ReceiverCounts(rs)
	if len(got) != 2 {
		t.Fatalf("row count got=%d want 2", len(got))
	}
	if got[0].RxSign != "ZULU" || got[1].RxSign != "ALFA" {
		t.Errorf("order got=[%s %s] want first-encounter [ZULU ALFA]", got[0].RxSign, got[1].RxSign)
	}
}
