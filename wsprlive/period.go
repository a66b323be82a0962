package wsprlive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// periods is the fetch window menu, shortest to longest.
var periods = []string{
	"10 minutes",
	"30 minutes",
	"1 hour",
	"3 hours",
	"6 hours",
	"12 hours",
	"1 day",
	"2 days",
	"3 days",
	"5 days",
	"7 days",
	"14 days",
}

// Periods returns the selectable fetch windows in menu order.
func Periods() []string {
	out := make([]string, len(periods))
	copy(out, periods)
	return out
}

// ValidPeriod reports whether s is one of the menu entries.
func ValidPeriod(s string) bool {
	for _, p := range periods {
		if p == s {
			return true
		}
	}
	return false
}

// ParsePeriod converts a period like "10 minutes" or "2 days" into a
// duration. The unit matches by prefix so singular and plural both work.
func ParsePeriod(s string) (time.Duration, error) {
	parts := strings.Fields(s)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid period %q", s)
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid period %q: %w", s, err)
	}
	unit := parts[1]
	switch {
	case strings.HasPrefix(unit, "minute"):
		return time.Duration(n) * time.Minute, nil
	case strings.HasPrefix(unit, "hour"):
		return time.Duration(n) * time.Hour, nil
	case strings.HasPrefix(unit, "day"):
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown period unit %q", unit)
}
