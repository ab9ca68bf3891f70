package analytics

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPeriodDays = 30
	MaxPeriodDays     = 366
)

// ParsePeriod reads a window length in days. An empty value yields def.
func ParsePeriod(s string, def int) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	days, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q: must be a whole number of days", s)
	}
	if days < 1 || days > MaxPeriodDays {
		return 0, fmt.Errorf("invalid period %d: must be between 1 and %d days", days, MaxPeriodDays)
	}
	return days, nil
}

// WindowStart is the earliest transaction date included in a window of days ending at now.
func WindowStart(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}
