package availability

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var clockPattern = regexp.MustCompile(`^([0-1]?[0-9]|2[0-3]):[0-5][0-9]$`)

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

// ParseClock accepts "H:MM" or "HH:MM" in 24-hour notation.
func ParseClock(s string) (Clock, error) {
	if !clockPattern.MatchString(s) {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	h, m, _ := strings.Cut(s, ":")
	hh, _ := strconv.Atoi(h)
	mm, _ := strconv.Atoi(m)
	return Clock(hh*60 + mm), nil
}

// String renders the clock zero-padded, e.g. "09:00".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// NormalizeClock re-renders s zero-padded.
func NormalizeClock(s string) (string, error) {
	c, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}
