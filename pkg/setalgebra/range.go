package setalgebra

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseRange parses the add_range syntax "lo:hi", ":hi" (lo defaults
// to 1) or "lo:" (hi defaults to unbounded, reported as -1).
func ParseRange(s string) (lo, hi int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("range %q must be of the form lo:hi", s)
	}
	loStr, hiStr := parts[0], parts[1]

	if loStr == "" {
		lo = 1
	} else {
		lo, err = strconv.Atoi(loStr)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range lower bound %q: %w", loStr, err)
		}
	}

	if hiStr == "" {
		hi = -1
	} else {
		hi, err = strconv.Atoi(hiStr)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid range upper bound %q: %w", hiStr, err)
		}
	}
	return lo, hi, nil
}
