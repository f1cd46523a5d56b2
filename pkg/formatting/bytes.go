// Package formatting renders and parses the human-facing strings the service
// exchanges: byte sizes, money, reference codes, and JSON embedded in model text.
package formatting

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"
)

// base-1024; EB is the largest unit an int64 can hold
var byteUnits = []string{"B", "KB", "MB", "GB", "TB", "PB", "EB"}

// FormatBytes renders n in the largest unit keeping the value at or above 1,
// e.g. FormatBytes(1536, 1) is "1.5 KB". Plain byte counts carry no decimals.
func FormatBytes(n int64, precision int) string {
	size, unit := float64(n), 0
	for math.Abs(size) >= 1024 && unit < len(byteUnits)-1 {
		size /= 1024
		unit++
	}
	if unit == 0 {
		precision = 0
	}
	return strconv.FormatFloat(size, 'f', max(precision, 0), 64) + " " + byteUnits[unit]
}

// ParseBytes reads sizes such as "1MB", "512 kb", or a bare byte count.
func ParseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	num := strings.TrimRightFunc(s, unicode.IsLetter)
	unit := strings.ToUpper(s[len(num):])

	value, err := strconv.ParseFloat(strings.TrimSpace(num), 64)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("invalid byte size %q", s)
	}

	exp := 0
	if unit != "" {
		if exp = slices.Index(byteUnits, unit); exp < 0 {
			return 0, fmt.Errorf("unknown byte size unit %q", unit)
		}
	}
	return int64(value * math.Pow(1024, float64(exp))), nil
}
