package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Home Assistant expresses brightness on a 0-255 scale while people talk in
// percentages.
const MaxHABrightness = 255

func PercentToHA(percent float64) int {
	v := int(math.Ceil(percent * MaxHABrightness / 100))
	return clamp(v, 0, MaxHABrightness)
}

func HAToPercent(value float64) int {
	v := int(math.Round(value / MaxHABrightness * 100))
	return clamp(v, 0, 100)
}

// ParsePercent accepts "50", "50%", "50 percent" and "50.5".
func ParsePercent(s string) (float64, error) {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.TrimSuffix(t, "percent")
	t = strings.TrimSuffix(strings.TrimSpace(t), "%")
	t = strings.TrimSpace(t)
	if t == "" {
		return 0, fmt.Errorf("empty brightness")
	}
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing brightness %q: %w", s, err)
	}
	if v < 0 || v > 100 {
		return 0, fmt.Errorf("brightness %v out of range", v)
	}
	return v, nil
}

// ToFloat converts a JSON-decoded number or numeric string.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
