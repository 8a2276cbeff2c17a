package util

import (
	"fmt"
	"strings"
	"time"
)

// FormatTimestamp converts a time in seconds to the ffmpeg timestamp format
func FormatTimestamp(t Rational) string {
	millis := t.MulInt(1000).Floor()
	neg := millis < 0
	if neg {
		millis = -millis
	}
	hours := millis / 3_600_000
	minutes := (millis / 60_000) % 60
	secs := float64(millis%60_000) / 1000
	s := fmt.Sprintf("%02d:%02d:%06.3f", hours, minutes, secs)
	if neg {
		s = "-" + s
	}
	return s
}

// ParseTimestamp parses a timestamp string (HH:MM:SS.mmm, MM:SS, seconds
// or a fraction such as 1/30) into exact seconds
func ParseTimestamp(s string) (Rational, error) {
	s = strings.TrimSpace(s)

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return Zero, fmt.Errorf("invalid timestamp format: %s", s)
	}

	total := Zero
	for i, part := range parts {
		v, err := ParseRational(part)
		if err != nil {
			return Zero, fmt.Errorf("invalid timestamp format: %s", s)
		}
		if i < len(parts)-1 && v.Sign() < 0 {
			return Zero, fmt.Errorf("invalid timestamp format: %s", s)
		}
		total = total.MulInt(60).Add(v)
	}

	return total, nil
}

// ParseFrameRate parses frame rate from ffprobe format (e.g., "30000/1001")
func ParseFrameRate(s string) (Rational, error) {
	r, err := ParseRational(s)
	if err != nil {
		return Zero, err
	}
	if r.Sign() <= 0 {
		return Zero, fmt.Errorf("frame rate must be positive: %s", s)
	}
	return r, nil
}

// ToDuration converts exact seconds to a time.Duration, truncating below
// one nanosecond.
func ToDuration(t Rational) time.Duration {
	return time.Duration(t.MulInt(int64(time.Second)).Floor())
}
