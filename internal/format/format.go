package format

import (
	"fmt"
	"time"
)

// Timestamp formats a position in a recording as MM:SS.mmm, or HH:MM:SS.mmm
// once it reaches an hour. Chunk boundaries are millisecond-precise, so the
// fractional part is always shown.
func Timestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	ms := int(d.Milliseconds() % 1000)
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, ms)
	}
	return fmt.Sprintf("%02d:%02d.%03d", m, s, ms)
}

// Millis formats a duration as a whole number of milliseconds ("1407ms").
func Millis(d time.Duration) string {
	return fmt.Sprintf("%dms", d.Milliseconds())
}

// Stretch formats the ratio between an output and an input length ("x2.00").
// A zero input yields "x0.00".
func Stretch(out, in time.Duration) string {
	if in <= 0 {
		return "x0.00"
	}
	return fmt.Sprintf("x%.2f", float64(out)/float64(in))
}

// Size formats a size in bytes for human display.
// Uses MB for sizes >= 1MB, KB otherwise.
func Size(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
	)
	if bytes >= mb {
		return fmt.Sprintf("%.1f MB", float64(bytes)/mb)
	}
	if bytes >= kb {
		return fmt.Sprintf("%d KB", bytes/kb)
	}
	return fmt.Sprintf("%d bytes", bytes)
}
