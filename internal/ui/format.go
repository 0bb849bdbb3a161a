package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bamsammich/treehash/internal/stats"
)

var rateUnits = [...]string{"KB/s", "MB/s", "GB/s", "TB/s", "PB/s"}

// FormatRate renders a throughput with three significant digits, e.g.
// "9.87 MB/s", "98.7 MB/s", "987 MB/s".
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec < 1024 {
		return fmt.Sprintf("%.0f B/s", max(bytesPerSec, 0))
	}
	v, unit := bytesPerSec/1024, 0
	for v >= 1024 && unit < len(rateUnits)-1 {
		v /= 1024
		unit++
	}
	prec := 0
	if v < 10 {
		prec = 2
	} else if v < 100 {
		prec = 1
	}
	return strconv.FormatFloat(v, 'f', prec, 64) + " " + rateUnits[unit]
}

// FormatCount groups digits in thousands: 48917 -> "48,917".
func FormatCount(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	groups = append([]string{digits}, groups...)
	return sign + strings.Join(groups, ",")
}

func FormatBytes(b int64) string { return stats.FormatBytes(b) }

// FormatDuration prints sub-second durations in milliseconds and anything
// longer rounded to whole seconds.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
	secs := int64(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %02dm %02ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %02ds", m, s)
	default:
		return fmt.Sprintf("%ds", s)
	}
}

// WorkerIndicator draws one cell per worker: filled while it holds a file.
func WorkerIndicator(busy, total int) string {
	busy = max(0, min(busy, total))
	return strings.Repeat("▪", busy) + strings.Repeat("□", total-busy)
}
