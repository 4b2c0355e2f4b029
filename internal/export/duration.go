package export

import "fmt"

const (
	msSecond = int64(1000)
	msMinute = 60 * msSecond
	msHour   = 60 * msMinute
	msDay    = 24 * msHour
	msMonth  = 30 * msDay
	msYear   = 365 * msDay
)

// FormatDuration renders a millisecond span in its largest whole unit,
// e.g. "1 hour" or "3 days". Nil renders as N/A.
func FormatDuration(ms *int64) string {
	if ms == nil {
		return notAvailable
	}
	v := *ms
	if v < 0 {
		v = 0
	}
	switch {
	case v < msMinute:
		return plural(v/msSecond, "second")
	case v < msHour:
		return plural(v/msMinute, "minute")
	case v < msDay:
		return plural(v/msHour, "hour")
	case v < msMonth:
		return plural(v/msDay, "day")
	case v < msYear:
		return plural(v/msMonth, "month")
	default:
		return plural(v/msYear, "year")
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
