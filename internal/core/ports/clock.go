package ports

import "time"

// Clock abstracts wall-clock time so the aggregator's grace-period and
// baseline arithmetic is testable without sleeping.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

// NowMs is the wall-clock convention used in record timestamps and keys:
// UTC milliseconds since epoch.
func NowMs(c Clock) int64 {
	return c.Now().UnixMilli()
}
