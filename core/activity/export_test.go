package activity

import "time"

// SetNow replaces the clock used for submission dates until restore is called.
func SetNow(now func() time.Time) (restore func()) {
	prev := nowFunc
	nowFunc = now
	return func() { nowFunc = prev }
}
