package franchise

import (
	"time"
)

// SetNowFunc overrides the clock for tests; returns a restore func.
func SetNowFunc(f func() time.Time) func() {
	orig := nowFunc
	nowFunc = f
	return func() { nowFunc = orig }
}
