package ports

import "time"

// Clock is the source of time used to evaluate timelock stages. It must be
// monotonically non-decreasing.
type Clock interface {
	Now() time.Time
}
