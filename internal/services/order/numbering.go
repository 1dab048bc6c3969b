package order

import (
	"errors"
	"fmt"
	"time"
)

// ErrDuplicateOrderNumber is returned by Tx.InsertOrder when another order took
// the same number first. Creation retries with a fresh count.
var ErrDuplicateOrderNumber = errors.New("duplicate order number")

// FormatOrderNumber renders ORD-<year>-<seq>, seq zero padded to at least three digits
func FormatOrderNumber(year, seq int) string {
	return fmt.Sprintf("ORD-%d-%03d", year, seq)
}

// YearWindow returns [Jan 1 of t's year, Jan 1 of the next year) in UTC
func YearWindow(t time.Time) (time.Time, time.Time) {
	year := t.UTC().Year()
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(1, 0, 0)
}
