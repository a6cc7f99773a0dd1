package journals

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayPrefix returns the date-scoped entry number prefix, e.g. "JE-20260831-".
func DayPrefix(date time.Time) string {
	return fmt.Sprintf("JE-%s-", date.Format("20060102"))
}

// NextEntryNumber computes the successor of the lexicographically-largest
// existing number for the day. latest is empty for the first entry of the
// day, which yields suffix 001. The read of latest and the insert of the new
// number must share a transaction; the repository locks the latest row so
// concurrent postings serialize instead of duplicating numbers.
func NextEntryNumber(latest, prefix string) string {
	seq := 1
	if latest != "" {
		if idx := strings.LastIndex(latest, "-"); idx >= 0 {
			if parsed, err := strconv.Atoi(latest[idx+1:]); err == nil {
				seq = parsed + 1
			}
		}
	}
	return fmt.Sprintf("%s%03d", prefix, seq)
}
