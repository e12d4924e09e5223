package gmail

import (
	"fmt"
	"strings"
	"time"
)

// Result size limits applied to every list operation.
const (
	DefaultMaxResults = 20
	MaxResultsLimit   = 50
)

const dateLayout = "2006-01-02"

// Gmail search queries used by the adapter.
const (
	queryExcludeSpamTrash = "-in:spam -in:trash"
	queryUnread           = "is:unread"
	queryStarred          = "is:starred"
	queryHasAttachment    = "has:attachment"
)

// clampMax bounds a requested result count to 1..MaxResultsLimit, using
// DefaultMaxResults for non-positive values.
func clampMax(n int) int64 {
	switch {
	case n <= 0:
		return DefaultMaxResults
	case n > MaxResultsLimit:
		return MaxResultsLimit
	default:
		return int64(n)
	}
}

// senderQuery builds a from: query for a sender address or name.
func senderQuery(sender string) (string, error) {
	sender = strings.TrimSpace(sender)
	if sender == "" {
		return "", fmt.Errorf("%w: sender is required", ErrInvalidArgument)
	}
	if strings.ContainsAny(sender, " \t") {
		sender = `"` + strings.ReplaceAll(sender, `"`, "") + `"`
	}
	return "from:" + sender, nil
}

// dateRangeQuery builds an after:/before: query from YYYY-MM-DD dates.
// Gmail treats before: as exclusive.
func dateRangeQuery(start, end string) (string, error) {
	s, err := time.Parse(dateLayout, strings.TrimSpace(start))
	if err != nil {
		return "", fmt.Errorf("%w: start_date %q must be YYYY-MM-DD", ErrInvalidArgument, start)
	}
	e, err := time.Parse(dateLayout, strings.TrimSpace(end))
	if err != nil {
		return "", fmt.Errorf("%w: end_date %q must be YYYY-MM-DD", ErrInvalidArgument, end)
	}
	if e.Before(s) {
		return "", fmt.Errorf("%w: end_date %s is before start_date %s", ErrInvalidArgument, end, start)
	}
	return fmt.Sprintf("after:%s before:%s", s.Format("2006/01/02"), e.Format("2006/01/02")), nil
}
