// Package activity keeps a short per-member history of borrows and returns.
package activity

import (
	"context"
	"fmt"

	"lims/library"
)

// DefaultLimit bounds the history kept per member.
const DefaultLimit = 20

// Log records circulation events and lists the most recent ones of a member.
type Log interface {
	library.ActivityRecorder
	Recent(ctx context.Context, memberID int64, n int) ([]library.CirculationEvent, error)
	Close() error
}

func memberKey(memberID int64) string {
	return fmt.Sprintf("lims:activity:member:%d", memberID)
}

// clamp keeps a requested count inside [1, limit].
func clamp(n, limit int) int {
	if n <= 0 || n > limit {
		return limit
	}
	return n
}
