// Package chat groups messages into per-counterparty conversations and
// holds the presence and scroll rules the chat surface follows.
package chat

import (
	"voyago/backend/internal/utils"
)

// Key is the canonical conversation key for a pair of users: both IDs in
// sorted order joined by "_". It is symmetric in its arguments.
func Key(a, b utils.SixID) string {
	sa, sb := a.String(), b.String()
	if sb < sa {
		sa, sb = sb, sa
	}
	return sa + "_" + sb
}
