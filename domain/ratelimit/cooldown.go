// Package ratelimit holds the cooldown policy shared by the advisory client
// gate and the authoritative server check.
package ratelimit

import (
	"time"
)

// DefaultWindow is the minimum time between two accepted posts of one fingerprint.
const DefaultWindow = 10 * time.Second

// Decision is the outcome of a cooldown check.
type Decision struct {
	Allowed          bool
	RemainingSeconds int
}

// Evaluate compares the last accepted post with now.
// A nil last means nothing was ever posted.
func Evaluate(last *time.Time, now time.Time, window time.Duration) Decision {
	if last == nil {
		return Decision{Allowed: true}
	}
	remaining := window - now.Sub(*last)
	if remaining <= 0 {
		return Decision{Allowed: true}
	}
	return Decision{RemainingSeconds: ceilSeconds(remaining)}
}

func ceilSeconds(d time.Duration) int {
	return int((d + time.Second - 1) / time.Second)
}
