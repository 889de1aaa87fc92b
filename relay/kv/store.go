// Package kv provides the string key-value backends that hold the relay's
// durable state. Each Store instance covers one namespace such as
// "suspensions" or "daily".
package kv

import (
	"context"
	"strings"
	"time"
)

const (
	// NamespaceSuspensions maps user ids to RFC 3339 expiry timestamps.
	NamespaceSuspensions = "suspensions"
	// NamespaceDaily maps user ids to the ISO-8601 date of the last accepted submission.
	NamespaceDaily = "daily"
)

// Store is the synchronous get/set contract the relay core relies on.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set overwrites the value for key.
	Set(ctx context.Context, key, value string) error
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)
	// CompareAndSwap stores value only while key still holds old. Several
	// bot instances may share a backend, so this runs atomically in it.
	CompareAndSwap(ctx context.Context, key, old, value string) (bool, error)
	// CompareAndDelete removes key only while it still holds old.
	CompareAndDelete(ctx context.Context, key, old string) (bool, error)
}

// DateAdvancer is implemented by backends that can run the daily quota
// compare-and-set on the server side. AdvanceDate stores date under key and
// returns true when the current value is absent, not shaped like YYYY-MM-DD,
// or lexicographically before date. Otherwise it leaves the value untouched
// and returns false. Server-side backends only check the shape, so a value
// such as "2024-99-99" is refused here and healed by the caller with
// CompareAndSwap.
type DateAdvancer interface {
	AdvanceDate(ctx context.Context, key, date string) (bool, error)
}

// shouldAdvance is the in-process form of the DateAdvancer rule. It checks
// the stored value is a real calendar date, not just its shape.
func shouldAdvance(current string, present bool, date string) bool {
	if !present {
		return true
	}
	current = strings.TrimSpace(current)
	if _, err := time.Parse(time.DateOnly, current); err != nil {
		return true
	}
	return current < date
}
