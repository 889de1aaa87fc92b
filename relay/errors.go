package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrTooLong rejects a submission above the character limit.
	ErrTooLong = errors.New("relay: text too long")
	// ErrSuspended rejects a submission from a suspended user.
	ErrSuspended = errors.New("relay: user suspended")
	// ErrQuotaExceeded rejects a second submission on the same day.
	ErrQuotaExceeded = errors.New("relay: daily quota exceeded")
	// ErrCorruptRecord marks a stored value that could not be parsed.
	// Such records are treated as absent.
	ErrCorruptRecord = errors.New("relay: corrupt stored record")
	// ErrUnknownAction is returned for moderator actions outside the known set.
	ErrUnknownAction = errors.New("relay: unknown moderator action")
)

// Delivery failure classes reported by the transport.
const (
	DeliveryUnreachable = "unreachable"
	DeliveryRateLimited = "rate_limited"
	DeliveryTransient   = "transient"
	DeliveryUnknown     = "unknown"
)

// DeliveryError reports that an instruction could not be delivered. It is
// informational: state mutations tied to the instruction stay in effect.
type DeliveryError struct {
	Recipient int64
	Class     string
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("relay: delivery to %d failed (%s): %v", e.Recipient, e.Class, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Code exposes the failure class to handler summaries.
func (e *DeliveryError) Code() string { return "delivery_" + e.Class }
