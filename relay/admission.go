package relay

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/m3rciful/relaybot/core/logger"
)

// DefaultMaxChars is the submission length limit when none is configured.
const DefaultMaxChars = 200

// DecisionKind enumerates admission outcomes.
type DecisionKind int

const (
	Admit DecisionKind = iota
	RejectTooLong
	RejectSuspended
	RejectQuotaExceeded
)

func (k DecisionKind) String() string {
	switch k {
	case Admit:
		return "admit"
	case RejectTooLong:
		return "too_long"
	case RejectSuspended:
		return "suspended"
	case RejectQuotaExceeded:
		return "quota_exceeded"
	}
	return "unknown"
}

// Decision is the result of AdmissionController.Evaluate. Limit is set for
// RejectTooLong.
type Decision struct {
	Kind  DecisionKind
	Limit int
}

// Admitted reports whether the submission may be forwarded.
func (d Decision) Admitted() bool { return d.Kind == Admit }

// Err maps a rejection onto its sentinel error; Admit yields nil.
func (d Decision) Err() error {
	switch d.Kind {
	case RejectTooLong:
		return ErrTooLong
	case RejectSuspended:
		return ErrSuspended
	case RejectQuotaExceeded:
		return ErrQuotaExceeded
	}
	return nil
}

// CharCount counts Unicode code points, the unit of the length limit.
func CharCount(text string) int { return utf8.RuneCountInString(text) }

// AdmissionController decides whether a user may submit right now.
type AdmissionController struct {
	maxChars    int
	suspensions *ExpiringFlagStore
	quota       *DailyQuotaTracker
	metrics     *Metrics
}

// NewAdmissionController composes the suspension store and quota tracker.
// maxChars <= 0 selects DefaultMaxChars.
func NewAdmissionController(maxChars int, suspensions *ExpiringFlagStore, quota *DailyQuotaTracker) *AdmissionController {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &AdmissionController{
		maxChars:    maxChars,
		suspensions: suspensions,
		quota:       quota,
	}
}

// WithMetrics attaches counters; nil detaches them.
func (a *AdmissionController) WithMetrics(m *Metrics) *AdmissionController {
	a.metrics = m
	return a
}

// MaxChars returns the configured length limit.
func (a *AdmissionController) MaxChars() int { return a.maxChars }

// Evaluate checks length, then suspension, then the daily quota. The quota
// is consumed only when every check passes, so a rejected message never
// spends the day's allowance.
func (a *AdmissionController) Evaluate(ctx context.Context, userID int64, text string, now time.Time, today Date) (Decision, error) {
	d, err := a.evaluate(ctx, userID, text, now, today)
	if err != nil {
		return Decision{}, err
	}
	a.metrics.admission(d.Kind)
	logger.Debug(ctx, "relay", "admission.decided",
		slog.Int64("user_id", userID),
		slog.String("decision", d.Kind.String()),
		slog.Int("chars", CharCount(text)),
		slog.String("date", today.String()),
	)
	return d, nil
}

func (a *AdmissionController) evaluate(ctx context.Context, userID int64, text string, now time.Time, today Date) (Decision, error) {
	if CharCount(text) > a.maxChars {
		return Decision{Kind: RejectTooLong, Limit: a.maxChars}, nil
	}
	suspended, err := a.suspensions.IsActive(ctx, userID, now)
	if err != nil {
		return Decision{}, err
	}
	if suspended {
		return Decision{Kind: RejectSuspended}, nil
	}
	consumed, err := a.quota.TryConsume(ctx, userID, today)
	if err != nil {
		return Decision{}, err
	}
	if !consumed {
		return Decision{Kind: RejectQuotaExceeded}, nil
	}
	return Decision{Kind: Admit}, nil
}

// Suspend blocks userID from submitting until now+d.
func (a *AdmissionController) Suspend(ctx context.Context, userID int64, now time.Time, d time.Duration) (time.Time, error) {
	return a.suspensions.Activate(ctx, userID, now, d)
}

// LiftSuspension removes a suspension and reports whether one was active.
func (a *AdmissionController) LiftSuspension(ctx context.Context, userID int64, now time.Time) (bool, error) {
	return a.suspensions.Deactivate(ctx, userID, now)
}

// SuspendedUntil returns the expiry of an active suspension.
func (a *AdmissionController) SuspendedUntil(ctx context.Context, userID int64, now time.Time) (time.Time, bool, error) {
	return a.suspensions.Expiry(ctx, userID, now)
}
