package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
)

// DefaultSuspension is the length of a moderator-issued suspension.
const DefaultSuspension = 7 * 24 * time.Hour

// Action is a moderator decision on a submission.
type Action string

const (
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionSuspend Action = "suspend"
	ActionLift    Action = "lift"
	ActionReply   Action = "reply"
)

// Actions lists the moderator actions in button order.
func Actions() []Action {
	return []Action{ActionAccept, ActionReject, ActionReply, ActionSuspend, ActionLift}
}

// ParseAction decodes a callback tag. "block" is accepted for suspend.
func ParseAction(tag string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(tag))); a {
	case ActionAccept, ActionReject, ActionSuspend, ActionLift, ActionReply:
		return a, nil
	case "block":
		return ActionSuspend, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAction, tag)
}

// EffectKind classifies an Effect.
type EffectKind int

const (
	// EffectNotifyUser sends Text to the end user (Recipient).
	EffectNotifyUser EffectKind = iota
	// EffectNotifyAdmin shows Text on the admin surface: the submission card
	// and the acting moderator (Recipient).
	EffectNotifyAdmin
	// EffectMutation records a state change that already happened.
	EffectMutation
	// EffectInfo is an informational note for the moderator, such as a
	// no-op lift or a failed delivery.
	EffectInfo
)

func (k EffectKind) String() string {
	switch k {
	case EffectNotifyUser:
		return "notify_user"
	case EffectNotifyAdmin:
		return "notify_admin"
	case EffectMutation:
		return "mutation"
	case EffectInfo:
		return "info"
	}
	return "unknown"
}

// Effect is one step of a moderation outcome.
type Effect struct {
	Kind      EffectKind
	Recipient int64
	Text      string
	// CloseCard asks the transport to drop the card's action buttons.
	CloseCard bool
	Err       error
}

// Effects is the ordered outcome of a moderator action.
type Effects []Effect

// Of returns the effects of the given kind, preserving order.
func (e Effects) Of(kind EffectKind) Effects {
	var out Effects
	for _, eff := range e {
		if eff.Kind == kind {
			out = append(out, eff)
		}
	}
	return out
}

// Mutated reports whether the action changed relay state.
func (e Effects) Mutated() bool { return len(e.Of(EffectMutation)) > 0 }

// ModerationDecisionRouter turns moderator actions into state changes and
// notifications.
type ModerationDecisionRouter struct {
	admission  *AdmissionController
	bindings   *ReplyBindingTable
	texts      Texts
	suspendFor time.Duration
	metrics    *Metrics
}

// NewModerationDecisionRouter wires the router. suspendFor <= 0 selects
// DefaultSuspension.
func NewModerationDecisionRouter(admission *AdmissionController, bindings *ReplyBindingTable, texts Texts, suspendFor time.Duration) *ModerationDecisionRouter {
	if suspendFor <= 0 {
		suspendFor = DefaultSuspension
	}
	return &ModerationDecisionRouter{
		admission:  admission,
		bindings:   bindings,
		texts:      texts,
		suspendFor: suspendFor,
	}
}

// WithMetrics attaches counters; nil detaches them.
func (r *ModerationDecisionRouter) WithMetrics(m *Metrics) *ModerationDecisionRouter {
	r.metrics = m
	return r
}

// SuspendDays is the suspension length in whole days, for display.
func (r *ModerationDecisionRouter) SuspendDays() int {
	return int(r.suspendFor / (24 * time.Hour))
}

// Apply performs action on target on behalf of moderator. Mutations happen
// before any notification is produced; a later delivery failure does not
// undo them.
func (r *ModerationDecisionRouter) Apply(ctx context.Context, action Action, target, moderator int64, now time.Time) (Effects, error) {
	days := strconv.Itoa(r.SuspendDays())
	var effects Effects

	switch action {
	case ActionAccept:
		effects = Effects{
			{Kind: EffectNotifyUser, Recipient: target, Text: r.texts.Accepted},
			{Kind: EffectNotifyAdmin, Recipient: moderator, Text: r.texts.CardAccepted, CloseCard: true},
		}
	case ActionReject:
		effects = Effects{
			{Kind: EffectNotifyUser, Recipient: target, Text: r.texts.Rejected},
			{Kind: EffectNotifyAdmin, Recipient: moderator, Text: r.texts.CardRejected, CloseCard: true},
		}
	case ActionSuspend:
		until, err := r.admission.Suspend(ctx, target, now, r.suspendFor)
		if err != nil {
			return nil, fmt.Errorf("relay: suspend %d: %w", target, err)
		}
		effects = Effects{
			{Kind: EffectMutation, Recipient: target, Text: "suspended until " + until.Format(time.RFC3339)},
			{Kind: EffectNotifyUser, Recipient: target, Text: Render(r.texts.SuspendedNotice, "days", days)},
			{Kind: EffectNotifyAdmin, Recipient: moderator, Text: Render(r.texts.CardSuspended, "days", days), CloseCard: true},
		}
	case ActionLift:
		lifted, err := r.admission.LiftSuspension(ctx, target, now)
		if err != nil {
			return nil, fmt.Errorf("relay: lift %d: %w", target, err)
		}
		if !lifted {
			effects = Effects{
				{Kind: EffectInfo, Recipient: moderator, Text: r.texts.NotSuspended},
			}
			break
		}
		effects = Effects{
			{Kind: EffectMutation, Recipient: target, Text: "suspension lifted"},
			{Kind: EffectNotifyUser, Recipient: target, Text: r.texts.LiftedNotice},
			{Kind: EffectNotifyAdmin, Recipient: moderator, Text: r.texts.CardLifted, CloseCard: true},
		}
	case ActionReply:
		prev, replaced := r.bindings.Open(moderator, target)
		if replaced && prev != target {
			logger.Info(ctx, "relay", "binding.replaced",
				slog.Int64("moderator_id", moderator),
				slog.Int64("previous_target", prev),
				slog.Int64("target_user_id", target),
			)
		}
		effects = Effects{
			{Kind: EffectMutation, Recipient: target, Text: "reply binding opened"},
			{Kind: EffectNotifyAdmin, Recipient: moderator, Text: r.texts.AwaitingReply},
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	r.metrics.moderated(action)
	logger.Info(ctx, "relay", "moderation.applied",
		slog.String("status", "ok"),
		slog.String("action", string(action)),
		slog.Int64("target_user_id", target),
		slog.Int64("moderator_id", moderator),
		slog.Bool("mutated", effects.Mutated()),
	)
	return effects, nil
}

// DeliveryFailure converts a failed user notification into an informational
// effect for the moderator.
func (r *ModerationDecisionRouter) DeliveryFailure(moderator int64, err error) Effect {
	return Effect{Kind: EffectInfo, Recipient: moderator, Text: r.texts.UserUnreachable, Err: err}
}
