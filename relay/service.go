package relay

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/relay/kv"
)

// Submission is one inbound user message. It is not stored after forwarding.
type Submission struct {
	UserID      int64
	DisplayName string
	Username    string
	Text        string
}

// CharCount is the length checked against the limit.
func (s Submission) CharCount() int { return CharCount(s.Text) }

// Instruction is an opaque message for the transport to deliver.
type Instruction struct {
	Recipient int64
	Text      string
}

// ForwardInstruction asks the transport to post an admitted submission to
// the admin surface.
type ForwardInstruction struct {
	Submission Submission
	Received   time.Time
}

// UserOutcome is the result of OnUserMessage. Forward is set only when the
// submission was admitted; Reply is always addressed to the submitting user.
type UserOutcome struct {
	Decision Decision
	Forward  *ForwardInstruction
	Reply    Instruction
}

// ReplyRoute is the result of OnModeratorText. A zero Target means the text
// passes through untouched.
type ReplyRoute struct {
	Target  int64
	Forward Instruction
}

// PassThrough reports whether no reply binding claimed the text.
func (r ReplyRoute) PassThrough() bool { return r.Target == 0 }

// Options tunes a Service. Zero values select defaults.
type Options struct {
	MaxChars   int
	SuspendFor time.Duration
	Calendar   Calendar
	Texts      Texts
	Metrics    *Metrics
	Now        func() time.Time
}

// Service is the entry point used by the transport. It owns the admission
// controller, the moderation router and the reply bindings.
type Service struct {
	admission *AdmissionController
	router    *ModerationDecisionRouter
	bindings  *ReplyBindingTable
	texts     Texts
	calendar  Calendar
	metrics   *Metrics
	now       func() time.Time
}

// NewService wires the relay core on top of two namespaced stores.
func NewService(suspensions, daily kv.Store, opts Options) *Service {
	texts := DefaultTexts().WithOverrides(opts.Texts)
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	bindings := NewReplyBindingTable()
	admission := NewAdmissionController(opts.MaxChars, NewExpiringFlagStore(suspensions), NewDailyQuotaTracker(daily)).
		WithMetrics(opts.Metrics)
	router := NewModerationDecisionRouter(admission, bindings, texts, opts.SuspendFor).
		WithMetrics(opts.Metrics)
	return &Service{
		admission: admission,
		router:    router,
		bindings:  bindings,
		texts:     texts,
		calendar:  opts.Calendar,
		metrics:   opts.Metrics,
		now:       now,
	}
}

// Texts returns the effective catalog.
func (s *Service) Texts() Texts { return s.texts }

// Metrics returns the attached counters, possibly nil.
func (s *Service) Metrics() *Metrics { return s.metrics }

// Bindings exposes the reply binding table.
func (s *Service) Bindings() *ReplyBindingTable { return s.bindings }

// Router exposes the moderation router.
func (s *Service) Router() *ModerationDecisionRouter { return s.router }

// MaxChars returns the submission length limit.
func (s *Service) MaxChars() int { return s.admission.MaxChars() }

// Now returns the service clock reading.
func (s *Service) Now() time.Time { return s.now() }

// Greeting builds the /start answer: a suspension notice with its expiry
// while the user is suspended, the welcome text otherwise.
func (s *Service) Greeting(ctx context.Context, userID int64) (Instruction, error) {
	until, suspended, err := s.admission.SuspendedUntil(ctx, userID, s.now())
	if err != nil {
		return Instruction{}, err
	}
	if suspended {
		return Instruction{Recipient: userID, Text: s.suspendedUntil(until)}, nil
	}
	return Instruction{
		Recipient: userID,
		Text:      Render(s.texts.Start, "limit", strconv.Itoa(s.MaxChars())),
	}, nil
}

// OnUserMessage runs admission for a private message. Callers must offer
// the text to OnModeratorText first when the sender may hold a binding.
func (s *Service) OnUserMessage(ctx context.Context, sub Submission, now time.Time) (UserOutcome, error) {
	sub.Text = strings.TrimSpace(sub.Text)
	d, err := s.admission.Evaluate(ctx, sub.UserID, sub.Text, now, s.calendar.Today(now))
	if err != nil {
		return UserOutcome{}, err
	}

	out := UserOutcome{Decision: d, Reply: Instruction{Recipient: sub.UserID}}
	switch d.Kind {
	case Admit:
		out.Forward = &ForwardInstruction{Submission: sub, Received: now}
		out.Reply.Text = s.texts.Submitted
	case RejectTooLong:
		out.Reply.Text = Render(s.texts.TooLong, "limit", strconv.Itoa(d.Limit))
	case RejectSuspended:
		out.Reply.Text = s.texts.Suspended
		if until, ok, err := s.admission.SuspendedUntil(ctx, sub.UserID, now); err == nil && ok {
			out.Reply.Text = s.suspendedUntil(until)
		}
	case RejectQuotaExceeded:
		out.Reply.Text = s.texts.QuotaExceeded
	}
	return out, nil
}

// OnModeratorAction applies a button action at the service clock.
func (s *Service) OnModeratorAction(ctx context.Context, action Action, target, moderator int64) (Effects, error) {
	return s.router.Apply(ctx, action, target, moderator, s.now())
}

// OnModeratorText consumes the moderator's reply binding, if any, and turns
// text into a forward to the bound user. The binding is gone afterwards
// whether or not the forward is delivered.
func (s *Service) OnModeratorText(ctx context.Context, moderatorID int64, text string) ReplyRoute {
	target, ok := s.bindings.Take(moderatorID)
	s.metrics.moderatorText(ok)
	if !ok {
		return ReplyRoute{}
	}
	logger.Info(ctx, "relay", "binding.consumed",
		slog.Int64("moderator_id", moderatorID),
		slog.Int64("target_user_id", target),
	)
	return ReplyRoute{
		Target: target,
		Forward: Instruction{
			Recipient: target,
			Text:      Render(s.texts.ReplyHeader, "text", strings.TrimSpace(text)),
		},
	}
}

func (s *Service) suspendedUntil(until time.Time) string {
	loc := s.calendar.Location()
	return Render(s.texts.SuspendedUntil,
		"until", until.In(loc).Format("2006-01-02 15:04"),
		"tz", loc.String(),
	)
}
