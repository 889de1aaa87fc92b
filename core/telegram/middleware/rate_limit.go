package middleware

import (
	"log/slog"
	"sync"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
)

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	Interval time.Duration
	// Exclude lists update kinds, as named by UpdateKind, that are never
	// limited.
	Exclude map[string]struct{}
	// OnLimited runs instead of the handler for a limited update.
	OnLimited tele.HandlerFunc
	// Now overrides the clock in tests.
	Now func() time.Time
}

// RateLimitMiddleware drops updates from a user that arrive less than
// Interval after the previous admitted one.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	seen := &lastSeen{interval: opts.Interval, at: make(map[int64]time.Time)}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			kind := UpdateKind(c)
			if _, skip := opts.Exclude[kind]; skip {
				return next(c)
			}
			if seen.admit(user.ID, now()) {
				return next(c)
			}

			logger.Warn(tghelpers.BuildContext(c), "tg", "tg.rate_limit",
				slog.String("status", "rate_limited"),
				slog.String("kind", kind),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}

// sweepAt is the tracked-user count above which expired entries are
// dropped on insert.
const sweepAt = 1024

// lastSeen remembers when each user was last admitted.
type lastSeen struct {
	interval time.Duration

	mu sync.Mutex
	at map[int64]time.Time
}

// admit records now for id unless id was admitted less than interval ago.
func (s *lastSeen) admit(id int64, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.at[id]; ok && now.Sub(last) < s.interval {
		return false
	}
	s.at[id] = now
	if len(s.at) > sweepAt {
		for uid, t := range s.at {
			if now.Sub(t) >= s.interval {
				delete(s.at, uid)
			}
		}
	}
	return true
}
