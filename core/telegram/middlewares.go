package telegram

import (
	"time"

	tele "gopkg.in/telebot.v4"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/telegram/middleware"
)

// MiddlewareOptions carries the app hooks of the global chain.
type MiddlewareOptions struct {
	// OnLimited answers an update dropped by the rate limit.
	OnLimited tele.HandlerFunc
	// Metrics observes every update; nil disables it.
	Metrics *middleware.UpdateMetrics
}

// DefaultMiddlewares builds the global chain in order: panic recovery,
// update context, metrics, then the per-user rate limit. Limited updates
// are therefore still logged and counted.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
	}
	if opts.Metrics != nil {
		mws = append(mws, Middleware{Name: "metrics", Use: opts.Metrics.Middleware})
	}
	if cfg == nil || cfg.RateLimit.IntervalMS <= 0 {
		return mws
	}

	exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
	for _, kind := range cfg.RateLimit.ExcludeUpdates {
		exclude[kind] = struct{}{}
	}
	return append(mws, Middleware{
		Name: "rate_limit",
		Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
			Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
			Exclude:   exclude,
			OnLimited: opts.OnLimited,
		}),
	})
}
