package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/callbacks"
	"github.com/m3rciful/relaybot/core/telegram/middleware"
)

// CallbackOptions customises fallback behaviour for callbacks.
type CallbackOptions struct {
	NotFound tele.HandlerFunc
	// Guard runs before the registered handler, e.g. a moderator check.
	Guard tele.MiddlewareFunc
}

// CallbackRoute returns a handler that routes callbacks through the registry.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		key := callbacks.Of(c).Unique
		s := newSummary("callback."+handlerName(key), slog.String("cb_key", key))

		h, ok := reg.GetCallback(key)
		if !ok || h == nil {
			s.attrs = append(s.attrs, slog.String("reason", "not_found"))
			h = reg.CallbackNotFound()
			if h == nil {
				h = opts.NotFound
			}
			if h == nil {
				s.skip(c)
				return nil
			}
			return s.run(c, h)
		}
		if opts.Guard != nil {
			h = opts.Guard(h)
		}
		return s.run(c, h)
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
