package router

import (
	"strings"

	tele "gopkg.in/telebot.v4"

	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/middleware"
)

// Interceptor gets the first look at every text update. Returning true
// marks the update as consumed and skips command lookup and fallbacks.
type Interceptor interface {
	Intercept(c tele.Context) (bool, error)
}

// InterceptorFunc adapts a function to Interceptor.
type InterceptorFunc func(c tele.Context) (bool, error)

// Intercept calls f.
func (f InterceptorFunc) Intercept(c tele.Context) (bool, error) { return f(c) }

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes builds handlers for text and document routing.
func TextRoutes(icpt Interceptor, reg *tg.Registry, opts TextOptions) []tg.Route {
	handler := func(c tele.Context) error {
		if icpt != nil {
			s := newSummary("intercept")
			handled, err := icpt.Intercept(c)
			if handled || err != nil {
				s.log(c, "", err)
				return err
			}
		}

		text := c.Text()
		if reg != nil && strings.HasPrefix(text, "/") {
			if name, cmd, ok := reg.LookupCommand(strings.Fields(text)[0]); ok {
				return commandHandler(name, cmd)(c)
			}
		}

		if reg != nil {
			if fb := reg.TextFallback(); fb != nil {
				return newSummary("fallback").run(c, fb)
			}
		}
		if opts.UnknownText != nil {
			return newSummary("unknown_text").run(c, opts.UnknownText)
		}
		newSummary("unknown_text").skip(c)
		return nil
	}

	docHandler := func(c tele.Context) error {
		if opts.UnknownDocument != nil {
			return newSummary("unexpected_document").run(c, opts.UnknownDocument)
		}
		newSummary("unexpected_document").skip(c)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}
