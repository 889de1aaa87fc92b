package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
)

const maxStackBytes = 8 << 10

// RecoverMiddleware turns a handler panic into an error for the route
// summary. A panicking callback is still answered so the button stops
// spinning.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			stack := debug.Stack()
			logger.Error(tghelpers.BuildContext(c), "tg", "tg.panic",
				slog.String("kind", UpdateKind(c)),
				slog.String("err", fmt.Sprint(r)),
				slog.String("stack", string(stack[:min(len(stack), maxStackBytes)])),
			)
			if c.Callback() != nil {
				_ = c.Respond()
			}
			err = fmt.Errorf("telegram: handler panic: %v", r)
		}()
		return next(c)
	}
}
