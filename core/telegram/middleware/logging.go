package middleware

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
)

// LoggerMiddleware sets up the correlation context of an update and logs its
// receipt at debug level. It runs both globally and on each route; only the
// pass that creates the context logs.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx, fresh := tghelpers.UpdateContext(c)
		if fresh && logger.ShouldSampleDebug() {
			logger.Debug(ctx, "tg", "update.received", receiptAttrs(c)...)
		}
		return next(c)
	}
}

// receiptAttrs describes the update without its full content: callback key
// and payload, or the length of a message text.
func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{slog.String("kind", UpdateKind(c))}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil && user.Username != "" {
		attrs = append(attrs, slog.String("username", logger.SanitizeLimit(user.Username, 64)))
	}
	if cb := c.Callback(); cb != nil {
		data := callbacks.Parse(cb)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(data.Unique, 128)),
			slog.String("payload", logger.SanitizeLimit(data.Payload, 256)),
		)
	} else if text := c.Text(); text != "" {
		attrs = append(attrs, slog.Int("chars", len([]rune(text))))
	}
	return attrs
}
