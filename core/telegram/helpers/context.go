package helpers

import (
	"context"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
)

// updateCtxKey holds the update's context.Context on tele.Context.
const updateCtxKey = "update_ctx"

// UpdateContext returns the logging context of the update being handled and
// reports whether this call created it. The context carries the rid and the
// update, user and chat ids.
func UpdateContext(c tele.Context) (context.Context, bool) {
	if ctx, ok := c.Get(updateCtxKey).(context.Context); ok {
		return ctx, false
	}
	upd := c.Update()
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	ctx := logger.WithRID(context.Background(), logger.BuildRID(upd.ID, chatID, userID))
	ctx = logger.WithUpdateMeta(ctx, upd.ID, userID, chatID)
	ctx = logger.WithLogger(ctx, logger.Component("tg"))
	c.Set(updateCtxKey, ctx)
	return ctx, true
}

// BuildContext returns the update context, creating it on first use.
func BuildContext(c tele.Context) context.Context {
	ctx, _ := UpdateContext(c)
	return ctx
}

// WithHandler names the handler in the update context and returns it.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := BuildContext(c)
	if handler == "" {
		return ctx
	}
	ctx = logger.WithHandler(ctx, handler)
	c.Set(updateCtxKey, ctx)
	return ctx
}
