package bot

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
	tgsender "github.com/m3rciful/relaybot/core/telegram/sender"
	"github.com/m3rciful/relaybot/relay"
)

var errNotStarted = errors.New("bot: telegram client not started")

// deliver sends text to chatID through the dispatcher's retry policy. A
// failure is classified, counted and returned as *relay.DeliveryError.
func (a *App) deliver(ctx context.Context, action string, chatID int64, text string, opts *tele.SendOptions) (*tele.Message, error) {
	if a.client == nil {
		return nil, errNotStarted
	}
	var sent *tele.Message
	err := a.sender.Do(ctx, action, "sendMessage", func() error {
		var sendOpts []interface{}
		if opts != nil {
			sendOpts = append(sendOpts, opts)
		}
		msg, err := a.client.Send(tele.ChatID(chatID), text, sendOpts...)
		if err != nil {
			return err
		}
		sent = msg
		return nil
	})
	if err != nil {
		return nil, a.deliveryFailed(ctx, action, chatID, err)
	}
	return sent, nil
}

func (a *App) deliveryFailed(ctx context.Context, action string, chatID int64, err error) error {
	dErr := &relay.DeliveryError{Recipient: chatID, Class: tgsender.Classify(err), Err: err}
	a.service.Metrics().DeliveryFailed(dErr.Class)
	logger.Warn(ctx, "relay", "delivery.failed",
		slog.String("status", "fail"),
		slog.String("action", action),
		slog.Int64("target_user_id", chatID),
		slog.String("class", dErr.Class),
		slog.String("err_code", dErr.Code()),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
	return dErr
}

// answer responds to a callback query; an empty text just stops the spinner.
func (a *App) answer(ctx context.Context, cb *tele.Callback, text string, alert bool) {
	if a.client == nil || cb == nil {
		return
	}
	resp := &tele.CallbackResponse{Text: text, ShowAlert: alert && text != ""}
	if err := a.client.Respond(cb, resp); err != nil {
		logger.Debug(ctx, "tg", "callback.answer_failed", slog.String("err", err.Error()))
	}
}

// notify queues a best-effort message nobody waits on, such as the
// rate-limit notice. A saturated or closed queue falls back to a direct send.
func (a *App) notify(ctx context.Context, action string, chatID int64, text string) {
	if a.client == nil {
		return
	}
	send := func() error {
		_, err := a.client.Send(tele.ChatID(chatID), text)
		return err
	}
	err := a.sender.Enqueue(ctx, action, "sendMessage", send)
	if errors.Is(err, tgsender.ErrQueueFull) || errors.Is(err, tgsender.ErrQueueClosed) {
		logger.Debug(ctx, "tg.sender", "queue.fallback",
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
		err = send()
	}
	if err != nil {
		logger.Debug(ctx, "tg", "notify.failed",
			slog.String("action", action),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
	}
}
