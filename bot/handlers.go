package bot

import (
	"log/slog"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
	coretelegram "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/core/telegram/middleware"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/relay"
)

// legacyBlockKey is the callback key older cards used for suspend.
const legacyBlockKey = "block"

func (a *App) newRegistry() (*coretelegram.Registry, error) {
	reg := coretelegram.NewRegistry()
	cmds := map[string]coretelegram.Command{
		"/start": {
			Handler:     a.handleStart,
			Description: "Show the rules and your current status",
			PrivateOnly: true,
		},
		"/cancel": {
			Handler:     a.handleCancel,
			Description: "Drop a pending moderator reply",
			PrivateOnly: true,
			Hidden:      true,
		},
	}
	for name, cmd := range cmds {
		if err := reg.RegisterCommand(name, cmd); err != nil {
			return nil, err
		}
	}
	keys := append([]string{legacyBlockKey}, actionKeys()...)
	for _, key := range keys {
		if err := reg.RegisterCallback(key, a.handleAction); err != nil {
			return nil, err
		}
	}
	reg.SetCallbackNotFound(a.handleStaleCallback)
	reg.SetTextFallback(a.handleSubmission)
	return reg, nil
}

func actionKeys() []string {
	actions := relay.Actions()
	keys := make([]string, 0, len(actions))
	for _, action := range actions {
		keys = append(keys, string(action))
	}
	return keys
}

func (a *App) routes(reg *coretelegram.Registry) []coretelegram.Route {
	routes := router.CommandRoutes(reg)
	routes = append(routes, router.TextRoutes(router.InterceptorFunc(a.interceptReply), reg, router.TextOptions{})...)
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{
		Guard: middleware.ModeratorOnlyMiddleware(a.policy, a.rejectModerator),
	}))
	return routes
}

func isPrivate(c tele.Context) bool {
	chat := c.Chat()
	return chat != nil && chat.Type == tele.ChatPrivate && c.Sender() != nil
}

// handleStart answers /start with the rules or the current suspension.
func (a *App) handleStart(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	userID := c.Sender().ID

	if refusal := a.checkMembership(ctx, userID); refusal != "" {
		_, err := a.deliver(ctx, "start.refuse", userID, refusal, nil)
		return err
	}

	greeting, err := a.service.Greeting(ctx, userID)
	if err != nil {
		_, _ = a.deliver(ctx, "start.failure", userID, a.service.Texts().Failure, nil)
		return err
	}
	_, err = a.deliver(ctx, "start.greeting", greeting.Recipient, greeting.Text, nil)
	return err
}

// handleCancel drops the moderator's pending reply binding, if any.
func (a *App) handleCancel(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	moderatorID := c.Sender().ID
	texts := a.service.Texts()

	text := texts.NoPendingReply
	if target, ok := a.service.Bindings().Take(moderatorID); ok {
		text = texts.ReplyCancelled
		logger.Info(logger.WithModeration(ctx, moderatorID, target), "relay", "reply.cancelled")
	}
	_, err := a.deliver(ctx, "reply.cancel", moderatorID, text, nil)
	return err
}

// handleSubmission runs admission for a private text that no reply binding
// claimed and forwards admitted ones to the admin group.
func (a *App) handleSubmission(c tele.Context) error {
	if !isPrivate(c) {
		return nil
	}
	ctx := tghelpers.BuildContext(c)
	user := c.Sender()
	texts := a.service.Texts()

	if refusal := a.checkMembership(ctx, user.ID); refusal != "" {
		_, err := a.deliver(ctx, "submit.refuse", user.ID, refusal, nil)
		return err
	}

	out, err := a.service.OnUserMessage(ctx, relay.Submission{
		UserID:      user.ID,
		DisplayName: tghelpers.DisplayName(user),
		Username:    tghelpers.Username(user),
		Text:        c.Text(),
	}, a.service.Now())
	if err != nil {
		_, _ = a.deliver(ctx, "submit.failure", user.ID, texts.Failure, nil)
		return err
	}

	reply := out.Reply
	if out.Forward != nil {
		if _, err := a.postCard(ctx, *out.Forward); err != nil {
			reply.Text = texts.SubmitFailed
		}
	}
	_, err = a.deliver(ctx, "submit.reply", reply.Recipient, reply.Text, nil)
	return err
}

// interceptReply forwards a moderator's text to the user bound by an
// earlier Reply press. Everything else passes through to admission.
func (a *App) interceptReply(c tele.Context) (bool, error) {
	if !isPrivate(c) {
		return false, nil
	}
	moderator := c.Sender()
	if !a.service.Bindings().Has(moderator.ID) {
		return false, nil
	}
	ctx := tghelpers.WithHandler(c, "moderator_reply")
	route := a.service.OnModeratorText(ctx, moderator.ID, c.Text())
	if route.PassThrough() {
		return false, nil
	}
	ctx = logger.WithModeration(ctx, moderator.ID, route.Target)

	texts := a.service.Texts()
	ack := texts.ReplySent
	if _, err := a.deliver(ctx, "reply.forward", route.Target, route.Forward.Text, nil); err != nil {
		ack = texts.ReplyFailed
	} else {
		copyText := relay.Render(texts.ReplyCopy,
			"moderator", tghelpers.DisplayName(moderator),
			"user", strconv.FormatInt(route.Target, 10),
			"text", c.Text(),
		)
		if _, err := a.deliver(ctx, "reply.copy", a.cfg.Relay.AdminGroupID, copyText, a.adminOptions(tele.ModeDefault, nil)); err != nil {
			logger.Debug(ctx, "relay", "reply.copy_skipped", slog.Int64("target_user_id", route.Target))
		}
	}
	_, err := a.deliver(ctx, "reply.ack", moderator.ID, ack, nil)
	return true, err
}

// handleAction applies a moderation button and delivers its effects.
func (a *App) handleAction(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	cb := c.Callback()
	texts := a.service.Texts()

	data := callbacks.Of(c)
	action, err := relay.ParseAction(data.Unique)
	if err != nil {
		a.answer(ctx, cb, texts.Failure, true)
		return err
	}
	target, err := data.Int64()
	if err != nil || target == 0 {
		a.answer(ctx, cb, texts.Failure, true)
		return err
	}

	moderator := c.Sender()
	ctx = logger.WithModeration(ctx, moderator.ID, target)
	effects, err := a.service.OnModeratorAction(ctx, action, target, moderator.ID)
	if err != nil {
		a.answer(ctx, cb, texts.Failure, true)
		return err
	}

	var toast, alert string
	for _, e := range effects {
		switch e.Kind {
		case relay.EffectNotifyUser:
			if _, err := a.deliver(ctx, "notify.user", e.Recipient, e.Text, nil); err != nil {
				alert = a.service.Router().DeliveryFailure(moderator.ID, err).Text
			}
		case relay.EffectNotifyAdmin:
			toast = e.Text
			if e.CloseCard {
				if err := a.updateCard(ctx, cb.Message, e.Text, nil); err != nil {
					logger.Debug(ctx, "tg", "card.edit_failed", slog.String("err", err.Error()))
				}
				continue
			}
			// Reply: prompt the moderator privately and mark the card, keeping the buttons.
			if _, err := a.deliver(ctx, "notify.moderator", e.Recipient, e.Text, nil); err != nil {
				alert = texts.ModeratorUnreachable
			}
			status := relay.Render(texts.CardAwaitingReply, "moderator", tghelpers.DisplayName(moderator))
			var markup *tele.ReplyMarkup
			if cb.Message != nil {
				markup = cb.Message.ReplyMarkup
			}
			if markup == nil {
				markup = cardMarkup(texts, target, a.service.Router().SuspendDays())
			}
			if err := a.updateCard(ctx, cb.Message, status, markup); err != nil {
				logger.Debug(ctx, "tg", "card.edit_failed", slog.String("err", err.Error()))
			}
		case relay.EffectInfo:
			alert = e.Text
		case relay.EffectMutation:
			logger.Debug(ctx, "relay", "effect.mutation",
				slog.String("action", string(action)),
				slog.Int64("target_user_id", e.Recipient),
				slog.String("detail", e.Text),
			)
		}
	}

	if alert != "" {
		a.answer(ctx, cb, alert, true)
		return nil
	}
	a.answer(ctx, cb, toast, false)
	return nil
}

// handleStaleCallback stops the spinner on buttons this version no longer
// knows, such as cards posted by an older release.
func (a *App) handleStaleCallback(c tele.Context) error {
	a.answer(tghelpers.BuildContext(c), c.Callback(), "", false)
	return nil
}

func (a *App) rejectModerator(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	a.answer(ctx, c.Callback(), a.service.Texts().NotModerator, true)
	logger.Info(ctx, "relay", "moderation.denied", slog.String("status", "skip"))
	return nil
}

func (a *App) onRateLimited(c tele.Context) error {
	if c.Callback() != nil {
		a.answer(tghelpers.BuildContext(c), c.Callback(), a.service.Texts().RateLimited, false)
		return nil
	}
	if !isPrivate(c) {
		return nil
	}
	a.notify(tghelpers.BuildContext(c), "rate_limit.notice", c.Sender().ID, a.service.Texts().RateLimited)
	return nil
}
