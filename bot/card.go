package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/telegram/format"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/core/telegram/keyboard"
	"github.com/m3rciful/relaybot/relay"
)

// renderCard builds the HTML moderation card for an admitted submission.
func renderCard(t relay.Texts, fwd relay.ForwardInstruction, loc *time.Location) string {
	sub := fwd.Submission
	username := sub.Username
	if username == "" {
		username = t.CardNoUsername
	}

	var b strings.Builder
	b.WriteString(format.Bold(t.CardTitle))
	b.WriteString("\n\n")
	b.WriteString(format.EscapeHTML(t.CardName) + ": " + format.Mention(sub.UserID, sub.DisplayName) + "\n")
	b.WriteString(format.EscapeHTML(t.CardID) + ": " + format.Code(strconv.FormatInt(sub.UserID, 10)) + "\n")
	b.WriteString(format.EscapeHTML(t.CardUsername) + ": " + format.EscapeHTML(username) + "\n")
	b.WriteString(format.EscapeHTML(t.CardTime) + ": " + format.EscapeHTML(tghelpers.FormatCardTime(fwd.Received, loc)) + "\n\n")
	b.WriteString(format.EscapeHTML(t.CardText) + ":\n")
	b.WriteString(format.Blockquote(sub.Text))
	return b.String()
}

// cardMarkup lays out the moderation buttons; each carries the target user id.
func cardMarkup(t relay.Texts, userID int64, suspendDays int) *tele.ReplyMarkup {
	id := strconv.FormatInt(userID, 10)
	days := strconv.Itoa(suspendDays)
	btn := func(a relay.Action, label string) tele.InlineButton {
		return keyboard.Button(relay.Render(label, "days", days), string(a), id)
	}
	return keyboard.Inline(
		keyboard.Row{btn(relay.ActionAccept, t.BtnAccept), btn(relay.ActionReject, t.BtnReject)},
		keyboard.Row{btn(relay.ActionReply, t.BtnReply)},
		keyboard.Row{btn(relay.ActionSuspend, t.BtnSuspend), btn(relay.ActionLift, t.BtnLift)},
	)
}

// adminOptions targets the admin group, inside the configured forum topic.
func (a *App) adminOptions(parseMode tele.ParseMode, markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:   parseMode,
		ReplyMarkup: markup,
		ThreadID:    a.cfg.Relay.AdminThreadID,
	}
}

// postCard forwards an admitted submission to the admin group.
func (a *App) postCard(ctx context.Context, fwd relay.ForwardInstruction) (*tele.Message, error) {
	texts := a.service.Texts()
	markup := cardMarkup(texts, fwd.Submission.UserID, a.service.Router().SuspendDays())
	return a.deliver(ctx, "card.post", a.cfg.Relay.AdminGroupID, renderCard(texts, fwd, a.loc),
		a.adminOptions(tele.ModeHTML, markup))
}

// updateCard sets the status line under a card, replacing any earlier one.
// A nil markup drops the buttons, since editMessageText without
// reply_markup clears them.
func (a *App) updateCard(ctx context.Context, msg *tele.Message, status string, markup *tele.ReplyMarkup) error {
	if msg == nil || a.client == nil {
		return nil
	}
	text := cardBody(msg) + "\n\n" + format.Bold(status)
	opts := &tele.SendOptions{ParseMode: tele.ModeHTML}
	if markup != nil {
		opts.ReplyMarkup = markup
	}
	return a.sender.Do(ctx, "card.edit", "editMessageText", func() error {
		_, err := a.client.Edit(msg, text, opts)
		return err
	})
}

// cardBody rebuilds the HTML of a posted card without its status line. The
// card ends with the quoted submission, so anything after the last
// blockquote is a status added by updateCard.
func cardBody(msg *tele.Message) string {
	text := msg.Text
	end := -1
	for _, e := range msg.Entities {
		if e.Type == "blockquote" || e.Type == "expandable_blockquote" {
			if e.Offset+e.Length > end {
				end = e.Offset + e.Length
			}
		}
	}
	if end >= 0 {
		text = format.CutUTF16(text, end)
	}
	return format.FromEntities(text, msg.Entities)
}
