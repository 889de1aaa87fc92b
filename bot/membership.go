package bot

import (
	"context"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
)

// checkMembership gates the bot on membership of relay.main_group_id. It
// returns the refusal text, or "" when the user may proceed.
func (a *App) checkMembership(ctx context.Context, userID int64) string {
	groupID := a.cfg.Relay.MainGroupID
	if groupID == 0 {
		return ""
	}
	texts := a.service.Texts()
	if a.client == nil {
		return texts.MembershipCheckFailed
	}

	var member *tele.ChatMember
	err := a.sender.Do(ctx, "membership.check", "getChatMember", func() error {
		m, err := a.client.ChatMemberOf(tele.ChatID(groupID), tele.ChatID(userID))
		if err != nil {
			return err
		}
		member = m
		return nil
	})
	if err != nil {
		logger.Warn(ctx, "tg", "membership.check_failed",
			slog.Int64("target_user_id", userID),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		return texts.MembershipCheckFailed
	}
	if !isMember(member) {
		return texts.NotMember
	}
	return ""
}

func isMember(m *tele.ChatMember) bool {
	if m == nil {
		return false
	}
	switch m.Role {
	case tele.Creator, tele.Administrator, tele.Member:
		return true
	case tele.Restricted:
		return m.Member
	}
	return false
}
