package middleware

import (
	"slices"

	tele "gopkg.in/telebot.v4"
)

// PrivateOnlyMiddleware passes updates a user sent in a private chat and
// drops the rest, calling onReject when set.
func PrivateOnlyMiddleware(onReject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate || c.Sender() == nil {
				return reject(c, onReject)
			}
			return next(c)
		}
	}
}

// ModeratorPolicy decides who may press moderation buttons.
//
// The owner is always allowed. A non-empty IDs list is an explicit allow
// list; without one, any member acting inside ChatID is trusted.
type ModeratorPolicy struct {
	OwnerID int64
	IDs     []int64
	ChatID  int64
}

// Allows reports whether userID, acting in chatID, may moderate.
func (p ModeratorPolicy) Allows(userID, chatID int64) bool {
	if userID == 0 {
		return false
	}
	if p.OwnerID != 0 && userID == p.OwnerID {
		return true
	}
	if len(p.IDs) > 0 {
		return slices.Contains(p.IDs, userID)
	}
	return p.ChatID != 0 && chatID == p.ChatID
}

// ModeratorOnlyMiddleware drops updates from senders the policy does not allow.
func ModeratorOnlyMiddleware(p ModeratorPolicy, onReject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			var userID, chatID int64
			if s := c.Sender(); s != nil {
				userID = s.ID
			}
			if chat := c.Chat(); chat != nil {
				chatID = chat.ID
			}
			if !p.Allows(userID, chatID) {
				return reject(c, onReject)
			}
			return next(c)
		}
	}
}

func reject(c tele.Context, onReject tele.HandlerFunc) error {
	if onReject != nil {
		return onReject(c)
	}
	return nil
}
