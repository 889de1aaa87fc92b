package helpers

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// DisplayName joins first and last name, falling back to the username and
// then to the numeric ID.
func DisplayName(u *tele.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}

// Username returns "@name" or an empty string.
func Username(u *tele.User) string {
	if u == nil || strings.TrimSpace(u.Username) == "" {
		return ""
	}
	return "@" + strings.TrimPrefix(strings.TrimSpace(u.Username), "@")
}
