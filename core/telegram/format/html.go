// Package format builds Telegram HTML fragments from untrusted text.
package format

import (
	"html"
	"strconv"
	"strings"
)

// EscapeHTML escapes text for Telegram's HTML parse mode.
func EscapeHTML(text string) string {
	return html.EscapeString(text)
}

// Bold wraps escaped text in <b>.
func Bold(text string) string {
	return "<b>" + EscapeHTML(text) + "</b>"
}

// Code wraps escaped text in <code>.
func Code(text string) string {
	return "<code>" + EscapeHTML(text) + "</code>"
}

// Mention links to a user by ID. An empty name falls back to the ID itself.
func Mention(userID int64, name string) string {
	id := strconv.FormatInt(userID, 10)
	name = strings.TrimSpace(name)
	if name == "" {
		name = id
	}
	return `<a href="tg://user?id=` + id + `">` + EscapeHTML(name) + "</a>"
}

// Blockquote wraps escaped, possibly multi-line text in <blockquote>.
func Blockquote(text string) string {
	return "<blockquote>" + EscapeHTML(text) + "</blockquote>"
}
