package keyboard

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Row is one line of inline buttons.
type Row []tele.InlineButton

// Button returns a callback button routed to unique. Payload parts are
// joined with "|" the same way telebot joins Btn data.
func Button(text, unique string, payload ...string) tele.InlineButton {
	return tele.InlineButton{
		Unique: unique,
		Text:   text,
		Data:   strings.Join(payload, "|"),
	}
}

// Inline assembles rows into an inline keyboard. Empty rows are dropped so
// optional buttons can be left out without breaking the layout.
func Inline(rows ...Row) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, []tele.InlineButton(row))
	}
	return markup
}

// Chunk splits buttons into rows of at most n; n <= 1 yields one per row.
func Chunk(buttons []tele.InlineButton, n int) []Row {
	if n < 1 {
		n = 1
	}
	rows := make([]Row, 0, (len(buttons)+n-1)/n)
	for len(buttons) > 0 {
		k := min(n, len(buttons))
		rows = append(rows, Row(buttons[:k:k]))
		buttons = buttons[k:]
	}
	return rows
}
