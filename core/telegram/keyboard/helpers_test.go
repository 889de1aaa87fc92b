package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestButtonJoinsPayload(t *testing.T) {
	btn := Button("Accept", "accept", "1001", "x")
	assert.Equal(t, "accept", btn.Unique)
	assert.Equal(t, "Accept", btn.Text)
	assert.Equal(t, "1001|x", btn.Data)
}

func TestInlineSkipsEmptyRows(t *testing.T) {
	markup := Inline(
		Row{Button("Accept", "accept", "1"), Button("Reject", "reject", "1")},
		nil,
		Row{Button("Reply", "reply", "1")},
	)
	require.Len(t, markup.InlineKeyboard, 2)
	assert.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "reply", markup.InlineKeyboard[1][0].Unique)
}

func TestChunk(t *testing.T) {
	buttons := []tele.InlineButton{
		Button("Accept", "accept", "1001"),
		Button("Reject", "reject", "1001"),
		Button("Reply", "reply", "1001"),
	}
	rows := Chunk(buttons, 2)
	require.Len(t, rows, 2)
	assert.Len(t, rows[0], 2)
	assert.Len(t, rows[1], 1)
	assert.Equal(t, "Reply", rows[1][0].Text)

	rows[0] = append(rows[0], Button("Lift", "lift", "1001"))
	assert.Equal(t, "reply", buttons[2].Unique, "appending to a row must not clobber the source")

	assert.Len(t, Chunk(buttons, 0), 3)
	assert.Empty(t, Chunk(nil, 3))
}
