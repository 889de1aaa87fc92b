package bot

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/relay"
)

func TestRenderCard(t *testing.T) {
	texts := relay.DefaultTexts()
	loc := time.FixedZone("MSK", 3*60*60)
	fwd := relay.ForwardInstruction{
		Submission: relay.Submission{UserID: 42, DisplayName: "A & B", Text: "<script>"},
		Received:   time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC),
	}

	card := renderCard(texts, fwd, loc)
	assert.Contains(t, card, "<b>"+texts.CardTitle+"</b>")
	assert.Contains(t, card, `<a href="tg://user?id=42">A &amp; B</a>`)
	assert.Contains(t, card, "<code>42</code>")
	assert.Contains(t, card, texts.CardNoUsername)
	assert.Contains(t, card, "2024-06-01 13:30 MSK")
	assert.Contains(t, card, "<blockquote>&lt;script&gt;</blockquote>")
	assert.NotContains(t, card, "<script>")

	fwd.Submission.Username = "@ab"
	assert.Contains(t, renderCard(texts, fwd, nil), "@ab")
}

func TestCardMarkup(t *testing.T) {
	texts := relay.DefaultTexts()
	markup := cardMarkup(texts, 1001, 3)
	require.Len(t, markup.InlineKeyboard, 3)

	var uniques []string
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			uniques = append(uniques, btn.Unique)
			assert.Contains(t, btn.Data, "1001")
		}
	}
	assert.Equal(t, []string{"accept", "reject", "reply", "suspend", "lift"}, uniques)
	assert.Equal(t, "⏸️ Suspend 3 days", markup.InlineKeyboard[2][0].Text)
}

func TestUpdateCardReplacesStatusAndKeepsFormatting(t *testing.T) {
	app, fc := newTestApp(t, nil)
	texts := app.service.Texts()
	u16 := func(s string) int { return len(utf16.Encode([]rune(s))) }

	head := texts.CardTitle + "\n\n" + texts.CardName + ": "
	body := head + "Ann\n" + texts.CardID + ": 1001\n\n" + texts.CardText + ":\n"
	quote := "hi <there>"
	status := "\n\n" + relay.Render(texts.CardAwaitingReply, "moderator", "Mod")
	card := &tele.Message{
		ID:   10,
		Chat: &tele.Chat{ID: testAdminGroup},
		Text: body + quote + status,
		Entities: tele.Entities{
			{Type: tele.EntityBold, Offset: 0, Length: u16(texts.CardTitle)},
			{Type: "text_mention", Offset: u16(head), Length: 3, User: &tele.User{ID: 1001}},
			{Type: tele.EntityCode, Offset: u16(head + "Ann\n" + texts.CardID + ": "), Length: 4},
			{Type: "blockquote", Offset: u16(body), Length: u16(quote)},
			{Type: tele.EntityBold, Offset: u16(body + quote + "\n\n"), Length: u16(status) - 2},
		},
	}

	require.NoError(t, app.updateCard(context.Background(), card, texts.CardAccepted, nil))
	require.Len(t, fc.edits, 1)
	got := fc.edits[0].text
	assert.Contains(t, got, "<b>"+texts.CardTitle+"</b>")
	assert.Contains(t, got, `<a href="tg://user?id=1001">Ann</a>`)
	assert.Contains(t, got, "<code>1001</code>")
	assert.Contains(t, got, "<blockquote>hi &lt;there&gt;</blockquote>")
	assert.NotContains(t, got, "Awaiting a private reply")
	assert.True(t, strings.HasSuffix(got, "</blockquote>\n\n<b>"+texts.CardAccepted+"</b>"))
}
