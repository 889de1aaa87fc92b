package format

import (
	"html"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	tele "gopkg.in/telebot.v4"
)

type span struct {
	start, end       int
	opening, closing string
}

// FromEntities renders a received message back into Telegram HTML. Telegram
// strips the markup from Text and reports it as entities with offsets in
// UTF-16 code units. Entity types without an HTML form are kept as plain text.
func FromEntities(text string, ents tele.Entities) string {
	units := utf16.Encode([]rune(text))
	spans := make([]span, 0, len(ents))
	for _, e := range ents {
		opening, closing := entityTags(e)
		if opening == "" || e.Length <= 0 || e.Offset < 0 {
			continue
		}
		spans = append(spans, span{start: e.Offset, end: e.Offset + e.Length, opening: opening, closing: closing})
	}
	// Outer entities first so they close last.
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end
	})

	var b strings.Builder
	var stack []span
	next := 0
	for i := 0; i < len(units); i++ {
		for len(stack) > 0 && stack[len(stack)-1].end <= i {
			b.WriteString(stack[len(stack)-1].closing)
			stack = stack[:len(stack)-1]
		}
		for next < len(spans) && spans[next].start <= i {
			if spans[next].end > i {
				b.WriteString(spans[next].opening)
				stack = append(stack, spans[next])
			}
			next++
		}
		r := rune(units[i])
		if utf16.IsSurrogate(r) && i+1 < len(units) {
			r = utf16.DecodeRune(r, rune(units[i+1]))
			i++
		}
		b.WriteString(html.EscapeString(string(r)))
	}
	for len(stack) > 0 {
		b.WriteString(stack[len(stack)-1].closing)
		stack = stack[:len(stack)-1]
	}
	return b.String()
}

// CutUTF16 returns the prefix of text that spans n UTF-16 code units.
func CutUTF16(text string, n int) string {
	units := utf16.Encode([]rune(text))
	if n >= len(units) {
		return text
	}
	if n <= 0 {
		return ""
	}
	return string(utf16.Decode(units[:n]))
}

func entityTags(e tele.MessageEntity) (string, string) {
	switch string(e.Type) {
	case "bold":
		return "<b>", "</b>"
	case "italic":
		return "<i>", "</i>"
	case "underline":
		return "<u>", "</u>"
	case "strikethrough":
		return "<s>", "</s>"
	case "spoiler":
		return "<tg-spoiler>", "</tg-spoiler>"
	case "code":
		return "<code>", "</code>"
	case "pre":
		if e.Language != "" {
			return `<pre><code class="language-` + html.EscapeString(e.Language) + `">`, "</code></pre>"
		}
		return "<pre>", "</pre>"
	case "text_link":
		return `<a href="` + html.EscapeString(e.URL) + `">`, "</a>"
	case "text_mention":
		if e.User == nil {
			return "", ""
		}
		return `<a href="tg://user?id=` + strconv.FormatInt(e.User.ID, 10) + `">`, "</a>"
	case "blockquote":
		return "<blockquote>", "</blockquote>"
	case "expandable_blockquote":
		return "<blockquote expandable>", "</blockquote>"
	}
	return "", ""
}
