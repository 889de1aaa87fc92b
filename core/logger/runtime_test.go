package logger

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithRID(Background(), "1:2:3")
	ctx = WithUpdateMeta(ctx, 1, 3, 2)
	ctx = WithHandler(ctx, "moderator_reply")
	ctx = WithModeration(ctx, 55, 1001)

	assert.Equal(t, "1:2:3", RIDFrom(ctx))
	assert.Equal(t, 1, UpdateIDFrom(ctx))
	assert.EqualValues(t, 3, UserIDFrom(ctx))
	assert.EqualValues(t, 2, ChatIDFrom(ctx))
	assert.Equal(t, "moderator_reply", HandlerFrom(ctx))
	assert.EqualValues(t, 55, ModeratorIDFrom(ctx))
	assert.EqualValues(t, 1001, TargetUserIDFrom(ctx))

	empty := Background()
	assert.Empty(t, RIDFrom(empty))
	assert.Zero(t, TargetUserIDFrom(empty))
	assert.Zero(t, ModeratorIDFrom(WithModeration(empty, 0, 7)))
}

func TestModerationFieldsReachLogLine(t *testing.T) {
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	h := newStructuredHandler(handlerConfig{level: slog.LevelDebug, writer: aw, format: formatKV})

	ctx := WithModeration(Background(), 55, 1001)
	LogEvent(ctx, slog.New(h).With("component", "relay"), slog.LevelInfo, "effect.mutation",
		slog.String("action", "suspend"),
		slog.String("class", "not-a-class"),
		slog.String("decision", "Admit"),
	)
	require.NoError(t, aw.Close())

	line := strings.TrimSpace(buf.String())
	assert.Contains(t, line, "moderator_id=55")
	assert.Contains(t, line, "target_user_id=1001")
	assert.Contains(t, line, "decision=admit")
	assert.NotContains(t, line, "class=")
}

func TestSanitizeLimit(t *testing.T) {
	assert.Equal(t, "a\tb\nc", Sanitize("a\tb\nc\x00\x7f\u200b"))
	assert.Equal(t, "жжж", SanitizeLimit("жжжжж", 3))
	assert.Empty(t, SanitizeLimit("abc", 0))
}

func TestCompactRID(t *testing.T) {
	assert.Equal(t, "z.a.1", CompactRID("35:10:1"))
	assert.Equal(t, "abc", CompactRID("abc"))
	assert.Equal(t, "1:x:2", CompactRID("1:x:2"))
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	var got []bool
	for i := 0; i < 6; i++ {
		got = append(got, s.Allow())
	}
	assert.Equal(t, []bool{true, false, false, true, false, false}, got)

	s.Set(0, 0)
	assert.True(t, s.Allow())

	num, den := parseRatioSpec("2/5")
	assert.Equal(t, [2]int{2, 5}, [2]int{num, den})
	num, den = parseRatioSpec("10")
	assert.Equal(t, [2]int{1, 10}, [2]int{num, den})
	num, den = parseRatioSpec("x/y")
	assert.Equal(t, [2]int{0, 0}, [2]int{num, den})
}

func TestSummarizeStrings(t *testing.T) {
	s, truncated := SummarizeStrings([]string{"a", "b", "c"}, 2)
	assert.Equal(t, "a, b +1 more", s)
	assert.True(t, truncated)

	s, truncated = SummarizeStrings([]string{"a"}, 2)
	assert.Equal(t, "a", s)
	assert.False(t, truncated)
}
