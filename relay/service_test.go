package relay

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/relaybot/relay/kv"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestService(t *testing.T, clock *fakeClock) *Service {
	t.Helper()
	return NewService(kv.NewMemory(), kv.NewMemory(), Options{
		Calendar: NewCalendar(time.UTC),
		Metrics:  NewMetrics(prometheus.NewRegistry()),
		Now:      clock.Now,
	})
}

func TestServiceSubmitAndReplyScenario(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)
	user := Submission{UserID: 1001, DisplayName: "A", Text: "hello"}

	out, err := svc.OnUserMessage(ctx, user, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, Admit, out.Decision.Kind)
	require.NotNil(t, out.Forward)
	assert.Equal(t, "hello", out.Forward.Submission.Text)
	assert.Equal(t, 5, out.Forward.Submission.CharCount())
	assert.Equal(t, Instruction{Recipient: 1001, Text: svc.Texts().Submitted}, out.Reply)

	clock.Advance(time.Hour)
	out, err = svc.OnUserMessage(ctx, user, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, RejectQuotaExceeded, out.Decision.Kind)
	assert.Nil(t, out.Forward)
	assert.Equal(t, svc.Texts().QuotaExceeded, out.Reply.Text)

	effects, err := svc.OnModeratorAction(ctx, ActionReply, 1001, 55)
	require.NoError(t, err)
	assert.Empty(t, effects.Of(EffectNotifyUser))
	assert.Equal(t, 1, svc.Bindings().Pending())

	route := svc.OnModeratorText(ctx, 55, "we fixed it")
	assert.False(t, route.PassThrough())
	assert.EqualValues(t, 1001, route.Target)
	assert.Equal(t, int64(1001), route.Forward.Recipient)
	assert.Contains(t, route.Forward.Text, "we fixed it")
	assert.Zero(t, svc.Bindings().Pending(), "binding cleared")

	route = svc.OnModeratorText(ctx, 55, "just chatting")
	assert.True(t, route.PassThrough())

	m := svc.Metrics()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replies.WithLabelValues("reply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.replies.WithLabelValues("pass_through")))
}

func TestServiceSuspendScenario(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc := newTestService(t, clock)

	effects, err := svc.OnModeratorAction(ctx, ActionSuspend, 1001, 55)
	require.NoError(t, err)
	assert.True(t, effects.Mutated())

	out, err := svc.OnUserMessage(ctx, Submission{UserID: 1001, Text: "hi"}, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, RejectSuspended, out.Decision.Kind)
	assert.Contains(t, out.Reply.Text, "2024-01-08 00:00")
	assert.Contains(t, out.Reply.Text, "UTC")

	greeting, err := svc.Greeting(ctx, 1001)
	require.NoError(t, err)
	assert.Contains(t, greeting.Text, "2024-01-08 00:00")

	clock.t = time.Date(2024, 1, 7, 23, 59, 59, 0, time.UTC)
	out, err = svc.OnUserMessage(ctx, Submission{UserID: 1001, Text: "hi"}, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, RejectSuspended, out.Decision.Kind)

	clock.t = time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	out, err = svc.OnUserMessage(ctx, Submission{UserID: 1001, Text: "hi"}, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, Admit, out.Decision.Kind)
}

func TestServiceTrimsBeforeCounting(t *testing.T) {
	clock := &fakeClock{t: epoch}
	svc := NewService(kv.NewMemory(), kv.NewMemory(), Options{MaxChars: 5, Now: clock.Now})

	out, err := svc.OnUserMessage(context.Background(), Submission{UserID: 1, Text: "  hello \n"}, clock.Now())
	require.NoError(t, err)
	assert.True(t, out.Decision.Admitted())
	assert.Equal(t, "hello", out.Forward.Submission.Text)

	out, err = svc.OnUserMessage(context.Background(), Submission{UserID: 2, Text: "hello!"}, clock.Now())
	require.NoError(t, err)
	assert.Equal(t, RejectTooLong, out.Decision.Kind)
	assert.Contains(t, out.Reply.Text, "5")
}

func TestServiceQuotaFollowsCalendarZone(t *testing.T) {
	ctx := context.Background()
	baghdad := time.FixedZone("AST", 3*60*60)
	// 20:30 UTC is 23:30 local; two hours later it is Jan 2 in UTC+3.
	clock := &fakeClock{t: time.Date(2024, 1, 1, 20, 30, 0, 0, time.UTC)}
	svc := NewService(kv.NewMemory(), kv.NewMemory(), Options{Calendar: NewCalendar(baghdad), Now: clock.Now})

	out, err := svc.OnUserMessage(ctx, Submission{UserID: 1, Text: "a"}, clock.Now())
	require.NoError(t, err)
	require.True(t, out.Decision.Admitted())

	clock.Advance(2 * time.Hour)
	out, err = svc.OnUserMessage(ctx, Submission{UserID: 1, Text: "b"}, clock.Now())
	require.NoError(t, err)
	assert.True(t, out.Decision.Admitted(), "a new local day started at 21:00 UTC")
}

func TestServiceReplyReachesSuspendedUser(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: epoch}
	svc := newTestService(t, clock)

	_, err := svc.OnModeratorAction(ctx, ActionSuspend, 1001, 55)
	require.NoError(t, err)
	_, err = svc.OnModeratorAction(ctx, ActionReply, 1001, 55)
	require.NoError(t, err)

	route := svc.OnModeratorText(ctx, 55, "please read the rules")
	assert.False(t, route.PassThrough())
	assert.EqualValues(t, 1001, route.Target)
}

func TestServiceGreeting(t *testing.T) {
	svc := NewService(kv.NewMemory(), kv.NewMemory(), Options{
		MaxChars: 300,
		Texts:    Texts{Start: "limit is {limit}"},
	})
	g, err := svc.Greeting(context.Background(), 9)
	require.NoError(t, err)
	assert.Equal(t, Instruction{Recipient: 9, Text: "limit is 300"}, g)
	assert.NotEmpty(t, svc.Texts().Accepted, "defaults fill the gaps")
}
