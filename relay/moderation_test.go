package relay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/relaybot/relay/kv"
)

type routerFixture struct {
	router   *ModerationDecisionRouter
	ctrl     *AdmissionController
	bindings *ReplyBindingTable
	metrics  *Metrics
	texts    Texts
}

func newRouterFixture() routerFixture {
	f := routerFixture{
		bindings: NewReplyBindingTable(),
		metrics:  NewMetrics(prometheus.NewRegistry()),
		texts:    DefaultTexts(),
	}
	f.ctrl = NewAdmissionController(0, NewExpiringFlagStore(kv.NewMemory()), NewDailyQuotaTracker(kv.NewMemory()))
	f.router = NewModerationDecisionRouter(f.ctrl, f.bindings, f.texts, 0).WithMetrics(f.metrics)
	return f
}

func TestParseAction(t *testing.T) {
	tests := []struct {
		in   string
		want Action
		err  bool
	}{
		{in: "accept", want: ActionAccept},
		{in: "reject", want: ActionReject},
		{in: "suspend", want: ActionSuspend},
		{in: "block", want: ActionSuspend},
		{in: " LIFT ", want: ActionLift},
		{in: "reply", want: ActionReply},
		{in: "ban", err: true},
		{in: "", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			if tt.err {
				assert.ErrorIs(t, err, ErrUnknownAction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyAcceptReject(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	effects, err := f.router.Apply(ctx, ActionAccept, 1001, 55, epoch)
	require.NoError(t, err)
	require.Len(t, effects, 2)
	assert.Equal(t, Effect{Kind: EffectNotifyUser, Recipient: 1001, Text: f.texts.Accepted}, effects[0])
	assert.True(t, effects[1].CloseCard)
	assert.False(t, effects.Mutated())

	effects, err = f.router.Apply(ctx, ActionReject, 1001, 55, epoch)
	require.NoError(t, err)
	assert.Equal(t, f.texts.Rejected, effects.Of(EffectNotifyUser)[0].Text)
	assert.False(t, effects.Mutated())
}

func TestApplySuspendSevenDays(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	effects, err := f.router.Apply(ctx, ActionSuspend, 1001, 55, epoch)
	require.NoError(t, err)
	assert.True(t, effects.Mutated())
	assert.Equal(t, EffectMutation, effects[0].Kind, "mutation precedes notifications")

	notify := effects.Of(EffectNotifyUser)
	require.Len(t, notify, 1)
	assert.Equal(t, int64(1001), notify[0].Recipient)
	assert.Contains(t, notify[0].Text, "7 days")

	end := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	active, err := f.ctrl.suspensions.IsActive(ctx, 1001, end.Add(-time.Second))
	require.NoError(t, err)
	assert.True(t, active)
	active, err = f.ctrl.suspensions.IsActive(ctx, 1001, end)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestApplyLift(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	effects, err := f.router.Apply(ctx, ActionLift, 1001, 55, epoch)
	require.NoError(t, err)
	require.Len(t, effects, 1)
	assert.Equal(t, EffectInfo, effects[0].Kind)
	assert.Equal(t, int64(55), effects[0].Recipient)
	assert.Equal(t, f.texts.NotSuspended, effects[0].Text)

	_, err = f.router.Apply(ctx, ActionSuspend, 1001, 55, epoch)
	require.NoError(t, err)
	effects, err = f.router.Apply(ctx, ActionLift, 1001, 55, epoch.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, effects.Mutated())
	assert.Equal(t, f.texts.LiftedNotice, effects.Of(EffectNotifyUser)[0].Text)

	suspended, err := f.ctrl.suspensions.IsActive(ctx, 1001, epoch.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, suspended)
}

func TestApplyOpenReply(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	effects, err := f.router.Apply(ctx, ActionReply, 1001, 55, epoch)
	require.NoError(t, err)
	assert.Empty(t, effects.Of(EffectNotifyUser), "user hears nothing yet")
	admin := effects.Of(EffectNotifyAdmin)
	require.Len(t, admin, 1)
	assert.Equal(t, f.texts.AwaitingReply, admin[0].Text)
	assert.False(t, admin[0].CloseCard)

	target, ok := f.bindings.Take(55)
	assert.True(t, ok)
	assert.EqualValues(t, 1001, target)
}

func TestApplyUnknownAction(t *testing.T) {
	f := newRouterFixture()
	_, err := f.router.Apply(context.Background(), Action("ban"), 1, 2, epoch)
	assert.ErrorIs(t, err, ErrUnknownAction)
}

func TestApplyCountsActions(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()
	for _, a := range Actions() {
		_, err := f.router.Apply(ctx, a, 1001, 55, epoch)
		require.NoError(t, err)
	}
	for _, a := range Actions() {
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.moderation.WithLabelValues(string(a))), string(a))
	}
}

func TestDeliveryFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	f := newRouterFixture()

	_, err := f.router.Apply(ctx, ActionSuspend, 1001, 55, epoch)
	require.NoError(t, err)

	cause := &DeliveryError{Recipient: 1001, Class: DeliveryUnreachable, Err: errors.New("bot was blocked by the user")}
	info := f.router.DeliveryFailure(55, cause)
	assert.Equal(t, EffectInfo, info.Kind)
	assert.Equal(t, int64(55), info.Recipient)
	assert.Equal(t, f.texts.UserUnreachable, info.Text)

	var de *DeliveryError
	require.True(t, errors.As(info.Err, &de))
	assert.Equal(t, "delivery_unreachable", de.Code())

	active, err := f.ctrl.suspensions.IsActive(ctx, 1001, epoch)
	require.NoError(t, err)
	assert.True(t, active, "suspension survives the failed notification")
}

func TestSuspendDaysFromDuration(t *testing.T) {
	f := newRouterFixture()
	assert.Equal(t, 7, f.router.SuspendDays())

	r := NewModerationDecisionRouter(f.ctrl, f.bindings, f.texts, 3*24*time.Hour)
	effects, err := r.Apply(context.Background(), ActionSuspend, 1, 2, epoch)
	require.NoError(t, err)
	assert.Contains(t, effects.Of(EffectNotifyAdmin)[0].Text, "3 days")
}
