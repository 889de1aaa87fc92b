package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

func TestRegisterCommandValidates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", Command{Handler: noop, Description: "rules"}))

	assert.Error(t, reg.RegisterCommand("start", Command{Handler: noop, Description: "x"}))
	assert.Error(t, reg.RegisterCommand("/", Command{Handler: noop, Description: "x"}))
	assert.Error(t, reg.RegisterCommand("/help", Command{Handler: noop}))
	assert.Error(t, reg.RegisterCommand("/start", Command{Handler: noop, Description: "again"}))

	name, cmd, ok := reg.LookupCommand("start@relaybot")
	require.True(t, ok)
	assert.Equal(t, "/start", name)
	assert.Equal(t, "rules", cmd.Description)

	_, _, ok = reg.LookupCommand("/help")
	assert.False(t, ok)
}

func TestRegisterCallbackRejectsDuplicates(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("accept", noop))
	assert.Error(t, reg.RegisterCallback("accept", noop))
	assert.Error(t, reg.RegisterCallback("", noop))
	assert.Equal(t, []string{"accept"}, reg.ListCallbacks())
}

type recordedMenu struct {
	scope tele.CommandScope
	menu  []tele.Command
}

type menuRecorder struct {
	calls []recordedMenu
	err   error
}

func (m *menuRecorder) SetCommands(opts ...interface{}) error {
	var call recordedMenu
	for _, o := range opts {
		switch v := o.(type) {
		case []tele.Command:
			call.menu = v
		case tele.CommandScope:
			call.scope = v
		}
	}
	m.calls = append(m.calls, call)
	return m.err
}

func TestPublishCommandsScopesMenus(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", Command{Handler: noop, Description: "rules", PrivateOnly: true}))
	require.NoError(t, reg.RegisterCommand("/cancel", Command{Handler: noop, Description: "drop reply", PrivateOnly: true, Hidden: true}))
	require.NoError(t, reg.RegisterCommand("/about", Command{Handler: noop, Description: "about"}))

	rec := &menuRecorder{}
	PublishCommands(rec, reg)
	require.Len(t, rec.calls, 2)

	assert.Equal(t, tele.CommandScopeAllPrivateChats, rec.calls[0].scope.Type)
	assert.Equal(t, []tele.Command{{Text: "about", Description: "about"}, {Text: "start", Description: "rules"}}, rec.calls[0].menu)
	assert.Equal(t, tele.CommandScopeDefault, rec.calls[1].scope.Type)
	assert.Equal(t, []tele.Command{{Text: "about", Description: "about"}}, rec.calls[1].menu)
}

func TestPublishCommandsPrivateOnly(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand("/start", Command{Handler: noop, Description: "rules", PrivateOnly: true}))

	rec := &menuRecorder{err: errors.New("boom")}
	PublishCommands(rec, reg)
	require.Len(t, rec.calls, 1, "no default menu when only private commands exist")
}
