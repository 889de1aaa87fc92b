package telegram

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
)

// Command is a slash command and how it is exposed.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// Hidden commands work but are left out of the published menu.
	Hidden bool
	// PrivateOnly commands are ignored outside private chats and published
	// only to the private-chat menu.
	PrivateOnly bool
}

// Registry maps command names and callback keys to handlers.
type Registry struct {
	mu               sync.RWMutex
	commands         map[string]Command
	callbacks        map[string]tele.HandlerFunc
	callbackNotFound tele.HandlerFunc
	textFallback     tele.HandlerFunc
}

// NewRegistry returns an empty Registry. Unknown callbacks are answered
// with a short notice until SetCallbackNotFound replaces it.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		callbacks: make(map[string]tele.HandlerFunc),
		callbackNotFound: func(c tele.Context) error {
			_ = c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
			return nil
		},
	}
}

// RegisterCommand adds cmd under name, which must start with a slash.
func (r *Registry) RegisterCommand(name string, cmd Command) error {
	switch {
	case !strings.HasPrefix(name, "/") || len(name) < 2:
		return r.rejectCommand(name, "no_slash_prefix")
	case cmd.Handler == nil || cmd.Description == "":
		return r.rejectCommand(name, "invalid")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[name]; exists {
		return r.rejectCommand(name, "duplicate")
	}
	r.commands[name] = cmd
	return nil
}

func (r *Registry) rejectCommand(name, reason string) error {
	logger.Warn(logger.Background(), "tg.wire", "register.command.skip",
		slog.String("name", name),
		slog.String("reason", reason),
	)
	return fmt.Errorf("telegram: command %q rejected: %s", name, reason)
}

// LookupCommand resolves the first word of a message, with or without the
// leading slash and an "@botname" suffix, to its registered command.
func (r *Registry) LookupCommand(word string) (string, Command, bool) {
	name, _, _ := strings.Cut(strings.TrimSpace(word), "@")
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return name, cmd, ok
}

// Commands returns a snapshot of the registered commands.
func (r *Registry) Commands() map[string]Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Command, len(r.commands))
	for name, cmd := range r.commands {
		out[name] = cmd
	}
	return out
}

// Menu lists the visible commands for one chat kind, sorted by name.
// Private chats see every visible command; other chats see only the ones
// not marked PrivateOnly.
func (r *Registry) Menu(private bool) []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var list []tele.Command
	for name, cmd := range r.commands {
		if cmd.Hidden || (cmd.PrivateOnly && !private) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(name, "/"), Description: cmd.Description})
	}
	slices.SortFunc(list, func(a, b tele.Command) int { return strings.Compare(a.Text, b.Text) })
	return list
}

// RegisterCallback maps a callback key to its handler.
func (r *Registry) RegisterCallback(key string, handler tele.HandlerFunc) error {
	if key == "" || handler == nil {
		logger.Warn(logger.Background(), "tg.wire", "register.callback.skip",
			slog.String("key", key),
			slog.Bool("handler_nil", handler == nil),
		)
		return errors.New("telegram: invalid callback registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.callbacks[key]; exists {
		logger.Warn(logger.Background(), "tg.wire", "register.callback.duplicate",
			slog.String("key", key),
		)
		return fmt.Errorf("telegram: callback already registered: %s", key)
	}
	r.callbacks[key] = handler
	return nil
}

// GetCallback returns the handler for key.
func (r *Registry) GetCallback(key string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[key]
	return h, ok
}

// ListCallbacks returns the registered keys, sorted.
func (r *Registry) ListCallbacks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callbacks))
	for k := range r.callbacks {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// SetCallbackNotFound replaces the handler for unknown callback keys.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callbackNotFound = h
}

// CallbackNotFound returns the handler for unknown callback keys.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.callbackNotFound
}

// SetTextFallback sets the handler for text no command or interceptor took.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.textFallback = h
}

// TextFallback returns the text fallback handler, if any.
func (r *Registry) TextFallback() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.textFallback
}

// commandSetter is the part of *tele.Bot that publishes command menus.
type commandSetter interface {
	SetCommands(opts ...interface{}) error
}

type scopedMenu struct {
	scope tele.CommandScope
	menu  []tele.Command
}

// PublishCommands sets the command menu for private chats and, when it
// differs, the default menu shown everywhere else.
func PublishCommands(bot commandSetter, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	private := reg.Menu(true)
	if len(private) == 0 {
		return
	}
	menus := []scopedMenu{{tele.CommandScope{Type: tele.CommandScopeAllPrivateChats}, private}}
	if public := reg.Menu(false); len(public) > 0 && len(public) != len(private) {
		menus = append(menus, scopedMenu{tele.CommandScope{Type: tele.CommandScopeDefault}, public})
	}
	for _, m := range menus {
		if err := bot.SetCommands(m.menu, m.scope); err != nil {
			logger.Error(logger.Background(), "tg.wire", "register.commands.set_failed",
				slog.String("scope", m.scope.Type),
				slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			)
		}
	}
}
