package router

import (
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/logger"
	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/middleware"
)

// CommandRoutes binds every registered command to its endpoint, wrapped in
// recover, update logging and, for PrivateOnly commands, the private-chat
// guard.
func CommandRoutes(reg *tg.Registry) []tg.Route {
	if reg == nil {
		return nil
	}
	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, cmd := range cmds {
		h := commandHandler(name, cmd)
		routes = append(routes, tg.Route{
			Endpoint: name,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(h)),
		})
	}

	logger.Info(logger.Background(), "tg.wire", "wire.complete",
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.ListCallbacks())),
	)
	return routes
}

// commandHandler applies the command's chat restriction and logs a summary.
// Text routing reuses it for commands telebot did not match itself.
func commandHandler(name string, cmd tg.Command) tele.HandlerFunc {
	h := cmd.Handler
	if cmd.PrivateOnly {
		h = middleware.PrivateOnlyMiddleware(nil)(h)
	}
	return func(c tele.Context) error {
		return newSummary(name).run(c, h)
	}
}
