// Package bot is the Telegram transport of the relay: it turns updates into
// relay.Service calls and delivers the resulting instructions.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/relaybot/core/bootstrap"
	"github.com/m3rciful/relaybot/core/health"
	"github.com/m3rciful/relaybot/core/logger"
	coretelegram "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/middleware"
	tgsender "github.com/m3rciful/relaybot/core/telegram/sender"
	"github.com/m3rciful/relaybot/relay"
)

// Client is the part of the Bot API the transport calls outside of a
// handler's own chat. *tele.Bot implements it.
type Client interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	Edit(msg tele.Editable, what interface{}, opts ...interface{}) (*tele.Message, error)
	Respond(c *tele.Callback, resp ...*tele.CallbackResponse) error
	ChatMemberOf(chat, user tele.Recipient) (*tele.ChatMember, error)
}

// App owns the relay service and everything needed to serve it over Telegram.
type App struct {
	cfg      *Config
	infra    *bootstrap.Result
	stores   *stores
	service  *relay.Service
	registry *prometheus.Registry
	updates  *middleware.UpdateMetrics
	sender   *tgsender.Dispatcher
	policy   middleware.ModeratorPolicy
	client   Client
	loc      *time.Location
}

// Bootstrap initialises logging, storage and the relay service.
func Bootstrap(ctx context.Context, cfg *Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bot: nil config")
	}

	opts := bootstrap.Options{Config: &cfg.Config}
	if cfg.Storage.Backend == BackendPostgres {
		db := cfg.Database
		opts.Database = &db
	}
	infra, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}

	st, err := openStores(ctx, cfg.Storage, infra.DB)
	if err != nil {
		_ = infra.Close()
		return nil, err
	}

	app, err := newApp(cfg, st)
	if err != nil {
		if st.close != nil {
			_ = st.close()
		}
		_ = infra.Close()
		return nil, err
	}
	app.infra = infra
	return app, nil
}

// newApp wires the service on already opened stores.
func newApp(cfg *Config, st *stores) (*App, error) {
	cal, err := relay.LoadCalendar(cfg.Relay.Timezone)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := relay.NewService(st.suspensions, st.daily, relay.Options{
		MaxChars:   cfg.Relay.MaxChars,
		SuspendFor: cfg.Relay.SuspendFor(),
		Calendar:   cal,
		Texts:      cfg.Relay.Texts,
		Metrics:    relay.NewMetrics(reg),
	})

	return &App{
		cfg:      cfg,
		stores:   st,
		service:  svc,
		registry: reg,
		updates:  middleware.NewUpdateMetrics(reg),
		sender: tgsender.NewDispatcher(tgsender.Options{
			MaxRetries:   2,
			RetryBackoff: time.Second,
			Registerer:   reg,
		}),
		policy: middleware.ModeratorPolicy{
			OwnerID: cfg.Telegram.AdminID,
			IDs:     cfg.Relay.ModeratorIDs,
			ChatID:  cfg.Relay.AdminGroupID,
		},
		loc: cal.Location(),
	}, nil
}

// Service exposes the relay core.
func (a *App) Service() *relay.Service { return a.service }

// TelegramRunOptions assembles the middleware chain and routes.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg, err := a.newRegistry()
	if err != nil {
		return coretelegram.RunOptions{}, err
	}
	return coretelegram.RunOptions{
		Config:     &a.cfg.Config,
		Registry:   reg,
		Dispatcher: a.sender,
		Middlewares: coretelegram.DefaultMiddlewares(&a.cfg.Config, coretelegram.MiddlewareOptions{
			OnLimited: a.onRateLimited,
			Metrics:   a.updates,
		}),
		Routes: a.routes(reg),
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			if rt.Bot == nil {
				return errors.New("bot: runtime without a bot")
			}
			a.client = rt.Bot
			logger.Info(ctx, "app", "relay.ready",
				slog.Int64("admin_group_id", a.cfg.Relay.AdminGroupID),
				slog.String("backend", a.cfg.Storage.Backend),
				slog.Int("max_chars", a.service.MaxChars()),
			)
			return nil
		},
	}, nil
}

// RunBackground serves the health endpoint when http.listen is set.
func (a *App) RunBackground(ctx context.Context) error {
	if a.cfg.HTTP.Listen == "" {
		<-ctx.Done()
		return nil
	}
	return health.Serve(ctx, a.cfg.HTTP.Listen, a.healthRouter())
}

func (a *App) healthRouter() http.Handler {
	checks := map[string]health.Check{}
	if a.stores.check != nil {
		checks["store"] = a.stores.check
	}
	return health.NewRouter(health.Options{
		Gatherer:   a.registry,
		Registerer: a.registry,
		Checks:     checks,
	})
}

// Close releases storage connections.
func (a *App) Close() error {
	var errs []error
	if a.stores != nil && a.stores.close != nil {
		errs = append(errs, a.stores.close())
	}
	if a.infra != nil {
		errs = append(errs, a.infra.Close())
	}
	return errors.Join(errs...)
}
