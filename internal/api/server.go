package api

import (
	"github.com/rs/zerolog"

	"fleetcmd/internal/auth"
	"fleetcmd/internal/config"
	"fleetcmd/internal/dispatch"
	"fleetcmd/internal/store"
	"fleetcmd/internal/webhooks"
)

type Server struct {
	Store    store.Store
	Dispatch *dispatch.Service
	Pub      *webhooks.Publisher
	Auth     *auth.Verifier
	Broker   EventBroker
	Log      zerolog.Logger
	Cfg      config.Config
}

// NewServer builds a Server from configuration. An empty database URL
// selects the in-memory store; an empty Redis URL selects the in-process broker.
func NewServer(cfg config.Config, log zerolog.Logger) (*Server, error) {
	var s store.Store
	if cfg.DatabaseURL == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if cfg.Migrate {
			if err := sp.MigrateDir("db/migrations"); err != nil {
				log.Warn().Err(err).Msg("migrations failed")
			}
		}
		s = sp
	}
	var broker EventBroker
	if cfg.RedisURL != "" {
		rb, err := NewRedisBroker(cfg.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("redis broker unavailable, using in-process broker")
			broker = NewBroker()
		} else {
			broker = rb
		}
	} else {
		broker = NewBroker()
	}
	return &Server{
		Store:    s,
		Dispatch: dispatch.NewService(s, log),
		Pub:      webhooks.NewPublisher(s),
		Auth:     auth.NewVerifier(cfg.Auth.Mode, cfg.Auth.HMACSecret),
		Broker:   broker,
		Log:      log,
		Cfg:      cfg,
	}, nil
}

// NewWebhookWorker creates the background webhook delivery worker.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.Webhooks.MaxAttempts, s.Cfg.Webhooks.Interval(), s.Log)
}
