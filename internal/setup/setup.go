package setup

import (
	"github.com/treechat-dev/treechat/internal/config"
	"github.com/treechat-dev/treechat/internal/confirmation"
	"github.com/treechat-dev/treechat/internal/domain"
	internal_errors "github.com/treechat-dev/treechat/internal/errors"
	"github.com/treechat-dev/treechat/internal/handler"
	"github.com/treechat-dev/treechat/internal/jwt"
	"github.com/treechat-dev/treechat/internal/logger"
	"github.com/treechat-dev/treechat/internal/mail"
	"github.com/treechat-dev/treechat/internal/middleware"
	"github.com/treechat-dev/treechat/internal/scheduler"
	"github.com/treechat-dev/treechat/internal/service"
	"github.com/treechat-dev/treechat/internal/storage/pg"
)

// Dependencies holds all initialized application components.
type Dependencies struct {
	Config         *config.Config
	Storage        *pg.Storage
	Scheduler      *scheduler.Scheduler
	Registry       *confirmation.Registry
	Orchestrator   *confirmation.Orchestrator
	Handler        *handler.Handler
	AuthMiddleware *middleware.Auth
	Jwt            jwt.JwtService
}

// SetupDependencies wires storage, scheduler, confirmation engine, services
// and the HTTP boundary together.
func SetupDependencies(cfg *config.Config) (*Dependencies, error) {
	storage, err := pg.New(cfg)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(cfg.SchedulerWorkers())

	store := confirmation.NewStore()
	registry := confirmation.NewRegistry(cfg.ConfirmationTTL())
	if err := registry.StartSweep(sched, cfg.SweepInterval()); err != nil {
		return nil, err
	}

	orch := confirmation.NewOrchestrator(sched, store, registry, cfg.ConfirmationTTL(), cfg.Public.RedirectOrigin)
	orch.OnRollback(domain.SignUp, func(subject string) scheduler.Task {
		return func() {
			err := storage.DeleteUnconfirmedAccount(subject)
			if err != nil && internal_errors.StatusCode(err) != 404 {
				logger.Log.Error("sign-up rollback failed", "email", subject, "error", err)
			}
		}
	})

	mailer := mail.New(&cfg.Private.Email)
	links := mail.NewLinkBuilder(cfg.Public.Protocol, cfg.Public.Host, cfg.Public.Port)
	jwtService := jwt.New(cfg.JwtKey(), cfg.JwtTTL())

	auth := service.NewAuth(storage, mailer, orch, jwtService, links, cfg.ConfirmationTTL())
	message := service.NewMessage(storage, nil, sched)

	h := handler.New(auth, message, orch, storage, cfg)
	authMw := middleware.NewAuth(jwtService)

	return &Dependencies{
		Config:         cfg,
		Storage:        storage,
		Scheduler:      sched,
		Registry:       registry,
		Orchestrator:   orch,
		Handler:        h,
		AuthMiddleware: authMw,
		Jwt:            jwtService,
	}, nil
}
