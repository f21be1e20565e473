package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/interactions"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	platformdiscord "github.com/spec-kit/ticket-bot/internal/platform/discord"
	"github.com/spec-kit/ticket-bot/internal/policy"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	readiness := map[string]handlers.Pinger{}
	var audit *repository.AuditRepository
	if pool := pg.PoolHandle(); pool != nil {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pool, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		audit = repository.NewAuditRepository(pool)
		readiness["postgres"] = pg
	}

	var stream *events.RedisStreamSink
	if cfg.Events.RedisStream != "" {
		redis := persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		stream = events.NewRedisStreamSink(redis.Client, cfg.Events.RedisStream, cfg.Events.MaxLen)
		readiness["redis"] = redis
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		logger.Fatal("failed to create discord session", zap.Error(err))
	}
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	chat := platformdiscord.New(session, cfg.Discord.GuildID)
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher(logger)
	ticketPolicy := policy.New(policy.Config{
		StaffRoles:    cfg.Ticket.StaffRoles,
		OverrideID:    cfg.Ticket.OverrideID,
		OverrideScope: cfg.Ticket.OverrideScope,
	})

	lifecycle := service.NewLifecycleService(service.LifecycleDependencies{
		Platform:   chat,
		Policy:     ticketPolicy,
		Archiver:   service.NewArchiveService(chat, service.ArchiveConfig{LogChannelID: cfg.Ticket.LogChannelID}, logger),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Config: service.LifecycleConfig{
			TicketContainerID: cfg.Ticket.ContainerID,
			CloseDelay:        cfg.Ticket.CloseDelay,
		},
	})
	provisioner := service.NewProvisionerService(service.ProvisionerDependencies{
		Platform:   chat,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Config: service.ProvisionerConfig{
			TicketContainerID: cfg.Ticket.ContainerID,
			EveryoneRoleID:    cfg.Discord.GuildID,
			StaffRoles:        cfg.Ticket.StaffRoles,
			PageRoles:         cfg.Ticket.PageRoles,
		},
	})

	sinks := worker.Sinks{
		Notifications: service.NewNotificationService(dispatcher, chat, logger, cfg.Notification),
		Stream:        stream,
		Audit:         audit,
	}
	worker.StartEventSinks(dispatcher, sinks)

	presenter := interactions.NewHandler(session, lifecycle, provisioner, interactions.Config{
		GuildID:       cfg.Discord.GuildID,
		Prefix:        cfg.Discord.CommandPrefix,
		OwnerID:       cfg.Discord.OwnerID,
		PanelImageURL: cfg.Ticket.PanelImageURL,
	}, logger)
	presenter.Register(session)

	if err := session.Open(); err != nil {
		logger.Fatal("failed to open discord gateway", zap.Error(err))
	}
	defer session.Close() //nolint:errcheck
	logger.Info("discord gateway connected", zap.Stringer("guild_id", cfg.Discord.GuildID))

	var app *fiber.App
	if cfg.App.HTTPEnabled {
		authService := service.NewAuthService(cfg.Auth, chat)

		var auditReader handlers.AuditReader
		if audit != nil {
			auditReader = audit
		}

		app = fiber.New(fiber.Config{AppName: cfg.App.Name})
		httptransport.RegisterMiddlewares(app, logger, metrics, cfg.RateLimit, cfg.App.RequestTimeout())
		httptransport.RegisterRoutes(app, httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, readiness),
			Metrics:        handlers.NewMetricsHandler(metrics),
			Auth:           handlers.NewAuthHandler(authService),
			Tickets:        handlers.NewTicketsHandler(lifecycle, provisioner, auditReader),
			AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager()),
		})

		go func() {
			if err := app.Listen(cfg.App.Addr()); err != nil {
				logger.Fatal("fiber listen", zap.Error(err))
			}
		}()
	}

	waitForShutdown(logger)

	if app != nil {
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Warn("http shutdown", zap.Error(err))
		}
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
