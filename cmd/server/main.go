package main // Entry point for the check-in API server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/event-checkin/internal/config"
	"github.com/iliyamo/event-checkin/internal/database"
	"github.com/iliyamo/event-checkin/internal/handler"
	"github.com/iliyamo/event-checkin/internal/logging"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/queue"
	"github.com/iliyamo/event-checkin/internal/repository"
	"github.com/iliyamo/event-checkin/internal/router"
	"github.com/iliyamo/event-checkin/internal/service"
	"github.com/iliyamo/event-checkin/internal/token"
)

func main() {
	_ = godotenv.Load() // .env is optional outside development
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.Env == "dev")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zerolog.Logger) error {
	var (
		store  service.TicketStore
		events service.EventDirectory
	)
	switch cfg.Store {
	case config.StoreMySQL:
		db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return err
		}
		defer db.Close()
		store = repository.NewTicketRepo(db)
		events = repository.NewEventRepo(db)
	default:
		mem := repository.NewMemoryEventStore()
		for _, id := range cfg.SeedEvents {
			mem.Put(model.Event{ID: id, Title: id})
		}
		store = repository.NewMemoryTicketStore()
		events = mem
		log.Warn().Strs("events", cfg.SeedEvents).Msg("using in-memory ticket store; data is lost on restart")
	}

	codec, err := token.New([]byte(cfg.TicketSecret))
	if err != nil {
		return err
	}

	var opts []service.Option
	if cfg.RabbitURL != "" {
		opts = append(opts, service.WithPublisher(service.NewAMQPPublisher(cfg.RabbitURL, log)))
		consumer := &queue.AttendanceConsumer{URL: cfg.RabbitURL, Dir: "logs", Log: log}
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("attendance consumer stopped")
			}
		}()
	}
	issuer := service.NewIssuer(codec, store, events, cfg.TicketTTL, log, opts...)
	validator := service.NewValidator(codec, store, log, opts...)
	go issuer.RunJanitor(ctx, cfg.PurgeInterval, cfg.TicketRetention)

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn().Msg("redis unavailable; rate limiting and caching disabled")
	} else {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogURI:     true,
		LogMethod:  true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	router.RegisterRoutes(e)
	router.RegisterTickets(e, handler.NewTicketHandler(issuer, validator, log), router.Deps{
		JWTSecret: cfg.JWTSecret,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Redis:     rdb,
		Log:       log,
	})

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("store", cfg.Store).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return e.Shutdown(shutdownCtx)
}
