package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/brpaz/echozap"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/tidepool-org/glucose-alerts/alerts/detector"
	"github.com/tidepool-org/glucose-alerts/alerts/persistent"
	alertsRepository "github.com/tidepool-org/glucose-alerts/alerts/repository"
	"github.com/tidepool-org/glucose-alerts/clock"
	"github.com/tidepool-org/glucose-alerts/config"
	"github.com/tidepool-org/glucose-alerts/encryption"
	glucoseErrors "github.com/tidepool-org/glucose-alerts/errors"
	"github.com/tidepool-org/glucose-alerts/events"
	"github.com/tidepool-org/glucose-alerts/logger"
	"github.com/tidepool-org/glucose-alerts/notifications"
	"github.com/tidepool-org/glucose-alerts/outbox"
	"github.com/tidepool-org/glucose-alerts/quiethours"
	"github.com/tidepool-org/glucose-alerts/readings"
	readingsRepository "github.com/tidepool-org/glucose-alerts/readings/repository"
	settingsRepository "github.com/tidepool-org/glucose-alerts/settings/repository"
	settingsService "github.com/tidepool-org/glucose-alerts/settings/service"
	"github.com/tidepool-org/glucose-alerts/store"
	"github.com/tidepool-org/glucose-alerts/users"
)

func Start(e *echo.Echo, cfg *config.Config, logger *zap.SugaredLogger, lifecycle fx.Lifecycle) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := e.Start(cfg.ListenAddress); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Errorw("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

func SetReady(healthCheck *HealthCheck, db *mongo.Database, lifecycle fx.Lifecycle) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := db.Client().Ping(ctx, nil); err != nil {
				return err
			}

			// Set after mongo is initialized, lifecycle hooks are executed in
			// topological order
			healthCheck.SetReady(true)
			return nil
		},
	})
}

func NewServer(handler *Handler, healthCheck *HealthCheck, logger *zap.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	// Skip request logging for readiness probe and metrics routes
	skipper := RouteSkipper("/ready", "/metrics")

	e.Use(middleware.Recover())
	e.Use(skip(skipper, echozap.ZapLogger(logger)))

	e.HTTPErrorHandler = glucoseErrors.CustomHTTPErrorHandler

	e.GET("/ready", healthCheck.Ready)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	RegisterHandlers(e, handler)

	return e
}

func skip(skipper middleware.Skipper, m echo.MiddlewareFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		wrapped := m(next)
		return func(ec echo.Context) error {
			if skipper(ec) {
				return next(ec)
			}
			return wrapped(ec)
		}
	}
}

// Dependencies returns the providers of the detection engine shared by the service and the
// command line tools.
func Dependencies() []fx.Option {
	return []fx.Option{
		fx.Provide(
			logger.NewProductionLogger,
			logger.Suggar,
			config.NewFromEnv,
			clock.New,
			store.NewConfig,
			store.NewLifecycleClient,
			store.NewDatabase,
			settingsRepository.NewRepository,
			settingsService.NewService,
			alertsRepository.NewRepository,
			readingsRepository.NewManualSource,
			readingsRepository.NewEntrySource,
			encryption.NewConfig,
			encryption.NewCipher,
			encryption.NewDecryptor,
			readings.NewAggregator,
			persistent.NewHistory,
			persistent.NewTracker,
			quiethours.NewZoneResolver,
			quiethours.NewEvaluator,
			notifications.NewQuietHours,
			notifications.NewGate,
			notifications.NewConfig,
			notifications.NewOutboxNotifier,
			notifications.NewDispatcher,
			outbox.NewRepository,
			detector.NewResolver,
			detector.NewDispatcher,
			detector.NewDetector,
		),
		users.Module,
	}
}

func MainLoop() {
	options := append(Dependencies(),
		fx.Provide(
			NewHealthCheck,
			NewHandler,
			NewServer,
		),
		events.Module,
		fx.Invoke(SetReady),
		fx.Invoke(Start),
	)
	fx.New(options...).Run()
}
