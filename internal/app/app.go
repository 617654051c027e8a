package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "modernc.org/sqlite"

	"github.com/weatherhub/weather-updates-api/internal/config"
	"github.com/weatherhub/weather-updates-api/internal/emailer"
	subhandler "github.com/weatherhub/weather-updates-api/internal/handlers/subscription"
	weatherhandler "github.com/weatherhub/weather-updates-api/internal/handlers/weather"
	"github.com/weatherhub/weather-updates-api/internal/metrics"
	"github.com/weatherhub/weather-updates-api/internal/models"
	"github.com/weatherhub/weather-updates-api/internal/notifier"
	"github.com/weatherhub/weather-updates-api/internal/repository/sqlite"
	"github.com/weatherhub/weather-updates-api/internal/services/cache"
	"github.com/weatherhub/weather-updates-api/internal/services/email"
	"github.com/weatherhub/weather-updates-api/internal/services/httplog"
	subservice "github.com/weatherhub/weather-updates-api/internal/services/subscription"
	serviceweather "github.com/weatherhub/weather-updates-api/internal/services/weather"
	"github.com/weatherhub/weather-updates-api/internal/services/weather/decorators"
)

const (
	shutdownTimeout = 5 * time.Second

	logFileMode = 0o644
)

type weatherGetter interface {
	GetByCity(ctx context.Context, city string) (models.WeatherData, error)
}

type App struct {
	cfg config.Config
	log zerolog.Logger
}

type ServiceContainer struct {
	WeatherService      weatherGetter
	SubscriptionService *subservice.Service
	Notificator         *notifier.Notifier

	Router  *gin.Engine
	Srv     *http.Server
	Db      *sql.DB
	Metrics *metrics.Metrics

	httpLogSync func() error
}

func New(cfg config.Config, logger zerolog.Logger) *App {
	return &App{cfg: cfg, log: logger}
}

func (a *App) Init() (ServiceContainer, error) {
	db, err := CreateSqliteDb(a.cfg.DB.Dialect, a.cfg.DB.Source)
	if err != nil {
		return ServiceContainer{}, err
	}

	if err := InitSqliteDb(db, a.cfg.DB.Dialect, a.cfg.DB.MigrationsPath); err != nil {
		return ServiceContainer{}, err
	}

	m := metrics.New("weather_updates")

	router := gin.Default()
	apiServer := &http.Server{
		Addr:        a.cfg.Server.Address,
		Handler:     router,
		ReadTimeout: time.Duration(a.cfg.Server.ReadTimeout) * time.Second,
	}

	httpFileLogger, err := newFileLogger(a.cfg.HTTPLogsPath)
	if err != nil {
		return ServiceContainer{}, err
	}
	redact := func(s string) string {
		return strings.ReplaceAll(s, a.cfg.Weather.APIKey, "REDACTED")
	}
	httpClient := &http.Client{
		Timeout:   time.Duration(a.cfg.Weather.Timeout) * time.Second,
		Transport: httplog.NewRoundTripper(httpFileLogger, redact),
	}

	weatherAPIClient := serviceweather.NewClientWeatherAPI(
		a.cfg.Weather.APIKey,
		a.cfg.Weather.APIURL,
		httpClient,
		a.log,
	)
	breakerClient := serviceweather.NewBreakerClient(
		"weatherapi",
		serviceweather.BreakerConfig{
			TimeInterval: time.Duration(a.cfg.Breaker.TimeInterval) * time.Second,
			TimeTimeOut:  time.Duration(a.cfg.Breaker.TimeTimeOut) * time.Second,
			RepeatNumber: a.cfg.Breaker.RepeatNumber,
		},
		weatherAPIClient,
	)

	var weatherService weatherGetter = serviceweather.NewService(a.log, breakerClient)
	if a.cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: a.cfg.Redis.Addr})
		weatherCache := cache.NewMetricsDecorator[models.WeatherData](
			cache.NewRedisClient[models.WeatherData](
				redisClient,
				a.log,
				time.Duration(a.cfg.Redis.LiveTime)*time.Minute,
			),
			m,
		)
		weatherService = decorators.NewCachedService(weatherService, weatherCache, a.log)
	}

	smtpService := emailer.NewSMTPService(a.cfg.SMTP)
	emailService := email.NewService(smtpService, a.cfg.TemplatesDir, a.cfg.AppBaseURL)

	subRepository := sqlite.NewSubscriptionRepository(db, a.log, m)
	subscriptionService := subservice.NewService(
		subRepository,
		emailService,
		subservice.NewToken,
		a.log,
		m,
	)

	notificator := notifier.New(
		subRepository,
		weatherService,
		emailService,
		a.log,
		m,
		a.cfg.Notifier.CronSpec,
		a.cfg.Notifier.Workers,
		time.Duration(a.cfg.Notifier.Timeout)*time.Second,
	)

	return ServiceContainer{
		WeatherService:      weatherService,
		SubscriptionService: subscriptionService,
		Notificator:         notificator,
		Router:              router,
		Srv:                 apiServer,
		Db:                  db,
		Metrics:             m,
		httpLogSync:         httpFileLogger.Sync,
	}, nil
}

func (a *App) Start(c ServiceContainer) error {
	a.log.Info().Str("address", a.cfg.Server.Address).Msg("starting server")

	subHandler := subhandler.NewHandler(c.SubscriptionService, a.log)
	weatherHandler := weatherhandler.NewHandler(c.WeatherService, a.log)

	api := c.Router.Group("/api")
	api.Use(c.Metrics.HTTPMiddleware())
	{
		api.GET("/weather", weatherHandler.GetWeather)
		api.POST("/subscribe", subHandler.Subscribe)
		api.GET("/confirm/:token", subHandler.Confirm)
		api.GET("/unsubscribe/:token", subHandler.Unsubscribe)
	}
	c.Router.GET("/metrics", gin.WrapH(c.Metrics.Handler()))

	if err := c.Notificator.Start(context.Background()); err != nil {
		return err
	}

	if err := c.Srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Stop(c ServiceContainer) error {
	a.log.Info().Msg("stopping application")

	c.Notificator.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := c.Srv.Shutdown(ctx); err != nil {
		a.log.Error().Err(err).Msg("HTTP shutdown error")
	}

	if err := c.Db.Close(); err != nil {
		a.log.Error().Err(err).Msg("DB close error")
	}

	if c.httpLogSync != nil {
		if err := c.httpLogSync(); err != nil {
			a.log.Error().Err(err).Msg("failed to sync http log")
		}
	}

	a.log.Info().Msg("shutdown complete")
	return nil
}

func CreateSqliteDb(dialect, name string) (*sql.DB, error) {
	if name == "" {
		return nil, errors.New("database name cannot be empty")
	}
	connectionString := "file:" + name + "?cache=shared&mode=rwc"
	db, err := sql.Open(dialect, connectionString)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}

func InitSqliteDb(db *sql.DB, dialect, migrationPath string) error {
	if err := goose.SetDialect(dialect); err != nil {
		return err
	}
	return goose.Up(db, migrationPath)
}

func newFileLogger(filePath string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(filepath.Clean(filePath)), 0o755); err != nil {
		return nil, err
	}
	file, err := os.OpenFile(filepath.Clean(filePath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFileMode)
	if err != nil {
		return nil, err
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(file),
		zap.InfoLevel,
	)
	return zap.New(core), nil
}
