package config

import (
	"github.com/kelseyhightower/envconfig"
)

type Server struct {
	Address     string `envconfig:"SERVER_ADDRESS" default:":8080"`
	ReadTimeout int    `envconfig:"SERVER_TIMEOUT" default:"10"`
}

type Weather struct {
	APIKey  string `envconfig:"WEATHER_API_KEY" required:"true"`
	APIURL  string `envconfig:"WEATHER_API_URL" required:"true"`
	Timeout int    `envconfig:"WEATHER_API_TIMEOUT" default:"5"`
}

type SMTP struct {
	Host     string `envconfig:"SMTP_HOST" required:"true"`
	Port     int    `envconfig:"SMTP_PORT" required:"true"`
	User     string `envconfig:"SMTP_USER"`
	Password string `envconfig:"SMTP_PASSWORD"`
	From     string `envconfig:"SMTP_FROM" required:"true"`
}

type Db struct {
	Dialect        string `envconfig:"DB_DIALECT" default:"sqlite"`
	Source         string `envconfig:"DB_NAME" default:"subscriptions.db"`
	MigrationsPath string `envconfig:"DB_MIGRATIONS_DIR" default:"./migrations"`
}

type Notifier struct {
	CronSpec string `envconfig:"NOTIFIER_CRON_SPEC" default:"0 * * * *"`
	Workers  int    `envconfig:"NOTIFIER_WORKERS" default:"8"`
	Timeout  int    `envconfig:"NOTIFIER_TIMEOUT" default:"300"`
}

type Breaker struct {
	TimeInterval int    `envconfig:"BREAKER_INTERVAL" default:"30"`
	TimeTimeOut  int    `envconfig:"BREAKER_TIMEOUT" default:"10"`
	RepeatNumber uint32 `envconfig:"BREAKER_REPEAT_NUM" default:"5"`
}

type Redis struct {
	Addr     string `envconfig:"REDIS_ADDR"`
	LiveTime int    `envconfig:"REDIS_LIVE_TIME" default:"10"`
}

type Config struct {
	AppBaseURL   string `envconfig:"APP_BASE_URL" default:"http://localhost:8080"`
	TemplatesDir string `envconfig:"TEMPLATES_DIR" default:"./internal/templates"`
	LogsPath     string `envconfig:"LOGS_PATH" default:"./log/weather-updates-api.log"`
	HTTPLogsPath string `envconfig:"HTTP_LOGS_PATH" default:"./log/weather-http.log"`

	Weather  Weather
	SMTP     SMTP
	Server   Server
	DB       Db
	Notifier Notifier
	Breaker  Breaker
	Redis    Redis
}

func NewConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
