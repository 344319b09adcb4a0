package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App struct {
		Name string `envconfig:"APP_NAME" default:"Cambio"`
		Port int    `envconfig:"PORT" default:"8080"`
	}

	DB struct {
		Host     string `envconfig:"DB_HOST" default:"localhost"`
		Port     int    `envconfig:"DB_PORT" default:"5432"`
		User     string `envconfig:"DB_USER" default:"postgres"`
		Password string `envconfig:"DB_PASSWORD" default:""`
		Name     string `envconfig:"DB_NAME" default:"cambio"`
		Migrate  bool   `envconfig:"DB_MIGRATE" default:"true"`
	}

	Server struct {
		Timeout         time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
		AllowedOrigins  []string      `envconfig:"SERVER_ALLOWED_ORIGINS" default:"http://localhost:5173"`
	}

	Auth struct {
		Secret string `envconfig:"AUTH_SECRET"`
		Issuer string `envconfig:"AUTH_ISSUER" default:"cambio"`
	}

	Chat struct {
		ReconnectDelay time.Duration `envconfig:"CHAT_RECONNECT_DELAY" default:"3s"`
		WriteTimeout   time.Duration `envconfig:"CHAT_WRITE_TIMEOUT" default:"10s"`
		MaxMessageLen  int           `envconfig:"CHAT_MAX_MESSAGE_LEN" default:"2000"`
	}

	Fee struct {
		Rate decimal.Decimal `envconfig:"FEE_RATE" default:"0.02"`
	}

	Log struct {
		Level  string `envconfig:"LOG_LEVEL" default:"info"`
		Format string `envconfig:"LOG_FORMAT" default:"text"`
	}

	// Client is only read by the terminal client.
	Client struct {
		BaseURL string `envconfig:"CAMBIO_URL" default:"http://localhost:8080"`
		Token   string `envconfig:"CAMBIO_TOKEN"`
		Locale  string `envconfig:"CAMBIO_LOCALE" default:"es"`
		LogFile string `envconfig:"CAMBIO_LOG_FILE" default:"cambio-tui.log"`
	}
}

func (c *Config) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DB.User, c.DB.Password, c.DB.Host, c.DB.Port, c.DB.Name)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
