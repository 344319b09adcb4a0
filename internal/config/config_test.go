package config_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/cambio/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, 3*time.Second, cfg.Chat.ReconnectDelay)
	assert.True(t, decimal.RequireFromString("0.02").Equal(cfg.Fee.Rate))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CHAT_RECONNECT_DELAY", "250ms")
	t.Setenv("FEE_RATE", "0.035")
	t.Setenv("SERVER_ALLOWED_ORIGINS", "http://a.test,http://b.test")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, 250*time.Millisecond, cfg.Chat.ReconnectDelay)
	assert.True(t, decimal.RequireFromString("0.035").Equal(cfg.Fee.Rate))
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
}

func TestConnectionString(t *testing.T) {
	var cfg config.Config
	cfg.DB.User = "u"
	cfg.DB.Password = "p"
	cfg.DB.Host = "db"
	cfg.DB.Port = 5433
	cfg.DB.Name = "cambio"

	assert.Equal(t, "postgres://u:p@db:5433/cambio?sslmode=disable", cfg.ConnectionString())
}
