package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/umeyka")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "postgres://u:p@db:5432/umeyka", cfg.DatabaseURL)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 5, cfg.Economy.FreeSkillLimit)
	assert.Equal(t, int64(100), cfg.Economy.PremiumPriceStars)
	assert.Equal(t, int64(10), cfg.Economy.BoostPriceStars)
	assert.Equal(t, int64(50), cfg.Economy.ReferralBonusStars)
	assert.Equal(t, int64(10), cfg.Economy.ReferralWelcomeStars)
	assert.Equal(t, int64(10), cfg.Economy.DealCompletionStars)
	assert.Equal(t, int64(5), cfg.Economy.DealClientStars)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.False(t, cfg.Redis.Enabled())
}

func TestLoad_ProductionRequiresSecrets(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("REFRESH_SECRET", "short")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ProductionRequiresBotToken(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("REFRESH_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://app.umeyka.ru")

	_, err := Load()
	assert.ErrorContains(t, err, "TELEGRAM_BOT_TOKEN")
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("ACCESS_TOKEN_TTL", "soon")

	_, err := Load()
	assert.ErrorContains(t, err, "ACCESS_TOKEN_TTL")
}

func TestLoad_CORSOriginsTrimmed(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , https://b.example ,")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.Redis.Enabled())
}

func TestGetDatabaseURL_FromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRESQL_HOST", "pg")
	t.Setenv("POSTGRESQL_USER", "umeyka")
	t.Setenv("POSTGRESQL_PASSWORD", "p@ss")
	t.Setenv("POSTGRESQL_DBNAME", "market")

	assert.Equal(t, "postgres://umeyka:p%40ss@pg:5432/market?sslmode=disable", getDatabaseURL())
}
