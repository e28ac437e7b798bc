package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	cfg := fromViper(v)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 15*time.Minute, cfg.Signatures.SignedURLTTL)
	assert.Equal(t, int64(5*1024*1024), cfg.Signatures.MaxFileSizeBytes)
	assert.Equal(t, []string{"image/png", "image/jpeg", "application/pdf"}, cfg.Signatures.AllowedMIMEs)
	assert.False(t, cfg.Contracts.PDFCacheEnable)
}

func TestOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("JWT_EXPIRATION", "not-a-duration")
	v.Set("SIGNATURES_MAX_FILE_SIZE", 0)
	v.Set("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	v.Set("DB_AUTO_MIGRATE", true)
	cfg := fromViper(v)

	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, int64(5*1024*1024), cfg.Signatures.MaxFileSizeBytes)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
	assert.True(t, cfg.Database.AutoMigrate)
}
