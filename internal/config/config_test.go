package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"smile-preview-backend/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FAL_KEY", "key")
	t.Setenv("DATABASE_URL", "postgres://localhost/smile")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "fal", cfg.UploadBackend)
	assert.Equal(t, 1024, cfg.EdgeLength)
	assert.Equal(t, 800*time.Millisecond, cfg.SelectionDelay)
	assert.Equal(t, 500*time.Millisecond, cfg.PhotoDelay)
	assert.Equal(t, 120*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, "fal-ai/nano-banana-pro/edit", cfg.FalModel)
	assert.False(t, cfg.AdminEnabled())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("FAL_KEY", "key")
	t.Setenv("SUPABASE_URL", "https://x.supabase.co")
	t.Setenv("SUPABASE_KEY", "service")
	t.Setenv("GENERATION_TIMEOUT", "45s")
	t.Setenv("EDGE_LENGTH", "512")
	t.Setenv("GEO_LOOKUP_ENABLED", "false")
	t.Setenv("UPLOAD_BACKEND", "supabase")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 512, cfg.EdgeLength)
	assert.False(t, cfg.GeoLookupEnabled)
	assert.Equal(t, "supabase", cfg.UploadBackend)
}

func TestValidate(t *testing.T) {
	base := func() config.Config {
		return config.Config{FalAPIKey: "key", DatabaseURL: "postgres://x", UploadBackend: "fal", EdgeLength: 1024}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.FalAPIKey = ""
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.DatabaseURL = ""
	assert.Error(t, cfg.Validate(), "no lead store")

	cfg = base()
	cfg.UploadBackend = "s3"
	assert.Error(t, cfg.Validate(), "s3 without bucket")
	cfg.AWSBucketName = "bucket"
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.UploadBackend = "ftp"
	assert.Error(t, cfg.Validate())

	cfg = base()
	cfg.AdminPasswordHash = "$2a$10$hash"
	assert.Error(t, cfg.Validate(), "hash without secret")
	cfg.AdminJWTSecret = "secret"
	assert.NoError(t, cfg.Validate())
	assert.True(t, cfg.AdminEnabled())
}
