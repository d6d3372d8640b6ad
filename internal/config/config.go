package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// fal.ai
	FalAPIKey     string
	FalQueueURL   string
	FalStorageURL string
	FalModel      string
	PollInterval  time.Duration

	// Upload backend for provider-reachable URLs: "fal", "supabase" or "s3"
	UploadBackend string

	// Supabase
	SupabaseURL           string
	SupabaseKey           string
	SupabaseStorageBucket string
	SupabaseLeadsTable    string

	// S3
	AWSRegion     string
	AWSBucketName string
	S3URLExpiry   time.Duration

	// Database
	DatabaseURL string

	// Funnel
	EdgeLength         int
	SelectionDelay     time.Duration
	PhotoDelay         time.Duration
	GenerationTimeout  time.Duration
	CaptureTimeout     time.Duration
	SessionTTL         time.Duration
	VisitorTTL         time.Duration
	WizardFallbackURL  string
	QuickFallbackURL   string
	StyleAssetsDir     string
	StyleAssetsBaseURL string
	CameraStreamURL    string

	// Geo
	GeoIPDBPath      string
	GeoLookupURL     string
	GeoLookupEnabled bool

	// Admin
	AdminUsername     string
	AdminPasswordHash string
	AdminJWTSecret    string
	AdminTokenTTL     time.Duration

	// Lead mirrors
	GoogleCredentialsFile string
	GoogleSpreadsheetID   string
	SendGridAPIKey        string
	LeadNotifyFrom        string
	LeadNotifyTo          string

	// Server
	Port           string
	Environment    string
	BaseURL        string
	AllowedOrigins string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		FalAPIKey:     getEnv("FAL_KEY", ""),
		FalQueueURL:   getEnv("FAL_QUEUE_URL", "https://queue.fal.run"),
		FalStorageURL: getEnv("FAL_STORAGE_URL", "https://rest.alpha.fal.ai"),
		FalModel:      getEnv("FAL_MODEL", "fal-ai/nano-banana-pro/edit"),
		PollInterval:  getEnvDuration("FAL_POLL_INTERVAL", time.Second),

		UploadBackend: getEnv("UPLOAD_BACKEND", "fal"),

		SupabaseURL:           getEnv("SUPABASE_URL", ""),
		SupabaseKey:           getEnv("SUPABASE_KEY", ""),
		SupabaseStorageBucket: getEnv("SUPABASE_STORAGE_BUCKET", "smile-uploads"),
		SupabaseLeadsTable:    getEnv("SUPABASE_LEADS_TABLE", "submissions"),

		AWSRegion:     getEnv("AWS_REGION", "us-east-1"),
		AWSBucketName: getEnv("AWS_BUCKET_NAME", ""),
		S3URLExpiry:   getEnvDuration("S3_URL_EXPIRY", time.Hour),

		DatabaseURL: getEnv("DATABASE_URL", ""),

		EdgeLength:         getEnvInt("EDGE_LENGTH", 1024),
		SelectionDelay:     getEnvDuration("SELECTION_DELAY", 800*time.Millisecond),
		PhotoDelay:         getEnvDuration("PHOTO_DELAY", 500*time.Millisecond),
		GenerationTimeout:  getEnvDuration("GENERATION_TIMEOUT", 120*time.Second),
		CaptureTimeout:     getEnvDuration("CAPTURE_TIMEOUT", 2*time.Minute),
		SessionTTL:         getEnvDuration("SESSION_TTL", time.Hour),
		VisitorTTL:         getEnvDuration("VISITOR_TTL", 30*24*time.Hour),
		WizardFallbackURL:  getEnv("WIZARD_FALLBACK_URL", "/hero/good1.webp"),
		QuickFallbackURL:   getEnv("QUICK_FALLBACK_URL", "/hero/good1.png"),
		StyleAssetsDir:     getEnv("STYLE_ASSETS_DIR", "public"),
		StyleAssetsBaseURL: getEnv("STYLE_ASSETS_BASE_URL", ""),
		CameraStreamURL:    getEnv("CAMERA_STREAM_URL", ""),

		GeoIPDBPath:      getEnv("GEOIP_DB_PATH", ""),
		GeoLookupURL:     getEnv("GEO_LOOKUP_URL", "https://ipapi.co"),
		GeoLookupEnabled: getEnvBool("GEO_LOOKUP_ENABLED", true),

		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),
		AdminJWTSecret:    getEnv("ADMIN_JWT_SECRET", ""),
		AdminTokenTTL:     getEnvDuration("ADMIN_TOKEN_TTL", 8*time.Hour),

		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		SendGridAPIKey:        getEnv("SENDGRID_API_KEY", ""),
		LeadNotifyFrom:        getEnv("LEAD_NOTIFY_FROM", ""),
		LeadNotifyTo:          getEnv("LEAD_NOTIFY_TO", ""),

		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		BaseURL:        getEnv("BASE_URL", "http://localhost:8080"),
		AllowedOrigins: getEnv("ALLOWED_ORIGINS", "http://localhost:5173"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.FalAPIKey == "" {
		return fmt.Errorf("FAL_KEY is required")
	}
	if c.DatabaseURL == "" && (c.SupabaseURL == "" || c.SupabaseKey == "") {
		return fmt.Errorf("either DATABASE_URL or SUPABASE_URL and SUPABASE_KEY are required")
	}
	if c.EdgeLength <= 0 {
		return fmt.Errorf("EDGE_LENGTH must be positive")
	}
	switch c.UploadBackend {
	case "fal":
	case "supabase":
		if c.SupabaseURL == "" || c.SupabaseKey == "" {
			return fmt.Errorf("UPLOAD_BACKEND=supabase requires SUPABASE_URL and SUPABASE_KEY")
		}
	case "s3":
		if c.AWSBucketName == "" {
			return fmt.Errorf("UPLOAD_BACKEND=s3 requires AWS_BUCKET_NAME")
		}
	default:
		return fmt.Errorf("unknown UPLOAD_BACKEND %q", c.UploadBackend)
	}
	if c.AdminPasswordHash != "" && c.AdminJWTSecret == "" {
		return fmt.Errorf("ADMIN_JWT_SECRET is required when ADMIN_PASSWORD_HASH is set")
	}
	return nil
}

// AdminEnabled reports whether the admin endpoints can issue tokens.
func (c *Config) AdminEnabled() bool {
	return c.AdminPasswordHash != "" && c.AdminJWTSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
