// @title           Smile Preview Backend API
// @version         1.0.0
// @description     Backend API for the smile design funnel: style and shade selection, photo normalization, AI smile edits via fal.ai, lead capture behind the result gate, and lead administration.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"google.golang.org/api/option"
	"smile-preview-backend/docs"
	"smile-preview-backend/internal/camera"
	"smile-preview-backend/internal/catalog"
	"smile-preview-backend/internal/config"
	"smile-preview-backend/internal/database"
	"smile-preview-backend/internal/editor"
	"smile-preview-backend/internal/falai"
	"smile-preview-backend/internal/geo"
	"smile-preview-backend/internal/handlers"
	"smile-preview-backend/internal/leads"
	"smile-preview-backend/internal/logger"
	"smile-preview-backend/internal/middleware"
	"smile-preview-backend/internal/notify"
	"smile-preview-backend/internal/objectstore"
	"smile-preview-backend/internal/session"
	"smile-preview-backend/internal/sheets"
	"smile-preview-backend/internal/supabase"
	"smile-preview-backend/internal/wizard"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("production")
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}

	log := logger.New(cfg.Environment)

	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Update Swagger docs with dynamic base URL
	if cfg.BaseURL != "" {
		baseURL, err := url.Parse(cfg.BaseURL)
		if err == nil {
			docs.SwaggerInfo.Host = baseURL.Host
			if baseURL.Scheme == "https" {
				docs.SwaggerInfo.Schemes = []string{"https", "http"}
			} else {
				docs.SwaggerInfo.Schemes = []string{"http", "https"}
			}
		}
	}

	leadStore, closeStore := buildLeadStore(ctx, cfg, log)
	defer closeStore()

	leadService := leads.NewService(leadStore, log, buildSinks(ctx, cfg, log)...)

	// Hosted model
	falClient := falai.NewClient(cfg.FalQueueURL, cfg.FalStorageURL, cfg.FalAPIKey, cfg.PollInterval)
	uploader, err := buildUploader(ctx, cfg, falClient)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.UploadBackend).Msg("failed to initialize upload backend")
	}
	editClient := editor.NewClient(uploader, falClient, cfg.FalModel, log)

	visitors := session.NewMemoryStore(cfg.VisitorTTL)

	var resolvers geo.Chain
	if cfg.GeoIPDBPath != "" {
		dbResolver, err := geo.NewResolver(cfg.GeoIPDBPath)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.GeoIPDBPath).Msg("GeoIP database unavailable")
		} else {
			defer dbResolver.Close()
			resolvers = append(resolvers, dbResolver)
		}
	}
	if cfg.GeoLookupEnabled && cfg.GeoLookupURL != "" {
		resolvers = append(resolvers, geo.NewHTTPResolver(cfg.GeoLookupURL))
	}
	locator := geo.NewLocator(resolvers, visitors, log)

	var cam camera.Device
	if cfg.CameraStreamURL != "" {
		cam = camera.NewMJPEGDevice(cfg.CameraStreamURL, nil)
		log.Info().Str("stream_url", cfg.CameraStreamURL).Msg("kiosk camera enabled")
	}

	manager := wizard.NewManager(wizard.Deps{
		Editor:     editClient,
		References: catalog.NewReferenceLoader(cfg.StyleAssetsDir, cfg.StyleAssetsBaseURL),
		Leads:      leadService,
		Visitors:   visitors,
		Camera:     cam,
		Logger:     log,
	}, wizard.Options{
		EdgeLength:        cfg.EdgeLength,
		SelectionDelay:    cfg.SelectionDelay,
		PhotoDelay:        cfg.PhotoDelay,
		GenerationTimeout: cfg.GenerationTimeout,
		CaptureTimeout:    cfg.CaptureTimeout,
		SessionTTL:        cfg.SessionTTL,
		WizardFallbackURL: cfg.WizardFallbackURL,
		QuickFallbackURL:  cfg.QuickFallbackURL,
	})

	// Initialize handlers
	sessionsHandler := handlers.NewSessionsHandler(manager, log)
	visitorHandler := handlers.NewVisitorHandler(locator, visitors)
	adminHandler := handlers.NewAdminHandler(leadService, handlers.AdminCredentials{
		Username:     cfg.AdminUsername,
		PasswordHash: cfg.AdminPasswordHash,
		JWTSecret:    cfg.AdminJWTSecret,
		TokenTTL:     cfg.AdminTokenTTL,
	}, log)
	if !cfg.AdminEnabled() {
		log.Warn().Msg("ADMIN_PASSWORD_HASH not set, admin login disabled")
	}

	// Setup router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID(logger.Component(log, "http")))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Split(cfg.AllowedOrigins, ","),
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", handlers.HealthHandler)

	// API routes
	api := router.Group("/api/v1")
	api.GET("/catalog", handlers.CatalogHandler)

	// Funnel routes carry the visitor cookie
	funnel := api.Group("")
	funnel.Use(middleware.VisitorID(strings.HasPrefix(cfg.BaseURL, "https://")))
	funnel.GET("/geo", visitorHandler.GetGeo)
	funnel.GET("/visitor", visitorHandler.GetVisitor)

	funnel.POST("/sessions", sessionsHandler.Create)
	funnel.GET("/sessions/:session_id", sessionsHandler.Get)
	funnel.POST("/sessions/:session_id/style", sessionsHandler.SelectStyle)
	funnel.POST("/sessions/:session_id/shade", sessionsHandler.SelectShade)
	funnel.POST("/sessions/:session_id/photo", sessionsHandler.UploadPhoto)
	funnel.POST("/sessions/:session_id/camera", sessionsHandler.StartCamera)
	funnel.POST("/sessions/:session_id/camera/confirm", sessionsHandler.ConfirmCamera)
	funnel.POST("/sessions/:session_id/camera/cancel", sessionsHandler.CancelCamera)
	funnel.POST("/sessions/:session_id/generate", sessionsHandler.Generate)
	funnel.POST("/sessions/:session_id/lead", sessionsHandler.SubmitLead)
	funnel.POST("/sessions/:session_id/reset", sessionsHandler.Reset)
	funnel.GET("/sessions/:session_id/before.png", sessionsHandler.BeforeImage)
	funnel.GET("/sessions/:session_id/after", sessionsHandler.AfterImage)

	// Admin routes
	api.POST("/admin/login", adminHandler.Login)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminAuth(cfg.AdminJWTSecret))
	admin.GET("/leads", adminHandler.ListLeads)
	admin.GET("/leads/export", adminHandler.ExportLeads)
	admin.DELETE("/leads", adminHandler.ClearLeads)

	// Start server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	manager.Close()
}

// buildLeadStore prefers a direct Postgres connection and falls back to the
// Supabase REST API.
func buildLeadStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (leads.Store, func()) {
	if cfg.DatabaseURL != "" {
		db, err := database.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to database")
		}
		if err := database.NewMigrator(db, log).Run(ctx); err != nil {
			log.Fatal().Err(err).Msg("migration failed")
		}
		log.Info().Msg("using postgres lead store")
		return database.NewLeadStore(db), func() { db.Close() }
	}

	client, err := supabase.NewClient(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize Supabase client")
	}
	log.Info().Str("table", cfg.SupabaseLeadsTable).Msg("using supabase lead store")
	return supabase.NewLeadStore(client, cfg.SupabaseLeadsTable), func() {}
}

// buildSinks wires the optional lead mirrors. A sink that fails to start is
// skipped.
func buildSinks(ctx context.Context, cfg *config.Config, log zerolog.Logger) []leads.Sink {
	var sinks []leads.Sink

	if cfg.GoogleSpreadsheetID != "" {
		var opts []option.ClientOption
		if cfg.GoogleCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.GoogleCredentialsFile))
		}
		appender, err := sheets.NewAppender(ctx, cfg.GoogleSpreadsheetID, opts...)
		if err != nil {
			log.Warn().Err(err).Msg("Google Sheets mirror disabled")
		} else {
			sinks = append(sinks, appender)
		}
	}

	if cfg.SendGridAPIKey != "" && cfg.LeadNotifyFrom != "" && cfg.LeadNotifyTo != "" {
		sinks = append(sinks, notify.NewSendGrid(cfg.SendGridAPIKey, cfg.LeadNotifyFrom, cfg.LeadNotifyTo))
	}

	return sinks
}

func buildUploader(ctx context.Context, cfg *config.Config, falClient *falai.Client) (editor.Uploader, error) {
	switch cfg.UploadBackend {
	case "supabase":
		return supabase.NewStorageClient(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseStorageBucket), nil
	case "s3":
		s3Uploader, err := objectstore.NewS3Uploader(ctx, cfg.AWSRegion, cfg.AWSBucketName, cfg.S3URLExpiry)
		if err != nil {
			return nil, err
		}
		return s3Uploader, nil
	default:
		return falClient, nil
	}
}
