package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/vectorlabs/vector/internal/backup"
	"github.com/vectorlabs/vector/internal/billing"
	"github.com/vectorlabs/vector/internal/cashfree"
	"github.com/vectorlabs/vector/internal/config"
	"github.com/vectorlabs/vector/internal/handler"
	"github.com/vectorlabs/vector/internal/middleware"
	"github.com/vectorlabs/vector/internal/quota"
	"github.com/vectorlabs/vector/internal/store"
)

const webhookRateLimit = 60

type Server struct {
	db             *sql.DB
	users          *store.UserStore
	profileH       *handler.ProfileHandler
	subscriptionH  *handler.SubscriptionHandler
	usageH         *handler.UsageHandler
	webhookH       *handler.WebhookHandler
	rateLimiter    *middleware.RateLimiter
	resetScheduler *quota.ResetScheduler
	backupManager  *backup.Manager
	logger         *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	users := store.NewUserStore(db)

	gateway := cashfree.NewClient(cashfree.Config{
		ClientID:     cfg.Billing.ClientID,
		ClientSecret: cfg.Billing.ClientSecret,
		APIVersion:   cfg.Billing.APIVersion,
		Production:   cfg.Billing.Production,
	})
	returnURL := cfg.BaseURL + "/subscription/return"
	billingSvc := billing.NewService(users, gateway, billing.ProPlan, returnURL, logger.With("component", "billing"))

	gate := quota.NewGate(users, quota.Limits{
		FreePerDay: cfg.Quota.FreePerDay,
		ProPerDay:  cfg.Quota.ProPerDay,
	})

	schema := handler.SchemaCurrent
	if cfg.Billing.WebhookSchema == string(handler.SchemaLegacy) {
		schema = handler.SchemaLegacy
	}

	// Backups only run when storage and a passphrase are configured.
	var backupMgr *backup.Manager
	if cfg.Backup.S3Bucket != "" && cfg.Backup.Passphrase != "" {
		backupMgr = backup.NewManager(backup.Config{
			Endpoint:   cfg.Backup.S3Endpoint,
			Bucket:     cfg.Backup.S3Bucket,
			Region:     cfg.Backup.S3Region,
			AccessKey:  cfg.Backup.AccessKey,
			SecretKey:  cfg.Backup.SecretKey,
			Passphrase: cfg.Backup.Passphrase,
			Hour:       cfg.Backup.Hour,
			DBPath:     cfg.DBPath,
		}, db, logger.With("component", "backup"))
	}

	return &Server{
		db:             db,
		users:          users,
		profileH:       handler.NewProfileHandler(users, logger.With("component", "profile")),
		subscriptionH:  handler.NewSubscriptionHandler(billingSvc, logger.With("component", "subscription")),
		usageH:         handler.NewUsageHandler(users, gate, logger.With("component", "usage")),
		webhookH:       handler.NewWebhookHandler(cfg.Billing.WebhookSecret, schema, users, logger.With("component", "webhook")),
		rateLimiter:    middleware.NewRateLimiter(webhookRateLimit, time.Minute),
		resetScheduler: quota.NewResetScheduler(users, logger.With("component", "quota_reset")),
		backupManager:  backupMgr,
		logger:         logger,
	}
}

// RateLimiter returns the shared limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// ResetScheduler returns the daily usage counter scheduler.
func (s *Server) ResetScheduler() *quota.ResetScheduler {
	return s.resetScheduler
}

// BackupManager returns the backup manager, or nil when backups are not
// configured.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthHandler)
	outerMux.Handle("POST /webhooks/billing", s.rateLimiter.Limit(http.HandlerFunc(s.webhookH.HandleBillingWebhook)))

	// Sign-in sync creates the user row, so it reads the identity header
	// itself rather than sitting behind the resolver middleware.
	outerMux.HandleFunc("PUT /api/profile", s.profileH.Sync)

	// API routes behind identity resolution
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("GET /api/subscription", s.subscriptionH.Get)
	apiMux.HandleFunc("POST /api/subscription", s.subscriptionH.Create)
	apiMux.HandleFunc("GET /api/usage", s.usageH.Get)
	apiMux.HandleFunc("POST /api/usage/consume", s.usageH.Consume)

	identity := middleware.RequireIdentity(s.users)
	outerMux.Handle("/api/", identity(apiMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
