package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/hugh/projectflow/internal/access"
	"github.com/hugh/projectflow/internal/api/handlers"
	"github.com/hugh/projectflow/internal/api/middleware"
	"github.com/hugh/projectflow/internal/archive"
	"github.com/hugh/projectflow/internal/auth"
	"github.com/hugh/projectflow/internal/billing"
	"github.com/hugh/projectflow/internal/google"
	"github.com/hugh/projectflow/internal/invitations"
	"github.com/hugh/projectflow/internal/storage"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	Store          storage.Storage
	Sessions       *auth.Manager
	AuthService    *auth.Service
	Access         *access.Checker
	Invitations    *invitations.Service
	Google         *google.Factory
	Archiver       archive.Archiver
	Billing        billing.Provider
	Inspector      *asynq.Inspector
	RateLimiter    *middleware.RateLimiter // nil disables rate limiting
	AllowedOrigins []string                // CORS allowed origins
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))

	// CORS - restrict to configured origins, or allow the dev client
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:5000", "http://localhost:5173"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis, cfg.Inspector, cfg.Google)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Sessions, cfg.Store, cfg.Logger)
	projectHandler := handlers.NewProjectHandler(cfg.Store, cfg.Access, cfg.Invitations, cfg.Archiver, cfg.Logger)
	taskHandler := handlers.NewTaskHandler(cfg.Store, cfg.Access, cfg.Logger)
	invitationHandler := handlers.NewInvitationHandler(cfg.Invitations, cfg.Sessions, cfg.Logger)
	subscriptionHandler := handlers.NewSubscriptionHandler(cfg.Store, cfg.Billing, cfg.Sessions, cfg.Logger)
	googleHandler := handlers.NewGoogleHandler(cfg.Google, cfg.Store, cfg.Access, cfg.Logger)

	// Health endpoints (no session)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Session(cfg.Sessions, cfg.Logger))
		r.Use(middleware.Logging(cfg.Logger))
		if cfg.RateLimiter != nil {
			r.Use(middleware.RateLimit(cfg.RateLimiter))
		}

		// Session bootstrap, open to anonymous visitors
		r.Get("/auth/status", authHandler.Status)
		r.Post("/auth/google-config", authHandler.GoogleConfig)
		r.Post("/config/google", authHandler.SaveConfig)
		r.Get("/auth/callback", authHandler.Callback)
		r.Post("/auth/logout", authHandler.Logout)
		r.Get("/auth/check-google-tokens", authHandler.CheckTokens)
		r.Get("/subscription/plans", subscriptionHandler.Plans)

		// Invitations can be viewed and accepted before signing in
		r.Get("/invitations/{id}", invitationHandler.Get)
		r.Post("/invitations/{id}/accept", invitationHandler.Accept)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireUser)

			r.Get("/auth/user", authHandler.User)
			r.Post("/auth/exchange-oauth-code", authHandler.ExchangeCode)
			r.Post("/auth/update-google-token", authHandler.UpdateToken)
			r.Post("/auth/refresh-google-tokens", authHandler.RefreshTokens)
			r.Post("/auth/inherit-project-config", authHandler.InheritProjectConfig)

			r.Post("/create-payment-intent", subscriptionHandler.CreatePaymentIntent)
			r.Post("/subscription/activate", subscriptionHandler.Activate)
			r.Get("/usage", subscriptionHandler.Usage)

			// Projects
			r.Get("/projects", projectHandler.List)
			r.Post("/projects", projectHandler.Create)
			r.Get("/projects/{id}", projectHandler.Get)
			r.Patch("/projects/{id}", projectHandler.Update)
			r.Delete("/projects/{id}", projectHandler.Delete)
			r.Get("/projects/{id}/members", projectHandler.Members)
			r.Post("/projects/{id}/members", projectHandler.Invite)
			r.Delete("/projects/{id}/members/{userId}", projectHandler.RemoveMember)
			r.Get("/projects/{id}/stats", projectHandler.Stats)
			r.Get("/projects/{id}/activities", projectHandler.Activities)
			r.Get("/projects/{id}/ai/suggestions", projectHandler.Suggestions)
			r.Post("/ai-suggestions/{id}/dismiss", projectHandler.DismissSuggestion)
			r.Post("/ai-suggestions/{id}/apply", projectHandler.ApplySuggestion)

			// Tasks and comments
			r.Get("/projects/{id}/tasks", taskHandler.List)
			r.Post("/projects/{id}/tasks", taskHandler.Create)
			r.Put("/tasks/{id}", taskHandler.Update)
			r.Patch("/tasks/{id}", taskHandler.Update)
			r.Delete("/tasks/{id}", taskHandler.Delete)
			r.Get("/tasks/{id}/comments", taskHandler.Comments)
			r.Post("/tasks/{id}/comments", taskHandler.CreateComment)

			// Google Workspace adapters
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireGoogleLinked)

				r.Post("/projects/{id}/drive/sync", googleHandler.SyncDrive)
				r.Post("/projects/{id}/drive/restore", googleHandler.RestoreDrive)
				r.Post("/projects/{id}/sync-google-tasks", googleHandler.SyncTasks)
				r.Post("/projects/{id}/calendar/milestone", googleHandler.Milestone)
				r.Post("/projects/{id}/calendar/meeting", googleHandler.Meeting)
				r.Get("/projects/{id}/calendar/deadlines", googleHandler.Deadlines)

				r.Get("/google/profile", googleHandler.Profile)
				r.Get("/google/contacts", googleHandler.Contacts)
				r.Get("/google/tasklists", googleHandler.TaskLists)
				r.Post("/google/tasklists", googleHandler.CreateTaskList)
				r.Get("/google/tasklists/{tasklistId}/tasks", googleHandler.Tasks)
				r.Post("/google/tasklists/{tasklistId}/tasks", googleHandler.CreateTask)
				r.Post("/google/tasklists/{tasklistId}/tasks/{taskId}/complete", googleHandler.CompleteTask)
				r.Get("/google/calendars", googleHandler.Calendars)
				r.Get("/google/calendars/{calendarId}/events", googleHandler.Events)
				r.Post("/google/calendars/{calendarId}/events", googleHandler.CreateEvent)
			})
		})
	})

	return &Router{r}
}
