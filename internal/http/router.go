package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/redmonkez12/fmea-api/internal/auth"
	"github.com/redmonkez12/fmea-api/internal/config"
	"github.com/redmonkez12/fmea-api/internal/equipment"
	"github.com/redmonkez12/fmea-api/internal/httputil"
	"github.com/redmonkez12/fmea-api/internal/logging"
	"github.com/redmonkez12/fmea-api/internal/profile"
	"github.com/redmonkez12/fmea-api/internal/user"
)

// Handlers groups the endpoint handlers mounted by NewRouter
type Handlers struct {
	Auth      *auth.Handler
	Profile   *profile.Handler
	Equipment *equipment.Handler
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, h Handlers, authMiddleware *auth.Middleware, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Client-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))
	r.Use(middleware.Compress(5))

	r.Get("/health", handleHealth)

	// Production builds will not have this route at all
	if cfg.Server.IsDevelopment() {
		logger.Info("swagger UI enabled at /swagger/*")
		r.Get("/swagger/*", httpSwagger.WrapHandler)
	}

	// Public auth routes
	r.Post("/register", h.Auth.Register)
	r.Post("/register/resend", h.Auth.ResendVerification)
	r.Get("/verify-email", h.Auth.VerifyEmail)
	r.Post("/request-otp", h.Auth.RequestOTP)
	r.Post("/verify-otp", h.Auth.VerifyOTP)
	r.Post("/login", h.Auth.Login)
	r.Post("/logout", h.Auth.Logout)
	r.Post("/forgot-password", h.Auth.ForgotPassword)
	r.Post("/reset-password", h.Auth.ResetPassword)

	// Any signed-in role
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.RequireAuth)

		r.Get("/profile", h.Profile.Get)
		r.Put("/profile", h.Profile.Update)
		r.Post("/uploads", h.Profile.Upload)
		r.Put("/update-password", h.Auth.UpdatePassword)

		r.Get("/equipment", h.Equipment.List)
		r.Get("/equipment/{id}", h.Equipment.Get)

		// Mutations are admin only
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.RequireRole(user.RoleAdmin))

			r.Post("/equipment", h.Equipment.Create)
			r.Put("/equipment/{id}", h.Equipment.Update)
			r.Delete("/equipment/{id}", h.Equipment.Delete)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondErrorWithCode(w, "route not found", httputil.CodeNotFound, http.StatusNotFound)
	})

	return r
}

// handleHealth is a simple health check endpoint
// @Summary      Health check
// @Description  Check if the API is running
// @Tags         health
// @Produce      json
// @Success      200 {object} map[string]string
// @Router       /health [get]
func handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
}
