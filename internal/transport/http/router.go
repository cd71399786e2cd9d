package http

import (
	"net/http"
	"time"

	"github.com/go-accounts-api/internal/application/otp"
	"github.com/go-accounts-api/internal/application/user"
	"github.com/go-accounts-api/internal/config"
	"github.com/go-accounts-api/internal/transport/http/handler"
	appmiddleware "github.com/go-accounts-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// Deps holds all infrastructure dependencies for the router. Objects may be nil.
type Deps struct {
	UserRepo      UserRepository
	Objects       ObjectStore
	Mailer        Mailer
	AccessTokens  TokenProvider
	RefreshTokens TokenProvider
	// Optional overrides, used by tests.
	Now          func() time.Time
	OTPGenerator func() (string, error)
}

// NewRouter builds the application router. The returned stop function
// releases the background workers started for rate limiting.
func NewRouter(cfg *config.Config, deps *Deps) (http.Handler, func()) {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(appmiddleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// 5 requests/second, burst of 10, applied to sensitive public endpoints.
	sensitiveRL := appmiddleware.NewRateLimiter(rate.Limit(5), 10,
		appmiddleware.WithTrustedProxies(cfg.TrustedProxies))

	var otpOpts []otp.Option
	if deps.Now != nil {
		otpOpts = append(otpOpts, otp.WithClock(deps.Now))
	}
	if deps.OTPGenerator != nil {
		otpOpts = append(otpOpts, otp.WithGenerator(deps.OTPGenerator))
	}
	otps := otp.NewRegistry(deps.UserRepo, deps.Mailer, cfg.OTPTTL, otpOpts...)

	svcDeps := user.ServiceDeps{
		UserRepo:      deps.UserRepo,
		OTPs:          otps,
		AccessTokens:  deps.AccessTokens,
		RefreshTokens: deps.RefreshTokens,
		Now:           deps.Now,
	}
	if deps.Objects != nil {
		svcDeps.Objects = deps.Objects
	}
	userSvc := user.NewService(svcDeps)

	otpH := handler.NewOTPHandler(otps)
	userH := handler.NewUserHandler(userSvc, handler.CookieConfig{
		Secure:        cfg.CookieSecure,
		AccessMaxAge:  deps.AccessTokens.Validity(),
		RefreshMaxAge: deps.RefreshTokens.Validity(),
	})

	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/users", func(r chi.Router) {
		// ── Public routes (no auth) ──────────────────────────────────────────
		r.With(sensitiveRL.Limit).Post("/send-otp", otpH.Send)
		r.With(sensitiveRL.Limit).Post("/verify-otp", otpH.Verify)
		r.With(sensitiveRL.Limit).Post("/signup", userH.Signup)
		r.With(sensitiveRL.Limit).Post("/login", userH.Login)
		r.Post("/logout", userH.Logout)
		r.Post("/refresh-token", userH.RefreshToken)

		// ── Authenticated routes ─────────────────────────────────────────────
		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.AccessTokens))

			r.Get("/me", userH.Me)
			r.Patch("/update", userH.Update)
			r.Patch("/change-password", userH.ChangePassword)
		})
	})

	return r, sensitiveRL.Stop
}
