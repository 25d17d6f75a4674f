package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"signup-code-service/internal/domain"
	"signup-code-service/internal/infra/logging"
	red "signup-code-service/internal/infra/redis"
	"signup-code-service/internal/usecase"
)

// Server is the untrusted public surface: the single redemption endpoint
// plus health and metrics. Redemption attempts are rate limited per client
// to slow down code guessing.
type Server struct {
	redeemUC *usecase.RedemptionUseCase
	limiter  *red.RateLimiter
	limit    int
	window   time.Duration
	log      *zerolog.Logger
}

func NewServer(redeemUC *usecase.RedemptionUseCase, limiter *red.RateLimiter, limit int, window time.Duration, logger *zerolog.Logger) *Server {
	return &Server{
		redeemUC: redeemUC,
		limiter:  limiter,
		limit:    limit,
		window:   window,
		log:      logger,
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.traceMiddleware)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1/signup-codes", func(r chi.Router) {
		r.With(s.rateLimitMiddleware).Post("/redeem", s.handleRedeem)
	})
	return r
}

func (s *Server) traceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithTraceID(r.Context(), uuid.NewString())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ok, err := s.limiter.Allow(r.Context(), red.RedeemAttemptKey(host), s.limit, s.window)
		if err != nil {
			// Redis trouble must not take the redemption path down.
			logging.With(r.Context(), s.log).Warn().Err(err).Msg("rate limiter unavailable, allowing request")
		} else if !ok {
			http.Error(w, "Too many attempts", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type redeemRequest struct {
	Code string `json:"code"`
}

// redeemResponse is a minimal projection of the post-redemption record:
// enough for the caller to show remaining capacity, nothing that leaks
// other codes' state.
type redeemResponse struct {
	Code           string     `json:"code"`
	RemainingUsage int        `json:"remainingUsages"`
	ExpiresAt      *time.Time `json:"expiresAt,omitempty"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := s.redeemUC.Redeem(ctx, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCodeFormat):
			http.Error(w, "Invalid code format", http.StatusBadRequest)
		case errors.Is(err, domain.ErrCodeNotRedeemable):
			// One answer for missing, inactive, expired and exhausted.
			http.Error(w, "Code not redeemable", http.StatusNotFound)
		case errors.Is(err, domain.ErrRedemptionUnavailable):
			http.Error(w, "Try again later", http.StatusServiceUnavailable)
		default:
			http.Error(w, "Redemption failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(redeemResponse{
		Code:           record.Code,
		RemainingUsage: record.Remaining(),
		ExpiresAt:      record.ExpiresAt,
	})
}
