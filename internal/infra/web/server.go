package web

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"signup-code-service/internal/usecase"
)

// Server is the trusted administrative surface: code generation, status
// lookups and administrative updates. Everything sits behind JWT auth.
type Server struct {
	lifeUC *usecase.LifecycleUseCase
	auth   *AuthManager
	log    *zerolog.Logger
}

func NewServer(lifeUC *usecase.LifecycleUseCase, auth *AuthManager, logger *zerolog.Logger) *Server {
	return &Server{lifeUC: lifeUC, auth: auth, log: logger}
}

// RegisterRoutes sets up the routing for the admin API.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	codesRouter := s.authMiddleware(s.codesRouter())
	mux.Handle("/api/v1/codes", codesRouter)
	mux.Handle("/api/v1/codes/", codesRouter)
}

// authMiddleware verifies the admin bearer token and stashes the subject
// for attribution of generated codes.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		r = r.WithContext(withAdminSubject(r.Context(), claims.Subject))
		next.ServeHTTP(w, r)
	})
}

// codesRouter dispatches /api/v1/codes and /api/v1/codes/{code}.
func (s *Server) codesRouter() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/codes")
		path = strings.Trim(path, "/")

		if path == "" {
			switch r.Method {
			case http.MethodGet:
				codesListHandler(s.lifeUC)(w, r)
			case http.MethodPost:
				codesGenerateHandler(s.lifeUC)(w, r)
			default:
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			}
			return
		}

		switch r.Method {
		case http.MethodGet:
			codeStatusHandler(s.lifeUC, path)(w, r)
		case http.MethodPatch:
			codeUpdateHandler(s.lifeUC, path)(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
}
