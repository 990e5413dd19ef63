package web

import (
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"guildvault/internal/analytics"
	"guildvault/internal/domain"
	"guildvault/internal/security"
)

// Store is the read surface the admin API needs from the storage service.
type Store interface {
	Leaderboard(chat string, limit int) ([]domain.XPRecord, error)
	GlobalXPTop(limit int) ([]domain.XPRecord, error)
	CupWinsTop(limit int) ([]domain.CupWins, error)
	PendingApplications(chat string) []domain.Application
	Statistics(chat string) domain.Statistics
	GroupSnapshot(chat string) domain.GroupSnapshot
	Cups(chat string, limit int) ([]domain.Cup, error)
	Admins(chat string) []domain.Admin
	GetAdmin(chat string, user int64) (domain.Admin, bool)
	XP(chat string, user int64) (domain.XPRecord, bool)
}

// Server exposes the read-only admin API over the store. Mutations stay with
// the bot and CLI collaborators.
type Server struct {
	store   Store
	guard   *security.Guard
	metrics *analytics.Tracker
	log     zerolog.Logger

	defaultLimit int
}

// New returns a server with the given collaborators. guard and metrics may be
// nil to disable rate limiting and request metrics. defaultLimit caps list
// endpoints when the caller omits a limit.
func New(store Store, guard *security.Guard, metrics *analytics.Tracker, log zerolog.Logger, defaultLimit int) *Server {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	return &Server{store: store, guard: guard, metrics: metrics, log: log, defaultLimit: defaultLimit}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(s.rateLimit)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/leaderboard/global", s.handleGlobalLeaderboard)
		r.Get("/cups", s.handleCups)
		r.Get("/cups/wins", s.handleCupWins)
		r.Get("/admins", s.handleAdmins)
		r.Get("/applications", s.handleApplications)
		r.Get("/stats", s.handleStats)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/profile/{userID}", s.handleProfile)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		elapsed := time.Since(start)
		if s.metrics != nil {
			s.metrics.Observe("http.request_seconds", elapsed.Seconds())
		}
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", elapsed).
			Msg("http_request")
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if s.guard != nil && !s.guard.Allow(host) {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
