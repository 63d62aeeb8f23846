// Package httpapi exposes the journal over HTTP: PIN setup, unlock and the
// token-gated entry routes.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/dmitrijs2005/gophjournal/internal/server/auth"
	"github.com/dmitrijs2005/gophjournal/internal/server/models"
	"github.com/dmitrijs2005/gophjournal/internal/server/ratelimit"
	"github.com/dmitrijs2005/gophjournal/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const requestTimeout = 30 * time.Second

type SecurityService interface {
	Setup(ctx context.Context, userID, pin, method string) error
	Unlock(ctx context.Context, userID, pin string) (services.UnlockResult, error)
}

type JournalService interface {
	Create(ctx context.Context, userID string, in services.CreateEntryInput) (*models.EntryMetadata, error)
	Get(ctx context.Context, entryID, userID string) (*services.DecryptedEntry, error)
	Update(ctx context.Context, entryID, userID, content string) (*models.EntryMetadata, error)
	List(ctx context.Context, userID string, r services.DateRange) ([]models.EntryMetadata, error)
	Delete(ctx context.Context, entryID, userID string) error
}

// TokenParser validates journal access tokens.
type TokenParser interface {
	Parse(token string) (*auth.Claims, error)
}

// Pinger reports database reachability; *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Security SecurityService
	Journal  JournalService
	Tokens   TokenParser
	Limiter  ratelimit.Limiter
	DB       Pinger
	Logger   logging.Logger
}

type Options struct {
	// UserHeader carries the gateway-authenticated session user id.
	UserHeader  string
	CORSOrigins []string
	// UniformUnlockErrors answers "not configured" like a wrong PIN and
	// drops attempts_remaining from every 401.
	UniformUnlockErrors bool
}

type Handler struct {
	security SecurityService
	journal  JournalService
	tokens   TokenParser
	limiter  ratelimit.Limiter
	db       Pinger
	logger   logging.Logger
	opts     Options
}

// NewRouter builds the chi router with every journal route mounted.
func NewRouter(d Deps, o Options) http.Handler {
	if d.Limiter == nil {
		d.Limiter = ratelimit.Unlimited{}
	}
	if d.Logger == nil {
		d.Logger = logging.Nop{}
	}
	h := &Handler{
		security: d.Security,
		journal:  d.Journal,
		tokens:   d.Tokens,
		limiter:  d.Limiter,
		db:       d.DB,
		logger:   d.Logger.With("component", "httpapi"),
		opts:     o,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	if len(o.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: o.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", o.UserHeader},
			ExposedHeaders: []string{"Retry-After"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", h.health)

	r.Route("/journal", func(r chi.Router) {
		r.Use(h.sessionUser)

		r.Post("/security/setup", h.setupSecurity)
		r.With(h.throttleUnlock).Post("/unlock", h.unlock)

		r.Route("/entries", func(r chi.Router) {
			r.Use(h.requireJournalToken)
			r.Get("/", h.listEntries)
			r.Post("/", h.createEntry)
			r.Get("/{id}", h.getEntry)
			r.Put("/{id}", h.updateEntry)
			r.Delete("/{id}", h.deleteEntry)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			h.logger.Warn(ctx, "health check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
