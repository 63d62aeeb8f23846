package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophjournal/internal/common"
	"github.com/dmitrijs2005/gophjournal/internal/logging"
	"github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const (
	sessionUserKey ctxKey = "session_user"
	tokenUserKey   ctxKey = "token_user"
)

func sessionUserFrom(ctx context.Context) string {
	v, _ := ctx.Value(sessionUserKey).(string)
	return v
}

func tokenUserFrom(ctx context.Context) string {
	v, _ := ctx.Value(tokenUserKey).(string)
	return v
}

// requestLogger logs one line per request through our Logger and tags the
// context with chi's request id.
func requestLogger(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := logging.ContextWithRequestID(r.Context(), middleware.GetReqID(r.Context()))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r.WithContext(ctx))

			logger.Info(ctx, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
			)
		})
	}
}

// sessionUser requires the gateway header naming the signed-in user.
func (h *Handler) sessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(h.opts.UserHeader))
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		ctx := context.WithValue(r.Context(), sessionUserKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireJournalToken admits requests carrying a valid journal token issued
// to the session user.
func (h *Handler) requireJournalToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeError(w, http.StatusUnauthorized, "journal token required")
			return
		}

		claims, err := h.tokens.Parse(strings.TrimSpace(raw))
		switch {
		case errors.Is(err, common.ErrTokenExpired):
			writeError(w, http.StatusUnauthorized, "journal token expired")
			return
		case errors.Is(err, common.ErrWrongScope):
			writeError(w, http.StatusForbidden, "token is not valid for the journal")
			return
		case err != nil:
			h.logger.Debug(r.Context(), "rejected journal token", "error", err)
			writeError(w, http.StatusUnauthorized, "invalid journal token")
			return
		}

		if claims.Subject != sessionUserFrom(r.Context()) {
			h.logger.Warn(r.Context(), "journal token subject does not match session user",
				"session_user", sessionUserFrom(r.Context()), "token_id", claims.ID)
			writeError(w, http.StatusForbidden, "token was issued to another user")
			return
		}

		ctx := context.WithValue(r.Context(), tokenUserKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// throttleUnlock caps unlock requests per session user. A failing limiter
// backend lets the request through; the persisted lockout still applies.
func (h *Handler) throttleUnlock(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := sessionUserFrom(r.Context())
		d, err := h.limiter.Allow(r.Context(), "unlock:"+userID)
		if err != nil {
			h.logger.Error(r.Context(), "unlock rate limiter failed", "user_id", userID, "error", err)
			next.ServeHTTP(w, r)
			return
		}
		if !d.Allowed {
			setRetryAfter(w, d.RetryAfter)
			writeError(w, http.StatusTooManyRequests, common.ErrRateLimited.Error())
			return
		}
		next.ServeHTTP(w, r)
	})
}
