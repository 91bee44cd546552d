package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/warp/life-planner/generic"
	"github.com/warp/life-planner/logger"
)

// OwnerHeader carries the authenticated owner id, set by the gateway in
// front of the service.
const OwnerHeader = "X-Owner-ID"

type contextKey string

const ownerKey contextKey = "owner"

// AccessLog writes one structured line per request and hands handlers a
// logger tagged with the request id through the request context.
func AccessLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			reqLog := log.With().Str("request_id", middleware.GetReqID(r.Context())).Logger()
			r = r.WithContext(logger.WithContext(r.Context(), reqLog))

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			ev := reqLog.Info()
			if status >= http.StatusInternalServerError {
				ev = reqLog.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("owner", r.Header.Get(OwnerHeader)).
				Msg("HTTP request")
		})
	}
}

// RequireOwner rejects requests without an owner and scopes the rest.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			writeError(w, http.StatusUnauthorized, "Missing "+OwnerHeader+" header", nil)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey, generic.OwnerID(owner))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireServiceKey admits only callers presenting "Bearer <key>".
func RequireServiceKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(auth, "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "Missing service credentials", nil)
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
				writeError(w, http.StatusForbidden, "Invalid service credentials", generic.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func ownerFrom(r *http.Request) generic.OwnerID {
	owner, _ := r.Context().Value(ownerKey).(generic.OwnerID)
	return owner
}
