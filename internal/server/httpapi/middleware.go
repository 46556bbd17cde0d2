package httpapi

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrijs2005/kinveysync/internal/common"
)

type ctxKey string

const userIDKey ctxKey = "userID"

func userIDFrom(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// requestLogger logs one line per request through the handler's logger.
func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Info(r.Context(), "request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

func apiVersion(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(common.APIVersionHeader, common.APIVersion)
		next.ServeHTTP(w, r)
	})
}

func credentials(r *http.Request) (scheme, value string) {
	scheme, value, _ = strings.Cut(r.Header.Get(common.AuthorizationHeader), " ")
	return scheme, strings.TrimSpace(value)
}

func basicPair(value string) (string, string, bool) {
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(raw), ":")
}

// appAuth admits requests carrying the app key and secret as Basic
// credentials, or a user token issued for the app.
func (h *Handler) appAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		appKey := chi.URLParam(r, "app")
		if !h.users.KnownApp(appKey) {
			writeError(w, http.StatusNotFound, ErrNameUnknownApp, "no app with key "+appKey)
			return
		}

		scheme, value := credentials(r)
		switch scheme {
		case common.AuthSchemeBasic:
			key, secret, ok := basicPair(value)
			if !ok || h.users.CheckApp(key, secret) != nil || key != appKey {
				writeError(w, http.StatusUnauthorized, ErrNameCredentials, "invalid app credentials")
				return
			}
		case common.AuthSchemeKinvey:
			user, err := h.users.Authenticate(r.Context(), appKey, value)
			if err != nil {
				h.fail(w, r, err)
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), userIDKey, user.ID))
		default:
			writeError(w, http.StatusUnauthorized, ErrNameMissingAuth, "authorization header is missing")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// userAuth admits only requests carrying a user token.
func (h *Handler) userAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userIDFrom(r.Context()) == "" {
			writeError(w, http.StatusUnauthorized, ErrNameCredentials, "a user token is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
