package api

import (
	"context"
	"net/http"
	"strings"
	"time"
)

type contextKey int

const (
	usernameKey contextKey = iota
	tokenKey
)

const sessionCookieName = "cloudbox_session"

// RequireSession admits requests carrying a valid session cookie and
// redirects everything else to the login page.
func (a *API) RequireSession(next http.Handler) http.Handler {
	return a.requireSession(next, redirectToLogin)
}

// RequireSessionJSON is RequireSession for JSON routes: unauthenticated
// requests get 401 with an error body instead of a redirect.
func (a *API) RequireSessionJSON(next http.Handler) http.Handler {
	return a.requireSession(next, func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusUnauthorized, msgUnauthorized)
	})
}

func (a *API) requireSession(next http.Handler, deny http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := a.tokenFromCookie(r)
		if !ok {
			deny(w, r)
			return
		}
		username, ok := a.sessions.Resolve(token)
		if !ok {
			deny(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), usernameKey, username)
		ctx = context.WithValue(ctx, tokenKey, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// tokenFromCookie returns the session token from a cookie whose signature
// checks out.
func (a *API) tokenFromCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return a.signer.Verify(cookie.Value)
}

func writeSessionCookie(w http.ResponseWriter, r *http.Request, value string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  expiresAt,
	})
}

func clearSessionCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   requestIsSecure(r),
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
}

func requestIsSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	if strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Forwarded")), "proto=https")
}

func usernameFromContext(ctx context.Context) string {
	username, _ := ctx.Value(usernameKey).(string)
	return username
}

func tokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}
