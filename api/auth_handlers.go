package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/jmcleod/cloudbox/web"
)

// maxLoginBodySize bounds the urlencoded login form.
const maxLoginBodySize = 64 << 10

// LoginPage handles GET /login.
func (a *API) LoginPage(w http.ResponseWriter, r *http.Request) {
	a.renderLogin(w, r, http.StatusOK, web.LoginPage{})
}

// Login handles POST /login.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBodySize)
	if err := r.ParseForm(); err != nil {
		http.Error(w, msgMalformedLogin, http.StatusBadRequest)
		return
	}
	username := strings.TrimSpace(r.PostFormValue("username"))
	password := strings.TrimSpace(r.PostFormValue("password"))
	clientIP := a.extractClientIP(r)

	// Check rate limits before hashing: global, then IP, then username.
	if blocked, retryAfter := a.globalLimiter.check(); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "global rate limited")
		a.writeRateLimited(w, r, username, retryAfter)
		return
	}
	if blocked, retryAfter := a.ipLimiter.check(clientIP); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "ip rate limited",
			slog.String("client_ip", clientIP))
		a.writeRateLimited(w, r, username, retryAfter)
		return
	}
	if blocked, retryAfter := a.rateLimiter.check(username); blocked {
		a.audit.logFailure(AuditLoginRateLimited, r, "rate limited",
			slog.String("username", username))
		a.writeRateLimited(w, r, username, retryAfter)
		return
	}

	if !a.users.Verify(username, password) {
		a.globalLimiter.recordFailure()
		a.ipLimiter.recordFailure(clientIP)
		a.rateLimiter.recordFailure(username)
		a.audit.logFailure(AuditLoginFailure, r, "invalid credentials",
			slog.String("username", username))
		a.renderLogin(w, r, http.StatusOK, web.LoginPage{
			Error:    msgInvalidLogin,
			Username: username,
		})
		return
	}

	a.rateLimiter.recordSuccess(username)
	a.ipLimiter.recordSuccess(clientIP)

	token, expiresAt, err := a.sessions.Create(username)
	if err != nil {
		a.writeSessionError(w, r, err)
		return
	}
	value, err := a.signer.Sign(token)
	if err != nil {
		a.sessions.Destroy(token)
		a.writeSessionError(w, r, err)
		return
	}
	writeSessionCookie(w, r, value, expiresAt)

	a.audit.logEvent(AuditLoginSuccess, r, username)
	http.Redirect(w, r, "/", http.StatusFound)
}

// Logout handles GET /logout. It is safe to call without a session.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := a.tokenFromCookie(r); ok {
		username, _ := a.sessions.Resolve(token)
		a.sessions.Destroy(token)
		if username != "" {
			a.audit.logEvent(AuditLogout, r, username)
		}
	}
	clearSessionCookie(w, r)
	redirectToLogin(w, r)
}

func (a *API) renderLogin(w http.ResponseWriter, r *http.Request, status int, page web.LoginPage) {
	if err := a.pages.Login(w, status, page); err != nil {
		a.writeInternalError(w, r, err)
	}
}

func (a *API) writeSessionError(w http.ResponseWriter, r *http.Request, err error) {
	a.logger.ErrorContext(r.Context(), "creating session failed", "error", err)
	http.Error(w, msgSessionFailure, http.StatusInternalServerError)
}
