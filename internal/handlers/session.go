package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/worldview-app/apiserver/config"
)

// TokenCodec issues and verifies session tokens.
type TokenCodec interface {
	Issue(accountID int) (string, error)
	Verify(token string) (int, error)
}

// SessionCookie describes how the session token is stored in the browser.
type SessionCookie struct {
	Name     string
	MaxAge   time.Duration
	Secure   bool
	SameSite http.SameSite
}

// NewSessionCookie derives cookie attributes from config. Production
// deployments serve the frontend from another origin, which requires
// Secure with SameSite=None.
func NewSessionCookie(cfg config.Config) SessionCookie {
	cookie := SessionCookie{
		Name:     cfg.Session.CookieName,
		MaxAge:   cfg.Session.CookieMaxAge,
		SameSite: http.SameSiteLaxMode,
	}
	if cookie.Name == "" {
		cookie.Name = config.DefaultCookieName
	}
	if cfg.IsProduction() {
		cookie.Secure = true
		cookie.SameSite = http.SameSiteNoneMode
	}
	return cookie
}

func (c SessionCookie) set(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    token,
		Path:     "/",
		MaxAge:   int(c.MaxAge / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

func (c SessionCookie) clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	})
}

// extractCandidateToken returns the session token carried by r. The cookie
// takes precedence over the Authorization header.
func extractCandidateToken(r *http.Request, cookieName string) (string, bool) {
	if cookie, err := r.Cookie(cookieName); err == nil {
		if token := strings.TrimSpace(cookie.Value); token != "" {
			return token, true
		}
	}

	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", false
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

// RequireSession rejects requests without a valid session token and stores
// the authenticated account id in the request context.
func RequireSession(codec TokenCodec, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := extractCandidateToken(r, cookieName)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			accountID, err := codec.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			next.ServeHTTP(w, r.WithContext(withAccountID(r.Context(), accountID)))
		})
	}
}
