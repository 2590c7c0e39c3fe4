package middleware

import (
	"context"
	"net/http"
	"net/url"

	"console/internal/application/state"
	"console/internal/domain/session"
)

// LoginPath is where unauthenticated page loads are sent.
const LoginPath = "/login"

// ParamReturn carries the page to come back to after sign-in. It is not
// `next`: the bootstrap would navigate away from the login view at once.
const ParamReturn = "return"

// LoginRedirect returns the login URL that brings the browser back to r after sign-in.
func LoginRedirect(r *http.Request) string {
	target := r.URL.Path
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	return LoginPath + "?" + url.Values{ParamReturn: {target}}.Encode()
}

// RequireAuth returns middleware that sends page loads without an
// authenticated session to the login view.
// The page-load store must already be in the request context.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !IsAuthenticated(r.Context()) {
			http.Redirect(w, r, LoginRedirect(r), http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRole returns middleware that blocks sessions without one of the given roles.
// forbidden renders the refusal; nil falls back to a plain 403.
func RequireRole(forbidden http.HandlerFunc, roles ...string) func(http.Handler) http.Handler {
	roleSet := make(map[string]bool, len(roles))
	for _, r := range roles {
		roleSet[r] = true
	}
	if forbidden == nil {
		forbidden = func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Forbidden", http.StatusForbidden)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, ok := SessionFromContext(r.Context())
			if !ok || !sess.IsAuthenticated() {
				http.Redirect(w, r, LoginRedirect(r), http.StatusSeeOther)
				return
			}
			if !roleSet[sess.Role] {
				forbidden(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SessionFromContext returns the session held by the page-load store.
func SessionFromContext(ctx context.Context) (session.Session, bool) {
	store, ok := state.FromContext(ctx)
	if !ok {
		return session.Session{}, false
	}
	return store.Session(), true
}

// IsAuthenticated reports whether the page load resolved an identity.
func IsAuthenticated(ctx context.Context) bool {
	sess, ok := SessionFromContext(ctx)
	return ok && sess.IsAuthenticated()
}

// IsAdmin checks if the current session is an admin.
func IsAdmin(ctx context.Context) bool {
	sess, ok := SessionFromContext(ctx)
	return ok && sess.IsAdmin()
}
