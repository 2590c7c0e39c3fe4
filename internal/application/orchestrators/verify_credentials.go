package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"console/internal/domain/session"
)

var (
	ErrInvalidCredentials  = errors.New("invalid identifier or code")
	ErrIdentityUnavailable = errors.New("identity service unavailable")
)

// VerifyCredentialsInput carries a pair typed into the login form.
type VerifyCredentialsInput struct {
	Identifier string
	Code       string
}

// VerifyCredentialsDeps holds dependencies for VerifyCredentials.
type VerifyCredentialsDeps struct {
	Resolver IdentityResolver
}

// ExecuteVerifyCredentials checks a pair with the identity service before it
// is remembered. Unlike the bootstrap, failures are reported to the caller.
// PRE: none
// POST: Returns the canonical Session on success; ErrInvalidCredentials when the
// service rejects the pair, ErrIdentityUnavailable when it cannot answer
func ExecuteVerifyCredentials(ctx context.Context, input VerifyCredentialsInput, deps VerifyCredentialsDeps) (session.Session, error) {
	creds := session.Credentials{
		Identifier: strings.TrimSpace(input.Identifier),
		Code:       strings.TrimSpace(input.Code),
	}
	if !creds.Complete() {
		return session.Session{}, ErrInvalidCredentials
	}

	sess, err := deps.Resolver.Resolve(ctx, creds.Identifier, creds.Code)
	if err != nil {
		failure := asLookupFailure(creds.Identifier, err)
		switch failure.Status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			slog.Info("auth_event", "event", "login_failed", "member", creds.Identifier, "status", failure.Status)
			return session.Session{}, ErrInvalidCredentials
		default:
			slog.Warn("auth_event", "event", "login_unavailable", "member", creds.Identifier, "status", failure.Status, "error", failure.Err)
			return session.Session{}, ErrIdentityUnavailable
		}
	}
	if sess = sess.Normalized(); !sess.IsAuthenticated() {
		return session.Session{}, ErrIdentityUnavailable
	}

	slog.Info("auth_event", "event", "login_success", "member", sess.Identifier, "role", sess.Role)
	return sess, nil
}
