package orchestrators

import (
	"context"
	"errors"
	"log/slog"
	"net/url"

	"console/internal/domain/session"
)

// Phase is a state of the page-load bootstrap.
type Phase int

const (
	PhaseStart Phase = iota
	PhaseActionExtracted
	PhaseCredentialResolved
	PhaseLocaleApplied
	PhaseRedirected
)

// String returns the phase name used in logs.
func (p Phase) String() string {
	switch p {
	case PhaseStart:
		return "start"
	case PhaseActionExtracted:
		return "action_extracted"
	case PhaseCredentialResolved:
		return "credential_resolved"
	case PhaseLocaleApplied:
		return "locale_applied"
	case PhaseRedirected:
		return "redirected"
	default:
		return "unknown"
	}
}

// SessionWriter is the write side of the page-load session store.
type SessionWriter interface {
	Authenticate(s session.Session)
	SetPendingAction(a session.PendingAction)
}

// IdentityResolver turns a credential pair into a Session.
// Any returned error is treated as a lookup failure.
type IdentityResolver interface {
	Resolve(ctx context.Context, identifier, secretCode string) (session.Session, error)
}

// LocaleSetter sets the active display locale.
type LocaleSetter interface {
	SetLocale(tag string)
}

// Router owns navigation for the page load.
type Router interface {
	Query() url.Values
	Navigate(target string)
	Stay()
}

// BootstrapInput carries per-page-load input for the bootstrap orchestrator.
type BootstrapInput struct {
	PageLoadID string
}

// BootstrapDeps holds dependencies for Bootstrap.
// Sources defaults to DefaultCredentialSources(Credentials, Router.Query()).
type BootstrapDeps struct {
	Store       SessionWriter
	Credentials CredentialStore
	Sources     []CredentialSource
	Resolver    IdentityResolver
	Locale      LocaleSetter
	Router      Router
}

// BootstrapResult describes how the page load was resolved.
type BootstrapResult struct {
	Phases        []Phase
	Action        session.PendingAction
	Source        string
	Session       session.Session
	Authenticated bool
	Failure       *session.LookupFailure
	Target        string
}

// Phase returns the last phase reached.
func (r BootstrapResult) Phase() Phase {
	if len(r.Phases) == 0 {
		return PhaseStart
	}
	return r.Phases[len(r.Phases)-1]
}

// ExecuteBootstrap runs the one-shot page-load sequence.
// PRE: deps.Store, deps.Resolver, deps.Locale and deps.Router are non-nil
// POST: pending action (if any) and session are committed to the store,
// the locale is applied, then the router navigates; always ends in PhaseRedirected
// INVARIANT: each phase's effects are visible before the next phase begins
func ExecuteBootstrap(ctx context.Context, input BootstrapInput, deps BootstrapDeps) BootstrapResult {
	result := BootstrapResult{Phases: []Phase{PhaseStart}, Source: SourceNone}
	query := deps.Router.Query()

	// Start -> ActionExtracted
	if action, ok := PendingActionFromQuery(query); ok {
		deps.Store.SetPendingAction(action)
		result.Action = action
	}
	result.Phases = append(result.Phases, PhaseActionExtracted)

	// ActionExtracted -> CredentialResolved
	sources := deps.Sources
	if sources == nil {
		sources = DefaultCredentialSources(deps.Credentials, query)
	}
	if creds, name, ok := firstMatch(sources); ok {
		result.Source = name
		sess, err := deps.Resolver.Resolve(ctx, creds.Identifier, creds.Code)
		if err != nil {
			result.Failure = asLookupFailure(creds.Identifier, err)
			slog.Warn("identity_lookup_failed",
				"page_load", input.PageLoadID,
				"source", name,
				"status", result.Failure.Status,
				"error", result.Failure.Err,
			)
		} else if sess = sess.Normalized(); sess.IsAuthenticated() {
			deps.Store.Authenticate(sess)
			result.Session = sess
			result.Authenticated = true
		} else {
			result.Failure = &session.LookupFailure{Identifier: creds.Identifier, Err: errIncompleteIdentity}
			slog.Warn("identity_lookup_failed", "page_load", input.PageLoadID, "source", name, "error", errIncompleteIdentity)
		}
	}
	result.Phases = append(result.Phases, PhaseCredentialResolved)

	// CredentialResolved -> LocaleApplied
	if result.Authenticated {
		deps.Locale.SetLocale(result.Session.Locale)
	}
	result.Phases = append(result.Phases, PhaseLocaleApplied)

	// LocaleApplied -> Redirected
	if next := query.Get(ParamNext); next != "" {
		result.Target = next
		deps.Router.Navigate(next)
	} else {
		deps.Router.Stay()
	}
	result.Phases = append(result.Phases, PhaseRedirected)

	slog.Info("bootstrap_complete",
		"page_load", input.PageLoadID,
		"source", result.Source,
		"authenticated", result.Authenticated,
		"role", result.Session.Role,
		"action", result.Action.Type,
		"next", result.Target,
	)
	return result
}

var errIncompleteIdentity = errors.New("identity service returned an incomplete identity")

// asLookupFailure normalizes any resolver error into a LookupFailure.
func asLookupFailure(identifier string, err error) *session.LookupFailure {
	var failure *session.LookupFailure
	if errors.As(err, &failure) {
		return failure
	}
	return &session.LookupFailure{Identifier: identifier, Err: err}
}
