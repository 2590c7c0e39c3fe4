package orchestrators

import (
	"net/url"
	"strings"

	"console/internal/domain/session"
)

// Names of the persisted credential pair.
const (
	CookieMember = "member"
	CookieCode   = "code"
)

// URL query parameters read during bootstrap.
const (
	ParamNext       = "next"
	ParamMember     = "m"
	ParamCode       = "c"
	ParamAction     = "action"
	ParamObjectUUID = "objectUUID"
	ParamPayload    = "payload"
)

// Source names reported in BootstrapResult.
const (
	SourceCookie = "cookie"
	SourceQuery  = "query"
	SourceNone   = "none"
)

// CredentialStore reads the remembered credential pair.
// Absence of a key is a normal outcome, reported as ok == false.
type CredentialStore interface {
	Get(key string) (string, bool)
}

// CredentialSource yields a candidate credential pair.
// A source matches only when it can supply both halves.
type CredentialSource interface {
	Name() string
	Credentials() (session.Credentials, bool)
}

// CookieSource reads the remembered `member` + `code` pair.
type CookieSource struct {
	Store CredentialStore
}

// Name implements CredentialSource.
func (CookieSource) Name() string { return SourceCookie }

// Credentials implements CredentialSource.
// POST: ok is true only for a complete pair; values are passed through unchanged
func (c CookieSource) Credentials() (session.Credentials, bool) {
	if c.Store == nil {
		return session.Credentials{}, false
	}
	member, _ := c.Store.Get(CookieMember)
	code, _ := c.Store.Get(CookieCode)
	creds := session.Credentials{Identifier: member, Code: code}
	return creds, creds.Complete()
}

// QuerySource reads the link-based `m` + `c` pair.
type QuerySource struct {
	Query url.Values
}

// Name implements CredentialSource.
func (QuerySource) Name() string { return SourceQuery }

// Credentials implements CredentialSource.
// POST: ok is true only for a complete pair; values are passed through unchanged
func (q QuerySource) Credentials() (session.Credentials, bool) {
	creds := session.Credentials{
		Identifier: q.Query.Get(ParamMember),
		Code:       q.Query.Get(ParamCode),
	}
	return creds, creds.Complete()
}

// DefaultCredentialSources returns the sources in precedence order:
// remembered cookie pair first, then the URL pair.
func DefaultCredentialSources(store CredentialStore, query url.Values) []CredentialSource {
	return []CredentialSource{
		CookieSource{Store: store},
		QuerySource{Query: query},
	}
}

// firstMatch walks sources in order and returns the first complete pair.
func firstMatch(sources []CredentialSource) (session.Credentials, string, bool) {
	for _, src := range sources {
		if creds, ok := src.Credentials(); ok {
			return creds, src.Name(), true
		}
	}
	return session.Credentials{}, SourceNone, false
}

// PendingActionFromQuery builds the deferred action descriptor from the URL.
// POST: ok is false when the `action` parameter is absent or empty
func PendingActionFromQuery(query url.Values) (session.PendingAction, bool) {
	action := session.PendingAction{
		Type:       strings.TrimSpace(query.Get(ParamAction)),
		ObjectUUID: query.Get(ParamObjectUUID),
		Payload:    query.Get(ParamPayload),
	}
	return action, action.IsPresent()
}
