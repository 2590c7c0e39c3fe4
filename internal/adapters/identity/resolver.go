// Package identity resolves a member credential pair against the remote
// identity service.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"console/internal/adapters/http/perf"
	"console/internal/domain/locale"
	"console/internal/domain/session"
)

// HeaderMemberCode carries the secret code on every privileged call.
const HeaderMemberCode = "X-Member-Code"

// lookupPath is the identity service endpoint, relative to the base URL.
const lookupPath = "/api/members/{identifier}"

// DefaultTimeout bounds a single lookup when none is configured.
const DefaultTimeout = 10 * time.Second

var (
	ErrMissingCredentials = errors.New("identifier and secret code are both required")
	ErrEmptyIdentity      = errors.New("identity service returned no uuid")
)

// Record is the identity service response body.
type Record struct {
	UUID     string `json:"uuid"`
	Type     string `json:"type"`
	Language string `json:"language"`
}

// RestyResolver looks identities up over HTTP.
type RestyResolver struct {
	client    *resty.Client
	timeout   time.Duration
	collector *perf.Collector
}

// NewRestyResolver creates a resolver for the identity service at baseURL.
// PRE: baseURL is an absolute http(s) URL
// POST: Returns a resolver that issues one request per Resolve, without retries
func NewRestyResolver(baseURL string, timeout time.Duration, collector *perf.Collector) *RestyResolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetRetryCount(0)
	return &RestyResolver{client: client, timeout: timeout, collector: collector}
}

// Resolve exchanges an identifier and secret code for a Session.
// PRE: identifier and secretCode are non-empty
// POST: On success the Session carries the service's canonical uuid, the
// unchanged secret code, the returned role and a supported locale.
// Every error is a *session.LookupFailure.
func (r *RestyResolver) Resolve(ctx context.Context, identifier, secretCode string) (session.Session, error) {
	if identifier == "" || secretCode == "" {
		return session.Session{}, &session.LookupFailure{Identifier: identifier, Err: ErrMissingCredentials}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	resp, err := r.client.R().
		SetContext(ctx).
		SetHeader(HeaderMemberCode, secretCode).
		SetPathParam("identifier", identifier).
		Get(lookupPath)
	if err != nil {
		r.record(start, 0, true)
		return session.Session{}, &session.LookupFailure{Identifier: identifier, Err: err}
	}

	status := resp.StatusCode()
	if !resp.IsSuccess() {
		r.record(start, status, true)
		return session.Session{}, &session.LookupFailure{
			Identifier: identifier,
			Status:     status,
			Err:        fmt.Errorf("unexpected response %q", resp.Status()),
		}
	}

	var rec Record
	if err := json.Unmarshal(resp.Body(), &rec); err != nil {
		r.record(start, status, true)
		return session.Session{}, &session.LookupFailure{Identifier: identifier, Status: status, Err: fmt.Errorf("decode identity: %w", err)}
	}
	if rec.UUID == "" {
		r.record(start, status, true)
		return session.Session{}, &session.LookupFailure{Identifier: identifier, Status: status, Err: ErrEmptyIdentity}
	}

	r.record(start, status, false)
	if rec.UUID != identifier {
		slog.Debug("identity_canonicalized", "requested", identifier, "canonical", rec.UUID)
	}
	return session.Session{
		Identifier: rec.UUID,
		SecretCode: secretCode,
		Role:       rec.Type,
		Locale:     locale.Normalize(rec.Language),
	}, nil
}

// record stores the lookup timing in the perf collector.
func (r *RestyResolver) record(start time.Time, status int, failed bool) {
	r.collector.Record(perf.Entry{
		Kind:       perf.KindLookup,
		Path:       "GET /api/members",
		StatusCode: status,
		Failed:     failed,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:  start,
	})
}
