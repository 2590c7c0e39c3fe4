package orchestrators

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"console/internal/application/state"
	"console/internal/domain/locale"
	"console/internal/domain/session"
)

// mockCredentialStore is a cookie jar stand-in.
type mockCredentialStore map[string]string

// Get implements CredentialStore for testing.
func (m mockCredentialStore) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// mockResolver maps identifier+code pairs to identities.
type mockResolver struct {
	identities map[string]session.Session
	err        error
	calls      []session.Credentials
}

// Resolve implements IdentityResolver for testing.
func (m *mockResolver) Resolve(_ context.Context, identifier, code string) (session.Session, error) {
	m.calls = append(m.calls, session.Credentials{Identifier: identifier, Code: code})
	if m.err != nil {
		return session.Session{}, m.err
	}
	s, ok := m.identities[identifier+"/"+code]
	if !ok {
		return session.Session{}, &session.LookupFailure{Identifier: identifier, Status: 404, Err: errors.New("not found")}
	}
	return s, nil
}

// mockLocale records the active display locale.
type mockLocale struct {
	active string
	calls  int
}

// SetLocale implements LocaleSetter for testing.
func (m *mockLocale) SetLocale(tag string) {
	m.active = tag
	m.calls++
}

// mockRouter records navigation together with what the store held at that moment.
type mockRouter struct {
	query  url.Values
	store  *state.Store
	locale *mockLocale

	navigated     bool
	stayed        bool
	target        string
	seenLanguage  string
	seenUUID      string
	seenDisplay   string
	seenAction    session.PendingAction
	navigateCalls int
}

func (m *mockRouter) Query() url.Values { return m.query }

func (m *mockRouter) Navigate(target string) {
	m.navigateCalls++
	m.navigated = true
	m.target = target
	m.snapshot()
}

func (m *mockRouter) Stay() {
	m.stayed = true
	m.snapshot()
}

func (m *mockRouter) snapshot() {
	m.seenLanguage = m.store.Language()
	m.seenUUID = m.store.UUID()
	m.seenDisplay = m.locale.active
	m.seenAction = m.store.Action()
}

var (
	identityA = session.Session{Identifier: "aaaa", SecretCode: "code-a", Role: session.RoleAdmin, Locale: "en"}
	identityB = session.Session{Identifier: "bbbb", SecretCode: "code-b", Role: session.RoleMember, Locale: "cat"}
)

type bootstrapFixture struct {
	store    *state.Store
	resolver *mockResolver
	locale   *mockLocale
	router   *mockRouter
	deps     BootstrapDeps
}

func newBootstrapFixture(cookies mockCredentialStore, rawQuery string) *bootstrapFixture {
	query, _ := url.ParseQuery(rawQuery)
	store := state.NewStore()
	loc := &mockLocale{active: locale.Fallback}
	resolver := &mockResolver{identities: map[string]session.Session{
		"aaaa/code-a": identityA,
		"bbbb/code-b": identityB,
	}}
	router := &mockRouter{query: query, store: store, locale: loc}
	return &bootstrapFixture{
		store:    store,
		resolver: resolver,
		locale:   loc,
		router:   router,
		deps: BootstrapDeps{
			Store:       store,
			Credentials: cookies,
			Resolver:    resolver,
			Locale:      loc,
			Router:      router,
		},
	}
}

func (f *bootstrapFixture) run() BootstrapResult {
	return ExecuteBootstrap(context.Background(), BootstrapInput{PageLoadID: "test"}, f.deps)
}

func TestExecuteBootstrap_CookieAndQuerySourcesAreEquivalent(t *testing.T) {
	viaCookie := newBootstrapFixture(mockCredentialStore{CookieMember: "bbbb", CookieCode: "code-b"}, "")
	viaQuery := newBootstrapFixture(nil, "m=bbbb&c=code-b")

	rc := viaCookie.run()
	rq := viaQuery.run()

	if rc.Source != SourceCookie || rq.Source != SourceQuery {
		t.Fatalf("expected sources cookie/query, got %s/%s", rc.Source, rq.Source)
	}
	if viaCookie.store.Session() != viaQuery.store.Session() {
		t.Errorf("expected identical sessions, got %+v and %+v", viaCookie.store.Session(), viaQuery.store.Session())
	}
	if viaCookie.store.Type() != session.RoleMember || viaCookie.store.Language() != "cat" {
		t.Errorf("expected member/cat, got %s/%s", viaCookie.store.Type(), viaCookie.store.Language())
	}
	if viaCookie.locale.active != "cat" || viaQuery.locale.active != "cat" {
		t.Errorf("expected display locale cat, got %s/%s", viaCookie.locale.active, viaQuery.locale.active)
	}
}

func TestExecuteBootstrap_CookieTakesPrecedenceOverQuery(t *testing.T) {
	f := newBootstrapFixture(mockCredentialStore{CookieMember: "aaaa", CookieCode: "code-a"}, "m=bbbb&c=code-b")

	result := f.run()

	if result.Source != SourceCookie {
		t.Errorf("expected cookie source, got %s", result.Source)
	}
	if f.store.UUID() != "aaaa" || f.store.Type() != session.RoleAdmin {
		t.Errorf("expected identity A, got %+v", f.store.Session())
	}
	if len(f.resolver.calls) != 1 || f.resolver.calls[0].Identifier != "aaaa" {
		t.Errorf("expected a single lookup for aaaa, got %+v", f.resolver.calls)
	}
}

func TestExecuteBootstrap_HalfCookieFallsThroughToQuery(t *testing.T) {
	f := newBootstrapFixture(mockCredentialStore{CookieMember: "aaaa"}, "m=bbbb&c=code-b")

	result := f.run()

	if result.Source != SourceQuery {
		t.Errorf("expected query source, got %s", result.Source)
	}
	if f.store.UUID() != "bbbb" {
		t.Errorf("expected identity B, got %+v", f.store.Session())
	}
}

func TestExecuteBootstrap_HalfQueryPairIsNoMatch(t *testing.T) {
	f := newBootstrapFixture(nil, "m=bbbb")

	result := f.run()

	if result.Source != SourceNone {
		t.Errorf("expected no source, got %s", result.Source)
	}
	if len(f.resolver.calls) != 0 {
		t.Errorf("expected resolver not to be called, got %+v", f.resolver.calls)
	}
}

func TestExecuteBootstrap_NoSource(t *testing.T) {
	f := newBootstrapFixture(nil, "")

	result := f.run()

	if result.Authenticated || f.store.IsAuthenticated() {
		t.Fatal("expected unauthenticated session")
	}
	if f.store.UUID() != "" || f.store.Code() != "" {
		t.Errorf("expected empty identity, got %+v", f.store.Session())
	}
	if f.store.Language() != locale.Fallback || f.locale.active != locale.Fallback {
		t.Errorf("expected fallback locale, got store=%s display=%s", f.store.Language(), f.locale.active)
	}
	if f.locale.calls != 0 {
		t.Errorf("expected locale setter not to be called, got %d calls", f.locale.calls)
	}
	if !f.router.stayed || f.router.navigated {
		t.Error("expected router to stay on the landing route")
	}
}

func TestExecuteBootstrap_LookupFailureStillRedirects(t *testing.T) {
	f := newBootstrapFixture(mockCredentialStore{CookieMember: "zzzz", CookieCode: "nope"}, "next=/members")

	result := f.run()

	if result.Authenticated || f.store.IsAuthenticated() {
		t.Fatal("expected unauthenticated session after failed lookup")
	}
	if result.Failure == nil || result.Failure.Status != 404 {
		t.Fatalf("expected 404 lookup failure, got %+v", result.Failure)
	}
	if !f.router.navigated || f.router.target != "/members" {
		t.Errorf("expected navigation to /members, got navigated=%v target=%q", f.router.navigated, f.router.target)
	}
	if result.Phase() != PhaseRedirected {
		t.Errorf("expected terminal phase, got %s", result.Phase())
	}
	if f.locale.active != locale.Fallback {
		t.Errorf("expected fallback locale, got %s", f.locale.active)
	}
}

func TestExecuteBootstrap_FailedCookieLookupDoesNotTryQuery(t *testing.T) {
	f := newBootstrapFixture(mockCredentialStore{CookieMember: "zzzz", CookieCode: "nope"}, "m=bbbb&c=code-b")

	f.run()

	if f.store.IsAuthenticated() {
		t.Errorf("expected unauthenticated session, got %+v", f.store.Session())
	}
	if len(f.resolver.calls) != 1 {
		t.Errorf("expected exactly one lookup, got %d", len(f.resolver.calls))
	}
}

func TestExecuteBootstrap_TransportErrorIsLookupFailure(t *testing.T) {
	f := newBootstrapFixture(nil, "m=aaaa&c=code-a")
	f.resolver.err = context.DeadlineExceeded

	result := f.run()

	if result.Failure == nil || !errors.Is(result.Failure, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %+v", result.Failure)
	}
	if !f.router.stayed {
		t.Error("expected router to stay on landing route")
	}
}

func TestExecuteBootstrap_IncompleteIdentityIsFailure(t *testing.T) {
	f := newBootstrapFixture(nil, "m=cccc&c=code-c")
	f.resolver.identities["cccc/code-c"] = session.Session{Identifier: "", SecretCode: "code-c", Role: session.RoleMember}

	result := f.run()

	if result.Authenticated || f.store.IsAuthenticated() {
		t.Fatal("expected incomplete identity to stay unauthenticated")
	}
	if result.Failure == nil {
		t.Fatal("expected lookup failure")
	}
}

func TestExecuteBootstrap_PendingActionRegardlessOfAuth(t *testing.T) {
	want := session.PendingAction{Type: "confirm", ObjectUUID: "E1", Payload: "P"}
	for _, tc := range []struct {
		name    string
		cookies mockCredentialStore
		query   string
	}{
		{"anonymous", nil, "action=confirm&objectUUID=E1&payload=P"},
		{"authenticated", nil, "action=confirm&objectUUID=E1&payload=P&m=aaaa&c=code-a"},
		{"failed lookup", mockCredentialStore{CookieMember: "zzzz", CookieCode: "nope"}, "action=confirm&objectUUID=E1&payload=P"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newBootstrapFixture(tc.cookies, tc.query)
			f.run()
			if got := f.store.Action(); got != want {
				t.Errorf("expected %+v, got %+v", want, got)
			}
			if f.router.seenAction != want {
				t.Errorf("expected action to be set before redirect, got %+v", f.router.seenAction)
			}
		})
	}
}

func TestExecuteBootstrap_MissingActionLeavesStoreUntouched(t *testing.T) {
	f := newBootstrapFixture(nil, "objectUUID=E1&payload=P")

	result := f.run()

	if f.store.Action().IsPresent() || result.Action.IsPresent() {
		t.Errorf("expected no pending action, got %+v", f.store.Action())
	}
}

func TestExecuteBootstrap_Idempotent(t *testing.T) {
	cookies := mockCredentialStore{CookieMember: "aaaa", CookieCode: "code-a"}
	first := newBootstrapFixture(cookies, "")
	second := newBootstrapFixture(cookies, "")

	first.run()
	second.run()

	if first.store.Session() != second.store.Session() {
		t.Errorf("expected identical sessions, got %+v and %+v", first.store.Session(), second.store.Session())
	}

	// Re-running on the same store converges to the same session.
	first.run()
	if first.store.Session() != second.store.Session() {
		t.Errorf("expected re-run to converge, got %+v", first.store.Session())
	}
}

func TestExecuteBootstrap_NavigatesOnlyAfterStateIsSettled(t *testing.T) {
	f := newBootstrapFixture(mockCredentialStore{CookieMember: "aaaa", CookieCode: "code-a"}, "next=/members")

	result := f.run()

	if f.router.navigateCalls != 1 || f.router.target != "/members" {
		t.Fatalf("expected one navigation to /members, got %d to %q", f.router.navigateCalls, f.router.target)
	}
	if f.router.seenUUID != "aaaa" {
		t.Errorf("expected identity settled before navigation, got %q", f.router.seenUUID)
	}
	if f.router.seenLanguage != "en" || f.router.seenDisplay != "en" {
		t.Errorf("expected locale en settled before navigation, got store=%q display=%q", f.router.seenLanguage, f.router.seenDisplay)
	}

	want := []Phase{PhaseStart, PhaseActionExtracted, PhaseCredentialResolved, PhaseLocaleApplied, PhaseRedirected}
	if len(result.Phases) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, result.Phases)
	}
	for i := range want {
		if result.Phases[i] != want[i] {
			t.Errorf("phase %d: expected %s, got %s", i, want[i], result.Phases[i])
		}
	}
}

func TestExecuteBootstrap_CustomSources(t *testing.T) {
	f := newBootstrapFixture(mockCredentialStore{CookieMember: "aaaa", CookieCode: "code-a"}, "m=bbbb&c=code-b")
	f.deps.Sources = []CredentialSource{QuerySource{Query: f.router.query}}

	result := f.run()

	if result.Source != SourceQuery || f.store.UUID() != "bbbb" {
		t.Errorf("expected query-only sources to resolve B, got %s/%s", result.Source, f.store.UUID())
	}
}

func TestPhase_String(t *testing.T) {
	if PhaseLocaleApplied.String() != "locale_applied" {
		t.Errorf("unexpected phase name %q", PhaseLocaleApplied.String())
	}
	if Phase(42).String() != "unknown" {
		t.Errorf("unexpected name for invalid phase %q", Phase(42).String())
	}
}
