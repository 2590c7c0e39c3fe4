package web

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"console/internal/adapters/consoleapi"
	"console/internal/adapters/cookie"
	"console/internal/adapters/http/middleware"
	"console/internal/adapters/http/perf"
	"console/internal/adapters/i18n"
	"console/internal/application/orchestrators"
	"console/internal/application/state"
)

// DefaultLandingRoute is served when a page load has no other destination.
const DefaultLandingRoute = "/initialize"

// Deps holds the console's collaborators.
type Deps struct {
	Resolver     orchestrators.IdentityResolver
	Jar          *cookie.Jar
	Catalog      *i18n.Catalog
	API          *consoleapi.Client
	Collector    *perf.Collector
	LandingRoute string

	// CSRFKey must be 32 bytes; empty generates a per-process key.
	CSRFKey            []byte
	SecureCookies      bool
	TrustedOrigins     []string
	RateLimitPerSecond int
}

// Server runs the page-load bootstrap and dispatches to the console views.
type Server struct {
	deps  Deps
	pages *pages
	views *http.ServeMux
}

// NewServer parses the templates and registers the views.
// PRE: deps.Resolver, deps.Jar and deps.Catalog are non-nil
func NewServer(deps Deps) (*Server, error) {
	if deps.LandingRoute == "" {
		deps.LandingRoute = DefaultLandingRoute
	}
	p, err := parsePages()
	if err != nil {
		return nil, err
	}
	s := &Server{deps: deps, pages: p, views: http.NewServeMux()}
	s.registerViews()
	return s, nil
}

// NewMux wires the console with its middleware chain.
// ctx bounds background work such as rate limiter eviction.
func NewMux(ctx context.Context, deps Deps) (http.Handler, error) {
	s, err := NewServer(deps)
	if err != nil {
		return nil, err
	}

	csrfKey := deps.CSRFKey
	if len(csrfKey) == 0 {
		csrfKey = make([]byte, 32)
		if _, err := rand.Read(csrfKey); err != nil {
			return nil, fmt.Errorf("generate CSRF key: %w", err)
		}
		slog.Warn("random_csrf_key", "detail", "forms will not survive a restart; set CONSOLE_CSRF_KEY")
	}
	rate := deps.RateLimitPerSecond
	if rate <= 0 {
		rate = 20
	}
	limiter := middleware.NewRateLimiter(ctx, rate, time.Second)

	// Timing -> RateLimit -> CSRF -> SecurityHeaders -> page load
	return middleware.Chain(s,
		middleware.SecurityHeaders,
		middleware.CSRF(csrfKey, deps.SecureCookies, deps.TrustedOrigins),
		middleware.RateLimit(limiter),
		middleware.Timing(deps.Collector),
	), nil
}

// ServeHTTP runs the bootstrap for the page load, then serves the view the
// router settled on, all within the one request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	store := state.NewStore()
	display := s.deps.Catalog.Display()

	// Only page loads carry deep links; form posts resolve the remembered pair.
	query := url.Values{}
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		query = r.URL.Query()
	}
	router := &pageRouter{query: query, landing: s.deps.LandingRoute}

	orchestrators.ExecuteBootstrap(r.Context(), orchestrators.BootstrapInput{
		PageLoadID: middleware.RequestID(r.Context()),
	}, orchestrators.BootstrapDeps{
		Store:       store,
		Credentials: s.deps.Jar.Store(r),
		Resolver:    s.deps.Resolver,
		Locale:      display,
		Router:      router,
	})

	ctx := state.WithStore(r.Context(), store)
	ctx = withDisplay(ctx, display)
	s.views.ServeHTTP(w, router.destination(r.WithContext(ctx)))
}

// pageRouter records the navigation decided by the bootstrap.
type pageRouter struct {
	query    url.Values
	landing  string
	target   string
	navigate bool
}

// Query implements orchestrators.Router.
func (p *pageRouter) Query() url.Values { return p.query }

// Navigate implements orchestrators.Router. Targets outside the console are
// replaced by the landing route.
func (p *pageRouter) Navigate(target string) {
	p.navigate = true
	if !IsLocalPath(target) {
		slog.Warn("navigation_rejected", "target", target)
		p.target = p.landing
		return
	}
	p.target = target
}

// Stay implements orchestrators.Router.
func (p *pageRouter) Stay() {
	p.navigate = false
	p.target = ""
}

// destination returns the request the views should serve.
func (p *pageRouter) destination(r *http.Request) *http.Request {
	if !p.navigate {
		if r.URL.Path == "/" {
			return rewrite(r, p.landing)
		}
		return r
	}
	return rewrite(r, p.target)
}

// rewrite points a copy of r at target. The method is kept only for
// page loads; a navigation from a form post renders the target view.
func rewrite(r *http.Request, target string) *http.Request {
	u, err := url.Parse(target)
	if err != nil {
		u = &url.URL{Path: "/"}
	}
	out := r.Clone(r.Context())
	out.URL.Path = u.Path
	out.URL.RawPath = ""
	out.URL.RawQuery = u.RawQuery
	out.RequestURI = u.RequestURI()
	if out.Method != http.MethodHead {
		out.Method = http.MethodGet
	}
	return out
}

// IsLocalPath reports whether target stays on this console: an absolute
// path that is not protocol-relative and carries no scheme or host.
func IsLocalPath(target string) bool {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return false
	}
	u, err := url.Parse(target)
	return err == nil && u.Scheme == "" && u.Host == ""
}
