package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"console/internal/adapters/consoleapi"
	"console/internal/adapters/http/middleware"
	"console/internal/application/listutil"
	"console/internal/application/orchestrators"
	"console/internal/application/state"
	"console/internal/domain/session"
)

// ActionDelete is the deep-link action that asks to confirm a deletion.
const ActionDelete = "delete"

// registerViews wires the console routes. Every route runs after the
// bootstrap, so the page-load store is always in the request context.
func (s *Server) registerViews() {
	admin := middleware.RequireRole(s.handleForbidden, session.RoleAdmin)

	s.views.HandleFunc("GET /initialize", s.handleInitialize)
	s.views.HandleFunc("GET /login", s.handleLoginForm)
	s.views.HandleFunc("POST /login", s.handleLogin)
	s.views.HandleFunc("POST /logout", s.handleLogout)
	s.views.HandleFunc("GET /session", s.handleSession)
	s.views.Handle("GET /members", admin(http.HandlerFunc(s.handleMembers)))
	s.views.Handle("GET /members/{uuid}", admin(http.HandlerFunc(s.handleMember)))
	s.views.Handle("POST /members/{uuid}/delete", admin(http.HandlerFunc(s.handleMemberDelete)))
	s.views.Handle("POST /members/{uuid}/login-link", admin(http.HandlerFunc(s.handleMemberLoginLink)))
	s.views.Handle("GET /_perf", admin(http.HandlerFunc(s.handlePerf)))
	s.views.HandleFunc("/", s.handleNotFound)
}

// handleInitialize handles GET /initialize, the landing view.
func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "initialize.html", nil)
}

// handleLoginForm handles GET /login
func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	returnTo := localOr(r.URL.Query().Get(middleware.ParamReturn), "")
	if middleware.IsAuthenticated(r.Context()) {
		http.Redirect(w, r, localOr(returnTo, s.deps.LandingRoute), http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login.html", map[string]any{"Return": returnTo})
}

// handleLogin handles POST /login: the pair is checked with the identity
// service before it is remembered.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	returnTo := localOr(r.FormValue(middleware.ParamReturn), "")

	input := orchestrators.VerifyCredentialsInput{
		Identifier: r.FormValue("member"),
		Code:       r.FormValue("code"),
	}
	deps := orchestrators.VerifyCredentialsDeps{Resolver: s.deps.Resolver}
	sess, err := orchestrators.ExecuteVerifyCredentials(r.Context(), input, deps)
	if err != nil {
		status, msg := http.StatusUnauthorized, "login_failed"
		if errors.Is(err, orchestrators.ErrIdentityUnavailable) {
			status, msg = http.StatusServiceUnavailable, "login_unavailable"
		}
		s.render(w, r, status, "login.html", map[string]any{
			"Return": returnTo,
			"Member": input.Identifier,
			"Error":  msg,
		})
		return
	}

	if err := s.deps.Jar.Remember(w, sess.Identifier, sess.SecretCode); err != nil {
		internalError(w, err)
		return
	}

	// The next page load resolves the remembered pair and navigates on.
	target := "/"
	if returnTo != "" {
		target = "/?" + url.Values{orchestrators.ParamNext: {returnTo}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// handleLogout handles POST /logout
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.deps.Jar.Forget(w)
	slog.Info("auth_event", "event", "logout")
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

// sessionResponse is the public projection of the page-load store. The
// secret code is never echoed back.
type sessionResponse struct {
	Authenticated bool           `json:"authenticated"`
	UUID          string         `json:"uuid,omitempty"`
	Type          string         `json:"type,omitempty"`
	Language      string         `json:"language"`
	Action        *actionPayload `json:"action,omitempty"`
}

type actionPayload struct {
	Type       string `json:"type"`
	ObjectUUID string `json:"objectUUID,omitempty"`
	Payload    string `json:"payload,omitempty"`
}

// handleSession handles GET /session
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	store, ok := state.FromContext(r.Context())
	if !ok {
		internalError(w, errors.New("no page-load store"))
		return
	}
	resp := sessionResponse{
		Authenticated: store.IsAuthenticated(),
		UUID:          store.UUID(),
		Type:          store.Type(),
		Language:      store.Language(),
	}
	if a := store.Action(); a.IsPresent() {
		resp.Action = &actionPayload{Type: a.Type, ObjectUUID: a.ObjectUUID, Payload: a.Payload}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleMembers handles GET /members
func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	store, _ := state.FromContext(r.Context())
	q := listutil.Parse(r.URL.Query(), orchestrators.MemberListSort, orchestrators.MemberListFilters)

	list, err := s.deps.API.For(store).ListMembers(r.Context(), q)
	if err != nil {
		s.directoryError(w, r, err)
		return
	}
	data := map[string]any{
		"Members": list.Members,
		"Page":    list.Page,
		"Search":  q.Search,
	}
	if list.Page.HasPrev() {
		data["PrevURL"] = membersURL(q.WithPage(list.Page.Number - 1))
	}
	if list.Page.HasNext() {
		data["NextURL"] = membersURL(q.WithPage(list.Page.Number + 1))
	}
	s.render(w, r, http.StatusOK, "members.html", data)
}

func membersURL(q listutil.Query) string {
	if v := q.Values(); len(v) > 0 {
		return "/members?" + v.Encode()
	}
	return "/members"
}

// handleMember handles GET /members/{uuid}
func (s *Server) handleMember(w http.ResponseWriter, r *http.Request) {
	s.renderMember(w, r, "")
}

func (s *Server) renderMember(w http.ResponseWriter, r *http.Request, notice string) {
	store, _ := state.FromContext(r.Context())
	uuid := r.PathValue("uuid")

	m, err := s.deps.API.For(store).GetMember(r.Context(), uuid)
	if err != nil {
		s.directoryError(w, r, err)
		return
	}
	action := store.Action()
	s.render(w, r, http.StatusOK, "member.html", map[string]any{
		"Member":        m,
		"ConfirmDelete": action.Type == ActionDelete && action.ObjectUUID == m.UUID,
		"Notice":        notice,
	})
}

// handleMemberDelete handles POST /members/{uuid}/delete
func (s *Server) handleMemberDelete(w http.ResponseWriter, r *http.Request) {
	store, _ := state.FromContext(r.Context())
	if err := s.deps.API.For(store).DeleteMember(r.Context(), r.PathValue("uuid")); err != nil {
		s.directoryError(w, r, err)
		return
	}
	s.render(w, r, http.StatusOK, "initialize.html", map[string]any{"Notice": "member_deleted"})
}

// handleMemberLoginLink handles POST /members/{uuid}/login-link
func (s *Server) handleMemberLoginLink(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form submission", http.StatusBadRequest)
		return
	}
	store, _ := state.FromContext(r.Context())
	next := localOr(r.FormValue(orchestrators.ParamNext), "")
	if err := s.deps.API.For(store).SendLoginLink(r.Context(), r.PathValue("uuid"), next); err != nil {
		s.directoryError(w, r, err)
		return
	}
	s.renderMember(w, r, "member_link_sent")
}

// handlePerf handles GET /_perf
func (s *Server) handlePerf(w http.ResponseWriter, r *http.Request) {
	if s.deps.Collector == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Collector.Snapshot(time.Now().Add(-time.Hour), 10))
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusNotFound, "not_found.html", nil)
}

func (s *Server) handleForbidden(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusForbidden, "forbidden.html", nil)
}

// directoryError maps privileged client errors onto console pages.
func (s *Server) directoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, consoleapi.ErrNotFound):
		s.handleNotFound(w, r)
	case errors.Is(err, consoleapi.ErrForbidden):
		s.handleForbidden(w, r)
	case errors.Is(err, consoleapi.ErrNotAuthenticated):
		http.Redirect(w, r, middleware.LoginRedirect(r), http.StatusSeeOther)
	default:
		slog.Error("directory_request_failed", "path", r.URL.Path, "error", err.Error())
		http.Error(w, "directory unavailable", http.StatusBadGateway)
	}
}

// localOr returns target when it is a console path, fallback otherwise.
func localOr(target, fallback string) string {
	if target != "" && IsLocalPath(target) {
		return target
	}
	return fallback
}
