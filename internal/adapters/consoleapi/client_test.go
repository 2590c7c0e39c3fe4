package consoleapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"console/internal/application/listutil"
	"console/internal/application/state"
	"console/internal/domain/session"
)

type recordedRequest struct {
	method string
	path   string
	code   string
	query  string
	body   map[string]string
}

func newDirectoryServer(t *testing.T) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var reqs []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{method: r.Method, path: r.URL.Path, code: r.Header.Get("X-Member-Code"), query: r.URL.RawQuery}
		json.NewDecoder(r.Body).Decode(&rec.body)
		reqs = append(reqs, rec)

		if rec.code != "admin-code" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/admins/a1/members/m1":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"uuid":"m1","name":"Pau","type":"member","language":"cat","status":"active"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/admins/a1/members":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"members":[{"uuid":"m1","name":"Pau","type":"member"}],"page":{"page":2,"per_page":1,"total":2,"pages":2}}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/api/admins/a1/members/m1":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == "/api/admins/a1/members/m1/login-link":
			w.WriteHeader(http.StatusAccepted)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/admins/a1/members/locked":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func adminStore(code string) *state.Store {
	s := state.NewStore()
	s.Authenticate(session.Session{Identifier: "a1", SecretCode: code, Role: session.RoleAdmin, Locale: "en"})
	return s
}

func TestScoped_GetMember(t *testing.T) {
	srv, reqs := newDirectoryServer(t)
	api := New(srv.URL, time.Second).For(adminStore("admin-code"))

	m, err := api.GetMember(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetMember: %v", err)
	}
	if m.UUID != "m1" || m.Name != "Pau" || m.Language != "cat" {
		t.Errorf("unexpected member %+v", m)
	}
	if (*reqs)[0].code != "admin-code" {
		t.Errorf("expected X-Member-Code to carry the session code, got %q", (*reqs)[0].code)
	}
}

func TestScoped_ListMembers(t *testing.T) {
	srv, reqs := newDirectoryServer(t)
	api := New(srv.URL, time.Second).For(adminStore("admin-code"))
	q := listutil.Query{Page: 2, PerPage: 1, Dir: "asc", Search: "pau", Filters: map[string]string{"type": "member"}}

	list, err := api.ListMembers(context.Background(), q)
	if err != nil {
		t.Fatalf("ListMembers: %v", err)
	}
	if len(list.Members) != 1 || list.Members[0].Name != "Pau" {
		t.Errorf("unexpected members %+v", list.Members)
	}
	if list.Page.Number != 2 || list.Page.Total != 2 || !list.Page.HasPrev() {
		t.Errorf("unexpected page %+v", list.Page)
	}
	got, _ := url.ParseQuery((*reqs)[0].query)
	if got.Get("page") != "2" || got.Get("per_page") != "1" || got.Get("q") != "pau" || got.Get("type") != "member" {
		t.Errorf("expected the query to be forwarded, got %v", got)
	}
}

func TestScoped_DeleteAndLoginLink(t *testing.T) {
	srv, reqs := newDirectoryServer(t)
	api := New(srv.URL, time.Second).For(adminStore("admin-code"))
	ctx := context.Background()

	if err := api.DeleteMember(ctx, "m1"); err != nil {
		t.Errorf("DeleteMember: %v", err)
	}
	if err := api.SendLoginLink(ctx, "m1", "/members"); err != nil {
		t.Errorf("SendLoginLink: %v", err)
	}
	if got := (*reqs)[1].body["next"]; got != "/members" {
		t.Errorf("expected next in body, got %q", got)
	}
}

func TestScoped_ErrorMapping(t *testing.T) {
	srv, _ := newDirectoryServer(t)
	ctx := context.Background()

	if _, err := New(srv.URL, time.Second).For(adminStore("wrong")).GetMember(ctx, "m1"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	api := New(srv.URL, time.Second).For(adminStore("admin-code"))
	if err := api.DeleteMember(ctx, "zz"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := api.DeleteMember(ctx, "locked"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected unexpected-status error, got %v", err)
	}
}

func TestScoped_UnauthenticatedMakesNoCall(t *testing.T) {
	srv, reqs := newDirectoryServer(t)
	api := New(srv.URL, time.Second).For(state.NewStore())

	if _, err := api.GetMember(context.Background(), "m1"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
	if err := api.DeleteMember(context.Background(), "m1"); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("expected ErrNotAuthenticated, got %v", err)
	}
	if len(*reqs) != 0 {
		t.Errorf("expected no request, got %d", len(*reqs))
	}
}
