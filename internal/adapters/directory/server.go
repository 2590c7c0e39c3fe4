// Package directory serves the identity lookup the console resolves
// credential pairs against, plus the admin operations behind it.
package directory

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/yuin/goldmark"

	"console/internal/adapters/email"
	"console/internal/adapters/http/middleware"
	"console/internal/adapters/http/perf"
	"console/internal/adapters/identity"
	"console/internal/application/listutil"
	"console/internal/application/orchestrators"
	"console/internal/domain/member"
	"console/internal/domain/session"
)

// Deps holds the directory's collaborators.
type Deps struct {
	Members      orchestrators.MemberStoreForDirectory
	Sender       email.Sender
	Translator   orchestrators.Translator
	Markdown     goldmark.Markdown
	ConsoleURL   string
	GenerateCode func() (string, error)
	Collector    *perf.Collector
}

// Server is the directory HTTP API.
type Server struct {
	deps Deps
}

// NewServer creates a directory server.
// PRE: deps.Members is non-nil
func NewServer(deps Deps) *Server {
	if deps.GenerateCode == nil {
		deps.GenerateCode = member.NewCode
	}
	if deps.Markdown == nil {
		deps.Markdown = goldmark.New()
	}
	return &Server{deps: deps}
}

// Handler wires the directory routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/members/{member_uuid}", s.handleLookup).Methods(http.MethodGet)

	admin := api.PathPrefix("/admins/{admin_uuid}").Subrouter()
	admin.HandleFunc("/members", s.handleListMembers).Methods(http.MethodGet)
	admin.HandleFunc("/members/{member_uuid}", s.handleGetMember).Methods(http.MethodGet)
	admin.HandleFunc("/members/{member_uuid}", s.handleDeleteMember).Methods(http.MethodDelete)
	admin.HandleFunc("/members/{member_uuid}/login-link", s.handleLoginLink).Methods(http.MethodPost)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.Use(middleware.Timing(s.deps.Collector))
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// identityResponse is the lookup body the console's resolver decodes.
type identityResponse struct {
	UUID     string `json:"uuid"`
	Type     string `json:"type"`
	Language string `json:"language"`
}

// memberResponse is the admin view of a member. The code hash never leaves the directory.
type memberResponse struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Type     string `json:"type"`
	Language string `json:"language"`
	Status   string `json:"status"`
}

func toMemberResponse(m member.Member) memberResponse {
	return memberResponse{
		UUID:     m.ID,
		Name:     m.Name,
		Email:    m.Email,
		Type:     m.Type,
		Language: m.Language,
		Status:   m.Status,
	}
}

// handleLookup handles GET /api/members/{member_uuid}
func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	input := orchestrators.LookupMemberInput{
		MemberID: strings.ToLower(mux.Vars(r)["member_uuid"]),
		Code:     r.Header.Get(identity.HeaderMemberCode),
	}
	m, err := orchestrators.ExecuteLookupMember(r.Context(), input, s.lookupDeps())
	if err != nil {
		s.writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, identityResponse{UUID: m.ID, Type: m.Type, Language: m.Language})
}

// memberListResponse is one page of the admin member list.
type memberListResponse struct {
	Members []memberResponse `json:"members"`
	Page    listutil.Page    `json:"page"`
}

// handleListMembers handles GET /api/admins/{admin_uuid}/members
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	admin := adminInput(r)
	input := orchestrators.ListMembersInput{
		AdminID:   admin.MemberID,
		AdminCode: admin.Code,
		Query:     listutil.Parse(r.URL.Query(), orchestrators.MemberListSort, orchestrators.MemberListFilters),
	}
	result, err := orchestrators.ExecuteListMembers(r.Context(), input, s.lookupDeps())
	if err != nil {
		s.writeDirectoryError(w, err)
		return
	}
	resp := memberListResponse{Members: make([]memberResponse, 0, len(result.Members)), Page: result.Page}
	for _, m := range result.Members {
		resp.Members = append(resp.Members, toMemberResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetMember handles GET /api/admins/{admin_uuid}/members/{member_uuid}
func (s *Server) handleGetMember(w http.ResponseWriter, r *http.Request) {
	admin := adminInput(r)
	input := orchestrators.GetMemberInput{
		AdminID:   admin.MemberID,
		AdminCode: admin.Code,
		MemberID:  strings.ToLower(mux.Vars(r)["member_uuid"]),
	}
	m, err := orchestrators.ExecuteGetMember(r.Context(), input, s.lookupDeps())
	if err != nil {
		s.writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMemberResponse(m))
}

// handleDeleteMember handles DELETE /api/admins/{admin_uuid}/members/{member_uuid}
func (s *Server) handleDeleteMember(w http.ResponseWriter, r *http.Request) {
	admin := adminInput(r)
	input := orchestrators.DeleteMemberInput{
		AdminID:   admin.MemberID,
		AdminCode: admin.Code,
		MemberID:  strings.ToLower(mux.Vars(r)["member_uuid"]),
	}
	if err := orchestrators.ExecuteDeleteMember(r.Context(), input, s.lookupDeps()); err != nil {
		s.writeDirectoryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loginLinkRequest is the optional body of a login-link request.
type loginLinkRequest struct {
	Next       string `json:"next"`
	Action     string `json:"action"`
	ObjectUUID string `json:"objectUUID"`
	Payload    string `json:"payload"`
}

// handleLoginLink handles POST /api/admins/{admin_uuid}/members/{member_uuid}/login-link
func (s *Server) handleLoginLink(w http.ResponseWriter, r *http.Request) {
	var body loginLinkRequest
	if r.ContentLength != 0 {
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	admin := adminInput(r)
	input := orchestrators.SendLoginLinkInput{
		AdminID:   admin.MemberID,
		AdminCode: admin.Code,
		MemberID:  strings.ToLower(mux.Vars(r)["member_uuid"]),
		Next:      body.Next,
		Action: session.PendingAction{
			Type:       body.Action,
			ObjectUUID: body.ObjectUUID,
			Payload:    body.Payload,
		},
	}
	deps := orchestrators.SendLoginLinkDeps{
		MemberStore:  s.deps.Members,
		Sender:       s.deps.Sender,
		Translator:   s.deps.Translator,
		Markdown:     s.deps.Markdown,
		ConsoleURL:   s.deps.ConsoleURL,
		GenerateCode: s.deps.GenerateCode,
	}
	result, err := orchestrators.ExecuteSendLoginLink(r.Context(), input, deps)
	if err != nil {
		s.writeDirectoryError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"message_id": result.MessageID})
}

func (s *Server) lookupDeps() orchestrators.LookupMemberDeps {
	return orchestrators.LookupMemberDeps{MemberStore: s.deps.Members}
}

// adminInput reads the acting admin's pair from the path and header.
func adminInput(r *http.Request) orchestrators.LookupMemberInput {
	return orchestrators.LookupMemberInput{
		MemberID: strings.ToLower(mux.Vars(r)["admin_uuid"]),
		Code:     r.Header.Get(identity.HeaderMemberCode),
	}
}

// writeDirectoryError maps orchestrator errors onto status codes.
// Unknown errors are logged and reported as 500 without detail.
func (s *Server) writeDirectoryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, member.ErrWrongCode):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, orchestrators.ErrMemberNotFound):
		writeError(w, http.StatusNotFound, "member not found")
	case errors.Is(err, orchestrators.ErrMemberInactive),
		errors.Is(err, orchestrators.ErrNotAdmin):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, orchestrators.ErrSelfDelete):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, orchestrators.ErrNoEmail):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		slog.Error("internal_error", "error", err.Error())
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
