// Package consoleapi is the privileged client the console views use to act
// on the directory on behalf of the signed-in admin.
package consoleapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"console/internal/adapters/identity"
	"console/internal/application/listutil"
)

var (
	ErrNotAuthenticated = errors.New("no authenticated session")
	ErrForbidden        = errors.New("request refused by the directory")
	ErrNotFound         = errors.New("object not found")
)

// Identity is the acting session, as projected by the page-load store.
type Identity interface {
	IsAuthenticated() bool
	UUID() string
	Code() string
}

// Member is the directory's view of a member.
type Member struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Type     string `json:"type"`
	Language string `json:"language"`
	Status   string `json:"status"`
}

// Client shares one HTTP client across page loads.
type Client struct {
	http *resty.Client
}

// New creates a client for the directory at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{http: resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")}
}

// For scopes the client to the acting identity.
func (c *Client) For(id Identity) *Scoped {
	return &Scoped{client: c, id: id}
}

// Scoped issues requests as one identity: paths live under
// /api/admins/{uuid} and every request carries X-Member-Code.
type Scoped struct {
	client *Client
	id     Identity
}

func (s *Scoped) request(ctx context.Context) (*resty.Request, error) {
	if s.id == nil || !s.id.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	return s.client.http.R().
		SetContext(ctx).
		SetHeader(identity.HeaderMemberCode, s.id.Code()).
		SetPathParam("admin", s.id.UUID()), nil
}

// GetMember fetches a member.
func (s *Scoped) GetMember(ctx context.Context, memberUUID string) (Member, error) {
	req, err := s.request(ctx)
	if err != nil {
		return Member{}, err
	}
	resp, err := req.SetPathParam("member", memberUUID).Get("/api/admins/{admin}/members/{member}")
	if err := check(resp, err); err != nil {
		return Member{}, err
	}
	var m Member
	if err := json.Unmarshal(resp.Body(), &m); err != nil {
		return Member{}, fmt.Errorf("decode member: %w", err)
	}
	return m, nil
}

// MemberList is one page of the directory.
type MemberList struct {
	Members []Member      `json:"members"`
	Page    listutil.Page `json:"page"`
}

// ListMembers fetches one page of members. The query is forwarded as is;
// the directory clamps it.
func (s *Scoped) ListMembers(ctx context.Context, q listutil.Query) (MemberList, error) {
	req, err := s.request(ctx)
	if err != nil {
		return MemberList{}, err
	}
	resp, err := req.SetQueryString(q.Values().Encode()).Get("/api/admins/{admin}/members")
	if err := check(resp, err); err != nil {
		return MemberList{}, err
	}
	var list MemberList
	if err := json.Unmarshal(resp.Body(), &list); err != nil {
		return MemberList{}, fmt.Errorf("decode member list: %w", err)
	}
	return list, nil
}

// DeleteMember removes a member.
func (s *Scoped) DeleteMember(ctx context.Context, memberUUID string) error {
	req, err := s.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.SetPathParam("member", memberUUID).Delete("/api/admins/{admin}/members/{member}")
	return check(resp, err)
}

// SendLoginLink asks the directory to mail a member a fresh login link.
func (s *Scoped) SendLoginLink(ctx context.Context, memberUUID, next string) error {
	req, err := s.request(ctx)
	if err != nil {
		return err
	}
	resp, err := req.
		SetPathParam("member", memberUUID).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"next": next}).
		Post("/api/admins/{admin}/members/{member}/login-link")
	return check(resp, err)
}

// check maps transport errors and status codes onto the package errors.
func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("directory request: %w", err)
	}
	switch status := resp.StatusCode(); {
	case resp.IsSuccess():
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	default:
		return fmt.Errorf("directory request: unexpected status %d", status)
	}
}
