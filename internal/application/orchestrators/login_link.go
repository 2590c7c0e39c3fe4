package orchestrators

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/yuin/goldmark"

	"console/internal/adapters/email"
	memberStore "console/internal/adapters/storage/member"
	"console/internal/domain/session"
)

// CategoryLoginLink tags login-link mail at the provider.
const CategoryLoginLink = "login_link"

var (
	ErrNoConsoleURL = errors.New("console URL is required")
	ErrNoEmail      = errors.New("member has no email address")
)

// BuildLoginLink returns the console URL that authenticates through the
// URL credential source, optionally carrying a destination and a pending action.
// PRE: consoleURL is absolute; creds.Complete()
// POST: The query holds m and c, then next and action params when set
func BuildLoginLink(consoleURL string, creds session.Credentials, next string, action session.PendingAction) (string, error) {
	if consoleURL == "" {
		return "", ErrNoConsoleURL
	}
	if !creds.Complete() {
		return "", ErrInvalidCredentials
	}
	u, err := url.Parse(strings.TrimRight(consoleURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("parse console url: %w", err)
	}
	q := url.Values{}
	q.Set(ParamMember, creds.Identifier)
	q.Set(ParamCode, creds.Code)
	if next != "" {
		q.Set(ParamNext, next)
	}
	if action.IsPresent() {
		q.Set(ParamAction, action.Type)
		if action.ObjectUUID != "" {
			q.Set(ParamObjectUUID, action.ObjectUUID)
		}
		if action.Payload != "" {
			q.Set(ParamPayload, action.Payload)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Translator renders catalog messages.
type Translator interface {
	Translate(locale, id string, data map[string]any) string
}

// SendLoginLinkInput names the admin acting and the member to invite.
type SendLoginLinkInput struct {
	AdminID   string
	AdminCode string
	MemberID  string
	Next      string
	Action    session.PendingAction
}

// SendLoginLinkDeps holds dependencies for SendLoginLink.
type SendLoginLinkDeps struct {
	MemberStore  MemberStoreForDirectory
	Sender       email.Sender
	Translator   Translator
	Markdown     goldmark.Markdown
	ConsoleURL   string
	GenerateCode func() (string, error)
}

// SendLoginLinkResult reports the delivered mail.
type SendLoginLinkResult struct {
	MemberID  string
	MessageID string
}

// ExecuteSendLoginLink issues the member a fresh secret code and mails the
// matching login link in the member's language.
// PRE: AdminID/AdminCode identify an active admin; the member has an email
// POST: The member's previous code no longer works and one mail is sent;
// when sending fails the previous code is kept
func ExecuteSendLoginLink(ctx context.Context, input SendLoginLinkInput, deps SendLoginLinkDeps) (SendLoginLinkResult, error) {
	lookup := LookupMemberDeps{MemberStore: deps.MemberStore}
	if _, err := ExecuteAuthorizeAdmin(ctx, LookupMemberInput{MemberID: input.AdminID, Code: input.AdminCode}, lookup); err != nil {
		return SendLoginLinkResult{}, err
	}

	m, err := deps.MemberStore.GetByID(ctx, input.MemberID)
	if errors.Is(err, memberStore.ErrNotFound) {
		return SendLoginLinkResult{}, ErrMemberNotFound
	}
	if err != nil {
		return SendLoginLinkResult{}, fmt.Errorf("get member: %w", err)
	}
	if m.Email == "" {
		return SendLoginLinkResult{}, ErrNoEmail
	}
	if !m.IsActive() {
		return SendLoginLinkResult{}, ErrMemberInactive
	}

	code, err := deps.GenerateCode()
	if err != nil {
		return SendLoginLinkResult{}, fmt.Errorf("generate code: %w", err)
	}
	link, err := BuildLoginLink(deps.ConsoleURL, session.Credentials{Identifier: m.ID, Code: code}, input.Next, input.Action)
	if err != nil {
		return SendLoginLinkResult{}, err
	}

	body := deps.Translator.Translate(m.Language, "login_link_body", map[string]any{"Name": m.Name, "Link": link})
	var html bytes.Buffer
	if err := deps.Markdown.Convert([]byte(body), &html); err != nil {
		return SendLoginLinkResult{}, fmt.Errorf("render login link: %w", err)
	}

	previous := m.CodeHash
	if err := m.SetCode(code); err != nil {
		return SendLoginLinkResult{}, err
	}
	if err := deps.MemberStore.Save(ctx, m); err != nil {
		return SendLoginLinkResult{}, err
	}

	sent, err := deps.Sender.Send(ctx, email.Message{
		To:       []string{m.Email},
		Subject:  deps.Translator.Translate(m.Language, "login_link_subject", nil),
		HTML:     html.String(),
		Text:     body,
		Category: CategoryLoginLink,
	})
	if err != nil {
		// The new code was never delivered, so the old one must keep working.
		m.CodeHash = previous
		if restoreErr := deps.MemberStore.Save(ctx, m); restoreErr != nil {
			slog.Error("directory_event", "event", "code_restore_failed", "member_id", m.ID, "error", restoreErr.Error())
		}
		return SendLoginLinkResult{}, fmt.Errorf("send login link: %w", err)
	}

	slog.Info("directory_event", "event", "login_link_sent", "member_id", m.ID, "admin_id", input.AdminID, "message_id", sent.MessageID)
	return SendLoginLinkResult{MemberID: m.ID, MessageID: sent.MessageID}, nil
}
