package orchestrators

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	memberStore "console/internal/adapters/storage/member"
	"console/internal/application/listutil"
	"console/internal/domain/locale"
	"console/internal/domain/member"
	"console/internal/domain/session"
)

var (
	ErrMemberNotFound = errors.New("member not found")
	ErrMemberInactive = errors.New("member is not active")
	ErrNotAdmin       = errors.New("admin privileges required")
)

// MemberStoreForDirectory defines the store interface needed by the directory orchestrators.
type MemberStoreForDirectory interface {
	GetByID(ctx context.Context, id string) (member.Member, error)
	Save(ctx context.Context, m member.Member) error
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context, filter memberStore.ListFilter) (int, error)
	List(ctx context.Context, filter memberStore.ListFilter) ([]member.Member, error)
}

// --- Lookup ---

// LookupMemberInput is a credential pair presented to the directory.
type LookupMemberInput struct {
	MemberID string
	Code     string
}

// LookupMemberDeps holds dependencies for LookupMember.
type LookupMemberDeps struct {
	MemberStore MemberStoreForDirectory
}

// ExecuteLookupMember resolves a credential pair to a directory member.
// PRE: none
// POST: Returns the member when the code matches; ErrMemberNotFound,
// member.ErrWrongCode or ErrMemberInactive otherwise
func ExecuteLookupMember(ctx context.Context, input LookupMemberInput, deps LookupMemberDeps) (member.Member, error) {
	if input.MemberID == "" {
		return member.Member{}, ErrMemberNotFound
	}
	m, err := deps.MemberStore.GetByID(ctx, input.MemberID)
	if errors.Is(err, memberStore.ErrNotFound) {
		return member.Member{}, ErrMemberNotFound
	}
	if err != nil {
		return member.Member{}, fmt.Errorf("lookup member: %w", err)
	}
	if err := m.CheckCode(input.Code); err != nil {
		slog.Info("directory_event", "event", "code_rejected", "member_id", m.ID)
		return member.Member{}, err
	}
	if !m.IsActive() {
		return member.Member{}, ErrMemberInactive
	}
	return m, nil
}

// ExecuteAuthorizeAdmin resolves a credential pair and requires the admin type.
// POST: Returns the admin member or ErrNotAdmin when the pair is valid but not an admin
func ExecuteAuthorizeAdmin(ctx context.Context, input LookupMemberInput, deps LookupMemberDeps) (member.Member, error) {
	m, err := ExecuteLookupMember(ctx, input, deps)
	if err != nil {
		return member.Member{}, err
	}
	if !m.IsAdmin() {
		return member.Member{}, ErrNotAdmin
	}
	return m, nil
}

// GetMemberInput carries the acting admin's pair and the member to read.
type GetMemberInput struct {
	AdminID   string
	AdminCode string
	MemberID  string
}

// ExecuteGetMember reads a member on behalf of an admin.
// PRE: AdminID/AdminCode identify an active admin
// POST: Returns the member; ErrMemberNotFound if it does not exist, storage
// errors are wrapped
func ExecuteGetMember(ctx context.Context, input GetMemberInput, deps LookupMemberDeps) (member.Member, error) {
	if _, err := ExecuteAuthorizeAdmin(ctx, LookupMemberInput{MemberID: input.AdminID, Code: input.AdminCode}, deps); err != nil {
		return member.Member{}, err
	}
	m, err := deps.MemberStore.GetByID(ctx, input.MemberID)
	if errors.Is(err, memberStore.ErrNotFound) {
		return member.Member{}, ErrMemberNotFound
	}
	if err != nil {
		return member.Member{}, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// --- Delete ---

// DeleteMemberInput carries the acting admin's pair and the target.
type DeleteMemberInput struct {
	AdminID   string
	AdminCode string
	MemberID  string
}

// ErrSelfDelete prevents an admin from deleting their own entry.
var ErrSelfDelete = errors.New("an admin cannot delete themselves")

// ExecuteDeleteMember removes a member on behalf of an admin.
// PRE: AdminID/AdminCode identify an active admin
// POST: Member removed; ErrMemberNotFound if it did not exist
func ExecuteDeleteMember(ctx context.Context, input DeleteMemberInput, deps LookupMemberDeps) error {
	admin, err := ExecuteAuthorizeAdmin(ctx, LookupMemberInput{MemberID: input.AdminID, Code: input.AdminCode}, deps)
	if err != nil {
		return err
	}
	if input.MemberID == admin.ID {
		return ErrSelfDelete
	}
	if err := deps.MemberStore.Delete(ctx, input.MemberID); err != nil {
		if errors.Is(err, memberStore.ErrNotFound) {
			return ErrMemberNotFound
		}
		return err
	}
	slog.Info("directory_event", "event", "member_deleted", "member_id", input.MemberID, "admin_id", admin.ID)
	return nil
}

// --- List ---

// ListMembersInput carries the acting admin's pair and the list query.
type ListMembersInput struct {
	AdminID   string
	AdminCode string
	Query     listutil.Query
}

// ListMembersResult is one page of the directory.
type ListMembersResult struct {
	Members []member.Member
	Page    listutil.Page
}

// MemberListSort and MemberListFilters are the query keys the member list accepts.
var (
	MemberListSort    = memberStore.SortColumns
	MemberListFilters = []string{"type", "status"}
)

// ExecuteListMembers returns one page of members on behalf of an admin.
// PRE: AdminID/AdminCode identify an active admin
// POST: Page.Total counts every member matching the filters; Members holds
// at most Query.PerPage of them
func ExecuteListMembers(ctx context.Context, input ListMembersInput, deps LookupMemberDeps) (ListMembersResult, error) {
	if _, err := ExecuteAuthorizeAdmin(ctx, LookupMemberInput{MemberID: input.AdminID, Code: input.AdminCode}, deps); err != nil {
		return ListMembersResult{}, err
	}

	q := input.Query
	filter := memberStore.ListFilter{
		Type:   q.Filters["type"],
		Status: q.Filters["status"],
		Search: q.Search,
		Sort:   q.Sort,
		Desc:   q.Dir == "desc",
	}
	total, err := deps.MemberStore.Count(ctx, filter)
	if err != nil {
		return ListMembersResult{}, fmt.Errorf("count members: %w", err)
	}

	page := listutil.NewPage(q.Page, q.PerPage, total)
	filter.Limit = page.PerPage
	filter.Offset = (page.Number - 1) * page.PerPage
	members, err := deps.MemberStore.List(ctx, filter)
	if err != nil {
		return ListMembersResult{}, fmt.Errorf("list members: %w", err)
	}
	return ListMembersResult{Members: members, Page: page}, nil
}

// --- Seed ---

// SeedAdminInput describes the first admin of an empty directory.
type SeedAdminInput struct {
	Name     string
	Email    string
	Language string
}

// SeedAdminDeps holds dependencies for SeedAdmin.
type SeedAdminDeps struct {
	MemberStore  MemberStoreForDirectory
	GenerateID   func() string
	GenerateCode func() (string, error)
}

// SeedAdminResult reports the seeded admin. Code is the plaintext secret,
// only available at creation time.
type SeedAdminResult struct {
	Created bool
	Member  member.Member
	Code    string
}

// ExecuteSeedAdmin creates an admin when the directory has none.
// POST: Exactly one admin exists after a successful call on an empty directory;
// a directory with an admin is left unchanged
func ExecuteSeedAdmin(ctx context.Context, input SeedAdminInput, deps SeedAdminDeps) (SeedAdminResult, error) {
	n, err := deps.MemberStore.Count(ctx, memberStore.ListFilter{Type: session.RoleAdmin})
	if err != nil {
		return SeedAdminResult{}, fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return SeedAdminResult{}, nil
	}

	code, err := deps.GenerateCode()
	if err != nil {
		return SeedAdminResult{}, fmt.Errorf("generate code: %w", err)
	}
	m := member.Member{
		ID:       deps.GenerateID(),
		Name:     input.Name,
		Email:    input.Email,
		Type:     session.RoleAdmin,
		Language: locale.Normalize(input.Language),
		Status:   member.StatusActive,
	}
	if err := m.Validate(); err != nil {
		return SeedAdminResult{}, err
	}
	if err := m.SetCode(code); err != nil {
		return SeedAdminResult{}, err
	}
	if err := deps.MemberStore.Save(ctx, m); err != nil {
		return SeedAdminResult{}, err
	}

	slog.Info("directory_event", "event", "admin_seeded", "member_id", m.ID)
	return SeedAdminResult{Created: true, Member: m, Code: code}, nil
}
