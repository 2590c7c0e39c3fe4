package member

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"console/internal/domain/locale"
	"console/internal/domain/session"
)

// Max length constants for user-editable fields.
const (
	MaxNameLength = 100
	MinCodeLength = 8

	codeBytes = 12
)

// Business rule constants
const (
	StatusActive  = "active"
	StatusPaused  = "paused"
	StatusDeleted = "deleted"
)

// Domain errors
var (
	ErrEmptyName     = errors.New("member name cannot be empty")
	ErrInvalidEmail  = errors.New("member email must be valid")
	ErrInvalidType   = errors.New("type must be one of: admin, member, guest")
	ErrInvalidLocale = errors.New("language must be one of: fr, en, cat")
	ErrInvalidStatus = errors.New("status must be 'active', 'paused', or 'deleted'")
	ErrCodeTooShort  = errors.New("secret code must be at least 8 characters")
	ErrWrongCode     = errors.New("incorrect secret code")
)

// Member is a directory entry: the identity the console resolves a
// credential pair to.
type Member struct {
	ID       string
	Name     string
	Email    string
	Type     string
	Language string
	Status   string
	CodeHash string
}

// Validate checks if the Member has valid data.
// PRE: Member struct is initialized
// POST: Returns error if validation fails, nil otherwise
// INVARIANT: Type is a session role, Language is a supported locale
func (m *Member) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return ErrEmptyName
	}
	if len(m.Name) > MaxNameLength {
		return errors.New("member name cannot exceed 100 characters")
	}
	if m.Email != "" && !strings.Contains(m.Email, "@") {
		return ErrInvalidEmail
	}
	if !session.IsValidRole(m.Type) {
		return ErrInvalidType
	}
	if !locale.IsSupported(m.Language) {
		return ErrInvalidLocale
	}
	if m.Status != StatusActive && m.Status != StatusPaused && m.Status != StatusDeleted {
		return ErrInvalidStatus
	}
	return nil
}

// SetCode hashes and stores a secret code.
// PRE: plaintext is at least MinCodeLength characters
// POST: CodeHash is set to a bcrypt hash
func (m *Member) SetCode(plaintext string) error {
	if len(plaintext) < MinCodeLength {
		return ErrCodeTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.CodeHash = string(hash)
	return nil
}

// NewCode returns a random secret code suitable for a login link.
// POST: len(result) == 2*codeBytes, hex encoded
func NewCode() (string, error) {
	b := make([]byte, codeBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// CheckCode verifies a plaintext secret code against the stored hash.
// INVARIANT: Member fields are not mutated
func (m *Member) CheckCode(plaintext string) error {
	if m.CodeHash == "" || plaintext == "" {
		return ErrWrongCode
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.CodeHash), []byte(plaintext)); err != nil {
		return ErrWrongCode
	}
	return nil
}

// IsAdmin returns true if the member has the admin type.
// INVARIANT: Member fields are not mutated
func (m *Member) IsAdmin() bool {
	return m.Type == session.RoleAdmin
}

// IsActive returns true if the member may sign in.
// INVARIANT: Member fields are not mutated
func (m *Member) IsActive() bool {
	return m.Status == StatusActive
}
