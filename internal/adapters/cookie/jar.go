// Package cookie reads and writes the persisted credential pair.
package cookie

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

const (
	// NameMember and NameCode are the cookie names of the persisted pair.
	NameMember = "member"
	NameCode   = "code"

	// DefaultMaxAge keeps the pair for thirty days.
	DefaultMaxAge = 30 * 24 * time.Hour
)

var ErrEmptyPair = errors.New("identifier and code are both required")

// Jar owns the credential cookies. With a hash key the values are signed
// with securecookie; without one they are written and read as plain text.
type Jar struct {
	codec  *securecookie.SecureCookie
	secure bool
	maxAge time.Duration
}

// NewJar creates a cookie jar.
// PRE: hashKey is empty or at least 32 bytes
// POST: Returns a jar; signing is enabled iff hashKey is non-empty
func NewJar(hashKey []byte, secure bool) *Jar {
	j := &Jar{secure: secure, maxAge: DefaultMaxAge}
	if len(hashKey) > 0 {
		j.codec = securecookie.New(hashKey, nil)
		j.codec.MaxAge(int(DefaultMaxAge.Seconds()))
	}
	return j
}

// Signed reports whether cookie values are signed.
func (j *Jar) Signed() bool {
	return j.codec != nil
}

// Store returns the read-only view of the cookies sent with r.
func (j *Jar) Store(r *http.Request) CredentialStore {
	return CredentialStore{r: r, codec: j.codec}
}

// Remember persists the credential pair.
// PRE: identifier and code are non-empty
// POST: Both cookies are set on w with the same lifetime
func (j *Jar) Remember(w http.ResponseWriter, identifier, code string) error {
	if identifier == "" || code == "" {
		return ErrEmptyPair
	}
	for _, kv := range [][2]string{{NameMember, identifier}, {NameCode, code}} {
		value, err := j.encode(kv[0], kv[1])
		if err != nil {
			return fmt.Errorf("encode cookie %s: %w", kv[0], err)
		}
		http.SetCookie(w, j.cookie(kv[0], value, int(j.maxAge.Seconds())))
	}
	return nil
}

// Forget expires both cookies.
func (j *Jar) Forget(w http.ResponseWriter) {
	http.SetCookie(w, j.cookie(NameMember, "", -1))
	http.SetCookie(w, j.cookie(NameCode, "", -1))
}

func (j *Jar) encode(name, value string) (string, error) {
	if j.codec == nil {
		return value, nil
	}
	return j.codec.Encode(name, value)
}

func (j *Jar) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   j.secure,
		// Lax so the pair is still sent when a mailed link opens the console.
		SameSite: http.SameSiteLaxMode,
	}
}

// CredentialStore is the key-value view over one request's cookies.
type CredentialStore struct {
	r     *http.Request
	codec *securecookie.SecureCookie
}

// Get returns the value of the named cookie.
// Absent, empty and badly signed cookies all read as ("", false).
func (s CredentialStore) Get(key string) (string, bool) {
	if s.r == nil {
		return "", false
	}
	c, err := s.r.Cookie(key)
	if err != nil || c.Value == "" {
		return "", false
	}
	if s.codec == nil {
		return c.Value, true
	}
	var value string
	if err := s.codec.Decode(key, c.Value, &value); err != nil || value == "" {
		return "", false
	}
	return value, true
}
