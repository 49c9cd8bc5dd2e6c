// Package auth implements the login gate: credential verification, in-memory
// sessions and the signed tokens that carry them.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Role is the role granted to an authenticated user.
type Role string

const (
	RoleAdmin    Role = "Admin"
	RoleCustomer Role = "Customer"
)

// ErrInvalidCredentials is returned for an unknown user or a wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Verifier checks a username and password pair.
type Verifier interface {
	Verify(username, password string) (Role, error)
}

// Credential is one entry of the static user table. Password holds either
// the plain secret or a bcrypt hash (prefix "$2").
type Credential struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     Role   `yaml:"role"`
}

// DefaultCredentials is the built-in user table.
func DefaultCredentials() []Credential {
	return []Credential{
		{Username: "admin", Password: "admin2025", Role: RoleAdmin},
		{Username: "customer", Password: "cust2025", Role: RoleCustomer},
	}
}

// StaticVerifier verifies against a fixed user table.
type StaticVerifier struct {
	users map[string]Credential
}

// NewStaticVerifier builds a verifier from creds. Duplicate usernames and
// empty fields are rejected.
func NewStaticVerifier(creds []Credential) (*StaticVerifier, error) {
	users := make(map[string]Credential, len(creds))
	for _, c := range creds {
		if c.Username == "" || c.Password == "" || c.Role == "" {
			return nil, fmt.Errorf("credential %q: username, password and role are required", c.Username)
		}
		if _, dup := users[c.Username]; dup {
			return nil, fmt.Errorf("credential %q: duplicate username", c.Username)
		}
		users[c.Username] = c
	}
	return &StaticVerifier{users: users}, nil
}

// Verify returns the role of username when password matches.
func (v *StaticVerifier) Verify(username, password string) (Role, error) {
	c, ok := v.users[username]
	if !ok {
		return "", ErrInvalidCredentials
	}
	if isBcrypt(c.Password) {
		if err := bcrypt.CompareHashAndPassword([]byte(c.Password), []byte(password)); err != nil {
			if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
				return "", ErrInvalidCredentials
			}
			return "", fmt.Errorf("verify %q: %w", username, err)
		}
		return c.Role, nil
	}
	if subtle.ConstantTimeCompare([]byte(c.Password), []byte(password)) != 1 {
		return "", ErrInvalidCredentials
	}
	return c.Role, nil
}

// Usernames returns the sorted usernames offered by the login selector.
func (v *StaticVerifier) Usernames() []string {
	names := make([]string, 0, len(v.users))
	for name := range v.users {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func isBcrypt(s string) bool {
	return strings.HasPrefix(s, "$2")
}
