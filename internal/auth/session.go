package auth

import (
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"

	"github.com/se-atlas/server/internal/service"
)

// Session is the per-user dashboard state.
type Session struct {
	ID            string
	Username      string
	Role          Role
	Authenticated bool
	Selection     service.Selection
	Drawn         orb.Geometry
	CreatedAt     time.Time
	LastSeen      time.Time
}

// NewSession returns an unauthenticated session with an empty selection and
// no drawing.
func NewSession() *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		LastSeen:  now,
	}
}

// Login marks the session authenticated as username with role.
func (s *Session) Login(username string, role Role) {
	s.Username = username
	s.Role = role
	s.Authenticated = true
}

// HasDrawing reports whether a drawn polygon is stored.
func (s *Session) HasDrawing() bool {
	return s.Drawn != nil
}

func (s *Session) clone() *Session {
	c := *s
	return &c
}
