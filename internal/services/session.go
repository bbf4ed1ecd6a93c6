package services

import (
	"errors"

	"github.com/huangang/thesisdesk/internal/models"
	"github.com/huangang/thesisdesk/internal/utils"
)

var ErrNotAuthorized = errors.New("not authorized")

// Session is the signed-in user as seen by handlers and services.
type Session struct {
	UserID     string      `json:"id"`
	Role       models.Role `json:"role"`
	Email      string      `json:"email"`
	FirstName  string      `json:"firstName"`
	MiddleName *string     `json:"middleName"`
	LastName   string      `json:"lastName"`
}

// SessionFromClaims builds a Session from verified token claims.
func SessionFromClaims(c *utils.Claims) *Session {
	s := &Session{
		UserID:    c.UserID,
		Role:      models.Role(c.Role),
		Email:     c.Email,
		FirstName: c.FirstName,
		LastName:  c.LastName,
	}
	if c.MiddleName != "" {
		middle := c.MiddleName
		s.MiddleName = &middle
	}
	return s
}

// IdentityFor is the token payload for u.
func IdentityFor(u *models.User) utils.Identity {
	id := utils.Identity{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      string(u.Role),
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	if u.MiddleName != nil {
		id.MiddleName = *u.MiddleName
	}
	return id
}

// HasRole reports whether the session's role equals one of roles exactly.
// Roles do not inherit from each other: ADMIN only passes where it is listed.
func HasRole(s *Session, roles ...models.Role) bool {
	if s == nil {
		return false
	}
	for _, r := range roles {
		if s.Role == r {
			return true
		}
	}
	return false
}

// RequireRole returns ErrNotAuthorized unless HasRole holds.
func RequireRole(s *Session, roles ...models.Role) error {
	if !HasRole(s, roles...) {
		return ErrNotAuthorized
	}
	return nil
}
