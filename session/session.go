// Package session carries the authenticated identity of a chat client.
// A Session is passed explicitly to whatever needs it; there is no
// process-wide current user.
package session

import "errors"

// anonymousLabel is shown for users without an email.
const anonymousLabel = "Anon"

var ErrUnauthenticated = errors.New("unauthenticated")

// User is the identity supplied by the session provider.
type User struct {
	ID    string
	Email string
}

// Label returns the display label used on public room messages.
func (u User) Label() string {
	if u.Email == "" {
		return anonymousLabel
	}
	return u.Email
}

// Session is immutable for its lifetime. The zero value has no user.
type Session struct {
	user *User
}

func New(u User) Session {
	return Session{user: &u}
}

// CurrentUser reports the signed in user, if any.
func (s Session) CurrentUser() (User, bool) {
	if s.user == nil || s.user.ID == "" {
		return User{}, false
	}
	return *s.user, true
}

// Require returns the current user or ErrUnauthenticated.
func (s Session) Require() (User, error) {
	u, ok := s.CurrentUser()
	if !ok {
		return User{}, ErrUnauthenticated
	}
	return u, nil
}
