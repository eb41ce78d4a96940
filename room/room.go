// Package room derives store addresses for chat rooms.
//
// The public room lives at a fixed path. A private room between two users is
// addressed by sorting both ids and joining them with Separator, so both
// participants land on the same path without a room-creation step.
package room

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klipach/chatroom/session"
)

const (
	Separator = "_"

	publicPath  = "publicChat"
	privateRoot = "privateChats"
)

var (
	ErrEmptyIdentifier   = errors.New("empty user identifier")
	ErrInvalidIdentifier = errors.New("user identifier contains a reserved character")
	ErrUnknownPath       = errors.New("unknown room path")
)

// Address identifies a room in the store. The zero value is the public room.
type Address struct {
	participants [2]string
	private      bool
}

// Public returns the address shared by all users.
func Public() Address {
	return Address{}
}

// Private addresses the conversation between the session's user and remoteID.
// It fails with session.ErrUnauthenticated when nobody is signed in.
func Private(s session.Session, remoteID string) (Address, error) {
	local, err := s.Require()
	if err != nil {
		return Address{}, err
	}
	return Between(local.ID, remoteID)
}

// Between addresses the conversation of two users. Between(a, a) is the
// personal notes room of a.
func Between(a, b string) (Address, error) {
	if err := validateID(a); err != nil {
		return Address{}, err
	}
	if err := validateID(b); err != nil {
		return Address{}, err
	}
	if b < a {
		a, b = b, a
	}
	return Address{participants: [2]string{a, b}, private: true}, nil
}

// Key is the canonical conversation key of a pair of ids.
func Key(a, b string) (string, error) {
	addr, err := Between(a, b)
	if err != nil {
		return "", err
	}
	return addr.Key(), nil
}

// Parse reverses Address.Path.
func Parse(path string) (Address, error) {
	path = strings.Trim(path, "/")
	if path == publicPath {
		return Public(), nil
	}
	key, ok := strings.CutPrefix(path, privateRoot+"/")
	if !ok {
		return Address{}, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	a, b, ok := strings.Cut(key, Separator)
	if !ok {
		return Address{}, fmt.Errorf("%w: %q", ErrUnknownPath, path)
	}
	return Between(a, b)
}

func (a Address) IsPrivate() bool {
	return a.private
}

// Key returns the conversation key, empty for the public room.
func (a Address) Key() string {
	if !a.private {
		return ""
	}
	return a.participants[0] + Separator + a.participants[1]
}

// Path is the store path holding the room's messages.
func (a Address) Path() string {
	if !a.private {
		return publicPath
	}
	return privateRoot + "/" + a.Key()
}

// Participants returns the sorted pair, nil for the public room.
func (a Address) Participants() []string {
	if !a.private {
		return nil
	}
	return []string{a.participants[0], a.participants[1]}
}

// Peer returns the other participant of a private room as seen by localID.
// It returns "" for the public room or when localID is not a participant.
func (a Address) Peer(localID string) string {
	switch {
	case !a.private:
		return ""
	case a.participants[0] == localID:
		return a.participants[1]
	case a.participants[1] == localID:
		return a.participants[0]
	}
	return ""
}

func (a Address) String() string {
	return a.Path()
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrEmptyIdentifier
	}
	if strings.ContainsAny(id, Separator+"/") {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, id)
	}
	return nil
}
