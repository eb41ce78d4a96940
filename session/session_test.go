package session

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCurrentUser(t *testing.T) {
	tests := []struct {
		name    string
		session Session
		wantOK  bool
		wantErr error
	}{
		{name: "zero value", session: Session{}, wantOK: false, wantErr: ErrUnauthenticated},
		{name: "empty id", session: New(User{Email: "a@b.c"}), wantOK: false, wantErr: ErrUnauthenticated},
		{name: "signed in", session: New(User{ID: "u1", Email: "a@b.c"}), wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, ok := tt.session.CurrentUser()
			req.Equal(tt.wantOK, ok)

			_, err := tt.session.Require()
			req.ErrorIs(err, tt.wantErr)
		})
	}
}

func TestLabel(t *testing.T) {
	req := require.New(t)
	req.Equal("Anon", User{ID: "u1"}.Label())
	req.Equal("alice@example.com", User{ID: "u1", Email: "alice@example.com"}.Label())
}
