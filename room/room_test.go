package room

import (
	"testing"

	"github.com/klipach/chatroom/session"
	"github.com/stretchr/testify/require"
)

func TestKeyIsSymmetric(t *testing.T) {
	pairs := [][2]string{
		{"alice", "bob"},
		{"bob", "alice"},
		{"USERB", "userA"},
		{"Zed", "abe"},
		{"u1", "u10"},
		{"same", "same"},
	}

	for _, p := range pairs {
		ab, errAB := Key(p[0], p[1])
		ba, errBA := Key(p[1], p[0])
		require.NoError(t, errAB)
		require.NoError(t, errBA)
		require.Equal(t, ab, ba, "Key(%q, %q)", p[0], p[1])
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		name        string
		a, b        string
		expectedKey string
		expectedErr error
	}{
		{name: "sorted", a: "alice", b: "bob", expectedKey: "alice_bob"},
		{name: "reversed", a: "bob", b: "alice", expectedKey: "alice_bob"},
		{name: "byte order", a: "b", b: "B", expectedKey: "B_b"},
		{name: "self chat", a: "alice", b: "alice", expectedKey: "alice_alice"},
		{name: "empty local", a: "", b: "bob", expectedErr: ErrEmptyIdentifier},
		{name: "blank remote", a: "alice", b: "  ", expectedErr: ErrEmptyIdentifier},
		{name: "separator in id", a: "al_ice", b: "bob", expectedErr: ErrInvalidIdentifier},
		{name: "slash in id", a: "alice", b: "bo/b", expectedErr: ErrInvalidIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			key, err := Key(tt.a, tt.b)
			req.ErrorIs(err, tt.expectedErr)
			req.Equal(tt.expectedKey, key)
		})
	}
}

func TestPrivateRequiresSession(t *testing.T) {
	req := require.New(t)

	_, err := Private(session.Session{}, "bob")
	req.ErrorIs(err, session.ErrUnauthenticated)

	addr, err := Private(session.New(session.User{ID: "bob"}), "alice")
	req.NoError(err)
	req.True(addr.IsPrivate())
	req.Equal("privateChats/alice_bob", addr.Path())
	req.Equal([]string{"alice", "bob"}, addr.Participants())
	req.Equal("alice", addr.Peer("bob"))
	req.Equal("bob", addr.Peer("alice"))
	req.Equal("", addr.Peer("carol"))
}

func TestPublic(t *testing.T) {
	req := require.New(t)
	addr := Public()
	req.False(addr.IsPrivate())
	req.Equal("publicChat", addr.Path())
	req.Equal("", addr.Key())
	req.Nil(addr.Participants())
	req.Equal("", addr.Peer("alice"))
}

func TestParse(t *testing.T) {
	tests := []struct {
		path        string
		expected    Address
		expectedErr error
	}{
		{path: "publicChat", expected: Public()},
		{path: "/publicChat/", expected: Public()},
		{path: "privateChats/alice_bob", expected: mustBetween(t, "alice", "bob")},
		{path: "privateChats/bob_alice", expected: mustBetween(t, "alice", "bob")},
		{path: "privateChats/alice", expectedErr: ErrUnknownPath},
		{path: "users/alice", expectedErr: ErrUnknownPath},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := require.New(t)
			addr, err := Parse(tt.path)
			req.ErrorIs(err, tt.expectedErr)
			req.Equal(tt.expected, addr)
		})
	}
}

func mustBetween(t *testing.T, a, b string) Address {
	t.Helper()
	addr, err := Between(a, b)
	require.NoError(t, err)
	return addr
}
