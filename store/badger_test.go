package store

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openBadger(t *testing.T, dir string) *Badger {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	return NewBadger(db, slog.Default())
}

func TestBadger(t *testing.T) {
	s := openBadger(t, t.TempDir())
	defer s.Close()
	testStore(t, s)
}

func TestBadgerSurvivesReopen(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	ctx := context.Background()

	s := openBadger(t, dir)
	first, err := s.Append(ctx, "publicChat", message("alice", "one", 1))
	req.NoError(err)
	second, err := s.Append(ctx, "publicChat", message("bob", "two", 2))
	req.NoError(err)
	req.NoError(s.Close())

	s = openBadger(t, dir)
	defer s.Close()
	records, err := s.read(ctx, "publicChat")
	req.NoError(err)
	req.Len(records, 2)
	req.Equal("one", records[first].Text)
	req.Equal("two", records[second].Text)
}

func TestBadgerPrefixesDoNotOverlap(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	s := openBadger(t, t.TempDir())
	defer s.Close()

	_, err := s.Append(ctx, "privateChats/a_b", message("a", "short", 1))
	req.NoError(err)
	_, err = s.Append(ctx, "privateChats/a_bc", message("a", "long", 1))
	req.NoError(err)

	records, err := s.read(ctx, "privateChats/a_b")
	req.NoError(err)
	req.Len(records, 1)
}

func TestBadgerSkipsUnreadableRecord(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	var logs bytes.Buffer
	s := openBadger(t, t.TempDir())
	defer s.Close()
	s.log = slog.New(slog.NewJSONHandler(&logs, nil))

	_, err := s.Append(ctx, "publicChat", message("alice", "fine", 1))
	req.NoError(err)
	req.NoError(s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(append(pathPrefix("publicChat"), "broken"...), []byte("{not json"))
	}))

	records, err := s.read(ctx, "publicChat")
	req.NoError(err)
	req.Len(records, 1)
	req.Contains(logs.String(), `"errorMsg":`)
	req.Contains(logs.String(), "skipping unreadable record")
}
