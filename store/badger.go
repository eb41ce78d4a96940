package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/klipach/chatroom/contract"
)

// Badger persists records in an embedded BadgerDB. Keys are laid out as
// "msg:{path}\x00{id}" and ids are UUIDv7, so a prefix scan returns a room in
// append order.
type Badger struct {
	db     *badger.DB
	log    *slog.Logger
	broker *broker
}

func OpenBadger(dir string, log *slog.Logger) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("opening badger at %s: %w", dir, err)
	}
	return NewBadger(db, log), nil
}

func NewBadger(db *badger.DB, log *slog.Logger) *Badger {
	return &Badger{db: db, log: log, broker: newBroker()}
}

func (b *Badger) Append(_ context.Context, path string, msg contract.Message) (string, error) {
	if err := checkAppend(path, msg); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	msg.ID = id.String()

	value, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(messageKey(path, msg.ID), value)
	})
	if err != nil {
		return "", err
	}
	b.broker.notify(path)
	return msg.ID, nil
}

func (b *Badger) Subscribe(ctx context.Context, path string) (<-chan Snapshot, error) {
	return follow(ctx, b.broker, path, b.read)
}

func (b *Badger) read(_ context.Context, path string) (map[string]contract.Message, error) {
	records := make(map[string]contract.Message)
	prefix := pathPrefix(path)
	err := b.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var msg contract.Message
			err := item.Value(func(value []byte) error {
				return json.Unmarshal(value, &msg)
			})
			if err != nil {
				b.log.Warn("skipping unreadable record", slog.String("key", string(item.Key())), slog.String(errorMsgLogKey, err.Error()))
				continue
			}
			records[msg.ID] = msg
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, badger.ErrDBClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return records, nil
}

func (b *Badger) Close() error {
	b.broker.close()
	return b.db.Close()
}

func pathPrefix(path string) []byte {
	return []byte("msg:" + path + "\x00")
}

func messageKey(path, id string) []byte {
	return append(pathPrefix(path), id...)
}
