package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"cloud.google.com/go/firestore"
	"github.com/klipach/chatroom/contract"
	"google.golang.org/api/iterator"
)

// messagesCollection holds the records of a path that names a document,
// e.g. "privateChats/alice_bob" is stored at "privateChats/alice_bob/messages".
const messagesCollection = "messages"

// Firestore is the hosted backend. Add assigns document ids server side and
// query snapshot listeners deliver the full collection on every change.
type Firestore struct {
	client *firestore.Client
	log    *slog.Logger
}

func OpenFirestore(ctx context.Context, projectID string, log *slog.Logger) (*Firestore, error) {
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}
	return NewFirestore(client, log), nil
}

func NewFirestore(client *firestore.Client, log *slog.Logger) *Firestore {
	return &Firestore{client: client, log: log}
}

func (f *Firestore) collection(path string) (*firestore.CollectionRef, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	col := f.client.Collection(collectionPath(path))
	if col == nil {
		return nil, fmt.Errorf("invalid collection path %q", path)
	}
	return col, nil
}

func (f *Firestore) Append(ctx context.Context, path string, msg contract.Message) (string, error) {
	if err := checkAppend(path, msg); err != nil {
		return "", err
	}
	col, err := f.collection(path)
	if err != nil {
		return "", err
	}
	ref, _, err := col.Add(ctx, msg)
	if err != nil {
		return "", classify(err)
	}
	return ref.ID, nil
}

func (f *Firestore) Subscribe(ctx context.Context, path string) (<-chan Snapshot, error) {
	col, err := f.collection(path)
	if err != nil {
		return nil, err
	}

	out := make(chan Snapshot)
	go func() {
		defer close(out)
		it := col.Snapshots(ctx)
		defer it.Stop()
		for {
			qs, err := it.Next()
			if ctx.Err() != nil || errors.Is(err, iterator.Done) {
				return
			}
			snap := Snapshot{Path: path}
			if err != nil {
				snap.Err = classify(err)
			} else {
				snap.Records, snap.Err = f.decode(qs.Documents)
			}
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
			if snap.Err != nil {
				return
			}
		}
	}()
	return out, nil
}

func (f *Firestore) decode(docs *firestore.DocumentIterator) (map[string]contract.Message, error) {
	all, err := docs.GetAll()
	if err != nil {
		return nil, classify(err)
	}
	records := make(map[string]contract.Message, len(all))
	for _, doc := range all {
		var msg contract.Message
		if err := doc.DataTo(&msg); err != nil {
			f.log.Warn("skipping unreadable document", slog.String("doc", doc.Ref.Path), slog.String(errorMsgLogKey, err.Error()))
			continue
		}
		msg.ID = doc.Ref.ID
		records[msg.ID] = msg
	}
	return records, nil
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

// collectionPath turns a path naming a document into its messages collection.
func collectionPath(path string) string {
	path = strings.Trim(path, "/")
	if strings.Count(path, "/")%2 == 1 {
		return path + "/" + messagesCollection
	}
	return path
}
