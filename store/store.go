// Package store implements the realtime message store a chat room is backed by.
//
// Every backend offers the same two primitives: Append, which stores a record
// under a path with a store-assigned id, and Subscribe, which delivers the full
// set of records under a path, first the current state and then again after
// every write under that path.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/klipach/chatroom/contract"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrClosed           = errors.New("store closed")
	ErrEmptyPath        = errors.New("empty store path")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("store unavailable")
)

var validate = validator.New()

// Snapshot is the complete set of records under Path keyed by record id.
// A snapshot with a non-nil Err is the last one of its subscription.
type Snapshot struct {
	Path    string
	Records map[string]contract.Message
	Err     error
}

type Store interface {
	// Append stores msg under path and returns the id assigned to it.
	Append(ctx context.Context, path string, msg contract.Message) (string, error)
	// Subscribe streams snapshots of path until ctx is done, then closes the
	// channel.
	Subscribe(ctx context.Context, path string) (<-chan Snapshot, error)
	Close() error
}

func checkAppend(path string, msg contract.Message) error {
	if path == "" {
		return ErrEmptyPath
	}
	if err := validate.Struct(msg); err != nil {
		return fmt.Errorf("invalid message: %w", err)
	}
	return nil
}

// classify maps transport errors of the hosted backends onto the store errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	switch status.Code(err) {
	case codes.PermissionDenied, codes.Unauthenticated:
		return fmt.Errorf("%w: %w", ErrPermissionDenied, err)
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
