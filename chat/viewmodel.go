// Package chat holds the view model a chat screen is driven by.
//
// A ViewModel follows one room at a time. Every snapshot from the store
// replaces its message list with a freshly ordered one, and Send appends to
// the store without waiting for the write to be acknowledged. The sender sees
// its own message once the store echoes it back, like everybody else.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/klipach/chatroom/contract"
	"github.com/klipach/chatroom/log"
	"github.com/klipach/chatroom/room"
	"github.com/klipach/chatroom/session"
	"github.com/klipach/chatroom/store"
)

const (
	errorMsgLogField = "errorMsg"
	roomLogField     = "room"
	userIDLogField   = "userID"
	messageIDField   = "messageID"
)

var (
	ErrNotParticipant     = errors.New("user is not a participant of the room")
	ErrSubscriptionClosed = errors.New("subscription closed by the store")
)

type State int

const (
	Unsubscribed State = iota
	Subscribed
)

func (s State) String() string {
	if s == Subscribed {
		return "subscribed"
	}
	return "unsubscribed"
}

// Store is the part of store.Store the view model needs.
type Store interface {
	Append(ctx context.Context, path string, msg contract.Message) (string, error)
	Subscribe(ctx context.Context, path string) (<-chan store.Snapshot, error)
}

// Frame is what a listener receives after every snapshot. When Err is set the
// subscription has failed and Messages holds the last list that was known.
type Frame struct {
	Address  room.Address
	Messages []contract.Message
	Err      error
}

type Option func(*ViewModel)

func WithClock(now func() time.Time) Option {
	return func(vm *ViewModel) { vm.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(vm *ViewModel) { vm.log = logger }
}

// WithListener registers fn to be called on the subscription goroutine after
// each snapshot. fn must not call Subscribe or Close.
func WithListener(fn func(Frame)) Option {
	return func(vm *ViewModel) { vm.listener = fn }
}

type ViewModel struct {
	store    Store
	session  session.Session
	log      *slog.Logger
	now      func() time.Time
	listener func(Frame)

	// lifecycle serialises Subscribe and Close.
	lifecycle sync.Mutex

	mu       sync.Mutex
	state    State
	address  room.Address
	messages []contract.Message
	err      error
	cancel   context.CancelFunc
	done     chan struct{}

	sends sync.WaitGroup
}

func New(st Store, s session.Session, opts ...Option) *ViewModel {
	vm := &ViewModel{
		store:   st,
		session: s,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(vm)
	}
	if vm.log == nil {
		vm.log = log.LoggerFromContext(context.Background())
	}
	return vm
}

// Subscribe starts following addr. A previous subscription is released
// before the new one is registered. Without a signed in user nothing is
// subscribed and session.ErrUnauthenticated is returned.
func (vm *ViewModel) Subscribe(ctx context.Context, addr room.Address) error {
	user, err := vm.session.Require()
	if err != nil {
		return err
	}
	if addr.IsPrivate() && addr.Peer(user.ID) == "" {
		return ErrNotParticipant
	}

	vm.lifecycle.Lock()
	defer vm.lifecycle.Unlock()
	vm.release()

	subCtx, cancel := context.WithCancel(ctx)
	snaps, err := vm.store.Subscribe(subCtx, addr.Path())
	if err != nil {
		cancel()
		return fmt.Errorf("subscribing to %s: %w", addr, err)
	}

	done := make(chan struct{})
	vm.mu.Lock()
	vm.state = Subscribed
	vm.address = addr
	vm.messages = nil
	vm.err = nil
	vm.cancel = cancel
	vm.done = done
	vm.mu.Unlock()

	vm.log.Debug("subscribed", slog.String(roomLogField, addr.Path()), slog.String(userIDLogField, user.ID))
	go vm.run(subCtx, addr, snaps, done)
	return nil
}

func (vm *ViewModel) run(ctx context.Context, addr room.Address, snaps <-chan store.Snapshot, done chan struct{}) {
	defer close(done)
	failed := false
	for snap := range snaps {
		if snap.Err != nil {
			failed = true
			vm.log.Error("room subscription failed", slog.String(roomLogField, addr.Path()), slog.String(errorMsgLogField, snap.Err.Error()))
			vm.publish(addr, nil, snap.Err)
			continue
		}
		vm.publish(addr, Order(snap.Records), nil)
	}
	if ctx.Err() == nil && !failed {
		vm.publish(addr, nil, ErrSubscriptionClosed)
	}
}

// publish replaces the list, or records err and keeps the last list. An
// error is terminal: the store stops delivering, so the view model is no
// longer subscribed.
func (vm *ViewModel) publish(addr room.Address, messages []contract.Message, err error) {
	vm.mu.Lock()
	if err != nil {
		vm.err = err
		vm.state = Unsubscribed
		messages = vm.messages
	} else {
		vm.messages = messages
		vm.err = nil
	}
	vm.mu.Unlock()

	if vm.listener != nil {
		vm.listener(Frame{Address: addr, Messages: messages, Err: err})
	}
}

// release cancels the current subscription and waits for its goroutine.
func (vm *ViewModel) release() {
	vm.mu.Lock()
	cancel, done := vm.cancel, vm.done
	vm.cancel, vm.done = nil, nil
	vm.state = Unsubscribed
	vm.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Close releases the subscription. Sends already issued keep running.
func (vm *ViewModel) Close() error {
	vm.lifecycle.Lock()
	defer vm.lifecycle.Unlock()
	vm.release()
	return nil
}

// Flush waits for the appends issued by Send to finish.
func (vm *ViewModel) Flush() {
	vm.sends.Wait()
}

// Send appends text to addr on behalf of the session's user. Whitespace-only
// text is ignored. The append runs in the background and is not retried; a
// failed append is only logged.
func (vm *ViewModel) Send(ctx context.Context, addr room.Address, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	user, err := vm.session.Require()
	if err != nil {
		return err
	}

	msg := contract.Message{
		Text:      text,
		SenderID:  user.ID,
		Timestamp: vm.now().UnixMilli(),
	}
	if addr.IsPrivate() {
		msg.RecipientID = addr.Peer(user.ID)
		if msg.RecipientID == "" {
			return ErrNotParticipant
		}
	} else {
		msg.SenderLabel = user.Label()
	}

	logger := vm.log.With(slog.String(roomLogField, addr.Path()), slog.String(userIDLogField, user.ID))
	vm.sends.Add(1)
	go func() {
		defer vm.sends.Done()
		id, err := vm.store.Append(context.WithoutCancel(ctx), addr.Path(), msg)
		if err != nil {
			logger.Error("message not delivered", slog.String(errorMsgLogField, err.Error()))
			return
		}
		logger.Debug("message appended", slog.String(messageIDField, id))
	}()
	return nil
}

func (vm *ViewModel) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}

func (vm *ViewModel) Address() room.Address {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.address
}

// Messages returns a copy of the current ordered list.
func (vm *ViewModel) Messages() []contract.Message {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return slices.Clone(vm.messages)
}

// Err reports why the subscription failed, nil while it is healthy.
func (vm *ViewModel) Err() error {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.err
}
