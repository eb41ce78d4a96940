package store

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"
	"github.com/klipach/chatroom/contract"
)

// Memory keeps records in process. It backs tests and local runs.
type Memory struct {
	mu     sync.RWMutex
	paths  map[string]map[string]contract.Message
	broker *broker
}

func NewMemory() *Memory {
	return &Memory{
		paths:  make(map[string]map[string]contract.Message),
		broker: newBroker(),
	}
}

func (m *Memory) Append(_ context.Context, path string, msg contract.Message) (string, error) {
	if err := checkAppend(path, msg); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	msg.ID = id.String()

	m.mu.Lock()
	if m.paths == nil {
		m.mu.Unlock()
		return "", ErrClosed
	}
	if m.paths[path] == nil {
		m.paths[path] = make(map[string]contract.Message)
	}
	m.paths[path][msg.ID] = msg
	m.mu.Unlock()

	m.broker.notify(path)
	return msg.ID, nil
}

func (m *Memory) Subscribe(ctx context.Context, path string) (<-chan Snapshot, error) {
	return follow(ctx, m.broker, path, m.read)
}

func (m *Memory) read(_ context.Context, path string) (map[string]contract.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.paths == nil {
		return nil, ErrClosed
	}
	records := maps.Clone(m.paths[path])
	if records == nil {
		records = make(map[string]contract.Message)
	}
	return records, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.paths = nil
	m.mu.Unlock()
	m.broker.close()
	return nil
}
