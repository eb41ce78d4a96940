package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/klipach/chatroom/contract"
	"github.com/lib/pq"
)

const (
	postgresDriver = "postgres"
	notifyChannel  = "chat_messages"
	minReconnect   = 10 * time.Second
	maxReconnect   = time.Minute
	errorMsgLogKey = "errorMsg"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS chat_message (
	id           TEXT PRIMARY KEY,
	path         TEXT NOT NULL,
	text         TEXT NOT NULL,
	sender_id    TEXT NOT NULL,
	sender_label TEXT NOT NULL DEFAULT '',
	recipient_id TEXT NOT NULL DEFAULT '',
	timestamp    BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS chat_message_path_idx ON chat_message (path);`

// Postgres keeps records in a single table. Every append is followed by a
// NOTIFY carrying the path, and one LISTEN connection per store wakes up the
// subscribers of that path, which then re-query the full set.
type Postgres struct {
	db       *sqlx.DB
	listener *pq.Listener
	log      *slog.Logger
	broker   *broker
	done     chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func OpenPostgres(ctx context.Context, dsn string, log *slog.Logger) (*Postgres, error) {
	db, err := sqlx.ConnectContext(ctx, postgresDriver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	listener := pq.NewListener(dsn, minReconnect, maxReconnect, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Warn("postgres listener event", slog.Int("event", int(ev)), slog.String(errorMsgLogKey, err.Error()))
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		listener.Close()
		db.Close()
		return nil, fmt.Errorf("listening on %s: %w", notifyChannel, err)
	}

	p := &Postgres{
		db:       db,
		listener: listener,
		log:      log,
		broker:   newBroker(),
		done:     make(chan struct{}),
	}
	go p.dispatch()
	return p, nil
}

func (p *Postgres) dispatch() {
	for {
		select {
		case n, ok := <-p.listener.Notify:
			if !ok {
				return
			}
			// a nil notification follows a reconnect; anything may have been missed
			if n == nil {
				p.broker.notifyAll()
				continue
			}
			p.broker.notify(n.Extra)
		case <-time.After(maxReconnect):
			go func() {
				if err := p.listener.Ping(); err != nil {
					p.log.Warn("postgres listener ping failed", slog.String(errorMsgLogKey, err.Error()))
				}
			}()
		case <-p.done:
			return
		}
	}
}

func (p *Postgres) Append(ctx context.Context, path string, msg contract.Message) (string, error) {
	if err := checkAppend(path, msg); err != nil {
		return "", err
	}
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	msg.ID = id.String()

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT INTO chat_message (id, path, text, sender_id, sender_label, recipient_id, timestamp)
		VALUES (:id, :path, :text, :sender_id, :sender_label, :recipient_id, :timestamp)`,
		postgresRow{Message: msg, Path: path},
	)
	if err != nil {
		return "", err
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, path); err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return msg.ID, nil
}

func (p *Postgres) Subscribe(ctx context.Context, path string) (<-chan Snapshot, error) {
	return follow(ctx, p.broker, path, p.read)
}

func (p *Postgres) read(ctx context.Context, path string) (map[string]contract.Message, error) {
	var rows []contract.Message
	err := p.db.SelectContext(ctx, &rows, `
		SELECT id, text, sender_id, sender_label, recipient_id, timestamp
		FROM chat_message WHERE path = $1`, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	records := make(map[string]contract.Message, len(rows))
	for _, r := range rows {
		records[r.ID] = r
	}
	return records, nil
}

// Close stops the listener and the pool. Later calls return the first result.
func (p *Postgres) Close() error {
	p.closeOnce.Do(func() {
		p.broker.close()
		close(p.done)
		lerr := p.listener.Close()
		if err := p.db.Close(); err != nil {
			p.closeErr = err
			return
		}
		p.closeErr = lerr
	})
	return p.closeErr
}

type postgresRow struct {
	contract.Message
	Path string `db:"path"`
}
