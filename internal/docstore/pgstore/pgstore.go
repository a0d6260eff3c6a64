// Package pgstore keeps documents in a PostgreSQL JSONB table and pushes
// changes with LISTEN/NOTIFY. Notifications carry only the topic; watchers
// re-read the row, so a burst of writes may collapse into its latest value.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rsboard/internal/docstore"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/pkg/logger"
)

// NotifyChannel is the LISTEN/NOTIFY channel name
const NotifyChannel = "rsboard_documents"

const schemaSQL = `
CREATE SCHEMA IF NOT EXISTS rsboard;
CREATE TABLE IF NOT EXISTS rsboard.documents (
	topic      TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Store is a PostgreSQL-backed docstore.Store
type Store struct {
	pool   *pgxpool.Pool
	logger *logger.Logger

	mu     sync.Mutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a store on an existing pool (see pkg/database)
func New(pool *pgxpool.Pool, log *logger.Logger) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		pool:   pool,
		logger: log.WithComponent("pgstore"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// EnsureSchema creates the documents table if missing
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("pgstore schema: %w", err)
	}
	return nil
}

// Put upserts the document and notifies listeners on commit. Empty data deletes it.
func (s *Store) Put(ctx context.Context, topic model.Topic, data []byte) error {
	if s.isClosed() {
		return docstore.ErrClosed
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if len(data) == 0 {
			if _, err := tx.Exec(ctx, `DELETE FROM rsboard.documents WHERE topic = $1`, string(topic)); err != nil {
				return err
			}
		} else {
			_, err := tx.Exec(ctx, `
				INSERT INTO rsboard.documents (topic, body, updated_at)
				VALUES ($1, $2::jsonb, now())
				ON CONFLICT (topic) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
				string(topic), string(data))
			if err != nil {
				return err
			}
		}

		_, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, NotifyChannel, string(topic))
		return err
	})
	if err != nil {
		return fmt.Errorf("pgstore put %s: %w", topic, err)
	}

	return nil
}

// Get reads the current document
func (s *Store) Get(ctx context.Context, topic model.Topic) (docstore.Document, error) {
	if s.isClosed() {
		return docstore.Document{}, docstore.ErrClosed
	}
	return readDocument(ctx, s.pool, topic)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func readDocument(ctx context.Context, q querier, topic model.Topic) (docstore.Document, error) {
	var body string
	err := q.QueryRow(ctx, `SELECT body::text FROM rsboard.documents WHERE topic = $1`, string(topic)).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.Document{Topic: topic}, nil
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("pgstore get %s: %w", topic, err)
	}

	return docstore.Document{Topic: topic, Data: []byte(body), Exists: true}, nil
}

// Watch holds a dedicated connection in LISTEN mode for the lifetime of ctx
func (s *Store) Watch(ctx context.Context, topic model.Topic) (<-chan docstore.Document, error) {
	if s.isClosed() {
		return nil, docstore.ErrClosed
	}

	pooled, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("pgstore acquire listener: %w", err)
	}
	// a LISTEN connection never goes back to the pool
	conn := pooled.Hijack()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		_ = conn.Close(context.Background())
		return nil, fmt.Errorf("pgstore listen: %w", err)
	}

	current, err := readDocument(ctx, conn, topic)
	if err != nil {
		_ = conn.Close(context.Background())
		return nil, err
	}

	// merged cancellation: caller ctx or store shutdown
	watchCtx, stop := context.WithCancel(ctx)
	go func() {
		select {
		case <-s.ctx.Done():
			stop()
		case <-watchCtx.Done():
		}
	}()

	out := make(chan docstore.Document)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		defer conn.Close(context.Background())
		defer stop()

		send := func(doc docstore.Document) bool {
			select {
			case out <- doc:
				return true
			case <-watchCtx.Done():
				return false
			}
		}

		if !send(current) {
			return
		}

		for {
			n, err := conn.WaitForNotification(watchCtx)
			if err != nil {
				if watchCtx.Err() == nil {
					s.logger.WithError(err).WithField("topic", string(topic)).Error("Listener connection failed")
				}
				return
			}
			if n.Payload != string(topic) {
				continue
			}

			doc, err := readDocument(watchCtx, conn, topic)
			if err != nil {
				if watchCtx.Err() == nil {
					s.logger.WithError(err).WithField("topic", string(topic)).Warn("Failed to re-read document")
				}
				return
			}
			if !send(doc) {
				return
			}
		}
	}()

	s.logger.WithField("topic", string(topic)).Debug("Listening for topic")
	return out, nil
}

// Close stops every watcher. The pool is owned by the caller.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

var _ docstore.Store = (*Store)(nil)
