// Package redisstore keeps documents in Redis and pushes changes over pub/sub.
//
// Value: {prefix}:doc:{topic}. Channel: {prefix}:topic:{topic}, carrying the
// full document; an empty message means the document was deleted.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/wonny/rsboard/internal/docstore"
	"github.com/wonny/rsboard/internal/model"
	"github.com/wonny/rsboard/pkg/logger"
	"github.com/wonny/rsboard/pkg/redis"
)

// Store is a Redis-backed docstore.Store
type Store struct {
	client *redis.Client
	prefix string
	logger *logger.Logger

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	ctx    context.Context
	wg     sync.WaitGroup
}

// New creates a store on an enabled Redis client
func New(client *redis.Client, prefix string, log *logger.Logger) (*Store, error) {
	if client == nil || !client.Enabled() {
		return nil, errors.New("redisstore: redis client is disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		client: client,
		prefix: prefix,
		logger: log.WithComponent("redisstore"),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// DocKey returns the Redis key holding topic's document
func (s *Store) DocKey(topic model.Topic) string {
	return fmt.Sprintf("%s:doc:%s", s.prefix, topic)
}

// ChannelName returns the pub/sub channel of topic
func (s *Store) ChannelName(topic model.Topic) string {
	return fmt.Sprintf("%s:topic:%s", s.prefix, topic)
}

// Put stores the document and publishes it atomically. Empty data deletes it.
func (s *Store) Put(ctx context.Context, topic model.Topic, data []byte) error {
	if s.isClosed() {
		return docstore.ErrClosed
	}

	rdb := s.client.Redis()
	_, err := rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		if len(data) == 0 {
			pipe.Del(ctx, s.DocKey(topic))
			pipe.Publish(ctx, s.ChannelName(topic), "")
			return nil
		}
		pipe.Set(ctx, s.DocKey(topic), data, 0)
		pipe.Publish(ctx, s.ChannelName(topic), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore put %s: %w", topic, err)
	}

	return nil
}

// Get reads the current document
func (s *Store) Get(ctx context.Context, topic model.Topic) (docstore.Document, error) {
	if s.isClosed() {
		return docstore.Document{}, docstore.ErrClosed
	}

	data, err := s.client.Redis().Get(ctx, s.DocKey(topic)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return docstore.Document{Topic: topic}, nil
	}
	if err != nil {
		return docstore.Document{}, fmt.Errorf("redisstore get %s: %w", topic, err)
	}

	return docstore.Document{Topic: topic, Data: data, Exists: true}, nil
}

// Watch subscribes before reading the current value so no change is missed
func (s *Store) Watch(ctx context.Context, topic model.Topic) (<-chan docstore.Document, error) {
	if s.isClosed() {
		return nil, docstore.ErrClosed
	}

	pubsub := s.client.Redis().Subscribe(ctx, s.ChannelName(topic))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redisstore subscribe %s: %w", topic, err)
	}

	current, err := s.Get(ctx, topic)
	if err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	out := make(chan docstore.Document)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(out)
		defer pubsub.Close()

		send := func(doc docstore.Document) bool {
			select {
			case out <- doc:
				return true
			case <-ctx.Done():
				return false
			case <-s.ctx.Done():
				return false
			}
		}

		if !send(current) {
			return
		}

		msgs := pubsub.Channel()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					s.logger.WithField("topic", string(topic)).Warn("Redis subscription channel closed")
					return
				}
				doc := docstore.Document{Topic: topic}
				if msg.Payload != "" {
					doc.Data = []byte(msg.Payload)
					doc.Exists = true
				}
				if !send(doc) {
					return
				}
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()

	s.logger.WithField("topic", string(topic)).Debug("Watching topic")
	return out, nil
}

// Close stops every watcher. The Redis client is owned by the caller.
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
