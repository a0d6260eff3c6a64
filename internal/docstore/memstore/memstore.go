// Package memstore is an in-process document store with ordered delivery.
package memstore

import (
	"context"
	"sync"

	"github.com/wonny/rsboard/internal/docstore"
	"github.com/wonny/rsboard/internal/model"
)

// Store keeps documents in memory and fans changes out to watchers
type Store struct {
	mu       sync.Mutex
	docs     map[model.Topic][]byte
	watchers map[model.Topic]map[*watcher]struct{}
	closed   bool
}

// watcher owns an unbounded FIFO so Put never blocks on a slow consumer
type watcher struct {
	mu     sync.Mutex
	queue  []docstore.Document
	signal chan struct{}
	done   chan struct{}
	once   sync.Once
}

// New creates an empty store
func New() *Store {
	return &Store{
		docs:     make(map[model.Topic][]byte),
		watchers: make(map[model.Topic]map[*watcher]struct{}),
	}
}

// Put replaces the document of topic. Empty data deletes it.
func (s *Store) Put(ctx context.Context, topic model.Topic, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return docstore.ErrClosed
	}

	doc := docstore.Document{Topic: topic}
	if len(data) > 0 {
		buf := make([]byte, len(data))
		copy(buf, data)
		s.docs[topic] = buf
		doc.Data = buf
		doc.Exists = true
	} else {
		delete(s.docs, topic)
	}

	// enqueue under s.mu so every watcher sees puts in the same order
	for w := range s.watchers[topic] {
		w.push(doc)
	}

	return nil
}

// Get returns the current document of topic
func (s *Store) Get(ctx context.Context, topic model.Topic) (docstore.Document, error) {
	if err := ctx.Err(); err != nil {
		return docstore.Document{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return docstore.Document{}, docstore.ErrClosed
	}

	data, ok := s.docs[topic]
	return docstore.Document{Topic: topic, Data: data, Exists: ok}, nil
}

// Watch implements docstore.Source
func (s *Store) Watch(ctx context.Context, topic model.Topic) (<-chan docstore.Document, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, docstore.ErrClosed
	}

	w := &watcher{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	data, ok := s.docs[topic]
	w.push(docstore.Document{Topic: topic, Data: data, Exists: ok})

	if s.watchers[topic] == nil {
		s.watchers[topic] = make(map[*watcher]struct{})
	}
	s.watchers[topic][w] = struct{}{}
	s.mu.Unlock()

	out := make(chan docstore.Document)
	go func() {
		defer close(out)
		defer s.remove(topic, w)

		for {
			doc, ok := w.pop()
			if !ok {
				select {
				case <-w.signal:
					continue
				case <-w.done:
					return
				case <-ctx.Done():
					return
				}
			}

			select {
			case out <- doc:
			case <-w.done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Watchers returns the number of active watchers of topic
func (s *Store) Watchers(topic model.Topic) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.watchers[topic])
}

// Close stops every watcher
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, ws := range s.watchers {
		for w := range ws {
			w.stop()
		}
	}

	return nil
}

func (s *Store) remove(topic model.Topic, w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.watchers[topic], w)
	if len(s.watchers[topic]) == 0 {
		delete(s.watchers, topic)
	}
}

func (w *watcher) push(doc docstore.Document) {
	w.mu.Lock()
	w.queue = append(w.queue, doc)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) pop() (docstore.Document, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.queue) == 0 {
		return docstore.Document{}, false
	}
	doc := w.queue[0]
	w.queue = w.queue[1:]
	return doc, true
}

func (w *watcher) stop() {
	w.once.Do(func() { close(w.done) })
}

var _ docstore.Store = (*Store)(nil)
