// Package docstore defines the contract with the remote document store:
// subscribe to a document, receive its full value on every change, stop by
// cancelling the context.
package docstore

import (
	"context"
	"errors"

	"github.com/wonny/rsboard/internal/model"
)

// ErrClosed is returned by operations on a closed store
var ErrClosed = errors.New("document store closed")

// Document is one delivered value of a topic.
// Exists is false when the document is absent or was deleted.
type Document struct {
	Topic  model.Topic
	Data   []byte
	Exists bool
}

// Source delivers live documents.
//
// Watch sends the current value first (Exists=false if absent) and then every
// change in the order the store emits them. The channel is closed when ctx is
// cancelled or the store shuts down.
type Source interface {
	Watch(ctx context.Context, topic model.Topic) (<-chan Document, error)
}

// Publisher writes documents. Every Put replaces the full value; empty data deletes it.
type Publisher interface {
	Put(ctx context.Context, topic model.Topic, data []byte) error
	Get(ctx context.Context, topic model.Topic) (Document, error)
}

// Store is a backend implementing both directions
type Store interface {
	Source
	Publisher
	Close() error
}
