package subscription

import (
	"fmt"
	"time"

	"github.com/wonny/rsboard/internal/model"
)

// State distinguishes "no data yet" from "confirmed empty"
type State int

const (
	StatePending State = iota // no push received yet
	StateEmpty                // absent, malformed or empty document
	StateValue                // non-empty document
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateEmpty:
		return "empty"
	case StateValue:
		return "value"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name
func (s *State) UnmarshalText(text []byte) error {
	switch string(text) {
	case "pending":
		*s = StatePending
	case "empty":
		*s = StateEmpty
	case "value":
		*s = StateValue
	default:
		return fmt.Errorf("unknown state %q", text)
	}
	return nil
}

// Snapshot is the current full value of one topic.
// Value is never nil; it is replaced wholesale and must not be mutated.
type Snapshot struct {
	Topic     model.Topic    `json:"topic"`
	State     State          `json:"state"`
	Value     model.Document `json:"value"`
	Version   uint64         `json:"version"`
	UpdatedAt time.Time      `json:"updated_at,omitempty"`
}

// TopicStats reports per-topic delivery counters
type TopicStats struct {
	Topic        model.Topic `json:"topic"`
	Active       bool        `json:"active"`
	State        State       `json:"state"`
	Version      uint64      `json:"version"`
	Updates      uint64      `json:"updates"`
	DecodeErrors uint64      `json:"decode_errors"`
	Dropped      int         `json:"dropped_entities"`
	Reconnects   uint64      `json:"reconnects"`
	LastUpdate   time.Time   `json:"last_update,omitempty"`
	LastError    string      `json:"last_error,omitempty"`
}

// Observer receives the complete snapshot after every update of a topic
type Observer func(Snapshot)

func dropped(doc model.Document) int {
	switch v := doc.(type) {
	case model.RankingSnapshot:
		return v.Dropped
	case model.NewsFeed:
		return v.Dropped
	default:
		return 0
	}
}
