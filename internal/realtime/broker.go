package realtime

import (
	"context"
	"encoding/json"
	"errors"
)

// Event kinds mirror the document-store mutations they announce.
const (
	EventCreate = "create"
	EventUpdate = "update"
	EventDelete = "delete"
)

// ErrSubscriptionSetupFailed reports that the realtime channel could
// not be established. It is non-fatal: subscribers fall back to polling.
var ErrSubscriptionSetupFailed = errors.New("realtime subscription setup failed")

// Event is a backend-pushed change notification, scoped to a collection
// and carrying the mutated document as payload.
type Event struct {
	Collection string          `json:"collection"`
	DocumentID string          `json:"documentId"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
}

// Unsubscribe tears down one subscription. Implementations must make it
// safe to call more than once.
type Unsubscribe func()

// Broker is the realtime channel provider boundary. Publish is
// best-effort: a lost event is healed by the next list refresh.
type Broker interface {
	Publish(ctx context.Context, event Event) error
	Subscribe(ctx context.Context, collection string, handler func(Event)) (Unsubscribe, error)
}
