package realtime

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"
)

// DefaultPollInterval is the refresh cadence when the realtime channel
// cannot be established.
const DefaultPollInterval = 5 * time.Second

// Manager watches one open conversation. It subscribes to the messages
// collection, filters events down to the watched conversation and
// triggers a coarse refetch of the message list. If the subscription
// cannot be established it degrades to polling the same refetch until
// stopped, so the client still converges.
//
// Stop is idempotent and must run on every exit path of the screen that
// opened the conversation.
type Manager struct {
	broker         Broker
	collection     string
	conversationID string
	refetch        func(context.Context)
	pollInterval   time.Duration

	cancel      context.CancelFunc
	unsubscribe Unsubscribe
	stopOnce    sync.Once
}

// NewManager builds a manager for one conversation. refetch is the
// invalidate-and-refetch callback; it must tolerate redundant calls.
func NewManager(broker Broker, collection, conversationID string, refetch func(context.Context)) *Manager {
	return &Manager{
		broker:         broker,
		collection:     collection,
		conversationID: conversationID,
		refetch:        refetch,
		pollInterval:   DefaultPollInterval,
	}
}

// SetPollInterval overrides the fallback cadence. Tests shorten it.
func (m *Manager) SetPollInterval(interval time.Duration) {
	m.pollInterval = interval
}

// Start opens the subscription, or the polling fallback when the
// channel fails. It never returns an error to the caller: degradation
// is invisible to the user.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	unsubscribe, err := m.broker.Subscribe(ctx, m.collection, func(event Event) {
		if !m.eventMatches(event) {
			return
		}
		select {
		case <-ctx.Done():
		default:
			m.refetch(ctx)
		}
	})
	if err != nil {
		log.Printf("realtime: subscribe %s failed, polling every %s: %v", m.collection, m.pollInterval, err)
		go m.poll(ctx)
		return
	}

	m.unsubscribe = unsubscribe
}

// Stop tears the subscription down. Safe to call repeatedly and on
// managers whose subscription never came up.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.cancel != nil {
			m.cancel()
		}
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
	})
}

func (m *Manager) eventMatches(event Event) bool {
	if event.Collection != m.collection {
		return false
	}

	var payload struct {
		ConversationID string `json:"conversationId"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return false
	}
	return payload.ConversationID == m.conversationID
}

func (m *Manager) poll(ctx context.Context) {
	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.refetch(ctx)
		}
	}
}
