package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/antonykinuthia/luxliving/internal/models"
	"github.com/antonykinuthia/luxliving/internal/store"
)

// CollectionMessages is the document collection holding chat messages.
const CollectionMessages = "messages"

type MessageRepository struct {
	store store.DocumentStore
}

func NewMessageRepository(docStore store.DocumentStore) *MessageRepository {
	return &MessageRepository{store: docStore}
}

// Create persists a new message. The store assigns id and timestamp;
// the returned message carries both.
func (r *MessageRepository) Create(ctx context.Context, message *models.Message) (*models.Message, error) {
	doc, err := r.store.Create(ctx, CollectionMessages, "", map[string]any{
		"conversationId": message.ConversationID,
		"senderId":       message.SenderID,
		"receiverId":     message.ReceiverID,
		"text":           message.Text,
		"imageUrl":       message.ImageURL,
		"read":           false,
	})
	if err != nil {
		return nil, err
	}
	return decodeMessage(doc)
}

// ListByConversation pages through a conversation's history. The store
// query runs newest-first with a limit so it never scans the whole
// history, then the page is reversed for chronological display.
func (r *MessageRepository) ListByConversation(
	ctx context.Context,
	conversationID string,
	limit int,
	offset int,
) ([]models.Message, int, error) {
	query := store.Query{
		Descending: true,
		Limit:      limit,
		Offset:     offset,
	}.WithFilter("conversationId", store.OpEqual, conversationID)

	docs, total, err := r.store.List(ctx, CollectionMessages, query)
	if err != nil {
		return nil, 0, err
	}

	messages := make([]models.Message, 0, len(docs))
	for i := len(docs) - 1; i >= 0; i-- {
		message, err := decodeMessage(&docs[i])
		if err != nil {
			return nil, 0, err
		}
		messages = append(messages, *message)
	}
	return messages, total, nil
}

// ListUnreadFor returns the messages addressed to reader that are still
// unread in the conversation.
func (r *MessageRepository) ListUnreadFor(ctx context.Context, conversationID, readerID string) ([]models.Message, error) {
	query := store.Query{}.
		WithFilter("conversationId", store.OpEqual, conversationID).
		WithFilter("receiverId", store.OpEqual, readerID).
		WithFilter("read", store.OpEqual, false)

	docs, _, err := r.store.List(ctx, CollectionMessages, query)
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(docs))
	for i := range docs {
		message, err := decodeMessage(&docs[i])
		if err != nil {
			return nil, err
		}
		messages = append(messages, *message)
	}
	return messages, nil
}

// MarkRead flips the read flag on each message. Order does not matter
// and a partial failure is reported but leaves the completed updates in
// place; retrying is a no-op for already-read messages.
func (r *MessageRepository) MarkRead(ctx context.Context, messageIDs []string) error {
	var lastErr error
	for _, id := range messageIDs {
		if _, err := r.store.Update(ctx, CollectionMessages, id, map[string]any{"read": true}); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func decodeMessage(doc *store.Document) (*models.Message, error) {
	var message models.Message
	if err := json.Unmarshal(doc.Data, &message); err != nil {
		return nil, fmt.Errorf("decode message %s: %w", doc.ID, err)
	}
	message.ID = doc.ID
	message.CreatedAt = doc.CreatedAt
	return &message, nil
}
