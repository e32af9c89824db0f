package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/antonykinuthia/luxliving/internal/models"
	"github.com/antonykinuthia/luxliving/internal/store"
)

// CollectionChats is the document collection holding conversation
// summaries.
const CollectionChats = "chats"

type ConversationRepository struct {
	store store.DocumentStore
}

func NewConversationRepository(docStore store.DocumentStore) *ConversationRepository {
	return &ConversationRepository{store: docStore}
}

// GetByKey fetches a conversation by its deterministic key. Returns
// store.ErrNotFound when the pair has never exchanged a message.
func (r *ConversationRepository) GetByKey(ctx context.Context, key string) (*models.Conversation, error) {
	doc, err := r.store.Get(ctx, CollectionChats, key)
	if err != nil {
		return nil, err
	}
	return decodeConversation(doc)
}

// Create inserts the summary document using the conversation key as the
// document id, which is what enforces one conversation per pair.
func (r *ConversationRepository) Create(ctx context.Context, conversation *models.Conversation) (*models.Conversation, error) {
	doc, err := r.store.Create(ctx, CollectionChats, conversation.ID, map[string]any{
		"participantIds": conversation.Participants,
		"lastMessage":    conversation.LastMessage,
		"lastUpdated":    conversation.LastUpdated.UTC().Format(store.TimeLayout),
		"unreadCounts":   conversation.UnreadCounts,
	})
	if err != nil {
		return nil, err
	}
	return decodeConversation(doc)
}

// UpdateSummary rewrites the denormalized fields after a new message.
func (r *ConversationRepository) UpdateSummary(
	ctx context.Context,
	key string,
	lastMessage string,
	lastUpdated time.Time,
	unreadCounts map[string]int,
) (*models.Conversation, error) {
	doc, err := r.store.Update(ctx, CollectionChats, key, map[string]any{
		"lastMessage":  lastMessage,
		"lastUpdated":  lastUpdated.UTC().Format(store.TimeLayout),
		"unreadCounts": unreadCounts,
	})
	if err != nil {
		return nil, err
	}
	return decodeConversation(doc)
}

// SetUnread overwrites one participant's unread entry, preserving the
// other participants' counts.
func (r *ConversationRepository) SetUnread(ctx context.Context, key, userID string, count int) error {
	conversation, err := r.GetByKey(ctx, key)
	if err != nil {
		return err
	}

	counts := conversation.UnreadCounts
	if counts == nil {
		counts = make(map[string]int)
	}
	counts[userID] = count

	_, err = r.store.Update(ctx, CollectionChats, key, map[string]any{
		"unreadCounts": counts,
	})
	return err
}

// ListForParticipant returns every conversation the user belongs to,
// most recently active first.
func (r *ConversationRepository) ListForParticipant(ctx context.Context, userID string) ([]models.Conversation, error) {
	query := store.Query{
		OrderField: "lastUpdated",
		Descending: true,
	}.WithFilter("participantIds", store.OpContains, userID)

	docs, _, err := r.store.List(ctx, CollectionChats, query)
	if err != nil {
		return nil, err
	}

	conversations := make([]models.Conversation, 0, len(docs))
	for i := range docs {
		conversation, err := decodeConversation(&docs[i])
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *conversation)
	}
	return conversations, nil
}

func decodeConversation(doc *store.Document) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := json.Unmarshal(doc.Data, &conversation); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", doc.ID, err)
	}
	conversation.ID = doc.ID
	conversation.CreatedAt = doc.CreatedAt
	return &conversation, nil
}
