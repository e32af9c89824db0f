package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/antonykinuthia/luxliving/internal/models"
	"github.com/antonykinuthia/luxliving/internal/realtime"
	"github.com/antonykinuthia/luxliving/internal/repository"
	"github.com/antonykinuthia/luxliving/internal/store"
)

type userReader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Attachment is a file handed in alongside a message send. It is
// uploaded before the message document is written; an upload failure
// aborts the whole send.
type Attachment struct {
	Filename string
	Content  io.Reader
}

type ChatService struct {
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	userRepo         userReader
	broker           realtime.Broker
	storage          StorageService
	push             PushSender
}

func NewChatService(
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	userRepo userReader,
	broker realtime.Broker,
	storage StorageService,
	push PushSender,
) *ChatService {
	return &ChatService{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		broker:           broker,
		storage:          storage,
		push:             push,
	}
}

// OpenConversation finds or creates the conversation between the actor
// and a target user and returns it, mirroring the tap-to-message flow.
func (s *ChatService) OpenConversation(ctx context.Context, actorID, targetID string) (*models.Conversation, error) {
	key, err := ConversationKey(actorID, targetID)
	if err != nil {
		return nil, err
	}
	if actorID == targetID {
		return nil, ErrInvalidInput
	}

	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, wrapStoreErr(err)
	}

	conversation, err := s.conversationRepo.GetByKey(ctx, key)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, wrapStoreErr(err)
	}

	created, err := s.conversationRepo.Create(ctx, &models.Conversation{
		ID:           key,
		Participants: []string{actorID, targetID},
		LastUpdated:  time.Now().UTC(),
		UnreadCounts: map[string]int{},
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return created, nil
}

// ListConversations returns the actor's conversation directory, most
// recently active first, with the unread count and partner projected
// for the viewer.
func (s *ChatService) ListConversations(ctx context.Context, actorID string) ([]models.ConversationSummary, error) {
	if strings.TrimSpace(actorID) == "" {
		return nil, ErrInvalidParticipant
	}

	conversations, err := s.conversationRepo.ListForParticipant(ctx, actorID)
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	summaries := make([]models.ConversationSummary, 0, len(conversations))
	for i := range conversations {
		conversation := &conversations[i]
		summary := models.ConversationSummary{
			ID:           conversation.ID,
			Participants: conversation.Participants,
			LastMessage:  conversation.LastMessage,
			LastUpdated:  conversation.LastUpdated,
			UnreadCount:  conversation.UnreadFor(actorID),
		}

		for _, participantID := range conversation.Participants {
			if participantID == actorID {
				continue
			}
			// Partner lookup is display-only; a missing user leaves
			// the summary without one.
			if partner, err := s.userRepo.GetByID(ctx, participantID); err == nil {
				summary.Partner = partner.ChatProfile()
			}
			break
		}

		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// ListMessages pages through a conversation chronologically. Page 1
// holds the most recent limit messages.
func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID string,
	conversationKey string,
	page int,
	limit int,
) ([]models.Message, int, error) {
	if page <= 0 || limit <= 0 || conversationKey == "" {
		return nil, 0, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByKey(ctx, conversationKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, 0, err
		}
		return nil, 0, wrapStoreErr(err)
	}
	if !conversation.HasParticipant(actorID) {
		return nil, 0, ErrForbidden
	}

	messages, total, err := s.messageRepo.ListByConversation(ctx, conversationKey, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, wrapStoreErr(err)
	}
	return messages, total, nil
}

// SendMessage validates, uploads the attachment if any, writes the
// message document and then upserts the conversation summary. The two
// writes are sequential, not transactional: a failure in between leaves
// the message persisted and the summary stale until the next upsert.
// imageID references media the client already uploaded; a non-nil
// attachment is uploaded here and takes precedence.
func (s *ChatService) SendMessage(
	ctx context.Context,
	senderID string,
	receiverID string,
	text string,
	imageID string,
	attachment *Attachment,
) (*models.Message, error) {
	key, err := ConversationKey(senderID, receiverID)
	if err != nil {
		return nil, err
	}
	if senderID == receiverID {
		return nil, ErrInvalidInput
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" && attachment == nil && imageID == "" {
		return nil, ErrInvalidInput
	}

	if attachment != nil {
		imageID, err = s.UploadAttachment(ctx, attachment.Filename, attachment.Content)
		if err != nil {
			return nil, err
		}
	}

	message, err := s.messageRepo.Create(ctx, &models.Message{
		ConversationID: key,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Text:           trimmed,
		ImageURL:       imageID,
	})
	if err != nil {
		return nil, wrapStoreErr(err)
	}

	if err := s.upsertConversation(ctx, key, message); err != nil {
		return nil, err
	}

	s.publishMessageEvent(ctx, realtime.EventCreate, message)
	s.notifyReceiver(message)

	return message, nil
}

// MarkRead flips every unread message addressed to the reader and
// zeroes the reader's unread counter. Idempotent; partial failures are
// tolerated and healed by a retry.
func (s *ChatService) MarkRead(ctx context.Context, conversationKey, readerID string) error {
	if conversationKey == "" || strings.TrimSpace(readerID) == "" {
		return ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByKey(ctx, conversationKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return wrapStoreErr(err)
	}
	if !conversation.HasParticipant(readerID) {
		return ErrForbidden
	}

	unread, err := s.messageRepo.ListUnreadFor(ctx, conversationKey, readerID)
	if err != nil {
		return wrapStoreErr(err)
	}

	if len(unread) > 0 {
		ids := make([]string, 0, len(unread))
		for _, message := range unread {
			ids = append(ids, message.ID)
		}
		if err := s.messageRepo.MarkRead(ctx, ids); err != nil {
			return wrapStoreErr(err)
		}
	}

	if err := s.conversationRepo.SetUnread(ctx, conversationKey, readerID, 0); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return wrapStoreErr(err)
	}

	if len(unread) > 0 {
		s.publishReadEvent(ctx, conversationKey, conversation.Participants)
	}
	return nil
}

// UploadAttachment stores chat media and returns the opaque file id
// referenced by messages.
func (s *ChatService) UploadAttachment(ctx context.Context, filename string, content io.Reader) (string, error) {
	if s.storage == nil {
		return "", fmt.Errorf("%w: no storage configured", ErrAttachmentUploadFailed)
	}
	fileID, err := s.storage.UploadFile(ctx, content, filename)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAttachmentUploadFailed, err)
	}
	return fileID, nil
}

// AttachmentURL resolves an uploaded file id to a viewable URL.
func (s *ChatService) AttachmentURL(fileID string) string {
	if s.storage == nil || fileID == "" {
		return ""
	}
	return s.storage.FileViewURL(fileID)
}

func (s *ChatService) upsertConversation(ctx context.Context, key string, message *models.Message) error {
	conversation, err := s.conversationRepo.GetByKey(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		_, err = s.conversationRepo.Create(ctx, &models.Conversation{
			ID:           key,
			Participants: []string{message.SenderID, message.ReceiverID},
			LastMessage:  message.Text,
			LastUpdated:  message.CreatedAt,
			UnreadCounts: map[string]int{message.ReceiverID: 1},
		})
		if err != nil {
			return wrapStoreErr(err)
		}
		return nil
	}
	if err != nil {
		return wrapStoreErr(err)
	}

	counts := conversation.UnreadCounts
	if counts == nil {
		counts = make(map[string]int)
	}
	counts[message.ReceiverID]++

	// lastUpdated tracks the message timestamp so it never falls behind
	// the newest message.
	lastUpdated := message.CreatedAt
	if conversation.LastUpdated.After(lastUpdated) {
		lastUpdated = conversation.LastUpdated
	}

	if _, err := s.conversationRepo.UpdateSummary(ctx, key, message.Text, lastUpdated, counts); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func (s *ChatService) publishMessageEvent(ctx context.Context, kind string, message *models.Message) {
	if s.broker == nil {
		return
	}

	payload, err := json.Marshal(message)
	if err != nil {
		log.Printf("chat: encode message event: %v", err)
		return
	}
	err = s.broker.Publish(ctx, realtime.Event{
		Collection: repository.CollectionMessages,
		DocumentID: message.ID,
		Kind:       kind,
		Payload:    payload,
	})
	if err != nil {
		// Best effort: subscribers heal on their next refresh.
		log.Printf("chat: publish message event: %v", err)
	}
}

func (s *ChatService) publishReadEvent(ctx context.Context, conversationKey string, participants []string) {
	if s.broker == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"conversationId": conversationKey,
		"participantIds": participants,
	})
	if err != nil {
		return
	}
	err = s.broker.Publish(ctx, realtime.Event{
		Collection: repository.CollectionMessages,
		Kind:       realtime.EventUpdate,
		Payload:    payload,
	})
	if err != nil {
		log.Printf("chat: publish read event: %v", err)
	}
}

// notifyReceiver sends the push notification off the critical path.
// Failures are logged and never surfaced to the sender.
func (s *ChatService) notifyReceiver(message *models.Message) {
	if s.push == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		receiver, err := s.userRepo.GetByID(ctx, message.ReceiverID)
		if err != nil || receiver.PushToken == "" {
			return
		}

		sender, err := s.userRepo.GetByID(ctx, message.SenderID)
		title := "New message"
		if err == nil && sender.Name != "" {
			title = sender.Name
		}

		body := message.Text
		if body == "" {
			body = "Sent a photo"
		}

		err = s.push.Send(ctx, receiver.PushToken, title, body, map[string]string{
			"conversationId": message.ConversationID,
			"senderId":       message.SenderID,
		})
		if err != nil {
			log.Printf("chat: push notification: %v", err)
		}
	}()
}

func wrapStoreErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// FormatChatTimestamp renders timestamps the way the clients expect.
func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}
