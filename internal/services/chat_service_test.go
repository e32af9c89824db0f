package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/antonykinuthia/luxliving/internal/models"
	"github.com/antonykinuthia/luxliving/internal/realtime"
	"github.com/antonykinuthia/luxliving/internal/repository"
	"github.com/antonykinuthia/luxliving/internal/store"
)

type stubStorage struct {
	uploadErr error
	uploaded  []string
}

func (s *stubStorage) UploadFile(_ context.Context, content io.Reader, filename string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	if _, err := io.Copy(io.Discard, content); err != nil {
		return "", err
	}
	fileID := "chat/" + filename
	s.uploaded = append(s.uploaded, fileID)
	return fileID, nil
}

func (s *stubStorage) FileViewURL(fileID string) string {
	return "https://storage.test/" + fileID
}

type chatFixture struct {
	service          *ChatService
	docStore         *store.MemoryStore
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	userRepo         *repository.UserRepository
	broker           *realtime.MemoryBroker
	storage          *stubStorage
}

func newChatFixture(t *testing.T, userIDs ...string) *chatFixture {
	t.Helper()

	docStore := store.NewMemoryStore()
	conversationRepo := repository.NewConversationRepository(docStore)
	messageRepo := repository.NewMessageRepository(docStore)
	userRepo := repository.NewUserRepository(docStore)
	broker := realtime.NewMemoryBroker()
	storage := &stubStorage{}

	for _, id := range userIDs {
		_, err := userRepo.Create(context.Background(), &models.User{
			ID:    id,
			Email: id + "@example.com",
			Name:  strings.ToUpper(id),
			Role:  "user",
		})
		if err != nil {
			t.Fatalf("seed user %s: %v", id, err)
		}
	}

	return &chatFixture{
		service:          NewChatService(conversationRepo, messageRepo, userRepo, broker, storage, nil),
		docStore:         docStore,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		userRepo:         userRepo,
		broker:           broker,
		storage:          storage,
	}
}

func TestConversationKeyIsOrderIndependent(t *testing.T) {
	first, err := ConversationKey("buyer9", "agent1")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	second, err := ConversationKey("agent1", "buyer9")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	if first != second {
		t.Fatalf("expected identical keys, got %q and %q", first, second)
	}
	if first != "agent1_buyer9" {
		t.Fatalf("expected sorted join, got %q", first)
	}
}

func TestConversationKeyRejectsBlankParticipants(t *testing.T) {
	cases := [][2]string{{"", "agent1"}, {"buyer9", ""}, {"  ", "agent1"}}
	for _, pair := range cases {
		if _, err := ConversationKey(pair[0], pair[1]); !errors.Is(err, ErrInvalidParticipant) {
			t.Fatalf("expected ErrInvalidParticipant for %q/%q, got %v", pair[0], pair[1], err)
		}
	}
}

func TestOpenConversationCreatesThenReuses(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1")

	created, err := f.service.OpenConversation(context.Background(), "buyer9", "agent1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if created.ID != "agent1_buyer9" {
		t.Fatalf("expected key id, got %q", created.ID)
	}

	reopened, err := f.service.OpenConversation(context.Background(), "agent1", "buyer9")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.ID != created.ID {
		t.Fatalf("expected the same conversation, got %q and %q", created.ID, reopened.ID)
	}
}

func TestOpenConversationUnknownTarget(t *testing.T) {
	f := newChatFixture(t, "buyer9")

	if _, err := f.service.OpenConversation(context.Background(), "buyer9", "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSendMessageCreatesConversationSummary(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1")

	message, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", "Is the loft still listed?", "", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if message.ID == "" || message.ConversationID != "agent1_buyer9" {
		t.Fatalf("unexpected message %+v", message)
	}
	if message.Read {
		t.Fatal("new messages must start unread")
	}

	conversation, err := f.conversationRepo.GetByKey(context.Background(), "agent1_buyer9")
	if err != nil {
		t.Fatalf("conversation after send: %v", err)
	}
	if conversation.LastMessage != "Is the loft still listed?" {
		t.Fatalf("expected summary text, got %q", conversation.LastMessage)
	}
	if !conversation.HasParticipant("buyer9") || !conversation.HasParticipant("agent1") {
		t.Fatalf("expected both participants, got %v", conversation.Participants)
	}
	if got := conversation.UnreadFor("agent1"); got != 1 {
		t.Fatalf("expected receiver unread 1, got %d", got)
	}
	if got := conversation.UnreadFor("buyer9"); got != 0 {
		t.Fatalf("expected sender unread 0, got %d", got)
	}
}

func TestSendMessageAccumulatesUnreadAndKeepsLatestSummary(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1")

	texts := []string{"hello", "are you there?", "still interested"}
	for _, text := range texts {
		if _, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", text, "", nil); err != nil {
			t.Fatalf("send %q: %v", text, err)
		}
	}

	conversation, err := f.conversationRepo.GetByKey(context.Background(), "agent1_buyer9")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if conversation.LastMessage != "still interested" {
		t.Fatalf("expected newest text in summary, got %q", conversation.LastMessage)
	}
	if got := conversation.UnreadFor("agent1"); got != 3 {
		t.Fatalf("expected unread 3, got %d", got)
	}

	messages, total, err := f.service.ListMessages(context.Background(), "buyer9", "agent1_buyer9", 1, 10)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if total != 3 || len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d (total %d)", len(messages), total)
	}
	for i, text := range texts {
		if messages[i].Text != text {
			t.Fatalf("expected chronological order %v, got %q at %d", texts, messages[i].Text, i)
		}
	}
}

func TestSendMessageRejectsEmptyPayload(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1")

	if _, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", "   ", "", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := f.service.SendMessage(context.Background(), "buyer9", "buyer9", "hi", "", nil); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for self-message, got %v", err)
	}
}

func TestSendMessageUploadsAttachment(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1")

	attachment := &Attachment{Filename: "kitchen.jpg", Content: strings.NewReader("jpegbytes")}
	message, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", "", "", attachment)
	if err != nil {
		t.Fatalf("send with attachment: %v", err)
	}
	if message.ImageURL != "chat/kitchen.jpg" {
		t.Fatalf("expected uploaded file id on the message, got %q", message.ImageURL)
	}
	if len(f.storage.uploaded) != 1 {
		t.Fatalf("expected one upload, got %d", len(f.storage.uploaded))
	}
}

func TestSendMessageAbortsWhenUploadFails(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1")
	f.storage.uploadErr = errors.New("bucket unreachable")

	attachment := &Attachment{Filename: "kitchen.jpg", Content: strings.NewReader("jpegbytes")}
	_, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", "look at this", "", attachment)
	if !errors.Is(err, ErrAttachmentUploadFailed) {
		t.Fatalf("expected ErrAttachmentUploadFailed, got %v", err)
	}

	_, total, listErr := f.messageRepo.ListByConversation(context.Background(), "agent1_buyer9", 10, 0)
	if listErr != nil {
		t.Fatalf("list after failed send: %v", listErr)
	}
	if total != 0 {
		t.Fatalf("expected no message written after upload failure, got %d", total)
	}
	if _, err := f.conversationRepo.GetByKey(context.Background(), "agent1_buyer9"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected no conversation after upload failure, got %v", err)
	}
}

func TestListConversationsProjectsViewerState(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1", "agent2")

	if _, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", "first", "", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.service.SendMessage(context.Background(), "agent2", "buyer9", "about your inquiry", "", nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	summaries, err := f.service.ListConversations(context.Background(), "buyer9")
	if err != nil {
		t.Fatalf("list conversations: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 conversations, got %d", len(summaries))
	}
	if summaries[0].LastMessage != "about your inquiry" {
		t.Fatalf("expected most recent conversation first, got %q", summaries[0].LastMessage)
	}
	if summaries[0].UnreadCount != 1 {
		t.Fatalf("expected viewer unread 1, got %d", summaries[0].UnreadCount)
	}
	if summaries[1].UnreadCount != 0 {
		t.Fatalf("expected sender-side unread 0, got %d", summaries[1].UnreadCount)
	}
	if summaries[0].Partner == nil || summaries[0].Partner.ID != "agent2" {
		t.Fatalf("expected partner projection, got %+v", summaries[0].Partner)
	}
}

func TestListMessagesRequiresMembership(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1", "lurker")

	if _, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", "private", "", nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, _, err := f.service.ListMessages(context.Background(), "lurker", "agent1_buyer9", 1, 10); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, _, err := f.service.ListMessages(context.Background(), "buyer9", "nobody_there", 1, 10); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected store.ErrNotFound, got %v", err)
	}
}

func TestMarkReadClearsMessagesAndCounter(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1")

	for _, text := range []string{"one", "two"} {
		if _, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", text, "", nil); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	if err := f.service.MarkRead(context.Background(), "agent1_buyer9", "agent1"); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	unread, err := f.messageRepo.ListUnreadFor(context.Background(), "agent1_buyer9", "agent1")
	if err != nil {
		t.Fatalf("list unread: %v", err)
	}
	if len(unread) != 0 {
		t.Fatalf("expected no unread messages, got %d", len(unread))
	}

	conversation, err := f.conversationRepo.GetByKey(context.Background(), "agent1_buyer9")
	if err != nil {
		t.Fatalf("conversation: %v", err)
	}
	if got := conversation.UnreadFor("agent1"); got != 0 {
		t.Fatalf("expected unread 0, got %d", got)
	}

	// Reapplying is a no-op.
	if err := f.service.MarkRead(context.Background(), "agent1_buyer9", "agent1"); err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
}

func TestMarkReadOnMissingConversationIsNoop(t *testing.T) {
	f := newChatFixture(t, "buyer9")

	if err := f.service.MarkRead(context.Background(), "nobody_there", "buyer9"); err != nil {
		t.Fatalf("expected nil for missing conversation, got %v", err)
	}
}

func TestMarkReadRejectsNonParticipants(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1", "lurker")

	if _, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", "private", "", nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := f.service.MarkRead(context.Background(), "agent1_buyer9", "lurker"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestStoreFailuresSurfaceAsStoreUnavailable(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1")
	backendDown := errors.New("connection reset")

	f.docStore.FailNext = backendDown
	if _, err := f.service.ListConversations(context.Background(), "buyer9"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from list, got %v", err)
	}

	f.docStore.FailNext = backendDown
	if _, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", "hello", "", nil); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable from send, got %v", err)
	}

	// The failure is transient: the retried send goes through.
	message, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", "hello again", "", nil)
	if err != nil {
		t.Fatalf("retry after transient failure: %v", err)
	}
	if message.Text != "hello again" {
		t.Fatalf("unexpected message %+v", message)
	}
}

func TestSendMessagePublishesCreateEvent(t *testing.T) {
	f := newChatFixture(t, "buyer9", "agent1")

	var events []realtime.Event
	unsubscribe, err := f.broker.Subscribe(context.Background(), repository.CollectionMessages, func(event realtime.Event) {
		events = append(events, event)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer unsubscribe()

	message, err := f.service.SendMessage(context.Background(), "buyer9", "agent1", "ping", "", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	if events[0].Kind != realtime.EventCreate || events[0].DocumentID != message.ID {
		t.Fatalf("unexpected event %+v", events[0])
	}
}
