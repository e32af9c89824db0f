package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func mustCreate(t *testing.T, s *MemoryStore, collection, id string, data any) *Document {
	t.Helper()
	doc, err := s.Create(context.Background(), collection, id, data)
	if err != nil {
		t.Fatalf("create %s/%s: %v", collection, id, err)
	}
	return doc
}

func TestCreateAssignsIDWhenEmpty(t *testing.T) {
	s := NewMemoryStore()

	doc := mustCreate(t, s, "messages", "", map[string]any{"text": "hi"})
	if doc.ID == "" {
		t.Fatal("expected a generated document id")
	}
	if doc.CreatedAt.IsZero() {
		t.Fatal("expected a server-assigned timestamp")
	}
}

func TestCreateRejectsDuplicateID(t *testing.T) {
	s := NewMemoryStore()
	mustCreate(t, s, "chats", "a_b", map[string]any{"lastMessage": "hey"})

	if _, err := s.Create(context.Background(), "chats", "a_b", map[string]any{}); err == nil {
		t.Fatal("expected duplicate id to be rejected")
	}
}

func TestGetReturnsNotFoundForMissingDocument(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.Get(context.Background(), "chats", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListEqualityFilter(t *testing.T) {
	s := NewMemoryStore()
	mustCreate(t, s, "messages", "", map[string]any{"conversationId": "a_b", "read": false})
	mustCreate(t, s, "messages", "", map[string]any{"conversationId": "a_c", "read": false})
	mustCreate(t, s, "messages", "", map[string]any{"conversationId": "a_b", "read": true})

	query := Query{}.
		WithFilter("conversationId", OpEqual, "a_b").
		WithFilter("read", OpEqual, false)
	docs, total, err := s.List(context.Background(), "messages", query)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(docs) != 1 {
		t.Fatalf("expected a single match, got %d (total %d)", len(docs), total)
	}
}

func TestListContainsFilterMatchesArrayMembers(t *testing.T) {
	s := NewMemoryStore()
	mustCreate(t, s, "chats", "a_b", map[string]any{"participantIds": []string{"a", "b"}})
	mustCreate(t, s, "chats", "b_c", map[string]any{"participantIds": []string{"b", "c"}})

	docs, _, err := s.List(context.Background(), "chats", Query{}.WithFilter("participantIds", OpContains, "a"))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "a_b" {
		t.Fatalf("expected only a_b, got %v", docs)
	}
}

func TestListOrdersByFieldDescending(t *testing.T) {
	s := NewMemoryStore()
	mustCreate(t, s, "chats", "old", map[string]any{"lastUpdated": "2026-01-01T00:00:00Z"})
	mustCreate(t, s, "chats", "new", map[string]any{"lastUpdated": "2026-03-01T00:00:00Z"})
	mustCreate(t, s, "chats", "mid", map[string]any{"lastUpdated": "2026-02-01T00:00:00Z"})

	docs, _, err := s.List(context.Background(), "chats", Query{OrderField: "lastUpdated", Descending: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := []string{docs[0].ID, docs[1].ID, docs[2].ID}
	want := []string{"new", "mid", "old"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestListOrdersVariableWidthFractionsChronologically(t *testing.T) {
	s := NewMemoryStore()
	// RFC3339Nano trims trailing zeros, so these strings do not sort
	// lexicographically in time order.
	mustCreate(t, s, "chats", "older", map[string]any{"lastUpdated": "2026-01-01T00:00:00.12Z"})
	mustCreate(t, s, "chats", "newer", map[string]any{"lastUpdated": "2026-01-01T00:00:00.123Z"})
	mustCreate(t, s, "chats", "oldest", map[string]any{"lastUpdated": "2026-01-01T00:00:00Z"})
	mustCreate(t, s, "chats", "newest", map[string]any{"lastUpdated": "2026-01-01T00:00:00.5Z"})

	docs, _, err := s.List(context.Background(), "chats", Query{OrderField: "lastUpdated", Descending: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"newest", "newer", "older", "oldest"}
	for i := range want {
		if docs[i].ID != want[i] {
			got := make([]string, 0, len(docs))
			for _, doc := range docs {
				got = append(got, doc.ID)
			}
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
}

func TestListDefaultOrderSurvivesFractionTrimming(t *testing.T) {
	s := NewMemoryStore()
	ts := time.Date(2026, 1, 1, 0, 0, 0, 120000000, time.UTC)
	s.clock = func() time.Time { return ts }
	mustCreate(t, s, "messages", "first", map[string]any{"text": "a"})
	ts = time.Date(2026, 1, 1, 0, 0, 0, 123000000, time.UTC)
	mustCreate(t, s, "messages", "second", map[string]any{"text": "b"})

	docs, _, err := s.List(context.Background(), "messages", Query{Descending: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if docs[0].ID != "second" || docs[1].ID != "first" {
		t.Fatalf("expected newest first, got %s then %s", docs[0].ID, docs[1].ID)
	}
}

func TestListLimitOffsetReportsFullTotal(t *testing.T) {
	s := NewMemoryStore()
	for i := 0; i < 5; i++ {
		mustCreate(t, s, "messages", "", map[string]any{"conversationId": "a_b"})
	}

	query := Query{Limit: 2, Offset: 4}.WithFilter("conversationId", OpEqual, "a_b")
	docs, total, err := s.List(context.Background(), "messages", query)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
	if len(docs) != 1 {
		t.Fatalf("expected the final partial page of 1, got %d", len(docs))
	}
}

func TestUpdateMergesPatchIntoExistingFields(t *testing.T) {
	s := NewMemoryStore()
	mustCreate(t, s, "chats", "a_b", map[string]any{
		"lastMessage":  "hi",
		"unreadCounts": map[string]int{"b": 2},
	})

	doc, err := s.Update(context.Background(), "chats", "a_b", map[string]any{"lastMessage": "bye"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	var fields map[string]any
	if err := json.Unmarshal(doc.Data, &fields); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if fields["lastMessage"] != "bye" {
		t.Fatalf("expected patched lastMessage, got %v", fields["lastMessage"])
	}
	if _, ok := fields["unreadCounts"]; !ok {
		t.Fatal("expected untouched fields to survive the patch")
	}
}

func TestUpdateMissingDocumentReturnsNotFound(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.Update(context.Background(), "chats", "missing", map[string]any{"read": true}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesDocument(t *testing.T) {
	s := NewMemoryStore()
	mustCreate(t, s, "messages", "m1", map[string]any{"text": "hi"})

	if err := s.Delete(context.Background(), "messages", "m1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(context.Background(), "messages", "m1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(context.Background(), "messages", "m1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestFailNextSurfacesOnceThenClears(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("store offline")
	s.FailNext = boom

	if _, err := s.Get(context.Background(), "chats", "a_b"); !errors.Is(err, boom) {
		t.Fatalf("expected injected failure, got %v", err)
	}
	if _, err := s.Create(context.Background(), "chats", "a_b", map[string]any{}); err != nil {
		t.Fatalf("expected recovery after injected failure, got %v", err)
	}
}
