package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryDoc struct {
	id        string
	fields    map[string]any
	createdAt time.Time
	seq       int64
}

// MemoryStore is an in-process DocumentStore used as the injected test
// double. It mirrors the Postgres store's query semantics, including
// insertion-order tiebreaks.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string]map[string]*memoryDoc
	seq         int64
	clock       func() time.Time

	// FailNext makes the next call return the given error, for
	// exercising recoverable-failure paths.
	FailNext error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]*memoryDoc),
		clock:       time.Now,
	}
}

func (s *MemoryStore) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

func (s *MemoryStore) Create(ctx context.Context, collection, id string, data any) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	if id == "" {
		id = uuid.NewString()
	}

	fields, err := toFields(data)
	if err != nil {
		return nil, err
	}

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string]*memoryDoc)
		s.collections[collection] = docs
	}
	if _, exists := docs[id]; exists {
		return nil, fmt.Errorf("document %s/%s already exists", collection, id)
	}

	s.seq++
	doc := &memoryDoc{
		id:        id,
		fields:    fields,
		createdAt: s.clock().UTC(),
		seq:       s.seq,
	}
	docs[id] = doc

	return doc.export()
}

func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.export()
}

func (s *MemoryStore) List(ctx context.Context, collection string, q Query) ([]Document, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, 0, err
	}

	matched := make([]*memoryDoc, 0)
	for _, doc := range s.collections[collection] {
		if matchesFilters(doc.fields, q.Filters) {
			matched = append(matched, doc)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		ki, kj := matched[i].orderKey(q.OrderField), matched[j].orderKey(q.OrderField)
		if ki != kj {
			if q.Descending {
				return ki > kj
			}
			return ki < kj
		}
		if q.Descending {
			return matched[i].seq > matched[j].seq
		}
		return matched[i].seq < matched[j].seq
	})

	total := len(matched)
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]Document, 0, len(matched))
	for _, doc := range matched {
		exported, err := doc.export()
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *exported)
	}
	return out, total, nil
}

func (s *MemoryStore) Update(ctx context.Context, collection, id string, patch map[string]any) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return nil, err
	}

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}

	normalized, err := toFields(patch)
	if err != nil {
		return nil, err
	}
	for field, value := range normalized {
		doc.fields[field] = value
	}

	return doc.export()
}

func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.takeFailure(); err != nil {
		return err
	}

	if _, ok := s.collections[collection][id]; !ok {
		return ErrNotFound
	}
	delete(s.collections[collection], id)
	return nil
}

func (d *memoryDoc) export() (*Document, error) {
	data, err := json.Marshal(d.fields)
	if err != nil {
		return nil, err
	}
	return &Document{ID: d.id, Data: data, CreatedAt: d.createdAt}, nil
}

func (d *memoryDoc) orderKey(field string) string {
	if field == "" {
		return d.createdAt.Format(TimeLayout)
	}
	value, _ := d.fields[field].(string)
	// Normalize timestamps to the fixed-width layout so variable-width
	// fractions compare chronologically, like the timestamptz cast in
	// the Postgres store.
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC().Format(TimeLayout)
	}
	return value
}

// toFields normalizes any JSON-marshalable value into the canonical
// decoded form, so filter comparisons behave like JSONB containment.
func toFields(data any) (map[string]any, error) {
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	var fields map[string]any
	if err := json.Unmarshal(encoded, &fields); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}
	return fields, nil
}

func matchesFilters(fields map[string]any, filters []Filter) bool {
	for _, f := range filters {
		if !matchesFilter(fields, f) {
			return false
		}
	}
	return true
}

func matchesFilter(fields map[string]any, f Filter) bool {
	value, ok := fields[f.Field]
	if !ok {
		return false
	}

	switch f.Op {
	case OpEqual:
		return jsonEqual(value, f.Value)
	case OpContains:
		items, ok := value.([]any)
		if !ok {
			return false
		}
		for _, item := range items {
			if jsonEqual(item, f.Value) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func jsonEqual(a, b any) bool {
	left, err := json.Marshal(a)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(left) == string(right)
}
