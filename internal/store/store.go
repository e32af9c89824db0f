package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a document id does not exist in the
// collection. Callers that implement find-or-create treat it as the
// create path, not a failure.
var ErrNotFound = errors.New("document not found")

// TimeLayout is the serialization format for timestamp fields that act
// as order keys. The fractional second is fixed-width, unlike
// RFC3339Nano, so lexicographic order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Document is one record in a collection. Data is the raw JSON object;
// CreatedAt is assigned by the store on insert and is the tiebreak-free
// ordering authority for collections sorted by creation time.
type Document struct {
	ID        string
	Data      []byte
	CreatedAt time.Time
}

// Op is a filter predicate kind.
type Op string

const (
	// OpEqual matches documents whose field equals the value.
	OpEqual Op = "equal"
	// OpContains matches documents whose array field contains the value.
	OpContains Op = "contains"
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a list operation. OrderField names a timestamp field
// inside the document to sort by; empty means the store-assigned
// creation time, with insertion order breaking ties. Limit <= 0 means
// no limit.
type Query struct {
	Filters    []Filter
	OrderField string
	Descending bool
	Limit      int
	Offset     int
}

func (q Query) WithFilter(field string, op Op, value any) Query {
	q.Filters = append(q.Filters, Filter{Field: field, Op: op, Value: value})
	return q
}

// DocumentStore is the boundary to the backing document database. All
// messaging state lives behind this interface; implementations must
// round-trip JSON field names unchanged.
type DocumentStore interface {
	// Create inserts a document. An empty id asks the store to assign one.
	Create(ctx context.Context, collection, id string, data any) (*Document, error)
	Get(ctx context.Context, collection, id string) (*Document, error)
	List(ctx context.Context, collection string, query Query) ([]Document, int, error)
	// Update merges the patch fields into the existing document.
	Update(ctx context.Context, collection, id string, patch map[string]any) (*Document, error)
	Delete(ctx context.Context, collection, id string) error
}
