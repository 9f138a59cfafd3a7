// Package realtime fans out row-level change events from the entity store to
// subscribed WebSocket views, and hosts the application-wide chat
// notification gate.
package realtime

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Watched tables.
const (
	TableOrders = "orders"
	TableChat   = "chat_messages"
)

// Change event types. EventAll subscribes to both.
const (
	EventInsert = "insert"
	EventUpdate = "update"
	EventAll    = "*"
)

// ChangeEvent is a single insert/update observed on a watched collection.
// Doc is the full post-image of the row.
type ChangeEvent struct {
	Table string
	Event string
	DocID string
	Doc   bson.M
}

// Filter scopes a subscription: table, event type, and an optional
// column-equality predicate ("sellerId" equals "<hex id>").
type Filter struct {
	Table  string `json:"table"`
	Event  string `json:"event"`
	Column string `json:"column,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Match reports whether evt passes the filter.
func (f Filter) Match(evt ChangeEvent) bool {
	if f.Table != evt.Table {
		return false
	}
	if f.Event != EventAll && f.Event != evt.Event {
		return false
	}
	if f.Column == "" {
		return true
	}
	return fieldString(evt.Doc, f.Column) == f.Value
}

// fieldString renders a document field for equality comparison. Object ids
// compare by hex so filters can be expressed with the ids clients already
// hold.
func fieldString(doc bson.M, column string) string {
	value, ok := doc[column]
	if !ok || value == nil {
		return ""
	}
	switch v := value.(type) {
	case primitive.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
