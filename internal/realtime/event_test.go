package realtime

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestFilterMatch(t *testing.T) {
	sellerID := primitive.NewObjectID()
	evt := ChangeEvent{
		Table: TableOrders,
		Event: EventUpdate,
		Doc:   bson.M{"sellerId": sellerID, "status": "processing"},
	}

	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"table+event", Filter{Table: TableOrders, Event: EventUpdate}, true},
		{"wildcard event", Filter{Table: TableOrders, Event: EventAll}, true},
		{"wrong table", Filter{Table: TableChat, Event: EventUpdate}, false},
		{"wrong event", Filter{Table: TableOrders, Event: EventInsert}, false},
		{"column equality on object id", Filter{Table: TableOrders, Event: EventAll, Column: "sellerId", Value: sellerID.Hex()}, true},
		{"column equality on string", Filter{Table: TableOrders, Event: EventAll, Column: "status", Value: "processing"}, true},
		{"column mismatch", Filter{Table: TableOrders, Event: EventAll, Column: "status", Value: "completed"}, false},
		{"missing column", Filter{Table: TableOrders, Event: EventAll, Column: "buyerId", Value: "x"}, false},
	}
	for _, tc := range cases {
		if got := tc.filter.Match(evt); got != tc.want {
			t.Errorf("%s: Match = %v, want %v", tc.name, got, tc.want)
		}
	}
}
