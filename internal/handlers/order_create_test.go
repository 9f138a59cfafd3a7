package handlers

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestValidateOrderItems(t *testing.T) {
	id := primitive.NewObjectID().Hex()
	other := primitive.NewObjectID().Hex()

	got, err := validateOrderItems([]createOrderItemRequest{
		{ProductID: id, Quantity: 2},
		{ProductID: other, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("valid items rejected: %v", err)
	}
	if len(got) != 2 || got[0].quantity != 2 {
		t.Fatalf("unexpected parse result: %+v", got)
	}
}

func TestValidateOrderItems_Rejects(t *testing.T) {
	id := primitive.NewObjectID().Hex()

	cases := []struct {
		name  string
		items []createOrderItemRequest
	}{
		{"empty", nil},
		{"bad id", []createOrderItemRequest{{ProductID: "nope", Quantity: 1}}},
		{"zero quantity", []createOrderItemRequest{{ProductID: id, Quantity: 0}}},
		{"negative quantity", []createOrderItemRequest{{ProductID: id, Quantity: -1}}},
		{"duplicate", []createOrderItemRequest{
			{ProductID: id, Quantity: 1},
			{ProductID: id, Quantity: 2},
		}},
	}
	for _, tc := range cases {
		if _, err := validateOrderItems(tc.items); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
}
