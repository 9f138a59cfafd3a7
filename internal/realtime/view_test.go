package realtime

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
)

func orderEvent(order models.Order) ChangeEvent {
	return ChangeEvent{
		Table: TableOrders,
		Event: EventUpdate,
		DocID: order.ID.Hex(),
		Doc: bson.M{
			"_id":         order.ID,
			"buyerId":     order.BuyerID,
			"sellerId":    order.SellerID,
			"totalAmount": order.TotalAmount,
			"platformFee": order.PlatformFee,
			"status":      order.Status,
		},
	}
}

func TestOrderViewApplyIsIdempotent(t *testing.T) {
	v := NewOrderView()
	order := models.Order{
		ID:          primitive.NewObjectID(),
		BuyerID:     primitive.NewObjectID(),
		SellerID:    primitive.NewObjectID(),
		TotalAmount: 100000,
		PlatformFee: 3000,
		Status:      models.StatusProcessing,
	}

	evt := orderEvent(order)
	v.Apply(evt)
	first := v.Stats()

	// Duplicate delivery of the same event must change nothing.
	v.Apply(evt)
	v.Apply(evt)

	if v.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", v.Len())
	}
	if got := v.Stats(); got != first {
		t.Fatalf("stats changed on duplicate apply: %+v vs %+v", got, first)
	}
}

func TestOrderViewStatsExcludeCancelled(t *testing.T) {
	v := NewOrderView()
	seller := primitive.NewObjectID()

	live := models.Order{
		ID:          primitive.NewObjectID(),
		SellerID:    seller,
		TotalAmount: 100000,
		PlatformFee: 3000,
		Status:      models.StatusCompleted,
	}
	cancelled := models.Order{
		ID:          primitive.NewObjectID(),
		SellerID:    primitive.NewObjectID(),
		TotalAmount: 50000,
		PlatformFee: 1500,
		Status:      models.StatusCancelled,
	}
	v.Seed([]models.Order{live, cancelled})

	got := v.Stats()
	want := Stats{GrossAmount: 100000, PlatformFees: 3000, Transactions: 1, ActiveSellers: 1}
	if got != want {
		t.Fatalf("Stats = %+v, want %+v", got, want)
	}
}

func TestOrderViewApplyReplacesRow(t *testing.T) {
	v := NewOrderView()
	order := models.Order{
		ID:          primitive.NewObjectID(),
		SellerID:    primitive.NewObjectID(),
		TotalAmount: 100000,
		PlatformFee: 3000,
		Status:      models.StatusAwaitingPayment,
	}
	v.Apply(orderEvent(order))

	order.Status = models.StatusCancelled
	v.Apply(orderEvent(order))

	if got := v.Stats(); got.Transactions != 0 {
		t.Fatalf("cancelled order still counted: %+v", got)
	}
	if stored, ok := v.Get(order.ID.Hex()); !ok || stored.Status != models.StatusCancelled {
		t.Fatalf("row not replaced: %+v", stored)
	}
}
