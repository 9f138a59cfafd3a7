package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"marketplace/internal/models"
)

type fakeDirectory struct {
	parties Parties
	names   map[string]string
}

func (d *fakeDirectory) OrderParties(ctx context.Context, orderID string) (Parties, error) {
	return d.parties, nil
}

func (d *fakeDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	return d.names[userID], nil
}

type recordingNotifier struct {
	sent map[string][][]byte
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{sent: map[string][][]byte{}}
}

func (n *recordingNotifier) Notify(userID string, data []byte) {
	n.sent[userID] = append(n.sent[userID], data)
}

func TestGateNotifiesPartiesExceptSender(t *testing.T) {
	buyer := primitive.NewObjectID()
	seller := primitive.NewObjectID()
	courier := primitive.NewObjectID()

	dir := &fakeDirectory{
		parties: Parties{BuyerID: buyer.Hex(), SellerID: seller.Hex(), CourierID: courier.Hex()},
		names:   map[string]string{buyer.Hex(): "Ani"},
	}
	notifier := newRecordingNotifier()
	gate := NewGate(dir, notifier)

	msg := models.ChatMessage{
		OrderID:   primitive.NewObjectID(),
		SenderID:  buyer,
		Body:      "on my way",
		CreatedAt: time.Now(),
	}
	gate.Deliver(context.Background(), msg)

	if len(notifier.sent[buyer.Hex()]) != 0 {
		t.Fatal("sender must not be notified")
	}
	for _, id := range []string{seller.Hex(), courier.Hex()} {
		frames := notifier.sent[id]
		if len(frames) != 1 {
			t.Fatalf("party %s expected 1 notification, got %d", id, len(frames))
		}
		var n Notification
		if err := json.Unmarshal(frames[0], &n); err != nil {
			t.Fatalf("undecodable frame: %v", err)
		}
		if n.Type != "notification" || n.Body != "on my way" || n.SenderName != "Ani" {
			t.Fatalf("unexpected frame: %+v", n)
		}
	}
}

func TestGateIgnoresNonPartySender(t *testing.T) {
	buyer := primitive.NewObjectID()
	seller := primitive.NewObjectID()

	dir := &fakeDirectory{
		parties: Parties{BuyerID: buyer.Hex(), SellerID: seller.Hex()},
		names:   map[string]string{},
	}
	notifier := newRecordingNotifier()
	gate := NewGate(dir, notifier)

	gate.Deliver(context.Background(), models.ChatMessage{
		OrderID:  primitive.NewObjectID(),
		SenderID: primitive.NewObjectID(), // not on the order
		Body:     "spam",
	})

	if len(notifier.sent) != 0 {
		t.Fatalf("non-party message must alert nobody, got %v", notifier.sent)
	}
}

func TestGateFallsBackToAnonymousName(t *testing.T) {
	buyer := primitive.NewObjectID()
	seller := primitive.NewObjectID()

	dir := &fakeDirectory{
		parties: Parties{BuyerID: buyer.Hex(), SellerID: seller.Hex()},
		names:   map[string]string{},
	}
	notifier := newRecordingNotifier()
	gate := NewGate(dir, notifier)

	gate.Deliver(context.Background(), models.ChatMessage{
		OrderID:  primitive.NewObjectID(),
		SenderID: buyer,
		Body:     "hi",
	})

	var n Notification
	if err := json.Unmarshal(notifier.sent[seller.Hex()][0], &n); err != nil {
		t.Fatalf("undecodable frame: %v", err)
	}
	if n.SenderName != "Someone" {
		t.Fatalf("expected fallback sender name, got %q", n.SenderName)
	}
}

func TestGateHandleChatIgnoresOtherTables(t *testing.T) {
	notifier := newRecordingNotifier()
	gate := NewGate(&fakeDirectory{}, notifier)

	gate.HandleChat(context.Background(), ChangeEvent{Table: TableOrders, Event: EventInsert})
	gate.HandleChat(context.Background(), ChangeEvent{Table: TableChat, Event: EventUpdate})

	if len(notifier.sent) != 0 {
		t.Fatal("non-chat-insert events must be ignored")
	}
}
