package realtime

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"marketplace/internal/models"
)

// Notifier delivers a notification frame to a user's open views. Users with
// no open connection receive nothing.
type Notifier interface {
	Notify(userID string, data []byte)
}

// Notification is the alert frame raised for chat messages on orders the
// recipient is party to.
type Notification struct {
	Type       string    `json:"type"`
	OrderID    string    `json:"orderId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Body       string    `json:"body"`
	SentAt     time.Time `json:"sentAt"`
}

// Gate is the application-wide chat listener. It observes every chat insert
// in the system and alerts exactly the order's parties, never the sender.
type Gate struct {
	dir      Directory
	notifier Notifier
}

func NewGate(dir Directory, notifier Notifier) *Gate {
	return &Gate{dir: dir, notifier: notifier}
}

// HandleChat is the chat_messages tap. Non-insert events are ignored (the
// stream is insert-only anyway).
func (g *Gate) HandleChat(ctx context.Context, evt ChangeEvent) {
	if evt.Table != TableChat || evt.Event != EventInsert {
		return
	}

	raw, err := bson.Marshal(evt.Doc)
	if err != nil {
		return
	}
	var msg models.ChatMessage
	if err := bson.Unmarshal(raw, &msg); err != nil {
		log.Println("[GATE] [ERROR] undecodable chat message:", err)
		return
	}

	g.Deliver(ctx, msg)
}

// Deliver resolves the message's order parties and pushes a notification to
// each party other than the sender. Messages on orders with no resolvable
// parties are discarded silently.
func (g *Gate) Deliver(ctx context.Context, msg models.ChatMessage) {
	orderID := msg.OrderID.Hex()
	senderID := msg.SenderID.Hex()

	parties, err := g.dir.OrderParties(ctx, orderID)
	if err != nil {
		log.Printf("[GATE] [ERROR] order %s lookup failed: %v", orderID, err)
		return
	}

	// A message from outside the order's party set alerts nobody.
	if !parties.Contains(senderID) {
		return
	}

	recipients := make([]string, 0, 3)
	for _, ref := range []string{parties.BuyerID, parties.SellerID, parties.CourierID} {
		if ref == "" || ref == senderID {
			continue
		}
		recipients = append(recipients, ref)
	}
	if len(recipients) == 0 {
		return
	}

	senderName, err := g.dir.DisplayName(ctx, senderID)
	if err != nil || senderName == "" {
		senderName = "Someone"
	}

	data, err := json.Marshal(Notification{
		Type:       "notification",
		OrderID:    orderID,
		SenderID:   senderID,
		SenderName: senderName,
		Body:       msg.Body,
		SentAt:     msg.CreatedAt,
	})
	if err != nil {
		return
	}

	for _, userID := range recipients {
		g.notifier.Notify(userID, data)
	}
}
