package realtime

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
)

func TestBrokerPublishRouting(t *testing.T) {
	b := NewBroker()

	orders := b.Subscribe(Filter{Table: TableOrders, Event: EventAll})
	chat := b.Subscribe(Filter{Table: TableChat, Event: EventInsert})

	evt := ChangeEvent{Table: TableOrders, Event: EventInsert, DocID: "a", Doc: bson.M{}}
	b.Publish(evt)

	select {
	case got := <-orders.C:
		if got.DocID != "a" {
			t.Fatalf("wrong event: %+v", got)
		}
	default:
		t.Fatal("orders subscription did not receive the event")
	}

	select {
	case got := <-chat.C:
		t.Fatalf("chat subscription must not receive order events, got %+v", got)
	default:
	}
}

func TestBrokerUnsubscribeClosesChannel(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(Filter{Table: TableOrders, Event: EventAll})

	b.Unsubscribe(sub.ID)
	if b.SubscriptionCount() != 0 {
		t.Fatalf("expected 0 subscriptions, got %d", b.SubscriptionCount())
	}

	if _, open := <-sub.C; open {
		t.Fatal("channel must be closed after Unsubscribe")
	}

	// Publishing after unsubscribe must not panic on the closed channel.
	b.Publish(ChangeEvent{Table: TableOrders, Event: EventInsert})
}

func TestBrokerDropsWhenSubscriberIsFull(t *testing.T) {
	b := NewBroker()
	sub := b.Subscribe(Filter{Table: TableOrders, Event: EventAll})

	for i := 0; i < subscriptionBuffer+10; i++ {
		b.Publish(ChangeEvent{Table: TableOrders, Event: EventInsert, DocID: "x"})
	}

	if len(sub.C) != subscriptionBuffer {
		t.Fatalf("expected buffer to hold %d events, got %d", subscriptionBuffer, len(sub.C))
	}
}
