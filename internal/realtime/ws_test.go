package realtime

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

func TestForwardAfterDisconnectDoesNotPanic(t *testing.T) {
	b := NewBroker()
	hub := NewHub(b)
	c := &Client{
		hub:    hub,
		send:   make(chan []byte, 1),
		userID: "u1",
		subs:   make(map[string]*Subscription),
	}

	sub := b.Subscribe(Filter{Table: TableOrders, Event: EventAll})
	for i := 0; i < 3; i++ {
		b.Publish(ChangeEvent{Table: TableOrders, Event: EventInsert, DocID: "x", Doc: bson.M{}})
	}

	// Disconnect interleave: the subscription channel is closed with events
	// still buffered, then the hub tears the client down, while forward is
	// yet to drain the buffer.
	b.Unsubscribe(sub.ID)
	c.closeSend()

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.forward(sub)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward did not drain the closed subscription")
	}
}

func TestClientCloseSendIsIdempotent(t *testing.T) {
	c := &Client{send: make(chan []byte, 1)}

	c.closeSend()
	c.closeSend()

	// Enqueue after teardown is a silent no-op.
	c.enqueue([]byte("late"))

	if _, open := <-c.send; open {
		t.Fatal("send queue must be closed and empty")
	}
}
