package realtime

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Tap observes every change event of a table in commit order, in addition to
// broker fan-out. The notification gate and the admin order view hang off
// taps.
type Tap func(ctx context.Context, evt ChangeEvent)

// Watcher opens one change stream per watched collection and feeds the
// broker. One goroutine per collection keeps per-row commit order intact.
type Watcher struct {
	db     *mongo.Database
	broker *Broker
	taps   map[string][]Tap
}

func NewWatcher(db *mongo.Database, broker *Broker) *Watcher {
	return &Watcher{
		db:     db,
		broker: broker,
		taps:   make(map[string][]Tap),
	}
}

// Tap registers fn for every event on table. Must be called before Run.
func (w *Watcher) Tap(table string, fn Tap) {
	w.taps[table] = append(w.taps[table], fn)
}

// Run watches the orders and chat collections until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	go w.watch(ctx, TableOrders)
	go w.watch(ctx, TableChat)
}

type streamEvent struct {
	OperationType string `bson:"operationType"`
	FullDocument  bson.M `bson:"fullDocument"`
	DocumentKey   struct {
		ID primitive.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
}

func (w *Watcher) watch(ctx context.Context, table string) {
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{
			"operationType": bson.M{"$in": bson.A{"insert", "update", "replace"}},
		}}},
	}

	for {
		if ctx.Err() != nil {
			return
		}

		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		stream, err := w.db.Collection(table).Watch(ctx, pipeline, opts)
		if err != nil {
			log.Printf("[REALTIME] [ERROR] watch %s failed: %v", table, err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		log.Printf("[REALTIME] [INFO] watching %s", table)
		w.pump(ctx, table, stream)
		stream.Close(context.Background())
	}
}

func (w *Watcher) pump(ctx context.Context, table string, stream *mongo.ChangeStream) {
	for stream.Next(ctx) {
		var ev streamEvent
		if err := stream.Decode(&ev); err != nil {
			log.Printf("[REALTIME] [ERROR] decode %s event: %v", table, err)
			continue
		}
		if ev.FullDocument == nil {
			continue
		}

		evt := ChangeEvent{
			Table: table,
			Event: EventUpdate,
			DocID: ev.DocumentKey.ID.Hex(),
			Doc:   ev.FullDocument,
		}
		if ev.OperationType == "insert" {
			evt.Event = EventInsert
		}

		w.broker.Publish(evt)
		for _, tap := range w.taps[table] {
			tap(ctx, evt)
		}
	}

	if err := stream.Err(); err != nil && ctx.Err() == nil {
		log.Printf("[REALTIME] [ERROR] %s stream closed: %v", table, err)
	}
}
