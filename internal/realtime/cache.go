package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Parties are the up-to-three actor references on an order. CourierID is
// empty until a courier claims the job.
type Parties struct {
	BuyerID   string `json:"buyerId"`
	SellerID  string `json:"sellerId"`
	CourierID string `json:"courierId,omitempty"`
}

// Contains reports whether userID is one of the party references.
func (p Parties) Contains(userID string) bool {
	return userID != "" &&
		(p.BuyerID == userID || p.SellerID == userID || p.CourierID == userID)
}

// Directory resolves the lookups the notification gate needs per message.
type Directory interface {
	OrderParties(ctx context.Context, orderID string) (Parties, error)
	DisplayName(ctx context.Context, userID string) (string, error)
}

/* =======================
   MONGO DIRECTORY
======================= */

type mongoDirectory struct {
	db *mongo.Database
}

func NewMongoDirectory(db *mongo.Database) Directory {
	return &mongoDirectory{db: db}
}

func (d *mongoDirectory) OrderParties(ctx context.Context, orderID string) (Parties, error) {
	id, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return Parties{}, err
	}

	var doc struct {
		BuyerID   primitive.ObjectID  `bson:"buyerId"`
		SellerID  primitive.ObjectID  `bson:"sellerId"`
		CourierID *primitive.ObjectID `bson:"courierId"`
	}
	err = d.db.Collection("orders").FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return Parties{}, err
	}

	parties := Parties{BuyerID: doc.BuyerID.Hex(), SellerID: doc.SellerID.Hex()}
	if doc.CourierID != nil {
		parties.CourierID = doc.CourierID.Hex()
	}
	return parties, nil
}

func (d *mongoDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	id, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return "", err
	}

	var doc struct {
		Name string `bson:"name"`
	}
	err = d.db.Collection("users").FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		return "", err
	}
	return doc.Name, nil
}

/* =======================
   REDIS CACHE LAYER
======================= */

// CachedDirectory fronts a Directory with Redis so the gate's two reads per
// candidate notification hit the store at most once per key per TTL.
// Party sets are invalidated when the courier claim lands (see Invalidate).
type CachedDirectory struct {
	inner Directory
	rdb   *redis.Client
	ttl   time.Duration
}

func NewCachedDirectory(inner Directory, rdb *redis.Client, ttl time.Duration) *CachedDirectory {
	return &CachedDirectory{inner: inner, rdb: rdb, ttl: ttl}
}

func (d *CachedDirectory) OrderParties(ctx context.Context, orderID string) (Parties, error) {
	key := "order_parties:" + orderID

	if raw, err := d.rdb.Get(ctx, key).Result(); err == nil {
		var parties Parties
		if err := json.Unmarshal([]byte(raw), &parties); err == nil {
			return parties, nil
		}
	}

	parties, err := d.inner.OrderParties(ctx, orderID)
	if err != nil {
		return Parties{}, err
	}

	if data, err := json.Marshal(parties); err == nil {
		d.rdb.Set(ctx, key, data, d.ttl)
	}
	return parties, nil
}

func (d *CachedDirectory) DisplayName(ctx context.Context, userID string) (string, error) {
	key := "display_name:" + userID

	if name, err := d.rdb.Get(ctx, key).Result(); err == nil && name != "" {
		return name, nil
	}

	name, err := d.inner.DisplayName(ctx, userID)
	if err != nil {
		return "", err
	}

	d.rdb.Set(ctx, key, name, d.ttl)
	return name, nil
}

// Invalidate drops the cached party set for an order. Called when an order
// update may have assigned the courier, so the new party sees notifications
// without waiting out the TTL.
func (d *CachedDirectory) Invalidate(ctx context.Context, orderID string) {
	d.rdb.Del(ctx, "order_parties:"+orderID)
}
