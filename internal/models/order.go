package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order status vocabulary. An order only ever advances along
// awaiting_payment → processing → ready_for_pickup → out_for_delivery →
// completed, or jumps to cancelled from any non-terminal state.
const (
	StatusAwaitingPayment = "awaiting_payment"
	StatusProcessing      = "processing"
	StatusReadyForPickup  = "ready_for_pickup"
	StatusOutForDelivery  = "out_for_delivery"
	StatusCompleted       = "completed"
	StatusCancelled       = "cancelled"
)

// OrderItem is a snapshot of a product at order-creation time. Catalog edits
// after creation never change it.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Price     int64              `bson:"price" json:"price"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	ImageURL  string             `bson:"imageUrl,omitempty" json:"imageUrl,omitempty"`
}

// Order defines the persisted order document.
type Order struct {
	ID               primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	BuyerID          primitive.ObjectID  `bson:"buyerId" json:"buyerId"`
	SellerID         primitive.ObjectID  `bson:"sellerId" json:"sellerId"`
	CourierID        *primitive.ObjectID `bson:"courierId,omitempty" json:"courierId,omitempty"`
	Items            []OrderItem         `bson:"items" json:"items"`
	TotalAmount      int64               `bson:"totalAmount" json:"totalAmount"`
	PlatformFee      int64               `bson:"platformFee" json:"platformFee"`
	Status           string              `bson:"status" json:"status"`
	CourierLat       *float64            `bson:"courierLat,omitempty" json:"courierLat,omitempty"`
	CourierLng       *float64            `bson:"courierLng,omitempty" json:"courierLng,omitempty"`
	DeliveryProofURL string              `bson:"deliveryProofUrl,omitempty" json:"deliveryProofUrl,omitempty"`
	CreatedAt        time.Time           `bson:"createdAt" json:"createdAt"`
}

// IsTerminal reports whether no further transition is legal from status.
func IsTerminal(status string) bool {
	return status == StatusCompleted || status == StatusCancelled
}

// forward edges of the lifecycle graph, keyed by current status.
var nextStatus = map[string]string{
	StatusAwaitingPayment: StatusProcessing,
	StatusProcessing:      StatusReadyForPickup,
	StatusReadyForPickup:  StatusOutForDelivery,
	StatusOutForDelivery:  StatusCompleted,
}

// CanTransition reports whether from → to is a legal order transition.
func CanTransition(from, to string) bool {
	if to == StatusCancelled {
		return !IsTerminal(from)
	}
	return nextStatus[from] == to
}

// Party reports whether userID is the buyer, seller or assigned courier.
func (o *Order) Party(userID primitive.ObjectID) bool {
	if o.BuyerID == userID || o.SellerID == userID {
		return true
	}
	return o.CourierID != nil && *o.CourierID == userID
}
