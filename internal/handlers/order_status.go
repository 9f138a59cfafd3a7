package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/middleware"
	"marketplace/internal/models"
)

// statusConflictError reports a compare-and-swap transition that lost:
// Current carries the status that actually won, so the caller's view can
// reconcile instead of keeping its optimistic assumption.
type statusConflictError struct {
	Current string
}

func (e statusConflictError) Error() string {
	return "order is in status " + e.Current
}

var errOrderNotFound = errors.New("order not found")

// transitionOrder performs a single conditional update: it matches the order
// only in the expected current status (plus any extra filter) and applies
// set. The filter is the race guard — when two actors contend, exactly one
// update matches.
func transitionOrder(ctx context.Context, db *mongo.Database, orderID primitive.ObjectID, from string, extra bson.M, set bson.M) (models.Order, error) {
	filter := bson.M{"_id": orderID, "status": from}
	for k, v := range extra {
		filter[k] = v
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var order models.Order
	err := db.Collection("orders").
		FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).
		Decode(&order)
	if err == nil {
		return order, nil
	}
	if err != mongo.ErrNoDocuments {
		return models.Order{}, err
	}

	// Lost the swap or wrong actor: report the live status.
	var current struct {
		Status string `bson:"status"`
	}
	if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&current); err != nil {
		if err == mongo.ErrNoDocuments {
			return models.Order{}, errOrderNotFound
		}
		return models.Order{}, err
	}
	return models.Order{}, statusConflictError{Current: current.Status}
}

func respondTransitionError(c *gin.Context, err error) {
	var conflict statusConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": "illegal transition", "status": conflict.Current})
	case errors.Is(err, errOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
	}
}

// SellerAcceptOrder moves awaiting_payment → processing once the seller has
// confirmed the off-platform payment.
func SellerAcceptOrder(db *mongo.Database) gin.HandlerFunc {
	return sellerTransition(db, models.StatusAwaitingPayment, models.StatusProcessing, "accepted")
}

// SellerReadyOrder moves processing → ready_for_pickup, publishing the job
// to the courier pool.
func SellerReadyOrder(db *mongo.Database) gin.HandlerFunc {
	return sellerTransition(db, models.StatusProcessing, models.StatusReadyForPickup, "ready for pickup")
}

func sellerTransition(db *mongo.Database, from, to, verb string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		order, err := transitionOrder(ctx, db, orderID, from,
			bson.M{"sellerId": sellerID},
			bson.M{"status": to},
		)
		if err != nil {
			respondTransitionError(c, err)
			return
		}

		log.Println("[ORDER] [INFO] order", orderID.Hex(), verb, "by seller", sellerID.Hex())
		c.JSON(http.StatusOK, order)
	}
}

// PartyInvalidator drops a cached party set after the courier assignment
// changes it.
type PartyInvalidator interface {
	Invalidate(ctx context.Context, orderID string)
}

// CourierClaimJob assigns the first claiming courier: the conditional update
// matches only while the order is ready_for_pickup with no courier set, so
// of two simultaneous claims exactly one wins and the loser receives the
// winning status in a 409.
func CourierClaimJob(db *mongo.Database, parties PartyInvalidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		courierID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		order, err := transitionOrder(ctx, db, orderID, models.StatusReadyForPickup,
			bson.M{"courierId": nil},
			bson.M{"status": models.StatusOutForDelivery, "courierId": courierID},
		)
		if err != nil {
			respondTransitionError(c, err)
			return
		}

		if parties != nil {
			parties.Invalidate(ctx, orderID.Hex())
		}

		log.Println("[ORDER] [INFO] job", orderID.Hex(), "claimed by courier", courierID.Hex())
		c.JSON(http.StatusOK, order)
	}
}

type locationRequest struct {
	Lat float64 `json:"lat" binding:"required"`
	Lng float64 `json:"lng" binding:"required"`
}

// CourierUpdateLocation records the courier's last-known coordinates. Only
// the assigned courier may write, and only while out_for_delivery.
func CourierUpdateLocation(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		courierID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		var req locationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection("orders").UpdateOne(ctx,
			bson.M{
				"_id":       orderID,
				"status":    models.StatusOutForDelivery,
				"courierId": courierID,
			},
			bson.M{"$set": bson.M{"courierLat": req.Lat, "courierLng": req.Lng}},
		)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if res.MatchedCount == 0 {
			var current struct {
				Status string `bson:"status"`
			}
			if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&current); err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": "not your active delivery", "status": current.Status})
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "location updated"})
	}
}
