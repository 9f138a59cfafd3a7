package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/middleware"
	"marketplace/internal/models"
)

// GetMyOrders lists the buyer's own orders, newest first.
func GetMyOrders(db *mongo.Database) gin.HandlerFunc {
	return listOrders(db, func(actorID primitive.ObjectID) bson.M {
		return bson.M{"buyerId": actorID}
	})
}

// GetSellerOrders lists incoming orders for the seller, newest first.
func GetSellerOrders(db *mongo.Database) gin.HandlerFunc {
	return listOrders(db, func(actorID primitive.ObjectID) bson.M {
		return bson.M{"sellerId": actorID}
	})
}

// GetCourierJobs lists the open job pool: every order ready for pickup,
// claimable by any courier.
func GetCourierJobs(db *mongo.Database) gin.HandlerFunc {
	return listOrders(db, func(actorID primitive.ObjectID) bson.M {
		return bson.M{"status": models.StatusReadyForPickup}
	})
}

// GetCourierActiveJobs lists the courier's in-flight deliveries.
func GetCourierActiveJobs(db *mongo.Database) gin.HandlerFunc {
	return listOrders(db, func(actorID primitive.ObjectID) bson.M {
		return bson.M{"courierId": actorID, "status": models.StatusOutForDelivery}
	})
}

func listOrders(db *mongo.Database, filterFor func(primitive.ObjectID) bson.M) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("orders").Find(ctx, filterFor(actorID), opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "orders could not be fetched"})
			return
		}
		defer cursor.Close(ctx)

		orders := []models.Order{}
		if err := cursor.All(ctx, &orders); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to parse orders"})
			return
		}

		c.JSON(http.StatusOK, orders)
	}
}

// GetOrder returns a single order to its parties (or an admin).
func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, ok := middleware.UserID(c)
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

		var order models.Order
		if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}

		if !order.Party(actorID) && middleware.Role(c) != models.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

// GetPaymentInstructions returns what the buyer needs to settle the order
// off-platform: amount, the seller's bank details, and a deep link into the
// seller's messaging app pre-filled with the order context.
func GetPaymentInstructions(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID, ok := middleware.UserID(c)
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

		var order models.Order
		if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		if order.BuyerID != actorID {
			c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}

		var seller models.User
		if err := db.Collection("users").FindOne(ctx, bson.M{"_id": order.SellerID}).Decode(&seller); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "seller not found"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"orderId":     order.ID.Hex(),
			"totalAmount": order.TotalAmount,
			"platformFee": order.PlatformFee,
			"status":      order.Status,
			"seller": gin.H{
				"name":          seller.Name,
				"bankName":      seller.BankName,
				"accountNumber": seller.AccountNumber,
				"phone":         seller.Phone,
			},
			"whatsappUrl": paymentLink(seller.Phone, order.ID.Hex()),
		})
	}
}

// paymentLink builds the wa.me deep link used to confirm payment and agree
// on the delivery fee with the seller.
func paymentLink(phone, orderID string) string {
	text := fmt.Sprintf("Hello, I placed order #%s. Please confirm payment and the delivery fee.", orderID)
	return "https://wa.me/" + phone + "?text=" + url.QueryEscape(text)
}
