package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/middleware"
	"marketplace/internal/models"
)

// loadOrderForParty fetches the order and checks the actor belongs to it.
// Admins read any order's chat but never post into it.
func loadOrderForParty(ctx context.Context, db *mongo.Database, c *gin.Context, allowAdmin bool) (models.Order, bool) {
	actorID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return models.Order{}, false
	}
	orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return models.Order{}, false
	}

	var order models.Order
	if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return models.Order{}, false
	}

	if order.Party(actorID) {
		return order, true
	}
	if allowAdmin && middleware.Role(c) == models.RoleAdmin {
		return order, true
	}
	c.JSON(http.StatusForbidden, gin.H{"error": "not a party to this order"})
	return models.Order{}, false
}

// ListMessages returns the order's chat history in send order.
func ListMessages(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		order, ok := loadOrderForParty(ctx, db, c, true)
		if !ok {
			return
		}

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
		cursor, err := db.Collection("chat_messages").Find(ctx, bson.M{"orderId": order.ID}, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		defer cursor.Close(ctx)

		messages := []models.ChatMessage{}
		if err := cursor.All(ctx, &messages); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to parse messages"})
			return
		}

		c.JSON(http.StatusOK, messages)
	}
}

type postMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// PostMessage appends a message to the order's chat. Messages are
// insert-only; there is no edit or delete.
func PostMessage(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req postMessageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
			return
		}
		body := strings.TrimSpace(req.Body)
		if body == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "body is required"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		order, ok := loadOrderForParty(ctx, db, c, false)
		if !ok {
			return
		}
		senderID, _ := middleware.UserID(c)

		message := models.ChatMessage{
			OrderID:   order.ID,
			SenderID:  senderID,
			Body:      body,
			CreatedAt: time.Now(),
		}
		res, err := db.Collection("chat_messages").InsertOne(ctx, message)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			message.ID = id
		}

		c.JSON(http.StatusCreated, message)
	}
}
