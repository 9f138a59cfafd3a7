package handlers

import (
	"context"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/models"
	"marketplace/internal/realtime"
)

// GetStats serves the admin dashboard headline numbers out of the
// change-stream-maintained order view, so repeated polling never touches the
// database.
func GetStats(view *realtime.OrderView) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, view.Stats())
	}
}

// GetAllOrders lists every order for the admin panel, paginated and
// optionally filtered by status.
func GetAllOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		filter := bson.M{}
		if status := strings.TrimSpace(c.Query("status")); status != "" {
			filter["status"] = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		total, err := db.Collection("orders").CountDocuments(ctx, filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		totalPages := int64(0)
		if total > 0 {
			totalPages = int64(math.Ceil(float64(total) / float64(limit)))
		}

		opts := options.Find().
			SetSkip((page - 1) * limit).
			SetLimit(limit).
			SetSort(bson.D{{Key: "createdAt", Value: -1}})

		cursor, err := db.Collection("orders").Find(ctx, filter, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		defer cursor.Close(ctx)

		orders := []models.Order{}
		if err := cursor.All(ctx, &orders); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to parse orders"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"data": orders,
			"pagination": gin.H{
				"page":       page,
				"limit":      limit,
				"total":      total,
				"totalPages": totalPages,
			},
		})
	}
}

// AdminCancelOrder cancels an order from any non-terminal status. A completed
// or cancelled order stays as it is and the caller gets the live status back.
func AdminCancelOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		var order models.Order
		err = db.Collection("orders").FindOneAndUpdate(ctx,
			bson.M{
				"_id":    orderID,
				"status": bson.M{"$nin": []string{models.StatusCompleted, models.StatusCancelled}},
			},
			bson.M{"$set": bson.M{"status": models.StatusCancelled}},
			opts,
		).Decode(&order)
		if err == mongo.ErrNoDocuments {
			var current struct {
				Status string `bson:"status"`
			}
			if err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&current); err != nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
				return
			}
			c.JSON(http.StatusConflict, gin.H{"error": "order already finished", "status": current.Status})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		log.Println("[ADMIN] [INFO] order", orderID.Hex(), "cancelled")
		c.JSON(http.StatusOK, order)
	}
}
