package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/storage"
)

// CompleteOrder closes the delivery: the assigned courier or the buyer
// uploads a proof-of-receipt photo and the order moves out_for_delivery →
// completed with the proof URL recorded in the same conditional update.
// Without a proof file the transition is rejected and the status is
// untouched.
func CompleteOrder(db *mongo.Database, disk storage.Disk) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders/:id/complete"
		defer handlePanic(c, route)

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

		proofURL, proofKey, err := saveImageUpload(c, disk, "proof", "proofs")
		if err != nil {
			if status, ok := uploadErrorStatus(err); ok {
				c.JSON(status, gin.H{"error": "delivery proof image is required: " + err.Error()})
				return
			}
			log.Println("[ORDER] [ERROR] proof upload failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		order, err := transitionOrder(ctx, db, orderID, models.StatusOutForDelivery,
			bson.M{"$or": []bson.M{
				{"buyerId": actorID},
				{"courierId": actorID},
			}},
			bson.M{"status": models.StatusCompleted, "deliveryProofUrl": proofURL},
		)
		if err != nil {
			// The stored proof belongs to no order; don't leak it.
			if delErr := disk.Delete(proofKey); delErr != nil {
				log.Println("[ORDER] [WARN] orphan proof cleanup failed:", delErr)
			}
			respondTransitionError(c, err)
			return
		}

		log.Println("[ORDER] [INFO] order", orderID.Hex(), "completed by", actorID.Hex())
		c.JSON(http.StatusOK, order)
	}
}
