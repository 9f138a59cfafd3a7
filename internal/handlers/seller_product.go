package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"marketplace/internal/middleware"
	"marketplace/internal/models"
	"marketplace/internal/storage"
)

// SellerProducts lists the seller's own catalog, newest first.
func SellerProducts(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
		cursor, err := db.Collection("products").Find(ctx, bson.M{"sellerId": sellerID}, opts)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		defer cursor.Close(ctx)

		products := []models.Product{}
		if err := cursor.All(ctx, &products); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to parse products"})
			return
		}

		c.JSON(http.StatusOK, products)
	}
}

// parsePrice reads a whole-unit money amount from a form value.
func parsePrice(raw string) (int64, bool) {
	price, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || price <= 0 {
		return 0, false
	}
	return price, true
}

// CreateProduct adds a listing to the seller's catalog from a multipart form:
// name, price, stock, optional description, a required photo and an optional
// short video.
func CreateProduct(db *mongo.Database, disk storage.Disk) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /seller/products"
		defer handlePanic(c, route)

		sellerID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if !strings.HasPrefix(c.GetHeader("Content-Type"), "multipart/form-data") {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "multipart/form-data required"})
			return
		}

		name := strings.TrimSpace(c.PostForm("name"))
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
			return
		}
		price, ok := parsePrice(c.PostForm("price"))
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
			return
		}
		stock, err := strconv.Atoi(strings.TrimSpace(c.PostForm("stock")))
		if err != nil || stock < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stock must be zero or greater"})
			return
		}

		imageURL, imageKey, err := saveImageUpload(c, disk, "image", "products")
		if err != nil {
			if status, ok := uploadErrorStatus(err); ok {
				c.JSON(status, gin.H{"error": "image required: " + err.Error()})
				return
			}
			log.Println("[PRODUCT] [ERROR] image upload failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
			return
		}

		videoURL, videoKey := "", ""
		if _, err := c.FormFile("video"); err == nil {
			videoURL, videoKey, err = saveVideoUpload(c, disk, "video", "products")
			if err != nil {
				if delErr := disk.Delete(imageKey); delErr != nil {
					log.Println("[PRODUCT] [WARN] image cleanup failed:", delErr)
				}
				if status, ok := uploadErrorStatus(err); ok {
					c.JSON(status, gin.H{"error": err.Error()})
					return
				}
				log.Println("[PRODUCT] [ERROR] video upload failed:", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
				return
			}
		}

		product := models.Product{
			SellerID:    sellerID,
			Name:        name,
			Price:       price,
			Stock:       stock,
			Description: strings.TrimSpace(c.PostForm("description")),
			ImageURL:    imageURL,
			ImageKey:    imageKey,
			VideoURL:    videoURL,
			VideoKey:    videoKey,
			CreatedAt:   time.Now(),
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		res, err := db.Collection("products").InsertOne(ctx, product)
		if err != nil {
			log.Println("[PRODUCT] [ERROR] insert failed:", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}
		if id, ok := res.InsertedID.(primitive.ObjectID); ok {
			product.ID = id
		}

		log.Println("[PRODUCT] [INFO] product created:", product.ID.Hex(), "seller:", sellerID.Hex())
		c.JSON(http.StatusCreated, product)
	}
}

// UpdateProduct edits the seller's own listing. Fields are optional; a new
// photo replaces and removes the old one. Live orders are unaffected because
// they carry their own item snapshots.
func UpdateProduct(db *mongo.Database, disk storage.Disk) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		owned := bson.M{"_id": id, "sellerId": sellerID}

		var existing models.Product
		if err := db.Collection("products").FindOne(ctx, owned).Decode(&existing); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}

		updateSet := bson.M{}

		if raw, set := c.GetPostForm("name"); set {
			name := strings.TrimSpace(raw)
			if name == "" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "name required"})
				return
			}
			updateSet["name"] = name
		}
		if raw, set := c.GetPostForm("price"); set {
			price, ok := parsePrice(raw)
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid price"})
				return
			}
			updateSet["price"] = price
		}
		if raw, set := c.GetPostForm("stock"); set {
			stock, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil || stock < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "stock must be zero or greater"})
				return
			}
			updateSet["stock"] = stock
		}
		if raw, set := c.GetPostForm("description"); set {
			updateSet["description"] = strings.TrimSpace(raw)
		}

		newImageKey := ""
		if _, err := c.FormFile("image"); err == nil {
			imageURL, imageKey, err := saveImageUpload(c, disk, "image", "products")
			if err != nil {
				if status, ok := uploadErrorStatus(err); ok {
					c.JSON(status, gin.H{"error": err.Error()})
					return
				}
				log.Println("[PRODUCT] [ERROR] image upload failed:", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
				return
			}
			updateSet["imageUrl"] = imageURL
			updateSet["imageKey"] = imageKey
			newImageKey = imageKey
		}

		if len(updateSet) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
			return
		}

		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		var updated models.Product
		err = db.Collection("products").
			FindOneAndUpdate(ctx, owned, bson.M{"$set": updateSet}, opts).
			Decode(&updated)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		if newImageKey != "" && existing.ImageKey != "" && existing.ImageKey != newImageKey {
			if err := disk.Delete(existing.ImageKey); err != nil {
				log.Println("[PRODUCT] [WARN] old image delete failed:", err)
			}
		}

		c.JSON(http.StatusOK, updated)
	}
}

// DeleteProduct removes the seller's own listing and its stored media.
// Existing orders keep their snapshots.
func DeleteProduct(db *mongo.Database, disk storage.Disk) gin.HandlerFunc {
	return func(c *gin.Context) {
		sellerID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		id, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		var existing models.Product
		err = db.Collection("products").
			FindOneAndDelete(ctx, bson.M{"_id": id, "sellerId": sellerID}).
			Decode(&existing)
		if err == mongo.ErrNoDocuments {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
			return
		}

		for _, key := range []string{existing.ImageKey, existing.VideoKey} {
			if key == "" {
				continue
			}
			if err := disk.Delete(key); err != nil {
				log.Println("[PRODUCT] [WARN] media delete failed:", err)
			}
		}

		log.Println("[PRODUCT] [INFO] product deleted:", id.Hex(), "seller:", sellerID.Hex())
		c.JSON(http.StatusOK, gin.H{"message": "product deleted"})
	}
}
