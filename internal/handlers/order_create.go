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

	"marketplace/internal/middleware"
	"marketplace/internal/models"
)

type createOrderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

type createOrderRequest struct {
	Items []createOrderItemRequest `json:"items" binding:"required"`
}

// CreateOrder places a buyer order: the requested products are snapshotted
// into the order, the total and platform fee are computed once, and stock is
// decremented with a conditional update inside the same transaction so a
// concurrent buyer cannot oversell.
func CreateOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		buyerID, ok := middleware.UserID(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		requested, err := validateOrderItems(req.Items)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, err.Error())
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		session, err := db.Client().StartSession()
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		defer session.EndSession(ctx)

		var order models.Order
		_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
			items := make([]models.OrderItem, 0, len(requested))
			sellerID := primitive.NilObjectID
			var total int64

			for _, item := range requested {
				var product models.Product
				err := db.Collection("products").FindOne(
					sessCtx,
					bson.M{"_id": item.productID},
				).Decode(&product)
				if err == mongo.ErrNoDocuments {
					return nil, productNotFoundError{ProductID: item.productID}
				}
				if err != nil {
					return nil, err
				}

				if sellerID.IsZero() {
					sellerID = product.SellerID
				} else if sellerID != product.SellerID {
					return nil, errMixedSellers
				}
				if product.SellerID == buyerID {
					return nil, errOwnProduct
				}

				if product.Stock < item.quantity {
					return nil, outOfStockError{
						ProductID: item.productID,
						Available: product.Stock,
						Requested: item.quantity,
					}
				}

				items = append(items, models.OrderItem{
					ProductID: product.ID,
					Name:      product.Name,
					Price:     product.Price,
					Quantity:  item.quantity,
					ImageURL:  product.ImageURL,
				})
				total += product.Price * int64(item.quantity)

				filter := bson.M{
					"_id":   item.productID,
					"stock": bson.M{"$gte": item.quantity},
				}
				update := bson.M{"$inc": bson.M{"stock": -item.quantity}}

				res, err := db.Collection("products").UpdateOne(sessCtx, filter, update)
				if err != nil {
					return nil, err
				}
				if res.MatchedCount == 0 {
					return nil, outOfStockError{
						ProductID: item.productID,
						Available: product.Stock,
						Requested: item.quantity,
					}
				}
			}

			order = models.Order{
				BuyerID:     buyerID,
				SellerID:    sellerID,
				Items:       items,
				TotalAmount: total,
				PlatformFee: platformFee(total),
				Status:      models.StatusAwaitingPayment,
				CreatedAt:   time.Now(),
			}

			res, err := db.Collection("orders").InsertOne(sessCtx, order)
			if err != nil {
				return nil, err
			}
			if id, ok := res.InsertedID.(primitive.ObjectID); ok {
				order.ID = id
			}
			return nil, nil
		})
		if err != nil {
			var stockErr outOfStockError
			if errors.As(err, &stockErr) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":     "insufficient stock",
					"productId": stockErr.ProductID.Hex(),
					"available": stockErr.Available,
					"requested": stockErr.Requested,
				})
				return
			}
			var notFoundErr productNotFoundError
			if errors.As(err, &notFoundErr) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error":     "product not found",
					"productId": notFoundErr.ProductID.Hex(),
				})
				return
			}
			if errors.Is(err, errMixedSellers) || errors.Is(err, errOwnProduct) {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}

		log.Println("[ORDER] [INFO] order created:", order.ID.Hex(), "buyer:", buyerID.Hex())
		c.JSON(http.StatusCreated, order)
	}
}

type requestedItem struct {
	productID primitive.ObjectID
	quantity  int
}

func validateOrderItems(items []createOrderItemRequest) ([]requestedItem, error) {
	if len(items) == 0 {
		return nil, errors.New("at least one item is required")
	}

	out := make([]requestedItem, 0, len(items))
	seen := make(map[primitive.ObjectID]bool, len(items))
	for _, item := range items {
		productID, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return nil, errors.New("invalid productId")
		}
		if item.Quantity <= 0 {
			return nil, errors.New("quantity must be greater than zero")
		}
		if seen[productID] {
			return nil, errors.New("duplicate productId")
		}
		seen[productID] = true
		out = append(out, requestedItem{productID: productID, quantity: item.Quantity})
	}
	return out, nil
}

var (
	errMixedSellers = errors.New("all items must belong to one seller")
	errOwnProduct   = errors.New("cannot order your own product")
)

type outOfStockError struct {
	ProductID primitive.ObjectID
	Available int
	Requested int
}

func (e outOfStockError) Error() string {
	return "product out of stock"
}

type productNotFoundError struct {
	ProductID primitive.ObjectID
}

func (e productNotFoundError) Error() string {
	return "product not found"
}
