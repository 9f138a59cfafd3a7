package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"marketplace/internal/models"
)

func TestRespondTransitionError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("lost swap carries the winning status", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondTransitionError(c, statusConflictError{Current: models.StatusOutForDelivery})

		if w.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", w.Code)
		}
		var body struct {
			Error  string `json:"error"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("undecodable body: %v", err)
		}
		if body.Status != models.StatusOutForDelivery {
			t.Fatalf("conflict body must carry the live status, got %q", body.Status)
		}
	})

	t.Run("missing order", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondTransitionError(c, errOrderNotFound)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", w.Code)
		}
	})

	t.Run("db error", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondTransitionError(c, errors.New("socket closed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", w.Code)
		}
	})
}

func TestTransitionOrder(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("won swap returns the updated order", func(mt *mtest.T) {
		orderID := primitive.NewObjectID()
		courierID := primitive.NewObjectID()
		mt.AddMockResponses(bson.D{
			{Key: "ok", Value: 1},
			{Key: "value", Value: bson.D{
				{Key: "_id", Value: orderID},
				{Key: "status", Value: models.StatusOutForDelivery},
				{Key: "courierId", Value: courierID},
			}},
		})

		order, err := transitionOrder(context.Background(), mt.DB, orderID,
			models.StatusReadyForPickup,
			bson.M{"courierId": nil},
			bson.M{"status": models.StatusOutForDelivery, "courierId": courierID},
		)
		if err != nil {
			mt.Fatalf("transitionOrder returned error: %v", err)
		}
		if order.Status != models.StatusOutForDelivery {
			mt.Fatalf("unexpected order: %+v", order)
		}
	})

	mt.Run("lost swap reports the winning status", func(mt *mtest.T) {
		orderID := primitive.NewObjectID()
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, "pasarwarga.orders", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: orderID},
				{Key: "status", Value: models.StatusOutForDelivery},
			}),
		)

		_, err := transitionOrder(context.Background(), mt.DB, orderID,
			models.StatusReadyForPickup,
			bson.M{"courierId": nil},
			bson.M{"status": models.StatusOutForDelivery},
		)

		var conflict statusConflictError
		if !errors.As(err, &conflict) {
			mt.Fatalf("expected a status conflict, got %v", err)
		}
		if conflict.Current != models.StatusOutForDelivery {
			mt.Fatalf("conflict must carry the live status, got %q", conflict.Current)
		}
	})

	mt.Run("missing order", func(mt *mtest.T) {
		orderID := primitive.NewObjectID()
		mt.AddMockResponses(
			bson.D{{Key: "ok", Value: 1}, {Key: "value", Value: nil}},
			mtest.CreateCursorResponse(0, "pasarwarga.orders", mtest.FirstBatch),
		)

		_, err := transitionOrder(context.Background(), mt.DB, orderID,
			models.StatusAwaitingPayment, nil,
			bson.M{"status": models.StatusProcessing},
		)
		if !errors.Is(err, errOrderNotFound) {
			mt.Fatalf("expected errOrderNotFound, got %v", err)
		}
	})
}

func locationRequestContext(w *httptest.ResponseRecorder, orderID, courierID primitive.ObjectID) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/courier/jobs/"+orderID.Hex()+"/location",
		strings.NewReader(`{"lat":1.5,"lng":2.5}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "id", Value: orderID.Hex()}}
	c.Set("userId", courierID)
	return c
}

func TestCourierUpdateLocation(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("missing order is 404", func(mt *mtest.T) {
		orderID := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, "pasarwarga.orders", mtest.FirstBatch),
		)

		w := httptest.NewRecorder()
		c := locationRequestContext(w, orderID, primitive.NewObjectID())
		CourierUpdateLocation(mt.DB)(c)

		if w.Code != http.StatusNotFound {
			mt.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
		}
	})

	mt.Run("not the active courier is 409 with live status", func(mt *mtest.T) {
		orderID := primitive.NewObjectID()
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
			mtest.CreateCursorResponse(0, "pasarwarga.orders", mtest.FirstBatch, bson.D{
				{Key: "_id", Value: orderID},
				{Key: "status", Value: models.StatusReadyForPickup},
			}),
		)

		w := httptest.NewRecorder()
		c := locationRequestContext(w, orderID, primitive.NewObjectID())
		CourierUpdateLocation(mt.DB)(c)

		if w.Code != http.StatusConflict {
			mt.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			mt.Fatalf("undecodable body: %v", err)
		}
		if body.Status != models.StatusReadyForPickup {
			mt.Fatalf("conflict body must carry the live status, got %q", body.Status)
		}
	})
}
