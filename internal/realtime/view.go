package realtime

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson"

	"marketplace/internal/models"
)

// OrderView is an in-memory replica of the orders collection keyed by id.
// Rows are replaced wholesale per event, so applying the same change event
// twice (duplicate delivery) leaves the view unchanged. It backs the admin
// dashboard stats without re-aggregating on every request.
type OrderView struct {
	mu     sync.RWMutex
	orders map[string]models.Order
}

// Stats are the admin dashboard aggregates over non-cancelled orders.
type Stats struct {
	GrossAmount   int64 `json:"grossAmount"`
	PlatformFees  int64 `json:"platformFees"`
	Transactions  int   `json:"transactions"`
	ActiveSellers int   `json:"activeSellers"`
}

func NewOrderView() *OrderView {
	return &OrderView{orders: make(map[string]models.Order)}
}

// Seed loads the current order set, typically once at startup before the
// watcher begins feeding events.
func (v *OrderView) Seed(orders []models.Order) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, o := range orders {
		v.orders[o.ID.Hex()] = o
	}
}

// Apply replaces the row identified by the event. Non-order events and
// undecodable documents are ignored.
func (v *OrderView) Apply(evt ChangeEvent) {
	if evt.Table != TableOrders || evt.Doc == nil {
		return
	}

	raw, err := bson.Marshal(evt.Doc)
	if err != nil {
		return
	}
	var order models.Order
	if err := bson.Unmarshal(raw, &order); err != nil {
		return
	}

	v.mu.Lock()
	v.orders[evt.DocID] = order
	v.mu.Unlock()
}

// Get returns the order by hex id, if present.
func (v *OrderView) Get(id string) (models.Order, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	o, ok := v.orders[id]
	return o, ok
}

// Len returns the number of rows held.
func (v *OrderView) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.orders)
}

// Stats aggregates every order except cancelled ones.
func (v *OrderView) Stats() Stats {
	v.mu.RLock()
	defer v.mu.RUnlock()

	sellers := make(map[string]struct{})
	var stats Stats
	for _, o := range v.orders {
		if o.Status == models.StatusCancelled {
			continue
		}
		stats.GrossAmount += o.TotalAmount
		stats.PlatformFees += o.PlatformFee
		stats.Transactions++
		sellers[o.SellerID.Hex()] = struct{}{}
	}
	stats.ActiveSellers = len(sellers)
	return stats
}
