package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"garmentsapi/internal/models"
	"garmentsapi/internal/store"
)

// notifyTimeout caps how long a confirmation may hold up the response.
const notifyTimeout = 5 * time.Second

type PlaceOrderRequest struct {
	ProductID       string
	Quantity        int
	Email           string
	DeliveryAddress string
	ContactNumber   string
	Notes           string
}

type PlaceOrderResult struct {
	OrderID                string
	UpdatedProductQuantity int
	Order                  models.Order
}

// PlaceOrder validates the request against current stock, stores the order
// and lowers the product quantity. The order of the last two steps depends on
// the configured StockMode.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResult, error) {
	req.ProductID = strings.TrimSpace(req.ProductID)
	req.Email = normEmail(req.Email)
	if req.ProductID == "" {
		return PlaceOrderResult{}, invalid("productId is required")
	}
	if req.Email == "" {
		return PlaceOrderResult{}, invalid("email is required")
	}
	if req.Quantity <= 0 {
		return PlaceOrderResult{}, invalid("quantity must be a positive integer")
	}

	p, err := s.products.GetProductByID(ctx, req.ProductID)
	if err != nil {
		return PlaceOrderResult{}, mapRepoErr("get product", err)
	}
	if p.MinimumOrder > 0 && req.Quantity < p.MinimumOrder {
		return PlaceOrderResult{}, invalid("minimum order for this product is %d", p.MinimumOrder)
	}
	if req.Quantity > p.Quantity {
		return PlaceOrderResult{}, ErrInsufficientStock
	}

	o := s.newOrder(p, req)
	var res PlaceOrderResult
	if s.mode == StockRacy {
		res, err = s.placeRacy(ctx, p, o)
	} else {
		res, err = s.placeAtomic(ctx, p, o)
	}
	if err != nil {
		return PlaceOrderResult{}, err
	}

	nctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := s.sender.SendOrderConfirmation(nctx, res.Order); err != nil {
		log.Printf("order_notify_failed order_id=%s to=%s err=%v", res.OrderID, res.Order.Email, err)
	}
	return res, nil
}

func (s *Service) newOrder(p models.Product, req PlaceOrderRequest) models.Order {
	return models.Order{
		ProductID:       p.ID,
		ProductName:     p.Name,
		Quantity:        req.Quantity,
		Email:           req.Email,
		Status:          models.OrderPending,
		UnitPrice:       p.Price,
		TotalPrice:      p.Price.Mul(decimal.NewFromInt(int64(req.Quantity))),
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		ContactNumber:   strings.TrimSpace(req.ContactNumber),
		Notes:           strings.TrimSpace(req.Notes),
		TrackingHistory: []models.TrackingEvent{},
		CreatedAt:       s.now(),
	}
}

// placeRacy inserts the order and then overwrites the quantity read earlier.
// Nothing serialises concurrent callers.
func (s *Service) placeRacy(ctx context.Context, p models.Product, o models.Order) (PlaceOrderResult, error) {
	id, err := s.orders.InsertOrder(ctx, o)
	if err != nil {
		return PlaceOrderResult{}, storeErr("insert order", err)
	}
	o.ID = id

	remaining := p.Quantity - o.Quantity
	modified, err := s.products.UpdateProductQuantity(ctx, p.ID, remaining)
	if err != nil {
		log.Printf("order_stock_divergence order_id=%s product_id=%s quantity=%d err=%v", id, p.ID, o.Quantity, err)
		return PlaceOrderResult{}, storeErr("update product quantity", err)
	}
	if modified == 0 {
		log.Printf("order_stock_divergence order_id=%s product_id=%s quantity=%d err=product not modified", id, p.ID, o.Quantity)
	}
	return PlaceOrderResult{OrderID: id, UpdatedProductQuantity: remaining, Order: o}, nil
}

// placeAtomic reserves the stock first and gives it back if the order
// cannot be stored.
func (s *Service) placeAtomic(ctx context.Context, p models.Product, o models.Order) (PlaceOrderResult, error) {
	remaining, err := s.products.DecrementProductQuantity(ctx, p.ID, o.Quantity)
	switch {
	case errors.Is(err, store.ErrConflict):
		return PlaceOrderResult{}, ErrInsufficientStock
	case err != nil:
		return PlaceOrderResult{}, mapRepoErr("decrement product quantity", err)
	}

	id, err := s.orders.InsertOrder(ctx, o)
	if err != nil {
		if rerr := s.products.IncrementProductQuantity(ctx, p.ID, o.Quantity); rerr != nil {
			log.Printf("order_stock_restore_failed product_id=%s quantity=%d err=%v", p.ID, o.Quantity, rerr)
		}
		return PlaceOrderResult{}, storeErr("insert order", err)
	}
	o.ID = id
	return PlaceOrderResult{OrderID: id, UpdatedProductQuantity: remaining, Order: o}, nil
}

type TrackingInput struct {
	Event    string
	Location string
}

type UpdateResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

// UpdateOrderStatus sets a new status and/or appends a tracking event.
// Status is free-form; "Approved" also stamps approvedAt.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID string, status *string, tracking *TrackingInput) (UpdateResult, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return UpdateResult{}, invalid("order id is required")
	}
	if status == nil && tracking == nil {
		return UpdateResult{}, invalid("status or tracking is required")
	}

	now := s.now()
	var patch models.OrderPatch
	if status != nil {
		st := strings.TrimSpace(*status)
		if st == "" {
			return UpdateResult{}, invalid("status must not be empty")
		}
		patch.Status = &st
		if st == models.OrderApproved {
			patch.ApprovedAt = &now
		}
	}
	if tracking != nil {
		ev := strings.TrimSpace(tracking.Event)
		if ev == "" {
			return UpdateResult{}, invalid("tracking event must not be empty")
		}
		patch.Tracking = &models.TrackingEvent{Event: ev, Location: strings.TrimSpace(tracking.Location), Time: now}
	}

	matched, err := s.orders.PatchOrder(ctx, orderID, patch)
	if err != nil {
		return UpdateResult{}, storeErr("patch order", err)
	}
	if matched == 0 {
		return UpdateResult{}, fmt.Errorf("%w: order %s", ErrNotFound, orderID)
	}
	return UpdateResult{Matched: matched, Modified: matched}, nil
}

// GetOrder returns an order visible to the caller: its owner or an admin.
func (s *Service) GetOrder(ctx context.Context, caller Caller, id string) (models.Order, error) {
	o, err := s.orders.GetOrderByID(ctx, id)
	if err != nil {
		return models.Order{}, mapRepoErr("get order", err)
	}
	if !caller.IsAdmin() && o.Email != caller.Email {
		return models.Order{}, ErrForbidden
	}
	return o, nil
}

// ListOrders returns the caller's own orders; admins may list everyone's
// and filter by email.
func (s *Service) ListOrders(ctx context.Context, caller Caller, q models.OrderQuery) ([]models.Order, int, error) {
	if caller.IsAdmin() {
		q.Email = normEmail(q.Email)
	} else {
		q.Email = caller.Email
	}
	items, total, err := s.orders.ListOrders(ctx, q)
	if err != nil {
		return nil, 0, storeErr("list orders", err)
	}
	return items, total, nil
}
