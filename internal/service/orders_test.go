package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"garmentsapi/internal/models"
	"garmentsapi/internal/notify"
)

var modes = []StockMode{StockRacy, StockAtomic}

func seeded(qty int) *memRepo {
	repo := newMemRepo()
	repo.putProduct(models.Product{ID: "p1", Name: "Polo Shirt", Price: decimal.RequireFromString("12.25"), Quantity: qty})
	return repo
}

func TestPlaceOrderValidation(t *testing.T) {
	cases := map[string]PlaceOrderRequest{
		"missing product":   {Quantity: 1, Email: "a@x.com"},
		"missing email":     {ProductID: "p1", Quantity: 1},
		"zero quantity":     {ProductID: "p1", Quantity: 0, Email: "a@x.com"},
		"negative quantity": {ProductID: "p1", Quantity: -2, Email: "a@x.com"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			repo := seeded(10)
			svc := New(repo.repos(), StockAtomic, notify.NoopSender{})
			if _, err := svc.PlaceOrder(context.Background(), req); !errors.Is(err, ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if repo.orderCount() != 0 || repo.quantity("p1") != 10 {
				t.Fatalf("validation failure must not write anything")
			}
		})
	}
}

func TestPlaceOrderUnknownProduct(t *testing.T) {
	for _, mode := range modes {
		svc := New(seeded(10).repos(), mode, notify.NoopSender{})
		_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{ProductID: "nope", Quantity: 1, Email: "a@x.com"})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("%s: expected ErrNotFound, got %v", mode, err)
		}
	}
}

func TestPlaceOrderSequence(t *testing.T) {
	for _, mode := range modes {
		t.Run(string(mode), func(t *testing.T) {
			repo := seeded(10)
			sender := &recordingSender{}
			svc := New(repo.repos(), mode, sender)
			ctx := context.Background()

			res, err := svc.PlaceOrder(ctx, PlaceOrderRequest{ProductID: "p1", Quantity: 3, Email: "Buyer@X.com"})
			if err != nil {
				t.Fatalf("first order: %v", err)
			}
			if res.UpdatedProductQuantity != 7 || repo.quantity("p1") != 7 {
				t.Fatalf("expected 7 left, result=%d stored=%d", res.UpdatedProductQuantity, repo.quantity("p1"))
			}
			o, err := repo.GetOrderByID(ctx, res.OrderID)
			if err != nil {
				t.Fatalf("order not stored: %v", err)
			}
			if o.Status != models.OrderPending || o.Email != "buyer@x.com" || o.Quantity != 3 || o.CreatedAt.IsZero() {
				t.Fatalf("unexpected stored order: %+v", o)
			}
			if !o.TotalPrice.Equal(decimal.RequireFromString("36.75")) {
				t.Fatalf("unexpected total %s", o.TotalPrice)
			}

			if _, err := svc.PlaceOrder(ctx, PlaceOrderRequest{ProductID: "p1", Quantity: 8, Email: "buyer@x.com"}); !errors.Is(err, ErrInsufficientStock) {
				t.Fatalf("expected ErrInsufficientStock, got %v", err)
			}
			if repo.quantity("p1") != 7 || repo.orderCount() != 1 {
				t.Fatalf("rejected order must not write: qty=%d orders=%d", repo.quantity("p1"), repo.orderCount())
			}
			if len(sender.sent) != 1 || sender.sent[0].ID != res.OrderID {
				t.Fatalf("expected one confirmation for %s, got %+v", res.OrderID, sender.sent)
			}
		})
	}
}

func TestPlaceOrderExactStock(t *testing.T) {
	for _, mode := range modes {
		repo := seeded(4)
		svc := New(repo.repos(), mode, notify.NoopSender{})
		res, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{ProductID: "p1", Quantity: 4, Email: "a@x.com"})
		if err != nil {
			t.Fatalf("%s: %v", mode, err)
		}
		if res.UpdatedProductQuantity != 0 {
			t.Fatalf("%s: expected 0 left, got %d", mode, res.UpdatedProductQuantity)
		}
	}
}

func TestPlaceOrderMinimumOrder(t *testing.T) {
	repo := newMemRepo()
	repo.putProduct(models.Product{ID: "p1", Quantity: 100, MinimumOrder: 10})
	svc := New(repo.repos(), StockAtomic, notify.NoopSender{})
	if _, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{ProductID: "p1", Quantity: 5, Email: "a@x.com"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation below minimum order, got %v", err)
	}
}

func placeConcurrently(t *testing.T, mode StockMode) (*memRepo, []error) {
	t.Helper()
	repo := seeded(5)
	var wg sync.WaitGroup
	wg.Add(2)
	svc := New(Repositories{Products: gatedProducts{memRepo: repo, wg: &wg}, Orders: repo, Users: repo}, mode, notify.NoopSender{})

	errs := make([]error, 2)
	var done sync.WaitGroup
	for i := range errs {
		done.Add(1)
		go func(i int) {
			defer done.Done()
			_, errs[i] = svc.PlaceOrder(context.Background(), PlaceOrderRequest{ProductID: "p1", Quantity: 4, Email: "a@x.com"})
		}(i)
	}
	done.Wait()
	return repo, errs
}

func TestConcurrentOrdersRacyModeOversells(t *testing.T) {
	repo, errs := placeConcurrently(t, StockRacy)
	for i, err := range errs {
		if err != nil {
			t.Fatalf("order %d: expected success in racy mode, got %v", i, err)
		}
	}
	if repo.orderCount() != 2 {
		t.Fatalf("expected both orders stored, got %d", repo.orderCount())
	}
	// Both writers stored 5-4 although 8 units were sold.
	if repo.quantity("p1") != 1 {
		t.Fatalf("expected last write of 1, got %d", repo.quantity("p1"))
	}
}

func TestConcurrentOrdersAtomicModeRejectsOne(t *testing.T) {
	repo, errs := placeConcurrently(t, StockAtomic)
	ok, rejected := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrInsufficientStock):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Fatalf("expected one success and one rejection, got ok=%d rejected=%d", ok, rejected)
	}
	if repo.orderCount() != 1 || repo.quantity("p1") != 1 {
		t.Fatalf("expected 1 order and 1 left, got orders=%d qty=%d", repo.orderCount(), repo.quantity("p1"))
	}
}

func TestRacyModeReportsDivergence(t *testing.T) {
	repo := seeded(10)
	repo.failUpdateQty = errors.New("write timeout")
	svc := New(repo.repos(), StockRacy, notify.NoopSender{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{ProductID: "p1", Quantity: 2, Email: "a@x.com"})
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "update product quantity" {
		t.Fatalf("expected StoreError from quantity write, got %v", err)
	}
	if repo.orderCount() != 1 || repo.quantity("p1") != 10 {
		t.Fatalf("expected stored order with unchanged stock, got orders=%d qty=%d", repo.orderCount(), repo.quantity("p1"))
	}
}

func TestAtomicModeRestoresStockOnInsertFailure(t *testing.T) {
	repo := seeded(10)
	repo.failInsertOrder = errors.New("disk full")
	svc := New(repo.repos(), StockAtomic, notify.NoopSender{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{ProductID: "p1", Quantity: 2, Email: "a@x.com"})
	var se *StoreError
	if !errors.As(err, &se) || se.Op != "insert order" {
		t.Fatalf("expected StoreError from insert, got %v", err)
	}
	if repo.quantity("p1") != 10 || repo.orderCount() != 0 {
		t.Fatalf("expected stock restored, got qty=%d orders=%d", repo.quantity("p1"), repo.orderCount())
	}
}

func TestUpdateOrderStatus(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo.repos(), StockAtomic, notify.NoopSender{})
	ctx := context.Background()
	id, _ := repo.InsertOrder(ctx, models.Order{Email: "a@x.com", Status: models.OrderPending})

	if _, err := svc.UpdateOrderStatus(ctx, id, nil, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without status or event, got %v", err)
	}
	empty := "  "
	if _, err := svc.UpdateOrderStatus(ctx, id, &empty, nil); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for blank status, got %v", err)
	}

	for _, ev := range []string{"Cutting Completed", "Sewing Started", "Finishing"} {
		res, err := svc.UpdateOrderStatus(ctx, id, nil, &TrackingInput{Event: ev, Location: "Factory 2"})
		if err != nil || res.Matched != 1 {
			t.Fatalf("append %q: res=%+v err=%v", ev, res, err)
		}
	}
	approved := models.OrderApproved
	if _, err := svc.UpdateOrderStatus(ctx, id, &approved, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}

	o, _ := repo.GetOrderByID(ctx, id)
	if o.Status != models.OrderApproved || o.ApprovedAt == nil {
		t.Fatalf("expected approved with approvedAt, got %+v", o)
	}
	if len(o.TrackingHistory) != 3 || o.TrackingHistory[0].Event != "Cutting Completed" || o.TrackingHistory[2].Event != "Finishing" {
		t.Fatalf("unexpected tracking history %+v", o.TrackingHistory)
	}
	for _, ev := range o.TrackingHistory {
		if ev.Time.IsZero() {
			t.Fatalf("tracking event without server time: %+v", ev)
		}
	}

	custom := "Shipped"
	if _, err := svc.UpdateOrderStatus(ctx, id, &custom, nil); err != nil {
		t.Fatalf("free-form status should be accepted: %v", err)
	}

	if _, err := svc.UpdateOrderStatus(ctx, "missing", &custom, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOrderVisibility(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo.repos(), StockAtomic, notify.NoopSender{})
	ctx := context.Background()
	id, _ := repo.InsertOrder(ctx, models.Order{Email: "owner@x.com"})
	_, _ = repo.InsertOrder(ctx, models.Order{Email: "other@x.com"})

	owner := Caller{Email: "owner@x.com", Role: models.RoleMember}
	stranger := Caller{Email: "other@x.com", Role: models.RoleMember}
	admin := Caller{Email: "root@x.com", Role: models.RoleAdmin}

	if _, err := svc.GetOrder(ctx, owner, id); err != nil {
		t.Fatalf("owner should see order: %v", err)
	}
	if _, err := svc.GetOrder(ctx, stranger, id); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.GetOrder(ctx, admin, id); err != nil {
		t.Fatalf("admin should see order: %v", err)
	}

	mine, total, _ := svc.ListOrders(ctx, owner, models.OrderQuery{Email: "other@x.com"})
	if total != 1 || mine[0].Email != "owner@x.com" {
		t.Fatalf("member listing must be scoped to own email, got %+v", mine)
	}
	_, total, _ = svc.ListOrders(ctx, admin, models.OrderQuery{})
	if total != 2 {
		t.Fatalf("admin should list all orders, got %d", total)
	}
}
