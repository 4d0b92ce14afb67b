package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"garmentsapi/internal/models"
	"garmentsapi/internal/notify"
)

func TestResolveCaller(t *testing.T) {
	repo := newMemRepo()
	repo.users["root@x.com"] = models.User{Email: "root@x.com", Role: models.RoleAdmin, Status: models.UserActive}
	repo.users["bad@x.com"] = models.User{Email: "bad@x.com", Role: models.RoleMember, Status: models.UserSuspended}
	svc := New(repo.repos(), StockAtomic, notify.NoopSender{})
	ctx := context.Background()

	c, err := svc.ResolveCaller(ctx, "ROOT@x.com")
	if err != nil || !c.IsAdmin() {
		t.Fatalf("expected admin caller, got %+v err=%v", c, err)
	}
	c, err = svc.ResolveCaller(ctx, "new@x.com")
	if err != nil || c.IsAdmin() || c.Email != "new@x.com" {
		t.Fatalf("unknown users should resolve as members, got %+v err=%v", c, err)
	}
	if _, err := svc.ResolveCaller(ctx, "bad@x.com"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for suspended user, got %v", err)
	}
}

func TestRecordLoginNeverGrantsRole(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo.repos(), StockAtomic, notify.NoopSender{})
	u, created, err := svc.RecordLogin(context.Background(), " Ann@X.com ", "Ann", "")
	if err != nil || !created {
		t.Fatalf("expected new user, created=%v err=%v", created, err)
	}
	if u.Role != models.RoleMember || u.Email != "ann@x.com" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, _, err := svc.RecordLogin(context.Background(), "", "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestUserAdministrationRules(t *testing.T) {
	repo := newMemRepo()
	repo.users["m@x.com"] = models.User{Email: "m@x.com", Role: models.RoleMember, Status: models.UserActive}
	svc := New(repo.repos(), StockAtomic, notify.NoopSender{})
	ctx := context.Background()
	admin := Caller{Email: "root@x.com", Role: models.RoleAdmin}

	if err := svc.SetUserStatus(ctx, admin, "m@x.com", models.UserSuspended, "", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("suspension without reason must fail, got %v", err)
	}
	if err := svc.SetUserStatus(ctx, admin, "m@x.com", models.UserSuspended, "spam", "please contact us"); err != nil {
		t.Fatalf("suspend: %v", err)
	}
	if repo.users["m@x.com"].SuspendFeedback != "please contact us" {
		t.Fatalf("feedback not stored: %+v", repo.users["m@x.com"])
	}
	if err := svc.SetUserStatus(ctx, admin, "root@x.com", models.UserSuspended, "x", ""); !errors.Is(err, ErrValidation) {
		t.Fatalf("self-suspension must fail, got %v", err)
	}
	if err := svc.SetUserRole(ctx, admin, "m@x.com", "owner"); !errors.Is(err, ErrValidation) {
		t.Fatalf("unknown role must fail, got %v", err)
	}
	if err := svc.SetUserRole(ctx, admin, "ghost@x.com", models.RoleAdmin); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := svc.SetUserRole(ctx, admin, "m@x.com", models.RoleAdmin); err != nil {
		t.Fatalf("promote: %v", err)
	}
}

func TestProductLifecycle(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo.repos(), StockAtomic, notify.NoopSender{})
	ctx := context.Background()
	admin := Caller{Email: "root@x.com", Role: models.RoleAdmin}

	name, qty := "Hoodie", 20
	price := decimal.RequireFromString("30")
	if _, err := svc.CreateProduct(ctx, admin, ProductInput{Name: &name}); !errors.Is(err, ErrValidation) {
		t.Fatalf("product without price must fail, got %v", err)
	}
	p, err := svc.CreateProduct(ctx, admin, ProductInput{Name: &name, Price: &price, Quantity: &qty})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.CreatedBy != "root@x.com" {
		t.Fatalf("expected createdBy to be the caller, got %q", p.CreatedBy)
	}

	home := true
	p, err = svc.UpdateProduct(ctx, p.ID, ProductInput{ShowOnHome: &home})
	if err != nil || !p.ShowOnHome || p.Name != "Hoodie" || p.Quantity != 20 {
		t.Fatalf("partial update should keep other fields, got %+v err=%v", p, err)
	}
	items, err := svc.HomeProducts(ctx)
	if err != nil || len(items) != 1 {
		t.Fatalf("expected one home product, got %d err=%v", len(items), err)
	}

	neg := -1
	if _, err := svc.UpdateProduct(ctx, p.ID, ProductInput{Quantity: &neg}); !errors.Is(err, ErrValidation) {
		t.Fatalf("negative quantity must fail, got %v", err)
	}
	if err := svc.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.GetProduct(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}
