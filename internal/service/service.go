package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"garmentsapi/internal/models"
	"garmentsapi/internal/notify"
	"garmentsapi/internal/store"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrForbidden         = errors.New("forbidden")
)

// StoreError wraps a repository failure that is not one of the domain
// sentinels above.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

func invalid(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, a...))
}

type ProductRepository interface {
	GetProductByID(ctx context.Context, id string) (models.Product, error)
	// UpdateProductQuantity overwrites quantity and reports how many
	// products were modified.
	UpdateProductQuantity(ctx context.Context, id string, quantity int) (int64, error)
	// DecrementProductQuantity subtracts by only when quantity >= by and
	// returns the new quantity; store.ErrConflict when the guard fails.
	DecrementProductQuantity(ctx context.Context, id string, by int) (int, error)
	IncrementProductQuantity(ctx context.Context, id string, by int) error
	ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, int, error)
	CreateProduct(ctx context.Context, p models.Product) (models.Product, error)
	UpdateProduct(ctx context.Context, p models.Product) (models.Product, error)
	DeleteProduct(ctx context.Context, id string) error
}

type OrderRepository interface {
	InsertOrder(ctx context.Context, o models.Order) (string, error)
	GetOrderByID(ctx context.Context, id string) (models.Order, error)
	PatchOrder(ctx context.Context, id string, patch models.OrderPatch) (int64, error)
	ListOrders(ctx context.Context, q models.OrderQuery) ([]models.Order, int, error)
}

type UserRepository interface {
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	UpsertUser(ctx context.Context, email string, in models.UserUpsert) (models.User, bool, error)
	ListUsers(ctx context.Context, q models.UserQuery) ([]models.User, int, error)
	UpdateUserRole(ctx context.Context, email string, role models.UserRole) error
	UpdateUserStatus(ctx context.Context, email string, status models.UserStatus, reason, feedback string) error
}

type Repositories struct {
	Products ProductRepository
	Orders   OrderRepository
	Users    UserRepository
}

// StockMode selects how PlaceOrder adjusts product stock.
type StockMode string

const (
	// StockRacy reads the product, inserts the order, then writes back
	// quantity-n. Concurrent orders may oversell.
	StockRacy StockMode = "racy"
	// StockAtomic reserves stock with a conditional decrement before the
	// order is inserted.
	StockAtomic StockMode = "atomic"
)

type Service struct {
	products ProductRepository
	orders   OrderRepository
	users    UserRepository
	mode     StockMode
	sender   notify.Sender
	now      func() time.Time
}

func New(repos Repositories, mode StockMode, sender notify.Sender) *Service {
	if mode != StockRacy {
		mode = StockAtomic
	}
	if sender == nil {
		sender = notify.LogSender{}
	}
	return &Service{
		products: repos.Products,
		orders:   repos.Orders,
		users:    repos.Users,
		mode:     mode,
		sender:   sender,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) StockMode() StockMode { return s.mode }

// Caller is the authenticated user as known to the user repository.
type Caller struct {
	Email string
	Role  models.UserRole
}

func (c Caller) IsAdmin() bool { return c.Role == models.RoleAdmin }

// ResolveCaller looks up the role of an authenticated email. Accounts that
// never called POST /users are treated as members; suspended accounts get
// ErrForbidden.
func (s *Service) ResolveCaller(ctx context.Context, email string) (Caller, error) {
	email = normEmail(email)
	u, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return Caller{Email: email, Role: models.RoleMember}, nil
	}
	if err != nil {
		return Caller{}, storeErr("get user", err)
	}
	if u.Status == models.UserSuspended {
		return Caller{}, fmt.Errorf("%w: account suspended", ErrForbidden)
	}
	role := u.Role
	if role == "" {
		role = models.RoleMember
	}
	return Caller{Email: u.Email, Role: role}, nil
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// mapRepoErr translates repository sentinels into service sentinels.
func mapRepoErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	default:
		return storeErr(op, err)
	}
}
