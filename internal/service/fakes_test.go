package service

import (
	"context"
	"fmt"
	"sync"

	"garmentsapi/internal/models"
	"garmentsapi/internal/store"
)

// memRepo is an in-memory implementation of all three repositories.
type memRepo struct {
	mu       sync.Mutex
	products map[string]models.Product
	orders   map[string]models.Order
	users    map[string]models.User
	seq      int

	failInsertOrder error
	failUpdateQty   error
}

func newMemRepo() *memRepo {
	return &memRepo{
		products: map[string]models.Product{},
		orders:   map[string]models.Order{},
		users:    map[string]models.User{},
	}
}

func (m *memRepo) repos() Repositories {
	return Repositories{Products: m, Orders: m, Users: m}
}

func (m *memRepo) putProduct(p models.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[p.ID] = p
}

func (m *memRepo) quantity(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[id].Quantity
}

func (m *memRepo) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func (m *memRepo) GetProductByID(_ context.Context, id string) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return models.Product{}, store.ErrNotFound
	}
	return p, nil
}

func (m *memRepo) UpdateProductQuantity(_ context.Context, id string, quantity int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdateQty != nil {
		return 0, m.failUpdateQty
	}
	p, ok := m.products[id]
	if !ok {
		return 0, nil
	}
	p.Quantity = quantity
	m.products[id] = p
	return 1, nil
}

func (m *memRepo) DecrementProductQuantity(_ context.Context, id string, by int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return 0, store.ErrNotFound
	}
	if p.Quantity < by {
		return 0, store.ErrConflict
	}
	p.Quantity -= by
	m.products[id] = p
	return p.Quantity, nil
}

func (m *memRepo) IncrementProductQuantity(_ context.Context, id string, by int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return store.ErrNotFound
	}
	p.Quantity += by
	m.products[id] = p
	return nil
}

func (m *memRepo) ListProducts(_ context.Context, q models.ProductQuery) ([]models.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Product
	for _, p := range m.products {
		if q.OnlyHome && !p.ShowOnHome {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memRepo) CreateProduct(_ context.Context, p models.Product) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	p.ID = fmt.Sprintf("prod-%d", m.seq)
	m.products[p.ID] = p
	return p, nil
}

func (m *memRepo) UpdateProduct(_ context.Context, p models.Product) (models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[p.ID]; !ok {
		return models.Product{}, store.ErrNotFound
	}
	m.products[p.ID] = p
	return p, nil
}

func (m *memRepo) DeleteProduct(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memRepo) InsertOrder(_ context.Context, o models.Order) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsertOrder != nil {
		return "", m.failInsertOrder
	}
	m.seq++
	o.ID = fmt.Sprintf("ord-%d", m.seq)
	m.orders[o.ID] = o
	return o.ID, nil
}

func (m *memRepo) GetOrderByID(_ context.Context, id string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return models.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (m *memRepo) PatchOrder(_ context.Context, id string, patch models.OrderPatch) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return 0, nil
	}
	if patch.Status != nil {
		o.Status = *patch.Status
	}
	if patch.ApprovedAt != nil {
		t := *patch.ApprovedAt
		o.ApprovedAt = &t
	}
	if patch.Tracking != nil {
		o.TrackingHistory = append(o.TrackingHistory, *patch.Tracking)
	}
	m.orders[id] = o
	return 1, nil
}

func (m *memRepo) ListOrders(_ context.Context, q models.OrderQuery) ([]models.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.orders {
		if q.Email != "" && o.Email != q.Email {
			continue
		}
		out = append(out, o)
	}
	return out, len(out), nil
}

func (m *memRepo) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return models.User{}, store.ErrNotFound
	}
	return u, nil
}

func (m *memRepo) UpsertUser(_ context.Context, email string, in models.UserUpsert) (models.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		role := in.Role
		if role == "" {
			role = models.RoleMember
		}
		u = models.User{Email: email, Role: role, Status: models.UserActive}
	}
	if in.Name != "" {
		u.Name = in.Name
	}
	m.users[email] = u
	return u, !ok, nil
}

func (m *memRepo) ListUsers(context.Context, models.UserQuery) ([]models.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, len(out), nil
}

func (m *memRepo) UpdateUserRole(_ context.Context, email string, role models.UserRole) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return store.ErrNotFound
	}
	u.Role = role
	m.users[email] = u
	return nil
}

func (m *memRepo) UpdateUserStatus(_ context.Context, email string, status models.UserStatus, reason, feedback string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return store.ErrNotFound
	}
	u.Status, u.SuspendReason, u.SuspendFeedback = status, reason, feedback
	m.users[email] = u
	return nil
}

// gatedProducts makes every GetProductByID wait until n callers have read
// the product, forcing concurrent PlaceOrder calls to interleave.
type gatedProducts struct {
	*memRepo
	wg *sync.WaitGroup
}

func (g gatedProducts) GetProductByID(ctx context.Context, id string) (models.Product, error) {
	p, err := g.memRepo.GetProductByID(ctx, id)
	g.wg.Done()
	g.wg.Wait()
	return p, err
}

type recordingSender struct {
	mu   sync.Mutex
	sent []models.Order
}

func (r *recordingSender) SendOrderConfirmation(_ context.Context, o models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, o)
	return nil
}
