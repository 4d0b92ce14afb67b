package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type UserRole string

const (
	RoleMember UserRole = "member"
	RoleAdmin  UserRole = "admin"
)

type UserStatus string

const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

type User struct {
	Email           string     `json:"email"`
	Name            string     `json:"name,omitempty"`
	Role            UserRole   `json:"role"`
	PhotoURL        string     `json:"photoURL,omitempty"`
	Status          UserStatus `json:"status"`
	SuspendReason   string     `json:"suspendReason,omitempty"`
	SuspendFeedback string     `json:"suspendFeedback,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastLoggedIn    time.Time  `json:"lastLoggedIn"`
}

// UserUpsert carries the optional profile fields merged on every login.
// Empty values leave the stored field untouched.
type UserUpsert struct {
	Name     string
	PhotoURL string
	Role     UserRole
}

type Product struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Category      string          `json:"category,omitempty"`
	Description   string          `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Images        []string        `json:"images,omitempty"`
	MinimumOrder  int             `json:"minimumOrder,omitempty"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Quantity      int             `json:"quantity"`
	ShowOnHome    bool            `json:"showOnHome"`
	CreatedBy     string          `json:"createdBy,omitempty"`
	Attributes    map[string]any  `json:"attributes,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// ProductDetails is the part of a product that is stored as a single
// document blob by backends without native nested documents.
type ProductDetails struct {
	Description   string         `json:"description,omitempty"`
	Images        []string       `json:"images,omitempty"`
	MinimumOrder  int            `json:"minimumOrder,omitempty"`
	PaymentMethod string         `json:"paymentMethod,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

func (p Product) Details() ProductDetails {
	return ProductDetails{
		Description:   p.Description,
		Images:        p.Images,
		MinimumOrder:  p.MinimumOrder,
		PaymentMethod: p.PaymentMethod,
		Attributes:    p.Attributes,
	}
}

func (p *Product) ApplyDetails(d ProductDetails) {
	p.Description = d.Description
	p.Images = d.Images
	p.MinimumOrder = d.MinimumOrder
	p.PaymentMethod = d.PaymentMethod
	p.Attributes = d.Attributes
}

const OrderPending = "Pending"
const OrderApproved = "Approved"

type TrackingEvent struct {
	Event    string    `json:"event"`
	Location string    `json:"location,omitempty"`
	Time     time.Time `json:"time"`
}

type Order struct {
	ID              string          `json:"id"`
	ProductID       string          `json:"productId"`
	ProductName     string          `json:"productName,omitempty"`
	Quantity        int             `json:"quantity"`
	Email           string          `json:"email"`
	Status          string          `json:"status"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	DeliveryAddress string          `json:"deliveryAddress,omitempty"`
	ContactNumber   string          `json:"contactNumber,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	TrackingHistory []TrackingEvent `json:"trackingHistory"`
	CreatedAt       time.Time       `json:"createdAt"`
	ApprovedAt      *time.Time      `json:"approvedAt,omitempty"`
}

// OrderPatch is applied by OrderRepository.PatchOrder. Nil fields are left
// untouched; Tracking is appended, never replacing earlier entries.
type OrderPatch struct {
	Status     *string
	ApprovedAt *time.Time
	Tracking   *TrackingEvent
}

type ProductQuery struct {
	Category  string
	Search    string
	OnlyHome  bool
	CreatedBy string
	Limit     int
	Offset    int
}

type OrderQuery struct {
	Email  string
	Status string
	Limit  int
	Offset int
}

type UserQuery struct {
	Q      string
	Role   string
	Status string
	Limit  int
	Offset int
}
