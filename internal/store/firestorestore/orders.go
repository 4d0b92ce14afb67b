package firestorestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	"garmentsapi/internal/models"
)

type trackingDoc struct {
	Event    string    `firestore:"event"`
	Location string    `firestore:"location,omitempty"`
	Time     time.Time `firestore:"time"`
}

type orderDoc struct {
	ProductID       string        `firestore:"productId"`
	ProductName     string        `firestore:"productName"`
	Quantity        int           `firestore:"quantity"`
	Email           string        `firestore:"email"`
	Status          string        `firestore:"status"`
	UnitPrice       string        `firestore:"unitPrice"`
	TotalPrice      string        `firestore:"totalPrice"`
	DeliveryAddress string        `firestore:"deliveryAddress"`
	ContactNumber   string        `firestore:"contactNumber"`
	Notes           string        `firestore:"notes"`
	TrackingHistory []trackingDoc `firestore:"trackingHistory"`
	CreatedAt       time.Time     `firestore:"createdAt"`
	ApprovedAt      *time.Time    `firestore:"approvedAt,omitempty"`
}

func docToOrder(snap *firestore.DocumentSnapshot) (models.Order, error) {
	var d orderDoc
	if err := snap.DataTo(&d); err != nil {
		return models.Order{}, err
	}
	o := models.Order{
		ID:              snap.Ref.ID,
		ProductID:       d.ProductID,
		ProductName:     d.ProductName,
		Quantity:        d.Quantity,
		Email:           d.Email,
		Status:          d.Status,
		UnitPrice:       parseDecimal(d.UnitPrice),
		TotalPrice:      parseDecimal(d.TotalPrice),
		DeliveryAddress: d.DeliveryAddress,
		ContactNumber:   d.ContactNumber,
		Notes:           d.Notes,
		TrackingHistory: make([]models.TrackingEvent, 0, len(d.TrackingHistory)),
		CreatedAt:       d.CreatedAt,
		ApprovedAt:      d.ApprovedAt,
	}
	for _, ev := range d.TrackingHistory {
		o.TrackingHistory = append(o.TrackingHistory, models.TrackingEvent(ev))
	}
	return o, nil
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func (s *Store) InsertOrder(ctx context.Context, o models.Order) (string, error) {
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now()
	}
	d := orderDoc{
		ProductID:       o.ProductID,
		ProductName:     o.ProductName,
		Quantity:        o.Quantity,
		Email:           o.Email,
		Status:          o.Status,
		UnitPrice:       o.UnitPrice.String(),
		TotalPrice:      o.TotalPrice.String(),
		DeliveryAddress: o.DeliveryAddress,
		ContactNumber:   o.ContactNumber,
		Notes:           o.Notes,
		TrackingHistory: make([]trackingDoc, 0, len(o.TrackingHistory)),
		CreatedAt:       o.CreatedAt,
		ApprovedAt:      o.ApprovedAt,
	}
	for _, ev := range o.TrackingHistory {
		d.TrackingHistory = append(d.TrackingHistory, trackingDoc(ev))
	}
	ref := s.col("orders").NewDoc()
	if _, err := ref.Create(ctx, d); err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (models.Order, error) {
	id, err := docID(id)
	if err != nil {
		return models.Order{}, err
	}
	snap, err := s.col("orders").Doc(id).Get(ctx)
	if err != nil {
		return models.Order{}, mapErr(err)
	}
	return docToOrder(snap)
}

// PatchOrder appends the tracking event inside a transaction. ArrayUnion is
// not used because it drops elements equal to an existing one.
func (s *Store) PatchOrder(ctx context.Context, id string, patch models.OrderPatch) (int64, error) {
	id, err := docID(id)
	if err != nil {
		return 0, nil
	}
	ref := s.col("orders").Doc(id)
	var matched int64
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		matched = 0
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		matched = 1

		var updates []firestore.Update
		if patch.Status != nil {
			updates = append(updates, firestore.Update{Path: "status", Value: *patch.Status})
		}
		if patch.ApprovedAt != nil {
			updates = append(updates, firestore.Update{Path: "approvedAt", Value: *patch.ApprovedAt})
		}
		if patch.Tracking != nil {
			var d orderDoc
			if err := snap.DataTo(&d); err != nil {
				return err
			}
			history := append(d.TrackingHistory, trackingDoc(*patch.Tracking))
			updates = append(updates, firestore.Update{Path: "trackingHistory", Value: history})
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}

func (s *Store) ListOrders(ctx context.Context, q models.OrderQuery) ([]models.Order, int, error) {
	fq := s.col("orders").Query
	if q.Email != "" {
		fq = fq.Where("email", "==", q.Email)
	}
	if q.Status != "" {
		fq = fq.Where("status", "==", q.Status)
	}
	return collect(ctx, fq, q.Limit, q.Offset, docToOrder, nil)
}
