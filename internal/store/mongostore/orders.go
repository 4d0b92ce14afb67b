package mongostore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"garmentsapi/internal/models"
)

type trackingDoc struct {
	Event    string    `bson:"event"`
	Location string    `bson:"location,omitempty"`
	Time     time.Time `bson:"time"`
}

type orderDoc struct {
	ID              primitive.ObjectID   `bson:"_id,omitempty"`
	ProductID       string               `bson:"productId"`
	ProductName     string               `bson:"productName"`
	Quantity        int                  `bson:"quantity"`
	Email           string               `bson:"email"`
	Status          string               `bson:"status"`
	UnitPrice       primitive.Decimal128 `bson:"unitPrice"`
	TotalPrice      primitive.Decimal128 `bson:"totalPrice"`
	DeliveryAddress string               `bson:"deliveryAddress"`
	ContactNumber   string               `bson:"contactNumber"`
	Notes           string               `bson:"notes"`
	TrackingHistory []trackingDoc        `bson:"trackingHistory"`
	CreatedAt       time.Time            `bson:"createdAt"`
	ApprovedAt      *time.Time           `bson:"approvedAt,omitempty"`
}

func (d orderDoc) model() models.Order {
	o := models.Order{
		ID:              d.ID.Hex(),
		ProductID:       d.ProductID,
		ProductName:     d.ProductName,
		Quantity:        d.Quantity,
		Email:           d.Email,
		Status:          d.Status,
		UnitPrice:       fromDecimal128(d.UnitPrice),
		TotalPrice:      fromDecimal128(d.TotalPrice),
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
	return o
}

func (s *Store) InsertOrder(ctx context.Context, o models.Order) (string, error) {
	unit, err := toDecimal128(o.UnitPrice)
	if err != nil {
		return "", err
	}
	total, err := toDecimal128(o.TotalPrice)
	if err != nil {
		return "", err
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = now()
	}
	d := orderDoc{
		ID:              primitive.NewObjectID(),
		ProductID:       o.ProductID,
		ProductName:     o.ProductName,
		Quantity:        o.Quantity,
		Email:           o.Email,
		Status:          o.Status,
		UnitPrice:       unit,
		TotalPrice:      total,
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
	if _, err := s.orders().InsertOne(ctx, d); err != nil {
		return "", err
	}
	return d.ID.Hex(), nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (models.Order, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.Order{}, err
	}
	var d orderDoc
	if err := s.orders().FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		return models.Order{}, notFound(err)
	}
	return d.model(), nil
}

// PatchOrder $sets status fields and $pushes the tracking event in one
// update, returning the matched count.
func (s *Store) PatchOrder(ctx context.Context, id string, patch models.OrderPatch) (int64, error) {
	oid, err := objectID(id)
	if err != nil {
		return 0, nil
	}
	update := bson.M{}
	set := bson.M{}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.ApprovedAt != nil {
		set["approvedAt"] = *patch.ApprovedAt
	}
	if len(set) > 0 {
		update["$set"] = set
	}
	if patch.Tracking != nil {
		update["$push"] = bson.M{"trackingHistory": trackingDoc(*patch.Tracking)}
	}
	if len(update) == 0 {
		n, err := s.orders().CountDocuments(ctx, bson.M{"_id": oid})
		return n, err
	}
	res, err := s.orders().UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return 0, err
	}
	return res.MatchedCount, nil
}

func (s *Store) ListOrders(ctx context.Context, q models.OrderQuery) ([]models.Order, int, error) {
	filter := bson.M{}
	if q.Email != "" {
		filter["email"] = q.Email
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	total, err := s.orders().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := s.orders().Find(ctx, filter, pageOptions(q.Limit, q.Offset))
	if err != nil {
		return nil, 0, err
	}
	var docs []orderDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]models.Order, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, int(total), nil
}
