package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"garmentsapi/internal/models"
	"garmentsapi/internal/store"
)

type productDoc struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty"`
	Name          string               `bson:"name"`
	Category      string               `bson:"category"`
	Description   string               `bson:"description"`
	Price         primitive.Decimal128 `bson:"price"`
	Images        []string             `bson:"images"`
	MinimumOrder  int                  `bson:"minimumOrder"`
	PaymentMethod string               `bson:"paymentMethod"`
	Quantity      int                  `bson:"quantity"`
	ShowOnHome    bool                 `bson:"showOnHome"`
	CreatedBy     string               `bson:"createdBy"`
	Attributes    map[string]any       `bson:"attributes,omitempty"`
	CreatedAt     time.Time            `bson:"createdAt"`
	UpdatedAt     time.Time            `bson:"updatedAt"`
}

func productToDoc(p models.Product) (productDoc, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return productDoc{}, err
	}
	return productDoc{
		Name:          p.Name,
		Category:      p.Category,
		Description:   p.Description,
		Price:         price,
		Images:        p.Images,
		MinimumOrder:  p.MinimumOrder,
		PaymentMethod: p.PaymentMethod,
		Quantity:      p.Quantity,
		ShowOnHome:    p.ShowOnHome,
		CreatedBy:     p.CreatedBy,
		Attributes:    p.Attributes,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}, nil
}

func (d productDoc) model() models.Product {
	return models.Product{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Category:      d.Category,
		Description:   d.Description,
		Price:         fromDecimal128(d.Price),
		Images:        d.Images,
		MinimumOrder:  d.MinimumOrder,
		PaymentMethod: d.PaymentMethod,
		Quantity:      d.Quantity,
		ShowOnHome:    d.ShowOnHome,
		CreatedBy:     d.CreatedBy,
		Attributes:    d.Attributes,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func (s *Store) GetProductByID(ctx context.Context, id string) (models.Product, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.Product{}, err
	}
	var d productDoc
	if err := s.products().FindOne(ctx, bson.M{"_id": oid}).Decode(&d); err != nil {
		return models.Product{}, notFound(err)
	}
	return d.model(), nil
}

func (s *Store) ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, int, error) {
	filter := bson.M{}
	if q.Category != "" {
		filter["category"] = q.Category
	}
	if q.Search != "" {
		filter["name"] = containsFold(q.Search)
	}
	if q.OnlyHome {
		filter["showOnHome"] = true
	}
	if q.CreatedBy != "" {
		filter["createdBy"] = q.CreatedBy
	}
	total, err := s.products().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := s.products().Find(ctx, filter, pageOptions(q.Limit, q.Offset))
	if err != nil {
		return nil, 0, err
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]models.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, int(total), nil
}

func (s *Store) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	d, err := productToDoc(p)
	if err != nil {
		return models.Product{}, err
	}
	d.ID = primitive.NewObjectID()
	if _, err := s.products().InsertOne(ctx, d); err != nil {
		return models.Product{}, err
	}
	return d.model(), nil
}

func (s *Store) UpdateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	oid, err := objectID(p.ID)
	if err != nil {
		return models.Product{}, err
	}
	p.UpdatedAt = now()
	d, err := productToDoc(p)
	if err != nil {
		return models.Product{}, err
	}
	res, err := s.products().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"name":          d.Name,
		"category":      d.Category,
		"description":   d.Description,
		"price":         d.Price,
		"images":        d.Images,
		"minimumOrder":  d.MinimumOrder,
		"paymentMethod": d.PaymentMethod,
		"quantity":      d.Quantity,
		"showOnHome":    d.ShowOnHome,
		"attributes":    d.Attributes,
		"updatedAt":     d.UpdatedAt,
	}})
	if err != nil {
		return models.Product{}, err
	}
	if res.MatchedCount == 0 {
		return models.Product{}, store.ErrNotFound
	}
	return s.GetProductByID(ctx, p.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.products().DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) UpdateProductQuantity(ctx context.Context, id string, quantity int) (int64, error) {
	oid, err := objectID(id)
	if err != nil {
		return 0, nil
	}
	res, err := s.products().UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"quantity": quantity, "updatedAt": now()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// DecrementProductQuantity applies $inc guarded by quantity >= by in a
// single findAndModify.
func (s *Store) DecrementProductQuantity(ctx context.Context, id string, by int) (int, error) {
	oid, err := objectID(id)
	if err != nil {
		return 0, err
	}
	var d productDoc
	err = s.products().FindOneAndUpdate(ctx,
		bson.M{"_id": oid, "quantity": bson.M{"$gte": by}},
		bson.M{"$inc": bson.M{"quantity": -by}, "$set": bson.M{"updatedAt": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&d)
	if errors.Is(err, mongo.ErrNoDocuments) {
		n, cerr := s.products().CountDocuments(ctx, bson.M{"_id": oid})
		if cerr != nil {
			return 0, cerr
		}
		if n == 0 {
			return 0, store.ErrNotFound
		}
		return 0, store.ErrConflict
	}
	if err != nil {
		return 0, err
	}
	return d.Quantity, nil
}

func (s *Store) IncrementProductQuantity(ctx context.Context, id string, by int) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.products().UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"quantity": by}, "$set": bson.M{"updatedAt": now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
