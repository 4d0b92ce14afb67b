package firestorestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"

	"garmentsapi/internal/models"
	"garmentsapi/internal/store"
)

type productDoc struct {
	Name          string         `firestore:"name"`
	Category      string         `firestore:"category"`
	Description   string         `firestore:"description"`
	Price         string         `firestore:"price"`
	Images        []string       `firestore:"images"`
	MinimumOrder  int            `firestore:"minimumOrder"`
	PaymentMethod string         `firestore:"paymentMethod"`
	Quantity      int            `firestore:"quantity"`
	ShowOnHome    bool           `firestore:"showOnHome"`
	CreatedBy     string         `firestore:"createdBy"`
	Attributes    map[string]any `firestore:"attributes,omitempty"`
	CreatedAt     time.Time      `firestore:"createdAt"`
	UpdatedAt     time.Time      `firestore:"updatedAt"`
}

func productToDoc(p models.Product) productDoc {
	return productDoc{
		Name:          p.Name,
		Category:      p.Category,
		Description:   p.Description,
		Price:         p.Price.String(),
		Images:        p.Images,
		MinimumOrder:  p.MinimumOrder,
		PaymentMethod: p.PaymentMethod,
		Quantity:      p.Quantity,
		ShowOnHome:    p.ShowOnHome,
		CreatedBy:     p.CreatedBy,
		Attributes:    p.Attributes,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
}

func docToProduct(snap *firestore.DocumentSnapshot) (models.Product, error) {
	var d productDoc
	if err := snap.DataTo(&d); err != nil {
		return models.Product{}, err
	}
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		price = decimal.Zero
	}
	return models.Product{
		ID:            snap.Ref.ID,
		Name:          d.Name,
		Category:      d.Category,
		Description:   d.Description,
		Price:         price,
		Images:        d.Images,
		MinimumOrder:  d.MinimumOrder,
		PaymentMethod: d.PaymentMethod,
		Quantity:      d.Quantity,
		ShowOnHome:    d.ShowOnHome,
		CreatedBy:     d.CreatedBy,
		Attributes:    d.Attributes,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}, nil
}

func (s *Store) productRef(id string) (*firestore.DocumentRef, error) {
	id, err := docID(id)
	if err != nil {
		return nil, err
	}
	return s.col("products").Doc(id), nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (models.Product, error) {
	ref, err := s.productRef(id)
	if err != nil {
		return models.Product{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return models.Product{}, mapErr(err)
	}
	return docToProduct(snap)
}

// ListProducts pushes equality filters to Firestore and applies the
// case-insensitive name search in memory.
func (s *Store) ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, int, error) {
	fq := s.col("products").Query
	if q.Category != "" {
		fq = fq.Where("category", "==", q.Category)
	}
	if q.OnlyHome {
		fq = fq.Where("showOnHome", "==", true)
	}
	if q.CreatedBy != "" {
		fq = fq.Where("createdBy", "==", q.CreatedBy)
	}
	var keep func(models.Product) bool
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		keep = func(p models.Product) bool { return strings.Contains(strings.ToLower(p.Name), needle) }
	}
	return collect(ctx, fq, q.Limit, q.Offset, docToProduct, keep)
}

func (s *Store) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	p.CreatedAt = now()
	p.UpdatedAt = p.CreatedAt
	ref := s.col("products").NewDoc()
	if _, err := ref.Create(ctx, productToDoc(p)); err != nil {
		return models.Product{}, err
	}
	p.ID = ref.ID
	return p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	ref, err := s.productRef(p.ID)
	if err != nil {
		return models.Product{}, err
	}
	p.UpdatedAt = now()
	d := productToDoc(p)
	_, err = ref.Update(ctx, []firestore.Update{
		{Path: "name", Value: d.Name},
		{Path: "category", Value: d.Category},
		{Path: "description", Value: d.Description},
		{Path: "price", Value: d.Price},
		{Path: "images", Value: d.Images},
		{Path: "minimumOrder", Value: d.MinimumOrder},
		{Path: "paymentMethod", Value: d.PaymentMethod},
		{Path: "quantity", Value: d.Quantity},
		{Path: "showOnHome", Value: d.ShowOnHome},
		{Path: "attributes", Value: d.Attributes},
		{Path: "updatedAt", Value: d.UpdatedAt},
	})
	if err != nil {
		return models.Product{}, mapErr(err)
	}
	return s.GetProductByID(ctx, p.ID)
}

func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	ref, err := s.productRef(id)
	if err != nil {
		return err
	}
	_, err = ref.Delete(ctx, firestore.Exists)
	return mapErr(err)
}

func (s *Store) UpdateProductQuantity(ctx context.Context, id string, quantity int) (int64, error) {
	ref, err := s.productRef(id)
	if err != nil {
		return 0, nil
	}
	_, err = ref.Update(ctx, []firestore.Update{
		{Path: "quantity", Value: quantity},
		{Path: "updatedAt", Value: now()},
	})
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// DecrementProductQuantity reads and writes the product inside one
// transaction so the guard and the write see the same quantity.
func (s *Store) DecrementProductQuantity(ctx context.Context, id string, by int) (int, error) {
	ref, err := s.productRef(id)
	if err != nil {
		return 0, err
	}
	var remaining int
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return mapErr(err)
		}
		qty, err := snap.DataAt("quantity")
		if err != nil {
			return err
		}
		current, _ := qty.(int64)
		if current < int64(by) {
			return store.ErrConflict
		}
		remaining = int(current) - by
		return tx.Update(ref, []firestore.Update{
			{Path: "quantity", Value: remaining},
			{Path: "updatedAt", Value: now()},
		})
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (s *Store) IncrementProductQuantity(ctx context.Context, id string, by int) error {
	ref, err := s.productRef(id)
	if err != nil {
		return err
	}
	_, err = ref.Update(ctx, []firestore.Update{
		{Path: "quantity", Value: firestore.Increment(by)},
		{Path: "updatedAt", Value: now()},
	})
	return mapErr(err)
}
