package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"garmentsapi/internal/models"
)

const productCols = `id,name,category,price,quantity,show_on_home,created_by,details,created_at,updated_at`

func scanProduct(row interface{ Scan(...any) error }) (models.Product, error) {
	var p models.Product
	var details string
	if err := row.Scan(&p.ID, &p.Name, &p.Category, &p.Price, &p.Quantity, &p.ShowOnHome, &p.CreatedBy, &details, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Product{}, err
	}
	var d models.ProductDetails
	if details != "" {
		if err := json.Unmarshal([]byte(details), &d); err != nil {
			return models.Product{}, err
		}
	}
	p.ApplyDetails(d)
	return p, nil
}

func encodeDetails(p models.Product) (string, error) {
	b, err := json.Marshal(p.Details())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (models.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx,
		`SELECT `+productCols+` FROM products WHERE id=`+s.ph(1), id))
	if err == sql.ErrNoRows {
		return models.Product{}, ErrNotFound
	}
	if err != nil {
		return models.Product{}, err
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, q models.ProductQuery) ([]models.Product, int, error) {
	a := s.newArgs()
	var where []string
	if q.Category != "" {
		where = append(where, "category="+a.add(q.Category))
	}
	if q.Search != "" {
		where = append(where, "LOWER(name) LIKE "+a.add("%"+strings.ToLower(q.Search)+"%"))
	}
	if q.OnlyHome {
		where = append(where, "show_on_home="+a.add(true))
	}
	if q.CreatedBy != "" {
		where = append(where, "created_by="+a.add(q.CreatedBy))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM products`+clause, a.vals...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := ClampPage(q.Limit, q.Offset)
	page := `SELECT ` + productCols + ` FROM products` + clause +
		` ORDER BY created_at DESC LIMIT ` + a.add(limit) + ` OFFSET ` + a.add(offset)
	rows, err := s.db.QueryContext(ctx, page, a.vals...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]models.Product, 0, limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (s *Store) CreateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	details, err := encodeDetails(p)
	if err != nil {
		return models.Product{}, err
	}
	a := s.newArgs()
	q := `INSERT INTO products(` + productCols + `) VALUES(` +
		strings.Join([]string{
			a.add(p.ID), a.add(p.Name), a.add(p.Category), a.add(p.Price), a.add(p.Quantity),
			a.add(p.ShowOnHome), a.add(p.CreatedBy), a.add(details), a.add(p.CreatedAt), a.add(p.UpdatedAt),
		}, ",") + `)`
	if _, err := s.db.ExecContext(ctx, q, a.vals...); err != nil {
		return models.Product{}, err
	}
	return p, nil
}

// UpdateProduct replaces the editable fields of an existing product.
func (s *Store) UpdateProduct(ctx context.Context, p models.Product) (models.Product, error) {
	details, err := encodeDetails(p)
	if err != nil {
		return models.Product{}, err
	}
	p.UpdatedAt = time.Now().UTC()
	a := s.newArgs()
	q := `UPDATE products SET name=` + a.add(p.Name) +
		`, category=` + a.add(p.Category) +
		`, price=` + a.add(p.Price) +
		`, quantity=` + a.add(p.Quantity) +
		`, show_on_home=` + a.add(p.ShowOnHome) +
		`, details=` + a.add(details) +
		`, updated_at=` + a.add(p.UpdatedAt) +
		` WHERE id=` + a.add(p.ID)
	res, err := s.db.ExecContext(ctx, q, a.vals...)
	if err != nil {
		return models.Product{}, err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.Product{}, ErrNotFound
	}
	return s.GetProductByID(ctx, p.ID)
}

// DeleteProduct removes the product document only; orders that reference it
// keep their productId.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id=`+s.ph(1), id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateProductQuantity overwrites quantity unconditionally and reports the
// number of modified rows.
func (s *Store) UpdateProductQuantity(ctx context.Context, id string, quantity int) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET quantity=`+s.ph(1)+`, updated_at=`+s.ph(2)+` WHERE id=`+s.ph(3),
		quantity, time.Now().UTC(), id,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DecrementProductQuantity subtracts by from quantity only if quantity >= by,
// in a single conditional UPDATE, and returns the new quantity.
func (s *Store) DecrementProductQuantity(ctx context.Context, id string, by int) (int, error) {
	var remaining int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		a := s.newArgs()
		q := `UPDATE products SET quantity=quantity-` + a.add(by) +
			`, updated_at=` + a.add(time.Now().UTC()) +
			` WHERE id=` + a.add(id) + ` AND quantity>=` + a.add(by)
		res, err := tx.ExecContext(ctx, q, a.vals...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		err = tx.QueryRowContext(ctx, `SELECT quantity FROM products WHERE id=`+s.ph(1), id).Scan(&remaining)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrConflict
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return remaining, nil
}

func (s *Store) IncrementProductQuantity(ctx context.Context, id string, by int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET quantity=quantity+`+s.ph(1)+`, updated_at=`+s.ph(2)+` WHERE id=`+s.ph(3),
		by, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
