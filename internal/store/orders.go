package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"garmentsapi/internal/models"
)

const orderCols = `id,product_id,product_name,quantity,email,status,unit_price,total_price,delivery_address,contact_number,notes,created_at,approved_at`

func scanOrder(row interface{ Scan(...any) error }) (models.Order, error) {
	var o models.Order
	var approvedAt sql.NullTime
	if err := row.Scan(&o.ID, &o.ProductID, &o.ProductName, &o.Quantity, &o.Email, &o.Status,
		&o.UnitPrice, &o.TotalPrice, &o.DeliveryAddress, &o.ContactNumber, &o.Notes, &o.CreatedAt, &approvedAt); err != nil {
		return models.Order{}, err
	}
	if approvedAt.Valid {
		t := approvedAt.Time
		o.ApprovedAt = &t
	}
	o.TrackingHistory = []models.TrackingEvent{}
	return o, nil
}

// InsertOrder stores a new order document and returns its generated id.
func (s *Store) InsertOrder(ctx context.Context, o models.Order) (string, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		a := s.newArgs()
		q := `INSERT INTO orders(` + orderCols + `,revision) VALUES(` + strings.Join([]string{
			a.add(o.ID), a.add(o.ProductID), a.add(o.ProductName), a.add(o.Quantity), a.add(o.Email),
			a.add(o.Status), a.add(o.UnitPrice), a.add(o.TotalPrice), a.add(o.DeliveryAddress),
			a.add(o.ContactNumber), a.add(o.Notes), a.add(o.CreatedAt), a.add(o.ApprovedAt),
			a.add(len(o.TrackingHistory)),
		}, ",") + `)`
		if _, err := tx.ExecContext(ctx, q, a.vals...); err != nil {
			return err
		}
		for i, ev := range o.TrackingHistory {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO order_tracking(order_id,seq,event,location,at) VALUES(`+s.ph(1)+`,`+s.ph(2)+`,`+s.ph(3)+`,`+s.ph(4)+`,`+s.ph(5)+`)`,
				o.ID, i+1, ev.Event, ev.Location, ev.Time,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return o.ID, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (models.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderCols+` FROM orders WHERE id=`+s.ph(1), id))
	if err == sql.ErrNoRows {
		return models.Order{}, ErrNotFound
	}
	if err != nil {
		return models.Order{}, err
	}
	history, err := s.trackingFor(ctx, []string{o.ID})
	if err != nil {
		return models.Order{}, err
	}
	if h := history[o.ID]; h != nil {
		o.TrackingHistory = h
	}
	return o, nil
}

func (s *Store) trackingFor(ctx context.Context, orderIDs []string) (map[string][]models.TrackingEvent, error) {
	out := map[string][]models.TrackingEvent{}
	if len(orderIDs) == 0 {
		return out, nil
	}
	a := s.newArgs()
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id,event,location,at FROM order_tracking WHERE order_id IN (`+a.list(orderIDs)+`) ORDER BY order_id, seq`,
		a.vals...,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var ev models.TrackingEvent
		if err := rows.Scan(&orderID, &ev.Event, &ev.Location, &ev.Time); err != nil {
			return nil, err
		}
		out[orderID] = append(out[orderID], ev)
	}
	return out, rows.Err()
}

// PatchOrder applies a status change and/or appends one tracking event and
// returns the number of matched orders (0 or 1). Every patch bumps the
// order's revision first, which locks the row; the new revision is the
// sequence number of the appended event.
func (s *Store) PatchOrder(ctx context.Context, id string, patch models.OrderPatch) (int64, error) {
	var matched int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		a := s.newArgs()
		set := []string{"revision=revision+1"}
		if patch.Status != nil {
			set = append(set, "status="+a.add(*patch.Status))
			if patch.ApprovedAt != nil {
				set = append(set, "approved_at="+a.add(*patch.ApprovedAt))
			}
		}
		res, err := tx.ExecContext(ctx, `UPDATE orders SET `+strings.Join(set, ", ")+` WHERE id=`+a.add(id), a.vals...)
		if err != nil {
			return err
		}
		if matched, err = res.RowsAffected(); err != nil {
			return err
		}
		if matched == 0 || patch.Tracking == nil {
			return nil
		}
		var seq int
		if err := tx.QueryRowContext(ctx, `SELECT revision FROM orders WHERE id=`+s.ph(1), id).Scan(&seq); err != nil {
			return err
		}
		ev := patch.Tracking
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_tracking(order_id,seq,event,location,at) VALUES(`+s.ph(1)+`,`+s.ph(2)+`,`+s.ph(3)+`,`+s.ph(4)+`,`+s.ph(5)+`)`,
			id, seq, ev.Event, ev.Location, ev.Time,
		)
		return err
	})
	if err != nil {
		return 0, err
	}
	return matched, nil
}

func (s *Store) ListOrders(ctx context.Context, q models.OrderQuery) ([]models.Order, int, error) {
	a := s.newArgs()
	var where []string
	if q.Email != "" {
		where = append(where, "email="+a.add(q.Email))
	}
	if q.Status != "" {
		where = append(where, "status="+a.add(q.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM orders`+clause, a.vals...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := ClampPage(q.Limit, q.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderCols+` FROM orders`+clause+` ORDER BY created_at DESC LIMIT `+a.add(limit)+` OFFSET `+a.add(offset),
		a.vals...,
	)
	if err != nil {
		return nil, 0, err
	}
	out := make([]models.Order, 0, limit)
	ids := make([]string, 0, limit)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, 0, err
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	history, err := s.trackingFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range out {
		if h := history[out[i].ID]; h != nil {
			out[i].TrackingHistory = h
		}
	}
	return out, total, nil
}
