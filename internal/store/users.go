package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"garmentsapi/internal/models"
)

const userCols = `email,name,role,photo_url,status,suspend_reason,suspend_feedback,created_at,last_logged_in`

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.Email, &u.Name, &u.Role, &u.PhotoURL, &u.Status, &u.SuspendReason, &u.SuspendFeedback, &u.CreatedAt, &u.LastLoggedIn)
	return u, err
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userCols+` FROM users WHERE email=`+s.ph(1), normEmail(email)))
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

// UpsertUser creates the user on first login and otherwise refreshes
// last_logged_in, merging non-empty profile fields. Role is only honoured on
// creation.
func (s *Store) UpsertUser(ctx context.Context, email string, in models.UserUpsert) (models.User, bool, error) {
	email = normEmail(email)
	now := time.Now().UTC()
	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	insert, onConflict := s.insertIgnore()
	res, err := s.db.ExecContext(ctx,
		insert+`users(`+userCols+`) VALUES(`+s.ph(1)+`,`+s.ph(2)+`,`+s.ph(3)+`,`+s.ph(4)+`,`+s.ph(5)+`,`+s.ph(6)+`,`+s.ph(7)+`,`+s.ph(8)+`,`+s.ph(9)+`)`+onConflict,
		email, in.Name, role, in.PhotoURL, models.UserActive, "", "", now, now,
	)
	if err != nil {
		return models.User{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.User{}, false, err
	}
	created := n > 0
	if !created {
		a := s.newArgs()
		set := []string{"last_logged_in=" + a.add(now)}
		if in.Name != "" {
			set = append(set, "name="+a.add(in.Name))
		}
		if in.PhotoURL != "" {
			set = append(set, "photo_url="+a.add(in.PhotoURL))
		}
		if _, err := s.db.ExecContext(ctx, `UPDATE users SET `+strings.Join(set, ", ")+` WHERE email=`+a.add(email), a.vals...); err != nil {
			return models.User{}, false, err
		}
	}
	u, err := s.GetUserByEmail(ctx, email)
	return u, created, err
}

// EnsureAdmin creates or promotes the bootstrap administrator.
func (s *Store) EnsureAdmin(ctx context.Context, email string) error {
	email = normEmail(email)
	if email == "" {
		return nil
	}
	if _, _, err := s.UpsertUser(ctx, email, models.UserUpsert{Role: models.RoleAdmin}); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET role=`+s.ph(1)+`, status=`+s.ph(2)+` WHERE email=`+s.ph(3),
		models.RoleAdmin, models.UserActive, email,
	)
	return err
}

func (s *Store) ListUsers(ctx context.Context, q models.UserQuery) ([]models.User, int, error) {
	a := s.newArgs()
	var where []string
	if q.Q != "" {
		like := "%" + strings.ToLower(q.Q) + "%"
		where = append(where, "(email LIKE "+a.add(like)+" OR LOWER(name) LIKE "+a.add(like)+")")
	}
	if q.Role != "" {
		where = append(where, "role="+a.add(q.Role))
	}
	if q.Status != "" {
		where = append(where, "status="+a.add(q.Status))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM users`+clause, a.vals...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit, offset := ClampPage(q.Limit, q.Offset)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+userCols+` FROM users`+clause+` ORDER BY created_at DESC LIMIT `+a.add(limit)+` OFFSET `+a.add(offset),
		a.vals...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]models.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateUserRole(ctx context.Context, email string, role models.UserRole) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role=`+s.ph(1)+` WHERE email=`+s.ph(2), role, normEmail(email))
	if err != nil {
		return err
	}
	return requireMatch(ctx, s, res, email)
}

// UpdateUserStatus sets status; reason and feedback are cleared when the user
// is reactivated.
func (s *Store) UpdateUserStatus(ctx context.Context, email string, status models.UserStatus, reason, feedback string) error {
	if status == models.UserActive {
		reason, feedback = "", ""
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET status=`+s.ph(1)+`, suspend_reason=`+s.ph(2)+`, suspend_feedback=`+s.ph(3)+` WHERE email=`+s.ph(4),
		status, reason, feedback, normEmail(email),
	)
	if err != nil {
		return err
	}
	return requireMatch(ctx, s, res, email)
}

// requireMatch turns a zero-row update into ErrNotFound. MySQL reports
// changed rather than matched rows, so a zero count is double-checked.
func requireMatch(ctx context.Context, s *Store, res sql.Result, email string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err = s.GetUserByEmail(ctx, email)
	return err
}
