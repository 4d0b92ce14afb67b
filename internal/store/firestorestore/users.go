package firestorestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"garmentsapi/internal/models"
	"garmentsapi/internal/store"
)

type userDoc struct {
	Email           string    `firestore:"email"`
	Name            string    `firestore:"name"`
	Role            string    `firestore:"role"`
	PhotoURL        string    `firestore:"photoURL"`
	Status          string    `firestore:"status"`
	SuspendReason   string    `firestore:"suspendReason"`
	SuspendFeedback string    `firestore:"suspendFeedback"`
	CreatedAt       time.Time `firestore:"createdAt"`
	LastLoggedIn    time.Time `firestore:"lastLoggedIn"`
}

func docToUser(snap *firestore.DocumentSnapshot) (models.User, error) {
	var d userDoc
	if err := snap.DataTo(&d); err != nil {
		return models.User{}, err
	}
	return models.User{
		Email:           d.Email,
		Name:            d.Name,
		Role:            models.UserRole(d.Role),
		PhotoURL:        d.PhotoURL,
		Status:          models.UserStatus(d.Status),
		SuspendReason:   d.SuspendReason,
		SuspendFeedback: d.SuspendFeedback,
		CreatedAt:       d.CreatedAt,
		LastLoggedIn:    d.LastLoggedIn,
	}, nil
}

func (s *Store) userRef(email string) (*firestore.DocumentRef, error) {
	id, err := docID(strings.ToLower(email))
	if err != nil {
		return nil, err
	}
	return s.col("users").Doc(id), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	ref, err := s.userRef(email)
	if err != nil {
		return models.User{}, err
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return models.User{}, mapErr(err)
	}
	return docToUser(snap)
}

func (s *Store) UpsertUser(ctx context.Context, email string, in models.UserUpsert) (models.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	ref, err := s.userRef(email)
	if err != nil {
		return models.User{}, false, err
	}
	ts := now()
	created := false
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		_, err := tx.Get(ref)
		if isNotFound(err) {
			role := in.Role
			if role == "" {
				role = models.RoleMember
			}
			created = true
			return tx.Create(ref, userDoc{
				Email:        email,
				Name:         in.Name,
				Role:         string(role),
				PhotoURL:     in.PhotoURL,
				Status:       string(models.UserActive),
				CreatedAt:    ts,
				LastLoggedIn: ts,
			})
		}
		if err != nil {
			return err
		}
		updates := []firestore.Update{{Path: "lastLoggedIn", Value: ts}}
		if in.Name != "" {
			updates = append(updates, firestore.Update{Path: "name", Value: in.Name})
		}
		if in.PhotoURL != "" {
			updates = append(updates, firestore.Update{Path: "photoURL", Value: in.PhotoURL})
		}
		return tx.Update(ref, updates)
	})
	if err != nil {
		return models.User{}, false, err
	}
	u, err := s.GetUserByEmail(ctx, email)
	return u, created, err
}

func (s *Store) EnsureAdmin(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	if _, _, err := s.UpsertUser(ctx, email, models.UserUpsert{Role: models.RoleAdmin}); err != nil {
		return err
	}
	return s.update(ctx, email, []firestore.Update{
		{Path: "role", Value: string(models.RoleAdmin)},
		{Path: "status", Value: string(models.UserActive)},
	})
}

func (s *Store) ListUsers(ctx context.Context, q models.UserQuery) ([]models.User, int, error) {
	fq := s.col("users").Query
	if q.Role != "" {
		fq = fq.Where("role", "==", q.Role)
	}
	if q.Status != "" {
		fq = fq.Where("status", "==", q.Status)
	}
	var keep func(models.User) bool
	if q.Q != "" {
		needle := strings.ToLower(q.Q)
		keep = func(u models.User) bool {
			return strings.Contains(u.Email, needle) || strings.Contains(strings.ToLower(u.Name), needle)
		}
	}
	return collect(ctx, fq, q.Limit, q.Offset, docToUser, keep)
}

func (s *Store) UpdateUserRole(ctx context.Context, email string, role models.UserRole) error {
	return s.update(ctx, email, []firestore.Update{{Path: "role", Value: string(role)}})
}

func (s *Store) UpdateUserStatus(ctx context.Context, email string, status models.UserStatus, reason, feedback string) error {
	if status == models.UserActive {
		reason, feedback = "", ""
	}
	return s.update(ctx, email, []firestore.Update{
		{Path: "status", Value: string(status)},
		{Path: "suspendReason", Value: reason},
		{Path: "suspendFeedback", Value: feedback},
	})
}

func (s *Store) update(ctx context.Context, email string, updates []firestore.Update) error {
	ref, err := s.userRef(email)
	if err != nil {
		return err
	}
	if _, err := ref.Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return store.ErrNotFound
		}
		return err
	}
	return nil
}
