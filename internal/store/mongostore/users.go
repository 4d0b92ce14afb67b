package mongostore

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"garmentsapi/internal/models"
	"garmentsapi/internal/store"
)

type userDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	Email           string             `bson:"email"`
	Name            string             `bson:"name"`
	Role            string             `bson:"role"`
	PhotoURL        string             `bson:"photoURL"`
	Status          string             `bson:"status"`
	SuspendReason   string             `bson:"suspendReason"`
	SuspendFeedback string             `bson:"suspendFeedback"`
	CreatedAt       time.Time          `bson:"createdAt"`
	LastLoggedIn    time.Time          `bson:"lastLoggedIn"`
}

func (d userDoc) model() models.User {
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
	}
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var d userDoc
	if err := s.users().FindOne(ctx, bson.M{"email": normEmail(email)}).Decode(&d); err != nil {
		return models.User{}, notFound(err)
	}
	return d.model(), nil
}

// UpsertUser relies on the unique email index: $setOnInsert fills a new
// document, $set refreshes lastLoggedIn and any non-empty profile field.
func (s *Store) UpsertUser(ctx context.Context, email string, in models.UserUpsert) (models.User, bool, error) {
	email = normEmail(email)
	ts := now()
	role := in.Role
	if role == "" {
		role = models.RoleMember
	}
	set := bson.M{"lastLoggedIn": ts}
	onInsert := bson.M{
		"email":           email,
		"role":            string(role),
		"status":          string(models.UserActive),
		"suspendReason":   "",
		"suspendFeedback": "",
		"createdAt":       ts,
	}
	if in.Name != "" {
		set["name"] = in.Name
	} else {
		onInsert["name"] = ""
	}
	if in.PhotoURL != "" {
		set["photoURL"] = in.PhotoURL
	} else {
		onInsert["photoURL"] = ""
	}
	res, err := s.users().UpdateOne(ctx, bson.M{"email": email},
		bson.M{"$set": set, "$setOnInsert": onInsert},
		options.Update().SetUpsert(true))
	if err != nil {
		return models.User{}, false, err
	}
	u, err := s.GetUserByEmail(ctx, email)
	return u, res.UpsertedCount > 0, err
}

func (s *Store) EnsureAdmin(ctx context.Context, email string) error {
	email = normEmail(email)
	if email == "" {
		return nil
	}
	if _, _, err := s.UpsertUser(ctx, email, models.UserUpsert{Role: models.RoleAdmin}); err != nil {
		return err
	}
	_, err := s.users().UpdateOne(ctx, bson.M{"email": email},
		bson.M{"$set": bson.M{"role": string(models.RoleAdmin), "status": string(models.UserActive)}})
	return err
}

func (s *Store) ListUsers(ctx context.Context, q models.UserQuery) ([]models.User, int, error) {
	filter := bson.M{}
	if q.Q != "" {
		rx := containsFold(q.Q)
		filter["$or"] = bson.A{bson.M{"email": rx}, bson.M{"name": rx}}
	}
	if q.Role != "" {
		filter["role"] = q.Role
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	total, err := s.users().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := s.users().Find(ctx, filter, pageOptions(q.Limit, q.Offset))
	if err != nil {
		return nil, 0, err
	}
	var docs []userDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]models.User, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, int(total), nil
}

func (s *Store) UpdateUserRole(ctx context.Context, email string, role models.UserRole) error {
	return s.setUser(ctx, email, bson.M{"role": string(role)})
}

func (s *Store) UpdateUserStatus(ctx context.Context, email string, status models.UserStatus, reason, feedback string) error {
	if status == models.UserActive {
		reason, feedback = "", ""
	}
	return s.setUser(ctx, email, bson.M{
		"status":          string(status),
		"suspendReason":   reason,
		"suspendFeedback": feedback,
	})
}

func (s *Store) setUser(ctx context.Context, email string, set bson.M) error {
	res, err := s.users().UpdateOne(ctx, bson.M{"email": normEmail(email)}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return store.ErrNotFound
	}
	return nil
}
