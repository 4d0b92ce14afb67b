// Package firestorestore implements the product, order and user repositories
// on Cloud Firestore. Users are keyed by lower-cased email; products and
// orders use generated document ids.
package firestorestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"garmentsapi/internal/store"
)

type Store struct {
	client *firestore.Client
}

// Connect opens a client for projectID. An empty credentialsFile falls back
// to Application Default Credentials, or the emulator when
// FIRESTORE_EMULATOR_HOST is set.
func Connect(ctx context.Context, projectID, credentialsFile string) (*Store, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return New(client), nil
}

func New(client *firestore.Client) *Store {
	return &Store{client: client}
}

// Ping reads one user document; Firestore has no dedicated health call.
func (s *Store) Ping(ctx context.Context) error {
	it := s.col("users").Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return fmt.Errorf("firestore ping failed: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) col(name string) *firestore.CollectionRef {
	return s.client.Collection(name)
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func mapErr(err error) error {
	if isNotFound(err) {
		return store.ErrNotFound
	}
	return err
}

// docID rejects ids Firestore would treat as a path.
func docID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" || strings.Contains(id, "/") {
		return "", store.ErrNotFound
	}
	return id, nil
}

// collect drains q, keeping documents accepted by keep, and returns one
// page plus the total match count.
func collect[T any](ctx context.Context, q firestore.Query, limit, offset int, decode func(*firestore.DocumentSnapshot) (T, error), keep func(T) bool) ([]T, int, error) {
	it := q.OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer it.Stop()

	var all []T
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, 0, err
		}
		v, err := decode(snap)
		if err != nil {
			return nil, 0, err
		}
		if keep == nil || keep(v) {
			all = append(all, v)
		}
	}

	limit, offset = store.ClampPage(limit, offset)
	total := len(all)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return append([]T{}, all[offset:end]...), total, nil
}

func now() time.Time {
	return time.Now().UTC()
}
