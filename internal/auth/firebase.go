package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

var ErrIDTokenMismatch = errors.New("id token does not belong to email")

// IDTokenVerifier checks an identity-provider token presented at login and
// returns the email it was issued for.
type IDTokenVerifier interface {
	VerifyEmail(ctx context.Context, idToken string) (string, error)
}

type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier builds a verifier from the Firebase Admin SDK. An empty
// credentialsFile falls back to Application Default Credentials.
func NewFirebaseVerifier(ctx context.Context, projectID, credentialsFile string) (*FirebaseVerifier, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) VerifyEmail(ctx context.Context, idToken string) (string, error) {
	if strings.TrimSpace(idToken) == "" {
		return "", ErrUnauthenticated
	}
	tok, err := v.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	email, _ := tok.Claims["email"].(string)
	if email == "" {
		return "", ErrUnauthenticated
	}
	return email, nil
}

// CheckIDToken verifies idToken with v and requires it to match email. A nil
// verifier accepts everything.
func CheckIDToken(ctx context.Context, v IDTokenVerifier, idToken, email string) error {
	if v == nil {
		return nil
	}
	got, err := v.VerifyEmail(ctx, idToken)
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(email)) {
		return ErrIDTokenMismatch
	}
	return nil
}
