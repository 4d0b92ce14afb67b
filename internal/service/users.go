package service

import (
	"context"
	"strings"

	"garmentsapi/internal/models"
)

// RecordLogin creates the user on first sign-in and refreshes lastLoggedIn
// afterwards. Clients cannot pick a role here.
func (s *Service) RecordLogin(ctx context.Context, email, name, photoURL string) (models.User, bool, error) {
	email = normEmail(email)
	if email == "" {
		return models.User{}, false, invalid("email is required")
	}
	u, created, err := s.users.UpsertUser(ctx, email, models.UserUpsert{
		Name:     strings.TrimSpace(name),
		PhotoURL: strings.TrimSpace(photoURL),
	})
	if err != nil {
		return models.User{}, false, storeErr("upsert user", err)
	}
	return u, created, nil
}

func (s *Service) GetUser(ctx context.Context, email string) (models.User, error) {
	u, err := s.users.GetUserByEmail(ctx, normEmail(email))
	if err != nil {
		return models.User{}, mapRepoErr("get user", err)
	}
	return u, nil
}

func (s *Service) ListUsers(ctx context.Context, q models.UserQuery) ([]models.User, int, error) {
	items, total, err := s.users.ListUsers(ctx, q)
	if err != nil {
		return nil, 0, storeErr("list users", err)
	}
	return items, total, nil
}

func (s *Service) SetUserRole(ctx context.Context, actor Caller, email string, role models.UserRole) error {
	email = normEmail(email)
	switch role {
	case models.RoleMember, models.RoleAdmin:
	default:
		return invalid("role must be one of: member, admin")
	}
	if email == actor.Email && role != models.RoleAdmin {
		return invalid("admins cannot demote themselves")
	}
	if err := s.users.UpdateUserRole(ctx, email, role); err != nil {
		return mapRepoErr("update user role", err)
	}
	return nil
}

// SetUserStatus suspends or reactivates a user. A suspension needs a reason;
// feedback is the message shown to the user.
func (s *Service) SetUserStatus(ctx context.Context, actor Caller, email string, status models.UserStatus, reason, feedback string) error {
	email = normEmail(email)
	reason = strings.TrimSpace(reason)
	switch status {
	case models.UserActive:
	case models.UserSuspended:
		if reason == "" {
			return invalid("suspendReason is required")
		}
		if email == actor.Email {
			return invalid("admins cannot suspend themselves")
		}
	default:
		return invalid("status must be one of: active, suspended")
	}
	if err := s.users.UpdateUserStatus(ctx, email, status, reason, strings.TrimSpace(feedback)); err != nil {
		return mapRepoErr("update user status", err)
	}
	return nil
}
