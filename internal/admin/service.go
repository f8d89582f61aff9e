package admin

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"techwire-be/internal/auth"
	"techwire-be/internal/logger"
	"techwire-be/internal/notify"

	"go.uber.org/zap"
)

type Service interface {
	// Authenticate maps verified identity claims onto an admin record,
	// linking the subject on first sign-in.
	Authenticate(ctx context.Context, claims *auth.Claims) (*Admin, error)
	Create(ctx context.Context, in CreateInput) (*Admin, error)
	Delete(ctx context.Context, requesterID, id int64) error
	List(ctx context.Context) ([]Admin, error)
	ListEmails(ctx context.Context) ([]string, error)
	SeedSuperAdmin(ctx context.Context, in CreateInput) (bool, error)
}

type service struct {
	repo      Repository
	publisher notify.Publisher
}

func NewService(repo Repository, publisher notify.Publisher) Service {
	return &service{repo: repo, publisher: publisher}
}

func (s *service) Authenticate(ctx context.Context, claims *auth.Claims) (*Admin, error) {
	log := logger.FromCtx(ctx).With(
		zap.String("layer", "service"),
		zap.String("method", "Authenticate"),
		zap.String("uid", claims.Subject),
	)

	a, err := s.repo.FindByUID(ctx, claims.Subject)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrAdminNotFound) {
		return nil, err
	}
	if claims.Email == "" {
		return nil, ErrNotRegistered
	}

	a, err = s.repo.FindByEmail(ctx, strings.ToLower(claims.Email))
	if errors.Is(err, ErrAdminNotFound) {
		log.Warn("authenticated identity has no admin record", zap.String("email", claims.Email))
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, err
	}

	if a.UID != nil {
		log.Error("admin email linked to another identity",
			zap.Int64("admin_id", a.ID), zap.String("linked_uid", *a.UID))
		return nil, ErrUIDConflict
	}

	linked, err := s.repo.LinkUID(ctx, a.ID, claims.Subject)
	if err != nil {
		return nil, err
	}
	log.Info("linked identity to admin", zap.Int64("admin_id", a.ID))
	return linked, nil
}

func validate(in CreateInput) (CreateInput, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.Username = strings.TrimSpace(in.Username)

	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		return in, fmt.Errorf("%w: Valid email is required", ErrValidation)
	}
	if in.Name == "" {
		return in, fmt.Errorf("%w: Name is required", ErrValidation)
	}
	if in.Username == "" {
		return in, fmt.Errorf("%w: Username is required", ErrValidation)
	}
	return in, nil
}

// Create stores a regular admin and queues the sign-up invitation. The
// record stands even if the invitation is never delivered.
func (s *service) Create(ctx context.Context, in CreateInput) (*Admin, error) {
	in, err := validate(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.FindByEmail(ctx, in.Email); err == nil {
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrAdminNotFound) {
		return nil, err
	}
	if _, err := s.repo.FindByUsername(ctx, in.Username); err == nil {
		return nil, ErrUsernameExists
	} else if !errors.Is(err, ErrAdminNotFound) {
		return nil, err
	}

	a := &Admin{Username: in.Username, Email: in.Email, Name: in.Name}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}

	logger.FromCtx(ctx).Info("admin created", zap.Int64("admin_id", a.ID), zap.String("email", a.Email))
	s.publisher.Dispatch(ctx, notify.Event{
		Kind:      notify.KindAdminInvited,
		Recipient: a.Email,
		Name:      a.Name,
	})
	return a, nil
}

func (s *service) Delete(ctx context.Context, requesterID, id int64) error {
	if requesterID == id {
		return ErrSelfDelete
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logger.FromCtx(ctx).Info("admin deleted", zap.Int64("admin_id", id), zap.Int64("by", requesterID))
	return nil
}

func (s *service) List(ctx context.Context) ([]Admin, error) {
	return s.repo.ListRegular(ctx)
}

func (s *service) ListEmails(ctx context.Context) ([]string, error) {
	return s.repo.ListEmails(ctx)
}

// SeedSuperAdmin creates the first super admin. It reports false when one
// with the same email or username already exists.
func (s *service) SeedSuperAdmin(ctx context.Context, in CreateInput) (bool, error) {
	in, err := validate(in)
	if err != nil {
		return false, err
	}

	exists, err := s.repo.SuperExists(ctx, in.Email, in.Username)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	a := &Admin{Username: in.Username, Email: in.Email, Name: in.Name, SuperAdmin: true}
	if err := s.repo.Create(ctx, a); err != nil {
		return false, err
	}
	return true, nil
}
