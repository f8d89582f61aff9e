package client

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"techwire-be/internal/auth"
	"techwire-be/internal/logger"
	"techwire-be/internal/utils"

	"go.uber.org/zap"
)

type Service interface {
	Signup(ctx context.Context, in SignupInput) (*Client, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	GetProfile(ctx context.Context, id string) (*Client, error)
	List(ctx context.Context) ([]Client, error)
}

type service struct {
	repo   Repository
	issuer auth.Issuer
}

func NewService(repo Repository, issuer auth.Issuer) Service {
	return &service{repo: repo, issuer: issuer}
}

func (s *service) Signup(ctx context.Context, in SignupInput) (*Client, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "service"), zap.String("method", "Signup"))

	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: a valid email is required", ErrValidation)
	}
	if len(in.Password) < 6 {
		return nil, fmt.Errorf("%w: password must be at least 6 characters", ErrValidation)
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	hashed, err := HashPassword(in.Password)
	if err != nil {
		log.Error("failed to hash password", zap.Error(err))
		return nil, err
	}

	c := &Client{
		Email:       email,
		Password:    hashed,
		Name:        strings.TrimSpace(in.Name),
		PhoneNumber: strings.TrimSpace(in.PhoneNumber),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		if !errors.Is(err, ErrEmailExists) {
			log.Error("failed to create client", zap.String("email", email), zap.Error(err))
		}
		return nil, err
	}

	log.Info("client registered", zap.String("client_id", c.ID))
	return c, nil
}

func (s *service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	log := logger.FromCtx(ctx).With(zap.String("layer", "service"), zap.String("method", "Login"))

	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	c, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, ErrClientNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if !CheckPasswordHash(password, c.Password) {
		log.Info("password mismatch", zap.String("client_id", c.ID))
		return nil, ErrInvalidCredentials
	}

	token, exp, err := s.issuer.Issue(auth.Claims{
		Subject: c.ID,
		Email:   c.Email,
		Name:    c.Name,
		Phone:   c.PhoneNumber,
		Role:    utils.RoleClient,
	})
	if err != nil {
		log.Error("failed to issue token", zap.Error(err))
		return nil, err
	}

	return &LoginResult{Client: c, Token: token, ExpiresAt: exp}, nil
}

func (s *service) GetProfile(ctx context.Context, id string) (*Client, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context) ([]Client, error) {
	return s.repo.List(ctx)
}
