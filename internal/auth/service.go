package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/procurehub/procurehub/internal/rbac"
	"github.com/procurehub/procurehub/internal/shared"
)

// AuditPort records user management actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps authentication and user management rules.
type Service struct {
	repo        Repository
	tokens      *TokenIssuer
	revocations RevocationStore
	audit       AuditPort
	logger      *slog.Logger
	cost        int
}

// NewService constructs a new Service.
func NewService(repo Repository, tokens *TokenIssuer, revocations RevocationStore, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, tokens: tokens, revocations: revocations, audit: audit, logger: logger, cost: bcrypt.DefaultCost}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates the user and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	user, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return LoginResult{}, err
	}
	token, claims, err := s.tokens.Issue(*user)
	if err != nil {
		return LoginResult{}, err
	}
	s.record(ctx, user.ID, "auth.login", user.ID, nil)
	return LoginResult{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: *user}, nil
}

// Logout revokes the token that authenticated the current request.
func (s *Service) Logout(ctx context.Context, p shared.Principal) error {
	if p.TokenID == "" {
		return shared.ErrUnauthorized
	}
	if err := s.revocations.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return err
	}
	s.record(ctx, p.UserID, "auth.logout", p.UserID, nil)
	return nil
}

// VerifyToken parses a bearer token and rejects revoked ones.
func (s *Service) VerifyToken(ctx context.Context, raw string) (*Claims, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return nil, err
	}
	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", shared.ErrUnauthorized)
	}
	return claims, nil
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

// ListUsers returns a page of users.
func (s *Service) ListUsers(ctx context.Context, filters shared.ListFilters) ([]User, shared.Pagination, error) {
	users, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// CreateUser registers a new account.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (*User, error) {
	role := strings.ToLower(strings.TrimSpace(input.Role))
	if !rbac.IsKnownRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, input.Role)
	}
	hash, err := s.hash(input.Password)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.Create(ctx, User{
		Email:        strings.ToLower(strings.TrimSpace(input.Email)),
		Name:         strings.TrimSpace(input.Name),
		Role:         role,
		PasswordHash: hash,
		IsActive:     true,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, shared.ActorID(ctx), "user.create", user.ID, map[string]any{"email": user.Email, "role": user.Role})
	return user, nil
}

// UpdateUser overwrites the account's profile, role and optionally password.
func (s *Service) UpdateUser(ctx context.Context, id int64, input UpdateUserInput) (*User, error) {
	role := strings.ToLower(strings.TrimSpace(input.Role))
	if !rbac.IsKnownRole(role) {
		return nil, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, input.Role)
	}
	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	current.Email = strings.ToLower(strings.TrimSpace(input.Email))
	current.Name = strings.TrimSpace(input.Name)
	current.Role = role
	if input.IsActive != nil {
		current.IsActive = *input.IsActive
	}
	if input.Password != "" {
		hash, err := s.hash(input.Password)
		if err != nil {
			return nil, err
		}
		current.PasswordHash = hash
	}
	updated, err := s.repo.Update(ctx, *current)
	if err != nil {
		return nil, err
	}
	s.record(ctx, shared.ActorID(ctx), "user.update", id, map[string]any{"role": updated.Role, "is_active": updated.IsActive})
	return updated, nil
}

// DeleteUser removes an account. Admins cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if id == shared.ActorID(ctx) {
		return fmt.Errorf("%w: cannot delete the signed-in user", shared.ErrInvalidState)
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, shared.ActorID(ctx), "user.delete", id, nil)
	return nil
}

// SeedAdmin creates an admin account, used by the CLI for the first login.
func (s *Service) SeedAdmin(ctx context.Context, email, password string) (*User, error) {
	if len(password) < 8 {
		return nil, fmt.Errorf("%w: password must be at least 8 characters", shared.ErrValidation)
	}
	return s.CreateUser(ctx, CreateUserInput{Email: email, Name: "Administrator", Password: password, Role: rbac.RoleAdmin})
}

func (s *Service) hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(b), nil
}

func (s *Service) record(ctx context.Context, actor int64, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	}); err != nil {
		s.logger.Warn("audit user action", slog.String("action", action), slog.Any("error", err))
	}
}
