package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/casaplus/listing-service/internal/auth"
	"github.com/casaplus/listing-service/internal/config"
	"github.com/casaplus/listing-service/internal/domain"
	"github.com/casaplus/listing-service/internal/events"
	"github.com/casaplus/listing-service/internal/observability"
	"github.com/casaplus/listing-service/internal/repository"
	apperrors "github.com/casaplus/listing-service/pkg/util"
)

const minPasswordLength = 6

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	properties repository.PropertyRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo     repository.UserRepository
	PropertyRepo repository.PropertyRepository
	Dispatcher   events.Dispatcher
	Metrics      *observability.Metrics
	Logger       *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		users:      deps.UserRepo,
		properties: deps.PropertyRepo,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
	}
}

// NormalizeEmail trims and lower-cases an address so uniqueness ignores case.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateCredentials(email, password string) error {
	missing := []string{}
	if email == "" {
		missing = append(missing, "email")
	}
	if password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("email and password are required", map[string]any{"fields": missing})
	}
	return nil
}

// Register creates a user account and returns a signed token for it.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, *domain.Token, error) {
	email = NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, nil, err
	}
	if !strings.Contains(email, "@") {
		return nil, nil, apperrors.NewValidationError("invalid email format", map[string]any{"field": "email"})
	}
	if len(password) < minPasswordLength {
		return nil, nil, apperrors.NewValidationError("password must be at least 6 characters", map[string]any{"field": "password"})
	}

	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		s.metrics.RecordAuth("register", false)
		return nil, nil, apperrors.NewConflict("email already registered", nil)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, apperrors.NewInternalError(err)
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			s.metrics.RecordAuth("register", false)
			return nil, nil, apperrors.NewConflict("email already registered", nil)
		}
		return nil, nil, apperrors.NewInternalError(err)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.RecordAuth("register", true)
	s.publish(ctx, events.New(events.EventUserRegistered, "", user.ID, events.UserRegisteredPayload{
		Email: user.Email,
		Role:  user.Role,
	}))
	return user, token, nil
}

// Login authenticates a user by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.Token, error) {
	email = NormalizeEmail(email)
	if err := validateCredentials(email, password); err != nil {
		return nil, nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.RecordAuth("login", false)
			return nil, nil, apperrors.NewNotFound("user", nil)
		}
		return nil, nil, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		s.metrics.RecordAuth("login", false)
		return nil, nil, apperrors.NewUnauthorized("invalid credentials")
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.RecordAuth("login", true)
	return user, token, nil
}

// Logout is an acknowledgement; tokens are stateless.
func (s *AuthService) Logout(_ context.Context) error {
	return nil
}

// VerifyToken returns the claims of a valid token.
func (s *AuthService) VerifyToken(token string) (*auth.Claims, error) {
	claims, err := s.tokenMgr.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	return claims, nil
}

// Profile returns the user together with every listing they own.
func (s *AuthService) Profile(ctx context.Context, userID string) (*domain.User, []domain.Property, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, apperrors.NewNotFound("user", nil)
		}
		return nil, nil, apperrors.NewInternalError(err)
	}

	owner := user.ID
	properties, err := s.properties.List(ctx, repository.PropertyFilter{OwnerID: &owner})
	if err != nil {
		return nil, nil, apperrors.NewInternalError(err)
	}
	return user, properties, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issueToken(user *domain.User) (*domain.Token, error) {
	value, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &domain.Token{Value: value, UserID: user.ID, Role: user.Role, ExpiresAt: exp}, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
