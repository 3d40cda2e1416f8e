package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/auth"
	"github.com/spec-kit/carbon-ledger/internal/config"
	"github.com/spec-kit/carbon-ledger/internal/domain"
	"github.com/spec-kit/carbon-ledger/internal/repository"
	apperrors "github.com/spec-kit/carbon-ledger/pkg/util/errorutil"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

// AuthService coordinates registration and login flows.
type AuthService struct {
	users      repository.UserRepository
	orgs       repository.OrganizationRepository
	tx         repository.Transactor
	tokenMgr   *auth.TokenManager
	bcryptCost int
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo         repository.UserRepository
	OrganizationRepo repository.OrganizationRepository
	Transactor       repository.Transactor
	Logger           *zap.Logger
}

// OrganizationInput is the organization an employer registers with.
type OrganizationInput struct {
	Name    string
	Address domain.Address
}

// RegisterInput describes a new account.
type RegisterInput struct {
	Email        string
	Password     string
	Role         domain.Role
	Profile      domain.Profile
	Organization *OrganizationInput
}

// Session is an issued access token.
type Session struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	return &AuthService{
		users:      deps.UserRepo,
		orgs:       deps.OrganizationRepo,
		tx:         deps.Transactor,
		tokenMgr:   auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		bcryptCost: cfg.Auth.BcryptCost,
		logger:     deps.Logger.Named("auth"),
	}
}

// Register creates a PENDING account. An employer registering with an
// organization also creates that organization, PENDING and administered by
// the new account.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	if err := normalizeRegistration(&in); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		Email:               in.Email,
		PasswordHash:        hash,
		Role:                in.Role,
		Status:              domain.ApprovalPending,
		Profile:             in.Profile,
		MonthlyDrivingQuota: domain.DefaultMonthlyDrivingQuota,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, user); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperrors.NewConflict("email already registered", map[string]any{"email": in.Email})
			}
			return err
		}
		if in.Role != domain.RoleEmployer || in.Organization == nil {
			return nil
		}

		org := &domain.Organization{
			Name:    in.Organization.Name,
			Address: in.Organization.Address,
			AdminID: user.ID,
			Status:  domain.ApprovalPending,
		}
		if err := s.orgs.Create(ctx, org); err != nil {
			return err
		}
		user.OrganizationID = ptr(org.ID)
		return s.users.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return s.issue(user)
}

// Login authenticates by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	if user.Status == domain.ApprovalRejected {
		return nil, apperrors.NewUnauthorized("account rejected")
	}
	return s.issue(user)
}

// Me returns the current account together with its organization, if any.
func (s *AuthService) Me(ctx context.Context, actor *domain.User) (*domain.User, *domain.Organization, error) {
	if actor == nil {
		return nil, nil, apperrors.NewUnauthorized("authentication required")
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, nil, notFound(err, "user", actor.ID)
	}
	if user.OrganizationID == nil {
		return user, nil, nil
	}
	org, err := s.orgs.GetByID(ctx, *user.OrganizationID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, nil, err
	}
	return user, org, nil
}

// ProfileUpdate carries the profile fields a user may change.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *domain.Address
}

// UpdateProfile changes the caller's profile.
func (s *AuthService) UpdateProfile(ctx context.Context, actor *domain.User, in ProfileUpdate) (*domain.User, error) {
	if actor == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return nil, notFound(err, "user", actor.ID)
	}
	if in.FirstName != nil {
		if strings.TrimSpace(*in.FirstName) == "" {
			return nil, apperrors.NewValidationError("first name must not be empty", nil)
		}
		user.Profile.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		if strings.TrimSpace(*in.LastName) == "" {
			return nil, apperrors.NewValidationError("last name must not be empty", nil)
		}
		user.Profile.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.Phone != nil {
		user.Profile.Phone = strings.TrimSpace(*in.Phone)
	}
	if in.Address != nil {
		user.Profile.Address = *in.Address
	}
	if err := s.users.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// ChangePassword verifies the current password before storing the new one.
func (s *AuthService) ChangePassword(ctx context.Context, actor *domain.User, currentPassword, newPassword string) error {
	if actor == nil {
		return apperrors.NewUnauthorized("authentication required")
	}
	if len(newPassword) < MinPasswordLength {
		return apperrors.NewValidationError("password too short", map[string]any{"min_length": MinPasswordLength})
	}
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		return notFound(err, "user", actor.ID)
	}
	if err := auth.ComparePassword(user.PasswordHash, currentPassword); err != nil {
		return apperrors.NewUnauthorized("invalid credentials")
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	user.PasswordHash = hash
	return s.users.Update(ctx, user)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(user *domain.User) (*Session, error) {
	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	return &Session{User: user, Token: token, ExpiresAt: exp}, nil
}

func normalizeRegistration(in *RegisterInput) error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Profile.FirstName = strings.TrimSpace(in.Profile.FirstName)
	in.Profile.LastName = strings.TrimSpace(in.Profile.LastName)
	in.Role = domain.Role(strings.ToUpper(strings.TrimSpace(string(in.Role))))

	if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
		return apperrors.NewValidationError("invalid email", map[string]any{"email": in.Email})
	}
	if len(in.Password) < MinPasswordLength {
		return apperrors.NewValidationError("password too short", map[string]any{"min_length": MinPasswordLength})
	}
	switch in.Role {
	case domain.RoleEmployee, domain.RoleEmployer, domain.RoleBankAdmin:
	default:
		return apperrors.NewValidationError("role must be EMPLOYEE, EMPLOYER or BANK_ADMIN", map[string]any{"role": string(in.Role)})
	}
	if in.Profile.FirstName == "" || in.Profile.LastName == "" {
		return apperrors.NewValidationError("first and last name are required", nil)
	}
	if in.Organization != nil {
		in.Organization.Name = strings.TrimSpace(in.Organization.Name)
		if in.Role == domain.RoleEmployer && in.Organization.Name == "" {
			return apperrors.NewValidationError("organization name is required", nil)
		}
	}
	return nil
}
