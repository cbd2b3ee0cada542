package auth

import (
	"context"
	"errors"

	jwt "gitlab.com/swarmsense/snms.server/src/production/SNMS.ApiService/implementation/jwt"
	config "gitlab.com/swarmsense/snms.server/src/production/SNMS.Config"
	logger "gitlab.com/swarmsense/snms.server/src/production/SNMS.Logger"
	snmsmodels "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models"
	api_models "gitlab.com/swarmsense/snms.server/src/production/SNMS.Models/api"
	interfaces "gitlab.com/swarmsense/snms.server/src/production/SNMS.Repository/Interfaces"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for any login failure. Callers must not
// distinguish unknown users from wrong passwords.
var ErrInvalidCredentials = errors.New("invalid credentials")

// AuthService aggregates auth operations
type AuthService struct {
	userRepo   interfaces.UserRepository
	jwtService *jwt.Service
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo interfaces.UserRepository, jwtService *jwt.Service) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		jwtService: jwtService,
	}
}

// Login authenticates a user and returns tokens
func (s *AuthService) Login(ctx context.Context, req api_models.LoginRequest) (*api_models.AuthResponse, error) {
	user, err := s.userRepo.GetByUsername(ctx, req.Username)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	tokenPair, err := s.jwtService.GenerateTokens(user.UserID, user.SuperAdmin)
	if err != nil {
		return nil, err
	}

	return &api_models.AuthResponse{
		UserID:       user.UserID,
		Username:     user.Username,
		SuperAdmin:   user.SuperAdmin,
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    tokenPair.ExpiresAt,
	}, nil
}

// RefreshTokens issues a fresh token pair from a valid refresh token.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (*api_models.AuthResponse, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, errors.New("invalid refresh token")
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.Active {
		return nil, errors.New("user not found")
	}

	tokenPair, err := s.jwtService.GenerateTokens(user.UserID, user.SuperAdmin)
	if err != nil {
		return nil, err
	}

	return &api_models.AuthResponse{
		UserID:       user.UserID,
		Username:     user.Username,
		SuperAdmin:   user.SuperAdmin,
		AccessToken:  tokenPair.AccessToken,
		RefreshToken: tokenPair.RefreshToken,
		ExpiresAt:    tokenPair.ExpiresAt,
	}, nil
}

// GetUserByID retrieves a user by ID
func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*snmsmodels.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// HashPassword hashes a password using bcrypt
func (s *AuthService) HashPassword(password string) (string, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// EnsureAdminUser creates or updates the bootstrap super-admin from
// configuration. Called once at startup.
func (s *AuthService) EnsureAdminUser(ctx context.Context, cfg config.AdminConfig, log *logger.Logger) error {
	if cfg.Username == "" || cfg.Password == "" {
		log.Info("Admin bootstrap skipped, no credentials configured")
		return nil
	}

	existing, err := s.userRepo.GetByUsername(ctx, cfg.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hashed, err := s.HashPassword(cfg.Password)
	if err != nil {
		return err
	}

	_, err = s.userRepo.Create(ctx, &snmsmodels.User{
		Username:   cfg.Username,
		Email:      cfg.Email,
		Password:   hashed,
		SuperAdmin: true,
		Active:     true,
	})
	if err != nil {
		return err
	}
	log.WithField("username", cfg.Username).Info("Bootstrap admin user created")
	return nil
}
