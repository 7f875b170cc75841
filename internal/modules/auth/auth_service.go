package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"quickclean/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the JWT payload. The subject is the profile id.
type Claims struct {
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

type ServiceInterface interface {
	Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error)
	Me(ctx context.Context, userID string) (*models.Profile, error)
	RoleOf(ctx context.Context, userID string) (models.Role, error)
}

type Service struct {
	repo   RepositoryInterface
	secret []byte
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewService(repo RepositoryInterface, secret string, ttl time.Duration, log *zap.Logger) *Service {
	return &Service{repo: repo, secret: []byte(secret), ttl: ttl, log: log, now: time.Now}
}

// Register creates a customer or worker account. Admins are never created here.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	role := req.Role
	if role == "" {
		role = models.RoleUser
	}
	if role != models.RoleUser && role != models.RoleWorker {
		return nil, fmt.Errorf("%w: role %q cannot self-register", models.ErrValidation, role)
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("service.Register: %w", err)
	}
	p, err := s.repo.Create(ctx, &models.Profile{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: hash,
		Role:         role,
	})
	if err != nil {
		if errors.Is(err, models.ErrEmailTaken) {
			return nil, err
		}
		return nil, fmt.Errorf("service.Register: %w", err)
	}
	s.log.Info("profile registered", zap.String("user_id", p.ID), zap.String("role", string(p.Role)))
	return s.session(p)
}

func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	p, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("service.Login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidCredentials
	}
	return s.session(p)
}

func (s *Service) Me(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service.Me: %w", err)
	}
	return p, nil
}

// RoleOf returns the role currently stored for a profile, which may differ
// from the one in an older token.
func (s *Service) RoleOf(ctx context.Context, userID string) (models.Role, error) {
	p, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", models.ErrInvalidToken
		}
		return "", err
	}
	return p.Role, nil
}

func (s *Service) session(p *models.Profile) (*models.LoginResponse, error) {
	token, err := s.IssueToken(p.ID, p.Role)
	if err != nil {
		return nil, err
	}
	return &models.LoginResponse{Token: token, Profile: p}, nil
}

// IssueToken signs an HS256 token for the profile.
func (s *Service) IssueToken(userID string, role models.Role) (string, error) {
	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("service.IssueToken: %w", err)
	}
	return signed, nil
}

// ParseToken verifies a token issued by IssueToken.
func (s *Service) ParseToken(raw string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, models.ErrInvalidToken
	}
	return claims, nil
}

// HashPassword is the bcrypt hash stored in profiles.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
