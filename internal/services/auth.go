package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"assessment-backend/internal/apperrors"
	"assessment-backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	RoleModerator   = "moderator"
	RoleParticipant = "participant"
)

// Identity is the verified caller behind a bearer token.
type Identity struct {
	Role      string
	HostID    uint
	UserID    uint
	TokenID   string
	ExpiresAt time.Time
}

func (i Identity) IsModerator() bool   { return i.Role == RoleModerator }
func (i Identity) IsParticipant() bool { return i.Role == RoleParticipant }

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AuthService struct {
	db        *gorm.DB
	jwtSecret []byte
	ttl       time.Duration
	revoker   TokenRevoker
}

func NewAuthService(db *gorm.DB, jwtSecret string, ttl time.Duration, revoker TokenRevoker) *AuthService {
	return &AuthService{db: db, jwtSecret: []byte(jwtSecret), ttl: ttl, revoker: revoker}
}

func (s *AuthService) Register(username, password string) (string, error) {
	var existing models.Host
	if err := s.db.Where("username = ?", username).First(&existing).Error; err == nil {
		return "", apperrors.Conflict("username already taken")
	}

	host, err := s.createHost(username, password)
	if err != nil {
		return "", err
	}
	return s.issue(RoleModerator, host.ID)
}

func (s *AuthService) createHost(username, password string) (*models.Host, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	host := models.Host{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := s.db.Create(&host).Error; err != nil {
		return nil, fmt.Errorf("create host: %w", err)
	}
	return &host, nil
}

// EnsureModerator creates the bootstrap moderator account when it does not exist yet.
func (s *AuthService) EnsureModerator(username, password string) error {
	var existing models.Host
	err := s.db.Where("username = ?", username).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("look up moderator: %w", err)
	}
	if _, err := s.createHost(username, password); err != nil {
		return err
	}
	log.Printf("auth: created moderator account %q", username)
	return nil
}

func (s *AuthService) Login(username, password string) (string, error) {
	var host models.Host
	if err := s.db.Where("username = ?", username).First(&host).Error; err != nil {
		return "", apperrors.Unauthenticated("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(host.PasswordHash), []byte(password)); err != nil {
		return "", apperrors.Unauthenticated("invalid credentials")
	}

	return s.issue(RoleModerator, host.ID)
}

// ParticipantLogin exchanges an access code for a participant token.
func (s *AuthService) ParticipantLogin(code string) (string, *models.User, error) {
	var user models.User
	err := s.db.Joins("JOIN assessment_instances ON assessment_instances.id = users.instance_id").
		Where("users.access_code = ? AND assessment_instances.finished = ?", code, false).
		First(&user).Error
	if err != nil {
		return "", nil, apperrors.Unauthenticated("invalid access code")
	}

	token, err := s.issue(RoleParticipant, user.ID)
	if err != nil {
		return "", nil, err
	}
	return token, &user, nil
}

func (s *AuthService) issue(role string, subject uint) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatUint(uint64(subject), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken fails closed: anything but a valid, unexpired, unrevoked token is Unauthenticated.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*Identity, error) {
	if tokenString == "" {
		return nil, apperrors.Unauthenticated("missing token")
	}

	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthenticated("invalid or expired token")
	}

	subject, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || subject == 0 {
		return nil, apperrors.Unauthenticated("invalid token subject")
	}

	identity := &Identity{Role: claims.Role, TokenID: claims.ID}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	switch claims.Role {
	case RoleModerator:
		identity.HostID = uint(subject)
	case RoleParticipant:
		identity.UserID = uint(subject)
	default:
		return nil, apperrors.Unauthenticated("invalid role claim")
	}

	if identity.TokenID != "" {
		revoked, err := s.revoker.IsRevoked(ctx, identity.TokenID)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeUnauthenticated, "token status unavailable", err)
		}
		if revoked {
			return nil, apperrors.Unauthenticated("token revoked")
		}
	}

	return identity, nil
}

// Logout revokes the caller's token until it would have expired anyway.
func (s *AuthService) Logout(ctx context.Context, identity *Identity) error {
	if identity.TokenID == "" {
		return nil
	}
	if err := s.revoker.Revoke(ctx, identity.TokenID, identity.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}
