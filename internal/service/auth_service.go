package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"parking_reservation/internal/domain"
	"parking_reservation/internal/repository"
)

var ErrInvalidCredentials = errors.New("invalid username or password")
var ErrTokenInvalid = errors.New("token is invalid or expired")

type AuthService struct {
	userRepo      repository.UserRepository
	jwtSecret     []byte
	jwtExpiration time.Duration
	bcryptCost    int
}

func NewAuthService(userRepo repository.UserRepository, jwtSecret string, jwtExpiration time.Duration) *AuthService {
	return &AuthService{
		userRepo:      userRepo,
		jwtSecret:     []byte(jwtSecret),
		jwtExpiration: jwtExpiration,
		bcryptCost:    bcrypt.DefaultCost,
	}
}

// Register creates an account with the user role. A taken username or email
// yields repository.ErrDuplicateEntry.
func (s *AuthService) Register(ctx context.Context, dto domain.RegisterUserDTO) (*domain.User, error) {
	if err := validateStruct(dto); err != nil {
		return nil, err
	}
	return s.createUser(ctx, dto.Username, dto.Email, dto.Password, domain.RoleUser)
}

func (s *AuthService) createUser(ctx context.Context, username, email, password, role string) (*domain.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, &domain.User{
		Username: username,
		Email:    email,
		Password: string(hashedPassword),
		Role:     role,
	})
	if err != nil {
		return nil, err
	}
	user.Password = ""
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username, "role": user.Role}).Info("user registered")
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, dto domain.LoginUserDTO) (*domain.AuthResponseDTO, error) {
	if err := validateStruct(dto); err != nil {
		return nil, err
	}
	user, err := s.userRepo.FindByUsername(ctx, dto.Username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(dto.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	tokenString, err := s.issueToken(user)
	if err != nil {
		return nil, err
	}
	return &domain.AuthResponseDTO{
		Token:    tokenString,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, nil
}

func (s *AuthService) issueToken(user *domain.User) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.Itoa(user.ID),
		"exp":      now.Add(s.jwtExpiration).Unix(),
		"iat":      now.Unix(),
		"role":     user.Role,
		"username": user.Username,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken verifies an HS256 token and returns the actor it was issued to.
// Role and username are read from the stored account, so role changes apply to
// tokens issued before them. A token for a deleted account is rejected.
func (s *AuthService) ValidateToken(ctx context.Context, tokenString string) (*Actor, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, fmt.Errorf("%w: malformed token", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, fmt.Errorf("%w: token expired", ErrTokenInvalid)
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, fmt.Errorf("%w: token not valid yet", ErrTokenInvalid)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}

	sub, _ := claims["sub"].(string)
	userID, err := strconv.Atoi(sub)
	if err != nil {
		return nil, fmt.Errorf("%w: missing user claims", ErrTokenInvalid)
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: account no longer exists", ErrTokenInvalid)
		}
		return nil, fmt.Errorf("loading token subject: %w", err)
	}
	return &Actor{UserID: user.ID, Username: user.Username, Role: user.Role}, nil
}

func (s *AuthService) ListUsers(ctx context.Context, actor Actor) ([]domain.User, error) {
	if err := Authorize(actor, CapabilityManageUsers); err != nil {
		return nil, err
	}
	return s.userRepo.FindAll(ctx)
}

// UpdateUserRole changes another account's role. Admins cannot demote themselves.
func (s *AuthService) UpdateUserRole(ctx context.Context, actor Actor, userID int, dto domain.UpdateRoleDTO) (*domain.User, error) {
	if err := Authorize(actor, CapabilityManageUsers); err != nil {
		return nil, err
	}
	if err := validateStruct(dto); err != nil {
		return nil, err
	}
	if userID == actor.UserID && dto.Role != domain.RoleAdmin {
		return nil, fmt.Errorf("%w: admins cannot remove their own admin role", ErrValidation)
	}

	user, err := s.userRepo.UpdateRole(ctx, userID, dto.Role)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role, "changed_by": actor.UserID}).Info("user role updated")
	return user, nil
}

// EnsureAdmin makes sure an admin account named username exists, creating it
// or promoting the existing account. It reports whether anything changed.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	existing, err := s.userRepo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		if existing.IsAdmin() {
			return false, nil
		}
		if _, err := s.userRepo.UpdateRole(ctx, existing.ID, domain.RoleAdmin); err != nil {
			return false, fmt.Errorf("promoting bootstrap admin: %w", err)
		}
		logrus.WithField("username", username).Warn("existing user promoted to admin")
		return true, nil
	case errors.Is(err, repository.ErrNotFound):
		if err := validateStruct(domain.RegisterUserDTO{Username: username, Email: email, Password: password}); err != nil {
			return false, fmt.Errorf("bootstrap admin: %w", err)
		}
		if _, err := s.createUser(ctx, username, email, password, domain.RoleAdmin); err != nil {
			return false, fmt.Errorf("creating bootstrap admin: %w", err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("looking up bootstrap admin: %w", err)
	}
}
