package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"learnplan/backend/config"
	"learnplan/backend/models"
	"learnplan/backend/utils"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
	log *utils.Logger
}

func NewAuthService(db *gorm.DB, cfg *config.Config, log *utils.Logger) *AuthService {
	return &AuthService{db: db, cfg: cfg, log: log.With("service", "AuthService")}
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	if err := s.checkAvailable(db, input.Username, input.Email); err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: string(hashedPassword),
	}
	if err := db.Create(user).Error; err != nil {
		// lost a race on the unique indexes
		if availErr := s.checkAvailable(db, input.Username, input.Email); availErr != nil {
			return nil, availErr
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) checkAvailable(db *gorm.DB, username, email string) error {
	var count int64
	if err := db.Model(&models.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if count > 0 {
		return utils.Validation("Username already registered")
	}
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if count > 0 {
		return utils.Validation("Email already registered")
	}
	return nil
}

// Login checks credentials and issues an access token.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (string, error) {
	input.Username = strings.TrimSpace(input.Username)
	if err := utils.ValidateStruct(input); err != nil {
		return "", err
	}

	var user models.User
	if err := s.db.WithContext(ctx).Where("username = ?", input.Username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", utils.Unauthenticated("Invalid credentials")
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return "", utils.Unauthenticated("Invalid credentials")
	}

	token, err := utils.GenerateJWTToken(user.ID, user.Username, s.cfg)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to its user. The token subject must still match
// the stored username.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := utils.ParseJWTToken(token, s.cfg)
	if err != nil {
		return nil, utils.Unauthenticated("Invalid authentication credentials")
	}

	user, err := s.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.Unauthenticated("Invalid authentication credentials")
		}
		return nil, err
	}
	if user.Username != claims.Subject {
		return nil, utils.Unauthenticated("Invalid authentication credentials")
	}
	return user, nil
}

func (s *AuthService) GetUser(ctx context.Context, userID uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.NotFound("User not found")
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &user, nil
}
