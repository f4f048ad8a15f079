package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ErrEmailTaken indicates a registration against an already used email.
var ErrEmailTaken = errors.New("users: email already registered")

// ErrInvalidCredentials is returned for both unknown emails and wrong
// passwords so login failures do not reveal which one it was.
var ErrInvalidCredentials = errors.New("users: invalid credentials")

// ErrUserNotFound indicates a profile lookup for an unknown user id.
var ErrUserNotFound = errors.New("users: user not found")

// ErrCredentialsRequired indicates a registration without email or password.
var ErrCredentialsRequired = errors.New("users: email and password are required")

// IDProvider issues identifiers for new accounts.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies required for account management.
type ServiceConfig struct {
	Database   *gorm.DB
	IDProvider IDProvider
	Clock      func() time.Time
	BcryptCost int
}

// Service manages registration, authentication, and body profiles.
type Service struct {
	db         *gorm.DB
	idProvider IDProvider
	now        func() time.Time
	bcryptCost int
}

// NewService constructs the account service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, fmt.Errorf("users: database connection required")
	}
	if cfg.IDProvider == nil {
		return nil, fmt.Errorf("users: id provider required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	cost := cfg.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		db:         cfg.Database,
		idProvider: cfg.IDProvider,
		now:        clock,
		bcryptCost: cost,
	}, nil
}

// RegisterRequest carries a new account's credentials and optional profile.
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Height    HeightInput
	Weight    WeightInput
}

// Register creates an account with a bcrypt password hash and the
// normalized profile fields.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (User, error) {
	email := normalize(req.Email)
	if email == "" || req.Password == "" {
		return User{}, ErrCredentialsRequired
	}

	var existing User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return User{}, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return User{}, err
	}
	id, err := s.idProvider.NewID()
	if err != nil {
		return User{}, err
	}

	user := User{
		ID:           id,
		Email:        email,
		PasswordHash: string(hash),
		FirstName:    normalize(req.FirstName),
		LastName:     normalize(req.LastName),
		HeightCm:     NormalizeHeight(req.Height),
		HeightUnit:   normalize(req.Height.Unit),
		WeightKg:     NormalizeWeight(req.Weight),
		WeightUnit:   normalize(req.Weight.Unit),
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return User{}, err
	}
	return user, nil
}

// Authenticate verifies an email and password pair.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("email = ?", normalize(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Profile returns the account for a user id.
func (s *Service) Profile(ctx context.Context, userID string) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", userID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateProfileRequest replaces the profile fields of an account. All
// fields are overwritten, matching the PUT semantics of the profile API.
type UpdateProfileRequest struct {
	FirstName string
	LastName  string
	Height    HeightInput
	Weight    WeightInput
}

// UpdateProfile stores the new profile fields and returns the updated account.
func (s *Service) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (User, error) {
	updates := map[string]interface{}{
		"first_name":  normalize(req.FirstName),
		"last_name":   normalize(req.LastName),
		"height_cm":   NormalizeHeight(req.Height),
		"height_unit": normalize(req.Height.Unit),
		"weight_kg":   NormalizeWeight(req.Weight),
		"weight_unit": normalize(req.Weight.Unit),
	}
	result := s.db.WithContext(ctx).Model(&User{}).Where("id = ?", userID).Updates(updates)
	if result.Error != nil {
		return User{}, result.Error
	}
	if result.RowsAffected == 0 {
		return User{}, ErrUserNotFound
	}
	return s.Profile(ctx, userID)
}
