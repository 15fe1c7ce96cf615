package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/models"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPhoneRegion is used to parse phone numbers without a country prefix.
const DefaultPhoneRegion = "IN"

// UserService handles account business logic.
type UserService struct {
	model       *models.UserModel
	activity    *models.ActivityModel
	phoneRegion string
	logger      *zap.Logger
}

// NewUser creates a new user service.
func NewUser(
	model *models.UserModel, activity *models.ActivityModel, phoneRegion string, logger *zap.Logger,
) *UserService {
	if phoneRegion == "" {
		phoneRegion = DefaultPhoneRegion
	}

	return &UserService{
		model:       model,
		activity:    activity,
		phoneRegion: phoneRegion,
		logger:      logger.Named("user_service"),
	}
}

// Register validates and stores a new account with a bcrypt password hash.
func (s *UserService) Register(ctx context.Context, reg *types.Registration) (*types.User, error) {
	if err := ValidateRegistration(reg); err != nil {
		return nil, err
	}

	phone, err := NormalizePhone(reg.Phone, s.phoneRegion)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now()
	user := &types.User{
		Name:         reg.Name,
		Email:        reg.Email,
		PasswordHash: string(hash),
		Role:         reg.Role,
		Phone:        phone,
		Location:     reg.Location,
		Status:       enum.UserStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.model.Create(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info("Registered user",
		zap.Int64("userID", user.ID),
		zap.String("role", string(user.Role)))

	return user, nil
}

// Authenticate returns the account for a matching email and password.
// Unknown emails and wrong passwords both return types.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (*types.User, error) {
	user, err := s.model.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, types.ErrUserNotFound) {
			return nil, types.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, types.ErrInvalidCredentials
	}

	if !user.CanSubmit() {
		return nil, types.ErrUserBanned
	}

	return user, nil
}

// GetByID retrieves an account.
func (s *UserService) GetByID(ctx context.Context, id int64) (*types.User, error) {
	return s.model.GetByID(ctx, id)
}

// GetProfile returns an account with its global rank.
func (s *UserService) GetProfile(ctx context.Context, id int64) (*types.UserProfile, error) {
	user, err := s.model.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	rank, err := s.model.GetRank(ctx, id)
	if err != nil {
		return nil, err
	}

	return &types.UserProfile{User: user, Rank: rank}, nil
}

// UpdateProfile applies a profile update to the given account.
func (s *UserService) UpdateProfile(
	ctx context.Context, userID int64, update *types.ProfileUpdate,
) (*types.User, error) {
	if err := ValidateProfileUpdate(update); err != nil {
		return nil, err
	}

	user, err := s.model.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if update.Name != nil {
		user.Name = *update.Name
	}
	if update.Location != nil {
		user.Location = *update.Location
	}
	if update.Phone != nil {
		phone, err := NormalizePhone(*update.Phone, s.phoneRegion)
		if err != nil {
			return nil, err
		}
		user.Phone = phone
	}
	user.UpdatedAt = time.Now()

	if err := s.model.UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	return user, nil
}

// List returns a page of accounts for administrators.
func (s *UserService) List(ctx context.Context, filter types.UserFilter) ([]*types.User, int, error) {
	filter.Page, filter.Limit = NormalizePage(filter.Page, filter.Limit)
	return s.model.List(ctx, filter)
}

// Ban bans an account. Only administrators may ban, and never themselves.
func (s *UserService) Ban(ctx context.Context, admin *types.User, userID int64, reason string) error {
	if !admin.IsAdmin() {
		return types.ErrForbidden
	}
	if admin.ID == userID {
		return fmt.Errorf("%w: administrators cannot ban themselves", types.ErrValidation)
	}

	reason = strings.TrimSpace(reason)
	if err := ValidateBanReason(reason); err != nil {
		return err
	}

	if err := s.model.Ban(ctx, userID, admin.ID, reason, time.Now()); err != nil {
		return err
	}

	s.activity.Log(ctx, &types.ActivityLog{
		ActorID:      admin.ID,
		TargetUserID: userID,
		Type:         enum.ActivityTypeUserBanned,
		Details:      map[string]any{"reason": reason},
		CreatedAt:    time.Now(),
	})

	s.logger.Info("Banned user",
		zap.Int64("userID", userID),
		zap.Int64("adminID", admin.ID))

	return nil
}

// NormalizePhone formats a phone number as E.164. An empty number stays empty.
func NormalizePhone(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", nil
	}

	num, err := phonenumbers.Parse(phone, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: phone number is invalid", types.ErrValidation)
	}

	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// NormalizePage clamps pagination parameters.
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}
