package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/dbretry"
	"github.com/mangrovewatch/mangrove/internal/database/types"
	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// UserModel handles database operations for accounts.
type UserModel struct {
	db     *bun.DB
	logger *zap.Logger
}

// NewUser creates a UserModel.
func NewUser(db *bun.DB, logger *zap.Logger) *UserModel {
	return &UserModel{
		db:     db,
		logger: logger.Named("db_user"),
	}
}

// Create inserts a new account. A duplicate email returns types.ErrEmailTaken.
func (r *UserModel) Create(ctx context.Context, user *types.User) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		_, err := r.db.NewInsert().
			Model(user).
			Returning("*").
			Exec(ctx)
		if err != nil {
			if dbretry.IsUniqueViolation(err) {
				return types.ErrEmailTaken
			}
			return fmt.Errorf("failed to create user: %w", err)
		}

		r.logger.Debug("Created user",
			zap.Int64("userID", user.ID),
			zap.String("role", string(user.Role)))

		return nil
	})
}

// GetByID retrieves an account by its ID.
func (r *UserModel) GetByID(ctx context.Context, id int64) (*types.User, error) {
	return r.getBy(ctx, "id = ?", id)
}

// GetByEmail retrieves an account by its normalized email.
func (r *UserModel) GetByEmail(ctx context.Context, email string) (*types.User, error) {
	return r.getBy(ctx, "email = ?", email)
}

func (r *UserModel) getBy(ctx context.Context, where string, arg any) (*types.User, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (*types.User, error) {
		var user types.User

		err := r.db.NewSelect().
			Model(&user).
			Where(where, arg).
			Scan(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, types.ErrUserNotFound
			}
			return nil, fmt.Errorf("failed to get user: %w", err)
		}

		return &user, nil
	})
}

// UpdateProfile saves the editable profile columns of an account.
func (r *UserModel) UpdateProfile(ctx context.Context, user *types.User) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		result, err := r.db.NewUpdate().
			Model(user).
			Column("name", "phone", "location", "updated_at").
			WherePK().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to update user profile: %w (userID=%d)", err, user.ID)
		}

		if affected, _ := result.RowsAffected(); affected == 0 {
			return types.ErrUserNotFound
		}

		return nil
	})
}

// List returns a page of accounts and the total number matching the filter.
func (r *UserModel) List(ctx context.Context, filter types.UserFilter) ([]*types.User, int, error) {
	var users []*types.User
	var total int

	err := dbretry.NoResult(ctx, func(ctx context.Context) error {
		query := r.db.NewSelect().Model(&users)

		if filter.Role != "" {
			query = query.Where("role = ?", filter.Role)
		}
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}

		var err error
		total, err = query.
			Order("created_at DESC", "id DESC").
			Offset((filter.Page - 1) * filter.Limit).
			Limit(filter.Limit).
			ScanAndCount(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		return nil
	})

	return users, total, err
}

// Ban marks an account as banned.
func (r *UserModel) Ban(ctx context.Context, userID, adminID int64, reason string, now time.Time) error {
	return dbretry.NoResult(ctx, func(ctx context.Context) error {
		result, err := r.db.NewUpdate().
			Model((*types.User)(nil)).
			Set("status = ?", enum.UserStatusBanned).
			Set("ban_reason = ?", reason).
			Set("banned_at = ?", now).
			Set("banned_by = ?", adminID).
			Set("updated_at = ?", now).
			Where("id = ?", userID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to ban user: %w (userID=%d)", err, userID)
		}

		if affected, _ := result.RowsAffected(); affected == 0 {
			return types.ErrUserNotFound
		}

		return nil
	})
}

// GetRank returns one plus the number of accounts with strictly more points.
// Accounts with equal totals share a rank.
func (r *UserModel) GetRank(ctx context.Context, userID int64) (int64, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int64, error) {
		var points int64

		err := r.db.NewSelect().
			Model((*types.User)(nil)).
			Column("total_points").
			Where("id = ?", userID).
			Scan(ctx, &points)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, types.ErrUserNotFound
			}
			return 0, fmt.Errorf("failed to get user points: %w", err)
		}

		ahead, err := r.db.NewSelect().
			Model((*types.User)(nil)).
			Where("total_points > ?", points).
			Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count users ahead: %w", err)
		}

		return int64(ahead) + 1, nil
	})
}

// Count returns the number of registered accounts.
func (r *UserModel) Count(ctx context.Context) (int, error) {
	return dbretry.Operation(ctx, func(ctx context.Context) (int, error) {
		count, err := r.db.NewSelect().Model((*types.User)(nil)).Count(ctx)
		if err != nil {
			return 0, fmt.Errorf("failed to count users: %w", err)
		}
		return count, nil
	})
}
