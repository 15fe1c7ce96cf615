package types

import (
	"time"

	"github.com/mangrovewatch/mangrove/internal/database/types/enum"
	"github.com/uptrace/bun"
)

// User is a registered account. TotalPoints only ever grows through the ledger.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64           `bun:",pk,autoincrement"          json:"id"`
	Name         string          `bun:",notnull"                   json:"name"`
	Email        string          `bun:",notnull,unique"            json:"email"`
	PasswordHash string          `bun:",notnull"                   json:"-"`
	Role         enum.Role       `bun:",notnull"                   json:"role"`
	Phone        string          `bun:",nullzero"                  json:"phone,omitempty"`
	Location     string          `bun:",notnull"                   json:"location"`
	TotalPoints  int64           `bun:",notnull,default:0"         json:"totalPoints"`
	Status       enum.UserStatus `bun:",notnull,default:'active'"  json:"status"`
	BanReason    string          `bun:",nullzero"                  json:"banReason,omitempty"`
	BannedAt     time.Time       `bun:",nullzero"                  json:"bannedAt,omitzero"`
	BannedBy     int64           `bun:",nullzero"                  json:"bannedBy,omitempty"`
	CreatedAt    time.Time       `bun:",notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time       `bun:",notnull,default:current_timestamp" json:"updatedAt"`
}

// CanSubmit reports whether the account is allowed to create or edit submissions.
func (u *User) CanSubmit() bool {
	return u.Status == enum.UserStatusActive
}

// IsAdmin reports whether the account may perform review actions.
func (u *User) IsAdmin() bool {
	return u.Role.IsAdmin()
}

// UserProfile is a user with its current global rank.
type UserProfile struct {
	*User

	Rank int64 `json:"rank"`
}

// UserFilter narrows user listings for administrators.
type UserFilter struct {
	Role   enum.Role
	Status enum.UserStatus
	Page   int
	Limit  int
}

// Registration contains the fields supplied when creating an account.
type Registration struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     enum.Role `json:"role"`
	Phone    string    `json:"phone,omitempty"`
	Location string    `json:"location"`
}

// ProfileUpdate contains the fields a user may change on their own account.
// Nil fields are left unchanged.
type ProfileUpdate struct {
	Name     *string `json:"name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Location *string `json:"location,omitempty"`
}
