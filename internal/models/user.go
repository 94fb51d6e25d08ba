package models

import "time"

// User is an identity obtained from Airtable OAuth. Upserted on every
// successful OAuth callback, never deleted.
// Note: access and refresh tokens are secrets and must never be exposed
// to clients.
type User struct {
	ID             string    `gorm:"column:id;primaryKey" json:"id"`
	AirtableUserID string    `gorm:"column:airtable_user_id;uniqueIndex" json:"airtableUserId"`
	Email          string    `gorm:"column:email" json:"email"`
	Profile        JSONB     `gorm:"column:profile;type:jsonb" json:"profile"`
	AccessToken    string    `gorm:"column:access_token" json:"-"`
	RefreshToken   string    `gorm:"column:refresh_token" json:"-"`
	TokenExpiresAt time.Time `gorm:"column:token_expires_at" json:"tokenExpiresAt"`
	LoginTimestamp time.Time `gorm:"column:login_timestamp" json:"loginTimestamp"`
	LastSeenAt     time.Time `gorm:"column:last_seen_at" json:"lastSeenAt"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// TokenExpired reports whether the user's Airtable access token has passed
// its expiry instant.
func (u *User) TokenExpired(now time.Time) bool {
	return now.After(u.TokenExpiresAt)
}
