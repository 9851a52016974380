package models

import (
	"time"

	"gorm.io/gorm"
)

// LedgerUser is a local snapshot of user data needed for badge issuance and
// prize draws. Owned and managed solely by this service.
// Populated via sync worker from the external ledger service.
type LedgerUser struct {
	ID             string  `gorm:"primaryKey;type:uuid" json:"id"`
	ExternalUserID string  `gorm:"uniqueIndex;not null" json:"external_user_id"` // the ledger service's user id
	Wallet         string  `gorm:"uniqueIndex;not null" json:"wallet"`
	Nickname       *string `json:"nickname,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`

	// Soft delete (keeps ownership history intact)
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
