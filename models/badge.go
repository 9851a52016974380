package models

import (
	"time"
)

// Badge definition statuses
const (
	DefinitionStatusActive  = "active"
	DefinitionStatusRetired = "retired"
)

// BadgeDefinition: static config for a collectible badge type
type BadgeDefinition struct {
	ID          string `gorm:"primaryKey;type:uuid" json:"id"`
	Prefix      string `gorm:"uniqueIndex;not null" json:"prefix"` // e.g., "FEST24", stamped into every instance id
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `gorm:"index;not null" json:"category"`
	Subcategory string `gorm:"not null" json:"subcategory"`
	ArtworkURL  string `gorm:"type:text" json:"artwork_url,omitempty"` // R2 URL to SVG/png

	// Supply control: MaxSupply nil means uncapped. MintedCount also feeds
	// serial number assignment, so it only ever grows.
	MaxSupply   *int64 `json:"max_supply,omitempty"`
	MintedCount int64  `gorm:"not null;default:0" json:"minted_count"`

	Status           string `gorm:"type:varchar(16);not null;default:'active'" json:"status"`
	TriggersGridCard bool   `gorm:"not null;default:false" json:"triggers_grid_card"` // issuing this badge opens a new grid card centered on it

	Timestamps
}

// Ownership statuses
const (
	OwnershipStatusActive  = "active"
	OwnershipStatusRevoked = "revoked"
)

// BadgeOwnership: one badge copy held by a user.
// Serial numbers are sequential per definition; the instance id
// ("<prefix>-<serial>") is globally unique.
type BadgeOwnership struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string `gorm:"index;not null;uniqueIndex:uq_user_definition,priority:1" json:"user_id"`
	DefinitionID string `gorm:"not null;uniqueIndex:uq_user_definition,priority:2;uniqueIndex:uq_definition_serial,priority:1" json:"definition_id"`
	SerialNumber int64  `gorm:"not null;uniqueIndex:uq_definition_serial,priority:2" json:"serial_number"`
	InstanceID   string `gorm:"uniqueIndex;not null" json:"instance_id"`

	// Origin is the ledger-supplied token the draw number is derived from.
	Origin *string `gorm:"index" json:"origin,omitempty"`

	AcquiredAt time.Time `gorm:"not null" json:"acquired_at"`
	Status     string    `gorm:"type:varchar(16);not null;default:'active'" json:"status"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
