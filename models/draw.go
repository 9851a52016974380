package models

import (
	"time"
)

// Draw result outcomes
const (
	OutcomePending = "pending"
	OutcomeWin     = "win"
	OutcomeLose    = "lose"
)

// DrawType is a named draw configuration selecting a scoring algorithm and an
// optional default threshold.
type DrawType struct {
	ID           string `gorm:"primaryKey;type:uuid" json:"id"`
	InternalName string `gorm:"uniqueIndex;not null" json:"internal_name"` // machine-friendly, slugged
	DisplayName  string `json:"display_name,omitempty"`
	Description  string `gorm:"type:text" json:"description,omitempty"`

	AlgorithmKey     string   `gorm:"not null" json:"algorithm_key"`
	DefaultThreshold *float64 `json:"default_threshold,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// WinningNumber stores an externally published reference value for a draw
// type. "Latest" means max(created_at), id as tie-break.
type WinningNumber struct {
	ID         string    `gorm:"primaryKey;type:uuid" json:"id"`
	DrawTypeID string    `gorm:"index;not null" json:"draw_type_id"`
	Value      string    `gorm:"not null" json:"value"`
	CreatedAt  time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// DrawResult is the persisted outcome of evaluating one badge instance against
// a draw type. At most one live row per (ownership, draw type); re-evaluation
// updates the row in place.
type DrawResult struct {
	ID              string  `gorm:"primaryKey;type:uuid" json:"id"`
	DrawTypeID      string  `gorm:"index;not null;uniqueIndex:uq_ownership_draw,priority:2" json:"draw_type_id"`
	WinningNumberID *string `gorm:"index" json:"winning_number_id,omitempty"`
	UserID          string  `gorm:"index;not null" json:"user_id"` // owner of the badge at evaluation time
	DefinitionID    string  `gorm:"index;not null" json:"definition_id"`
	OwnershipID     string  `gorm:"not null;uniqueIndex:uq_ownership_draw,priority:1" json:"ownership_id"`

	DrawNumber      string   `gorm:"not null" json:"draw_number"`
	SimilarityScore *float64 `json:"similarity_score,omitempty"`

	// Leading digits of the hashed numbers, for display only.
	DrawTopDigits    *string `gorm:"type:varchar(10)" json:"draw_top_digits,omitempty"`
	WinningTopDigits *string `gorm:"type:varchar(10)" json:"winning_top_digits,omitempty"`

	ThresholdUsed *float64  `json:"threshold_used,omitempty"`
	Outcome       string    `gorm:"type:varchar(50);index;not null;default:'pending'" json:"outcome"`
	EvaluatedAt   time.Time `gorm:"not null" json:"evaluated_at"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
