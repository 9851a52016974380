package models

import (
	"time"
)

// Grid card states
const (
	CardStateActive    = "active"
	CardStateCompleted = "completed"
	CardStateExpired   = "expired"
)

// Grid cell states
const (
	CellStateLocked   = "locked"
	CellStateUnlocked = "unlocked"
)

// GridCard is a 3x3 collection puzzle assigned to a user. Cells unlock as the
// user collects badges matching each cell's target definition; the card
// completes exactly once, when all 9 cells are unlocked.
type GridCard struct {
	ID          string     `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string     `gorm:"index;not null" json:"user_id"`
	IssuedAt    time.Time  `gorm:"not null" json:"issued_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	State       string     `gorm:"type:varchar(20);not null;default:'active'" json:"state"`

	Cells []GridCell `gorm:"foreignKey:CardID;constraint:OnDelete:CASCADE" json:"cells,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// GridCell is one position on a grid card, bound to a required badge
// definition. Unlocked cells always carry the ownership that matched them.
type GridCell struct {
	ID                 string     `gorm:"primaryKey;type:uuid" json:"id"`
	CardID             string     `gorm:"not null;index;uniqueIndex:uq_card_idx,priority:1" json:"card_id"`
	Idx                int        `gorm:"not null;uniqueIndex:uq_card_idx,priority:2" json:"idx"` // 0..8, 4 is the center
	TargetDefinitionID string     `gorm:"index;not null" json:"target_definition_id"`
	MatchedOwnershipID *string    `json:"matched_ownership_id,omitempty"`
	State              string     `gorm:"type:varchar(20);not null;default:'locked'" json:"state"`
	UnlockedAt         *time.Time `json:"unlocked_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// WinningLines returns the 8 canonical line index triples of a 3x3 card.
func WinningLines() [][3]int {
	return [][3]int{
		{0, 1, 2},
		{3, 4, 5},
		{6, 7, 8},
		{0, 3, 6},
		{1, 4, 7},
		{2, 5, 8},
		{0, 4, 8},
		{2, 4, 6},
	}
}

// CompletedLines returns the winning-line triples whose three cells are all
// unlocked. Only defined for full 3x3 cards; anything else yields no lines.
func (c *GridCard) CompletedLines() [][3]int {
	if len(c.Cells) != 9 {
		return nil
	}
	byIdx := make(map[int]*GridCell, 9)
	for i := range c.Cells {
		cell := &c.Cells[i]
		if cell.Idx < 0 || cell.Idx > 8 {
			return nil
		}
		byIdx[cell.Idx] = cell
	}
	if len(byIdx) != 9 {
		return nil
	}

	var lines [][3]int
	for _, line := range WinningLines() {
		if byIdx[line[0]].State == CellStateUnlocked &&
			byIdx[line[1]].State == CellStateUnlocked &&
			byIdx[line[2]].State == CellStateUnlocked {
			lines = append(lines, line)
		}
	}
	return lines
}

// IsComplete reports whether every cell of a full 3x3 card is unlocked.
func (c *GridCard) IsComplete() bool {
	if len(c.Cells) != 9 {
		return false
	}
	for i := range c.Cells {
		if c.Cells[i].State != CellStateUnlocked {
			return false
		}
	}
	return true
}
