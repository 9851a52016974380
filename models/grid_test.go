package models

import "testing"

func cardWithUnlocked(unlocked ...int) *GridCard {
	isUnlocked := make(map[int]bool, len(unlocked))
	for _, idx := range unlocked {
		isUnlocked[idx] = true
	}
	card := &GridCard{ID: "card", State: CardStateActive}
	for idx := 0; idx <= 8; idx++ {
		state := CellStateLocked
		if isUnlocked[idx] {
			state = CellStateUnlocked
		}
		card.Cells = append(card.Cells, GridCell{Idx: idx, State: state})
	}
	return card
}

func TestWinningLinesCoverRowsColumnsDiagonals(t *testing.T) {
	lines := WinningLines()
	if len(lines) != 8 {
		t.Fatalf("line count = %d, want 8", len(lines))
	}

	counts := make(map[int]int)
	for _, line := range lines {
		for _, idx := range line {
			counts[idx]++
		}
	}
	// The center sits on 4 lines, corners on 3, edges on 2
	if counts[4] != 4 {
		t.Fatalf("center appears on %d lines, want 4", counts[4])
	}
	for _, corner := range []int{0, 2, 6, 8} {
		if counts[corner] != 3 {
			t.Fatalf("corner %d appears on %d lines, want 3", corner, counts[corner])
		}
	}
	for _, edge := range []int{1, 3, 5, 7} {
		if counts[edge] != 2 {
			t.Fatalf("edge %d appears on %d lines, want 2", edge, counts[edge])
		}
	}
}

func TestCompletedLines(t *testing.T) {
	cases := []struct {
		name     string
		unlocked []int
		want     [][3]int
	}{
		{"no cells unlocked", nil, nil},
		{"top row", []int{0, 1, 2}, [][3]int{{0, 1, 2}}},
		{"diagonal", []int{0, 4, 8}, [][3]int{{0, 4, 8}}},
		{"two cells short of a line", []int{0, 1}, nil},
		{"row plus column sharing a corner", []int{0, 1, 2, 3, 6}, [][3]int{{0, 1, 2}, {0, 3, 6}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := cardWithUnlocked(tc.unlocked...).CompletedLines()
			if len(got) != len(tc.want) {
				t.Fatalf("line count = %d, want %d", len(got), len(tc.want))
			}
			for i := range tc.want {
				if got[i] != tc.want[i] {
					t.Fatalf("line %d = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestCompletedLinesRequiresFullGrid(t *testing.T) {
	card := cardWithUnlocked(0, 1, 2)
	card.Cells = card.Cells[:5]
	if lines := card.CompletedLines(); lines != nil {
		t.Fatalf("partial card produced lines: %v", lines)
	}

	bad := cardWithUnlocked(0, 1, 2)
	bad.Cells[8].Idx = 42
	if lines := bad.CompletedLines(); lines != nil {
		t.Fatalf("card with an out-of-range idx produced lines: %v", lines)
	}

	dup := cardWithUnlocked(0, 1, 2)
	dup.Cells[8].Idx = 0
	if lines := dup.CompletedLines(); lines != nil {
		t.Fatalf("card with duplicate indices produced lines: %v", lines)
	}
}

func TestIsComplete(t *testing.T) {
	if cardWithUnlocked(0, 1, 2, 3, 4, 5, 6, 7).IsComplete() {
		t.Fatal("card with a locked cell reported complete")
	}
	if !cardWithUnlocked(0, 1, 2, 3, 4, 5, 6, 7, 8).IsComplete() {
		t.Fatal("fully unlocked card not reported complete")
	}
	short := cardWithUnlocked(0, 1, 2)
	short.Cells = short.Cells[:3]
	if short.IsComplete() {
		t.Fatal("undersized card reported complete")
	}
}
