package domain

import "testing"

func TestDifficulty_IsValid(t *testing.T) {
	for _, d := range []Difficulty{DifficultyEasy, DifficultyMedium, DifficultyHard} {
		if !d.IsValid() {
			t.Errorf("Difficulty(%q).IsValid() = false; want true", d)
		}
	}
	if Difficulty("extreme").IsValid() {
		t.Error("Difficulty(extreme).IsValid() = true; want false")
	}
}

func TestPuzzle_VisibleTestCases(t *testing.T) {
	p := &Puzzle{
		TestCases: []TestCase{
			{Input: "1 2", Expected: "3"},
			{Input: "4 5", Expected: "9", Hidden: true},
			{Input: "0 0", Expected: "0"},
		},
	}

	visible := p.VisibleTestCases()
	if len(visible) != 2 {
		t.Fatalf("VisibleTestCases() length = %d; want 2", len(visible))
	}
	for _, tc := range visible {
		if tc.Hidden {
			t.Errorf("VisibleTestCases() returned hidden case %q", tc.Input)
		}
	}
}
