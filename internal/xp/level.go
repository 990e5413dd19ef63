// Package xp implements the leveling curve used for profile and group
// overviews. The cumulative XP required for level n is 5n(n+3)/2, so the
// first thresholds are 10, 25 and 45.
package xp

// RequiredForLevel returns the cumulative XP needed to reach level. Level 0
// is the starting point and requires none.
func RequiredForLevel(level int) int64 {
	if level <= 0 {
		return 0
	}
	l := int64(level)
	return 5 * l * (l + 3) / 2
}

// LevelProgress describes where a total XP amount sits on the curve.
// NextThreshold is always strictly greater than CurrentThreshold.
type LevelProgress struct {
	Level            int   `json:"level"`
	TotalXP          int64 `json:"total_xp"`
	CurrentThreshold int64 `json:"current_threshold"`
	NextThreshold    int64 `json:"next_threshold"`
}

// XPToNext is how much XP is still needed to reach the next level.
func (p LevelProgress) XPToNext() int64 {
	if p.NextThreshold <= p.TotalXP {
		return 0
	}
	return p.NextThreshold - p.TotalXP
}

// XPIntoLevel is how much XP has accumulated since reaching the current level.
func (p LevelProgress) XPIntoLevel() int64 {
	if p.TotalXP <= p.CurrentThreshold {
		return 0
	}
	return p.TotalXP - p.CurrentThreshold
}

// Progress computes the level information for totalXP. Negative totals are
// clamped to zero.
func Progress(totalXP int64) LevelProgress {
	if totalXP < 0 {
		totalXP = 0
	}
	level := 0
	for totalXP >= RequiredForLevel(level+1) {
		level++
	}
	return LevelProgress{
		Level:            level,
		TotalXP:          totalXP,
		CurrentThreshold: RequiredForLevel(level),
		NextThreshold:    RequiredForLevel(level + 1),
	}
}
