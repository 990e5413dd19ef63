package xp_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"guildvault/internal/xp"
)

func TestRequiredForLevel(t *testing.T) {
	require.EqualValues(t, 0, xp.RequiredForLevel(0))
	require.EqualValues(t, 10, xp.RequiredForLevel(1))
	require.EqualValues(t, 25, xp.RequiredForLevel(2))
	require.EqualValues(t, 45, xp.RequiredForLevel(3))
	require.EqualValues(t, 0, xp.RequiredForLevel(-4))
}

func TestProgress(t *testing.T) {
	p := xp.Progress(30)
	require.Equal(t, 2, p.Level)
	require.EqualValues(t, 25, p.CurrentThreshold)
	require.EqualValues(t, 45, p.NextThreshold)
	require.EqualValues(t, 15, p.XPToNext())
	require.EqualValues(t, 5, p.XPIntoLevel())
}

func TestProgress_ZeroAndNegative(t *testing.T) {
	p := xp.Progress(0)
	require.Equal(t, 0, p.Level)
	require.EqualValues(t, 10, p.XPToNext())

	require.Equal(t, xp.Progress(0), xp.Progress(-50))
}

func TestProgress_ExactThreshold(t *testing.T) {
	p := xp.Progress(10)
	require.Equal(t, 1, p.Level)
	require.EqualValues(t, 0, p.XPIntoLevel())
	require.Greater(t, p.NextThreshold, p.CurrentThreshold)
}
