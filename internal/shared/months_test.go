package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPrevMonthAcrossYearBoundary(t *testing.T) {
	prev, err := PrevMonth("2026-01")
	require.NoError(t, err)
	require.Equal(t, "2025-12", prev)

	prev, err = PrevMonth("2025-12")
	require.NoError(t, err)
	require.Equal(t, "2025-11", prev)
}

func TestMonthOf(t *testing.T) {
	require.Equal(t, "2025-11", MonthOf(time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "2025-11", MonthOfString("2025-11-05"))
}

func TestMonthEnd(t *testing.T) {
	end, err := MonthEnd("2025-11")
	require.NoError(t, err)
	require.Equal(t, 30, end.Day())

	end, err = MonthEnd("2026-02")
	require.NoError(t, err)
	require.Equal(t, 28, end.Day())
}

func TestMonthsBack(t *testing.T) {
	n, err := MonthsBack("2026-02")
	require.NoError(t, err)
	require.Equal(t, 3, n)

	n, err = MonthsBack("2025-10")
	require.NoError(t, err)
	require.Equal(t, -1, n)
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := ParseDate("05-11-2025")
	require.Error(t, err)
}
