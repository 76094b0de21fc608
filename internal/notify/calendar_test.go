package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func d(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestDueDateSkipsWeekendsAndHolidays(t *testing.T) {
	// Friday the 7th: Sat/Sun skipped, Diwali (Wed the 12th) skipped,
	// so the 4th working day is Friday the 14th.
	due := DueDate(d(2025, time.November, 7))
	require.Equal(t, d(2025, time.November, 14), due)
}

func TestDueDatePlainWeek(t *testing.T) {
	// Monday the 17th: four clear working days to Friday the 21st.
	due := DueDate(d(2025, time.November, 17))
	require.Equal(t, d(2025, time.November, 21), due)
}

func TestIsCollectionDay(t *testing.T) {
	// November 2025 starts on a Saturday, so the 8th and 22nd are the
	// 2nd and 4th Saturdays.
	require.True(t, IsCollectionDay(d(2025, time.November, 1)))
	require.False(t, IsCollectionDay(d(2025, time.November, 8)))
	require.True(t, IsCollectionDay(d(2025, time.November, 15)))
	require.False(t, IsCollectionDay(d(2025, time.November, 22)))
	require.False(t, IsCollectionDay(d(2025, time.November, 23))) // Sunday
	require.True(t, IsCollectionDay(d(2025, time.November, 17))) // Monday
}

func TestBalanceDateForReminder(t *testing.T) {
	// Monday the 17th back four collection days: Sun 16 skipped,
	// Sat 15 (3rd Saturday) counts, then Fri, Thu, Wed.
	got := BalanceDateForReminder(d(2025, time.November, 17), 4)
	require.Equal(t, d(2025, time.November, 12), got)
}
