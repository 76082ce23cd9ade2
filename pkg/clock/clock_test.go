package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(t time.Time) Clock {
	return ClockFunc(func() time.Time { return t })
}

func TestPolicyTodayUsesCohortTimezone(t *testing.T) {
	// 23:30 UTC is already the next day in UTC+8.
	now := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	p, err := NewPolicy(fixed(now), "Asia/Makassar")
	require.NoError(t, err)

	assert.Equal(t, "2024-03-11", p.TodayString())
	assert.Equal(t, "2024-03-11", p.DayString(p.Today()))

	utc, err := NewPolicy(fixed(now), "")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", utc.TodayString())
}

func TestPolicyRejectsUnknownTimezone(t *testing.T) {
	_, err := NewPolicy(nil, "Mars/Olympus")
	assert.Error(t, err)
}

func TestPolicyExpiredIsStrict(t *testing.T) {
	now := time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)
	p, err := NewPolicy(fixed(now), "UTC")
	require.NoError(t, err)

	assert.False(t, p.Expired(now))
	assert.False(t, p.Expired(now.Add(time.Second)))
	assert.True(t, p.Expired(now.Add(-time.Second)))
}

func TestPolicyLastDays(t *testing.T) {
	now := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	p, err := NewPolicy(fixed(now), "UTC")
	require.NoError(t, err)

	days := p.LastDays(3)
	require.Len(t, days, 3)
	assert.Equal(t, "2024-02-29", p.DayString(days[0]))
	assert.Equal(t, "2024-03-01", p.DayString(days[1]))
	assert.Equal(t, "2024-03-02", p.DayString(days[2]))
	assert.Nil(t, p.LastDays(0))
}

func TestPolicyParseDay(t *testing.T) {
	p, err := NewPolicy(nil, "Asia/Makassar")
	require.NoError(t, err)

	day, err := p.ParseDay("2024-01-05")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-05", p.DayString(day))
	assert.Equal(t, p.Location(), day.Location())

	_, err = p.ParseDay("05/01/2024")
	assert.Error(t, err)
}
