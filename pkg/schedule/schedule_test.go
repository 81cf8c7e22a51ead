package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvery(t *testing.T) {
	s := Every(5 * time.Minute)
	now := time.Now()
	next := s.Next(now)

	assert.Equal(t, now.Add(5*time.Minute), next)
}

func TestEvery_MultipleNext(t *testing.T) {
	s := Every(time.Hour)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	next1 := s.Next(start)
	next2 := s.Next(next1)

	assert.Equal(t, time.Date(2024, 1, 1, 13, 0, 0, 0, time.UTC), next1)
	assert.Equal(t, time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC), next2)
}

func TestDaily(t *testing.T) {
	s := Daily(9, 30)

	assert.Equal(t, time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC),
		s.Next(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC),
		s.Next(time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)))
}

func TestWeekly(t *testing.T) {
	s := Weekly(time.Monday, 10, 0)

	// 2024-01-01 is a Monday.
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		s.Next(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC),
		s.Next(time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2024, 1, 5, 17, 0, 0, 0, time.UTC),
		Weekly(time.Friday, 17, 0).Next(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestCron(t *testing.T) {
	s := Cron("30 14 * * 1-5")
	next := s.Next(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, time.Date(2024, 1, 1, 14, 30, 0, 0, time.UTC), next)
}

func TestParse_Descriptors(t *testing.T) {
	s, err := Parse("@every 90s")
	require.NoError(t, err)
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, from.Add(90*time.Second), s.Next(from))

	s, err = Parse("@daily")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), s.Next(from))
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse("invalid cron")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cron")
}

func TestCron_InvalidExpression_Panics(t *testing.T) {
	assert.Panics(t, func() {
		Cron("invalid cron")
	})
}

func TestClockSchedule_In(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata not available")
	}
	s := Daily(9, 0).In(ny)

	next := s.Next(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)) // 07:00 in New York

	assert.Equal(t, time.Date(2024, 1, 1, 14, 0, 0, 0, time.UTC), next.UTC())
}
