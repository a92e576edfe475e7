package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func activeSub(start time.Time, code string) Subscription {
	return Subscription{
		Status:           StatusActive,
		SubscriptionType: "cow_milk",
		Duration:         code,
		StartDate:        start,
		EndDate:          ComputeEndDate(start, code),
	}
}

func TestComputeEndDate(t *testing.T) {
	cases := []struct {
		name string
		code string
		want time.Time
	}{
		{"6 days with bonus", "6days", date(2024, 1, 8)},
		{"15 days with bonus", "15days", date(2024, 1, 18)},
		{"30 days no bonus", "30days", date(2024, 1, 31)},
		{"malformed falls back to 6+bonus", "weekly", date(2024, 1, 8)},
		{"empty falls back", "", date(2024, 1, 8)},
		{"zero falls back", "0days", date(2024, 1, 8)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeEndDate(date(2024, 1, 1), tc.code)
			assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
		})
	}
}

func TestComputeEndDate_TruncatesToDayInLocation(t *testing.T) {
	ist, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)
	calc := New(ist, 0)

	// 20:00 UTC 31 декабря = 01:30 1 января по IST
	start := time.Date(2023, 12, 31, 20, 0, 0, 0, time.UTC)
	got := calc.ComputeEndDate(start, "6days")

	assert.True(t, time.Date(2024, 1, 8, 0, 0, 0, 0, ist).Equal(got), "got %s", got)
}

func TestParseDuration(t *testing.T) {
	days, ok := ParseDuration("6days")
	assert.True(t, ok)
	assert.Equal(t, 6, days)

	days, ok = ParseDuration(" 15 days ")
	assert.True(t, ok)
	assert.Equal(t, 15, days)

	days, ok = ParseDuration("monthly")
	assert.False(t, ok)
	assert.Equal(t, DefaultDurationDays, days)

	days, ok = ParseDuration("99999999999999999999days")
	assert.False(t, ok)
	assert.Equal(t, DefaultDurationDays, days)

	assert.Equal(t, 7, EffectiveDurationDays("6days"))
	assert.Equal(t, 17, EffectiveDurationDays("15days"))
	assert.Equal(t, 30, EffectiveDurationDays("30days"))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 7, DaysBetween(date(2024, 1, 1), date(2024, 1, 8)))
	assert.Equal(t, -7, DaysBetween(date(2024, 1, 8), date(2024, 1, 1)))
	assert.Equal(t, 0, DaysBetween(date(2024, 1, 1).Add(23*time.Hour), date(2024, 1, 1)))
	// високосный год
	assert.Equal(t, 2, DaysBetween(date(2024, 2, 28), date(2024, 3, 1)))
}

func TestRemainingDays(t *testing.T) {
	sub := activeSub(date(2024, 1, 1), "6days") // end 2024-01-08

	t.Run("active counts from now", func(t *testing.T) {
		assert.Equal(t, 5, RemainingDays(sub, date(2024, 1, 3).Add(10*time.Hour)))
	})

	t.Run("past end floors at zero", func(t *testing.T) {
		assert.Equal(t, 0, RemainingDays(sub, date(2024, 2, 1)))
	})

	t.Run("paused freezes at paused_at", func(t *testing.T) {
		paused := sub
		paused.Status = StatusPaused
		paused.PausedAt = ptr(date(2024, 1, 3))
		assert.Equal(t, 5, RemainingDays(paused, date(2024, 3, 1)))
	})

	t.Run("terminal statuses are zero", func(t *testing.T) {
		for _, st := range []Status{StatusExpired, StatusCancelled} {
			s := sub
			s.Status = st
			assert.Equal(t, 0, RemainingDays(s, date(2024, 1, 2)))
		}
	})

	t.Run("missing end date is zero", func(t *testing.T) {
		s := sub
		s.EndDate = time.Time{}
		assert.Equal(t, 0, RemainingDays(s, date(2024, 1, 2)))
	})

	t.Run("never negative", func(t *testing.T) {
		now := date(2023, 6, 1)
		for i := 0; i < 400; i++ {
			for _, st := range AllStatuses() {
				s := sub
				s.Status = st
				if st == StatusPaused {
					s.PausedAt = ptr(now.AddDate(0, 0, -i))
				}
				assert.GreaterOrEqual(t, RemainingDays(s, now.AddDate(0, 0, i)), 0)
			}
		}
	})
}

func TestEffectiveStatus(t *testing.T) {
	sub := activeSub(date(2024, 1, 1), "6days")

	assert.Equal(t, StatusActive, EffectiveStatus(sub, date(2024, 1, 5)))
	assert.Equal(t, StatusActive, EffectiveStatus(sub, date(2024, 1, 8)))
	assert.Equal(t, StatusExpired, EffectiveStatus(sub, date(2024, 1, 8).Add(time.Second)))

	for _, st := range []Status{StatusPaused, StatusCancelled, StatusInactive, StatusExpired} {
		s := sub
		s.Status = st
		assert.Equal(t, st, EffectiveStatus(s, date(2030, 1, 1)), "status %s", st)
	}

	now := date(2024, 2, 1)
	first := EffectiveStatus(sub, now)
	sub.Status = first
	assert.Equal(t, first, EffectiveStatus(sub, now), "must be idempotent for the same now")
}

func TestExpire(t *testing.T) {
	sub := activeSub(date(2024, 1, 1), "6days")

	got, changed := Default.Expire(sub, date(2024, 1, 3))
	assert.False(t, changed)
	assert.Equal(t, StatusActive, got.Status)

	got, changed = Default.Expire(sub, date(2024, 1, 20))
	assert.True(t, changed)
	assert.Equal(t, StatusExpired, got.Status)

	_, changed = Default.Expire(got, date(2024, 1, 21))
	assert.False(t, changed)
}

func TestPauseResume(t *testing.T) {
	sub := activeSub(date(2024, 1, 1), "15days") // end 2024-01-18
	pauseAt := date(2024, 1, 5).Add(9 * time.Hour)

	paused, err := Pause(sub, pauseAt)
	require.NoError(t, err)
	assert.Equal(t, StatusPaused, paused.Status)
	require.NotNil(t, paused.PausedAt)
	assert.True(t, paused.PausedAt.Equal(pauseAt))
	assert.Nil(t, paused.ResumedAt)
	assert.NoError(t, Validate(paused))

	resumeAt := date(2024, 1, 9).Add(18 * time.Hour)
	resumed, err := Resume(paused, resumeAt)
	require.NoError(t, err)

	assert.Equal(t, StatusActive, resumed.Status)
	assert.Nil(t, resumed.PausedAt)
	require.NotNil(t, resumed.ResumedAt)
	assert.True(t, resumed.ResumedAt.Equal(resumeAt))
	assert.Equal(t, 4, resumed.TotalPausedDays)
	assert.True(t, date(2024, 1, 22).Equal(resumed.EndDate), "end date %s", resumed.EndDate)

	// исходное значение не изменилось
	assert.Equal(t, StatusActive, sub.Status)
	assert.Nil(t, sub.PausedAt)
}

func TestPauseResume_ShiftProperty(t *testing.T) {
	base := activeSub(date(2024, 3, 1), "30days")

	for d := 0; d <= 40; d++ {
		paused, err := Pause(base, date(2024, 3, 10))
		require.NoError(t, err)

		resumed, err := Resume(paused, date(2024, 3, 10).AddDate(0, 0, d))
		require.NoError(t, err)

		assert.Equal(t, d, DaysBetween(base.EndDate, resumed.EndDate), "end shift for d=%d", d)
		assert.Equal(t, d, resumed.TotalPausedDays-base.TotalPausedDays, "paused days for d=%d", d)
	}
}

func TestResume_ShiftAcrossDSTInLocation(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	c := New(ny, DefaultMaxPausedDays)

	// end_date - местная полночь, но из БД приходит в UTC
	end := time.Date(2026, 10, 27, 0, 0, 0, 0, ny).UTC()
	pausedAt := time.Date(2026, 10, 20, 12, 0, 0, 0, ny)
	sub := Subscription{
		Status:    StatusPaused,
		StartDate: time.Date(2026, 10, 20, 0, 0, 0, 0, ny).UTC(),
		EndDate:   end,
		PausedAt:  &pausedAt,
	}
	remainingBefore := c.RemainingDays(sub, pausedAt)

	// пауза захватывает переход на зимнее время 1 ноября
	now := pausedAt.AddDate(0, 0, 10)
	resumed, err := c.Resume(sub, now)
	require.NoError(t, err)

	assert.Equal(t, 10, c.DaysBetween(end, resumed.EndDate))
	assert.Equal(t, time.Date(2026, 11, 6, 0, 0, 0, 0, ny), resumed.EndDate.In(ny))
	assert.Equal(t, remainingBefore, c.RemainingDays(resumed, now))
	assert.Equal(t, 10, resumed.TotalPausedDays)

	// истечение не наступает на час раньше
	lastEvening := time.Date(2026, 11, 5, 23, 30, 0, 0, ny)
	assert.Equal(t, StatusActive, c.EffectiveStatus(resumed, lastEvening))
}

func TestAddDays_KeepsWallClock(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	c := New(ny, DefaultMaxPausedDays)

	start := time.Date(2026, 3, 7, 0, 0, 0, 0, ny)
	got := c.AddDays(start.UTC(), 2)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, ny), got)
	assert.Equal(t, 0, got.In(ny).Hour())

	assert.Equal(t, date(2024, 1, 3), Default.AddDays(date(2024, 1, 1), 2).UTC())
}

func TestResume_ClampsTotalPausedDays(t *testing.T) {
	sub := activeSub(date(2024, 1, 1), "30days")
	sub.TotalPausedDays = 360

	paused, err := Pause(sub, date(2024, 1, 2))
	require.NoError(t, err)

	resumed, err := Resume(paused, date(2024, 1, 12))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxPausedDays, resumed.TotalPausedDays)
	assert.Equal(t, 10, DaysBetween(sub.EndDate, resumed.EndDate))

	small := New(time.UTC, 5)
	resumed, err = small.Resume(Subscription{
		Status:   StatusPaused,
		EndDate:  date(2024, 2, 1),
		PausedAt: ptr(date(2024, 1, 1)),
	}, date(2024, 1, 11))
	require.NoError(t, err)
	assert.Equal(t, 5, resumed.TotalPausedDays)
}

func TestResume_ClockSkewNeverNegative(t *testing.T) {
	paused := Subscription{
		Status:   StatusPaused,
		EndDate:  date(2024, 2, 1),
		PausedAt: ptr(date(2024, 1, 10)),
	}

	resumed, err := Resume(paused, date(2024, 1, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, resumed.TotalPausedDays)
	assert.True(t, date(2024, 2, 1).Equal(resumed.EndDate))
}

func TestTransitions_Invalid(t *testing.T) {
	sub := activeSub(date(2024, 1, 1), "6days")
	now := date(2024, 1, 2)

	paused, err := Pause(sub, now)
	require.NoError(t, err)

	_, err = Pause(paused, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	var te *TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "pause", te.Op)
	assert.Equal(t, StatusPaused, te.From)

	_, err = Resume(sub, now)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = Pause(sub, date(2024, 2, 1))
	assert.ErrorIs(t, err, ErrInvalidTransition, "expired by date cannot be paused")

	for _, st := range []Status{StatusExpired, StatusCancelled, StatusInactive} {
		s := sub
		s.Status = st
		_, err = Pause(s, now)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		_, err = Resume(s, now)
		assert.ErrorIs(t, err, ErrInvalidTransition)
		_, err = Cancel(s, now)
		assert.ErrorIs(t, err, ErrInvalidTransition)
	}
}

func TestResume_CorruptState(t *testing.T) {
	_, err := Resume(Subscription{Status: StatusPaused, EndDate: date(2024, 1, 8)}, date(2024, 1, 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptState)
	assert.False(t, errors.Is(err, ErrInvalidTransition))

	_, err = Resume(Subscription{Status: StatusPaused, PausedAt: ptr(date(2024, 1, 2))}, date(2024, 1, 3))
	assert.ErrorIs(t, err, ErrCorruptState)
}

func TestCancel(t *testing.T) {
	sub := activeSub(date(2024, 1, 1), "6days")
	now := date(2024, 1, 2)

	cancelled, err := Cancel(sub, now)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	assert.Equal(t, 0, RemainingDays(cancelled, now))

	paused, err := Pause(sub, now)
	require.NoError(t, err)
	cancelled, err = Cancel(paused, now)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, cancelled.Status)
}

func TestValidate(t *testing.T) {
	good := activeSub(date(2024, 1, 1), "6days")
	assert.NoError(t, Validate(good))

	cases := map[string]func(s *Subscription){
		"unknown status":       func(s *Subscription) { s.Status = "archived" },
		"paused without date":  func(s *Subscription) { s.Status = StatusPaused },
		"paused with resumed": func(s *Subscription) {
			s.Status = StatusPaused
			s.PausedAt = ptr(date(2024, 1, 2))
			s.ResumedAt = ptr(date(2024, 1, 3))
		},
		"negative paused days": func(s *Subscription) { s.TotalPausedDays = -1 },
		"too many paused days": func(s *Subscription) { s.TotalPausedDays = 366 },
		"end before start":     func(s *Subscription) { s.EndDate = date(2023, 12, 1) },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			s := good
			mutate(&s)
			assert.ErrorIs(t, Validate(s), ErrCorruptState)
		})
	}
}

func TestDescribe(t *testing.T) {
	sub := activeSub(date(2024, 1, 1), "6days")

	sum := Default.Describe(sub, date(2024, 1, 3))
	assert.Equal(t, StatusActive, sum.Status)
	assert.Equal(t, 5, sum.RemainingDays)
	assert.True(t, sum.CanPause)
	assert.False(t, sum.CanResume)
	assert.True(t, sum.CanCancel)

	sum = Default.Describe(sub, date(2024, 1, 9))
	assert.Equal(t, StatusExpired, sum.Status)
	assert.Equal(t, 0, sum.RemainingDays)
	assert.False(t, sum.CanPause)
	assert.False(t, sum.CanCancel)

	paused, err := Pause(sub, date(2024, 1, 3))
	require.NoError(t, err)
	sum = Default.Describe(paused, date(2024, 1, 6))
	assert.Equal(t, StatusPaused, sum.Status)
	assert.Equal(t, 5, sum.RemainingDays)
	assert.True(t, sum.CanResume)
	assert.False(t, sum.CanPause)
}
