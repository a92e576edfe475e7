// Package lifecycle считает жизненный цикл подписки на молоко:
// срок окончания, остаток дней, эффективный статус и переходы pause/resume/cancel/expire.
// Пакет не знает про БД и HTTP, все функции чистые и реентерабельные.
package lifecycle

import (
	"time"
)

// DefaultMaxPausedDays - верхняя граница total_paused_days
const DefaultMaxPausedDays = 365

// Subscription - срез подписки, нужный калькулятору (не зависит от схемы хранения)
type Subscription struct {
	Status           Status
	SubscriptionType string
	Duration         string
	StartDate        time.Time
	EndDate          time.Time
	PausedAt         *time.Time
	ResumedAt        *time.Time
	TotalPausedDays  int
}

// Calculator хранит политику: часовой пояс, в котором считаются календарные дни,
// и потолок накопленных дней паузы.
type Calculator struct {
	Location      *time.Location
	MaxPausedDays int
}

// Default - UTC и 365 дней. Приложение собирает свой Calculator из конфига.
var Default = Calculator{Location: time.UTC, MaxPausedDays: DefaultMaxPausedDays}

// New собирает калькулятор; nil-локация и неположительный потолок заменяются дефолтами
func New(loc *time.Location, maxPausedDays int) Calculator {
	if loc == nil {
		loc = time.UTC
	}
	if maxPausedDays <= 0 {
		maxPausedDays = DefaultMaxPausedDays
	}
	return Calculator{Location: loc, MaxPausedDays: maxPausedDays}
}

func (c Calculator) location() *time.Location {
	if c.Location == nil {
		return time.UTC
	}
	return c.Location
}

func (c Calculator) maxPausedDays() int {
	if c.MaxPausedDays <= 0 {
		return DefaultMaxPausedDays
	}
	return c.MaxPausedDays
}

// civilDate переносит момент времени в календарную дату политики (полночь UTC),
// чтобы разница дат не зависела от часов и переходов на летнее время
func (c Calculator) civilDate(t time.Time) time.Time {
	y, m, d := t.In(c.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// StartOfDay - полночь того же календарного дня в локации политики
func (c Calculator) StartOfDay(t time.Time) time.Time {
	y, m, d := t.In(c.location()).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.location())
}

// DaysBetween - число календарных дней от from до to (может быть отрицательным)
func (c Calculator) DaysBetween(from, to time.Time) int {
	return int(c.civilDate(to).Sub(c.civilDate(from)) / (24 * time.Hour))
}

// AddDays сдвигает момент на n календарных дней в локации политики, время на часах сохраняется
func (c Calculator) AddDays(t time.Time, n int) time.Time {
	local := t.In(c.location())
	y, m, d := local.Date()
	return time.Date(y, m, d+n, local.Hour(), local.Minute(), local.Second(), local.Nanosecond(), c.location())
}

// ComputeEndDate = начало дня start + эффективная длительность (с промо-бонусом)
func (c Calculator) ComputeEndDate(start time.Time, durationCode string) time.Time {
	return c.StartOfDay(start).AddDate(0, 0, EffectiveDurationDays(durationCode))
}

// RemainingDays никогда не бывает отрицательным. Для паузы отсчет замораживается на paused_at.
func (c Calculator) RemainingDays(sub Subscription, now time.Time) int {
	if sub.Status.IsTerminal() || sub.EndDate.IsZero() {
		return 0
	}

	ref := now
	if sub.Status == StatusPaused && sub.PausedAt != nil {
		ref = *sub.PausedAt
	}

	days := c.DaysBetween(ref, sub.EndDate)
	if days < 0 {
		return 0
	}
	return days
}

// EffectiveStatus: active с end_date < now считается expired, иначе хранимый статус.
// Сохранять результат - забота вызывающего.
func (c Calculator) EffectiveStatus(sub Subscription, now time.Time) Status {
	if sub.Status == StatusActive && !sub.EndDate.IsZero() && sub.EndDate.Before(now) {
		return StatusExpired
	}
	return sub.Status
}

// Expire применяет ленивое истечение. changed == true, если статус надо сохранить.
func (c Calculator) Expire(sub Subscription, now time.Time) (Subscription, bool) {
	if c.EffectiveStatus(sub, now) != StatusExpired || sub.Status == StatusExpired {
		return sub, false
	}
	sub.Status = StatusExpired
	return sub, true
}

// Pause: active -> paused
func (c Calculator) Pause(sub Subscription, now time.Time) (Subscription, error) {
	if from := c.EffectiveStatus(sub, now); from != StatusActive {
		return sub, &TransitionError{Op: "pause", From: from}
	}

	pausedAt := now
	sub.PausedAt = &pausedAt
	sub.ResumedAt = nil
	sub.Status = StatusPaused
	return sub, nil
}

// Resume: paused -> active, end_date сдвигается на прошедшие дни паузы
func (c Calculator) Resume(sub Subscription, now time.Time) (Subscription, error) {
	if sub.Status != StatusPaused {
		return sub, &TransitionError{Op: "resume", From: sub.Status}
	}
	if sub.PausedAt == nil {
		return sub, &CorruptStateError{Reason: "paused subscription has no paused_at"}
	}
	if sub.EndDate.IsZero() {
		return sub, &CorruptStateError{Reason: "paused subscription has no end_date"}
	}

	elapsed := c.DaysBetween(*sub.PausedAt, now)
	if elapsed < 0 {
		elapsed = 0
	}

	total := sub.TotalPausedDays + elapsed
	if total < 0 {
		total = 0
	}
	if limit := c.maxPausedDays(); total > limit {
		total = limit
	}

	resumedAt := now
	sub.EndDate = c.AddDays(sub.EndDate, elapsed)
	sub.TotalPausedDays = total
	sub.ResumedAt = &resumedAt
	sub.PausedAt = nil
	sub.Status = StatusActive
	return sub, nil
}

// Cancel: active/paused -> cancelled (терминальный)
func (c Calculator) Cancel(sub Subscription, now time.Time) (Subscription, error) {
	from := c.EffectiveStatus(sub, now)
	if !CanTransition(from, StatusCancelled) {
		return sub, &TransitionError{Op: "cancel", From: from}
	}
	sub.Status = StatusCancelled
	return sub, nil
}

// Validate проверяет инварианты хранимой подписки
func (c Calculator) Validate(sub Subscription) error {
	switch {
	case !sub.Status.Valid():
		return &CorruptStateError{Reason: "unknown status " + string(sub.Status)}
	case sub.Status == StatusPaused && sub.PausedAt == nil:
		return &CorruptStateError{Reason: "paused subscription has no paused_at"}
	case sub.Status == StatusPaused && sub.ResumedAt != nil:
		return &CorruptStateError{Reason: "paused subscription has resumed_at set"}
	case sub.TotalPausedDays < 0 || sub.TotalPausedDays > c.maxPausedDays():
		return &CorruptStateError{Reason: "total_paused_days out of range"}
	case !sub.StartDate.IsZero() && !sub.EndDate.IsZero() && sub.EndDate.Before(sub.StartDate):
		return &CorruptStateError{Reason: "end_date before start_date"}
	}
	return nil
}

// Summary - то, что видит пользователь на экране подписки
type Summary struct {
	Status        Status
	RemainingDays int
	CanPause      bool
	CanResume     bool
	CanCancel     bool
}

// Describe собирает Summary на момент now
func (c Calculator) Describe(sub Subscription, now time.Time) Summary {
	status := c.EffectiveStatus(sub, now)
	view := sub
	view.Status = status
	return Summary{
		Status:        status,
		RemainingDays: c.RemainingDays(view, now),
		CanPause:      CanTransition(status, StatusPaused),
		CanResume:     status == StatusPaused && sub.PausedAt != nil,
		CanCancel:     CanTransition(status, StatusCancelled),
	}
}

// Функции уровня пакета работают через Default

func DaysBetween(from, to time.Time) int { return Default.DaysBetween(from, to) }

func ComputeEndDate(start time.Time, durationCode string) time.Time {
	return Default.ComputeEndDate(start, durationCode)
}

func RemainingDays(sub Subscription, now time.Time) int { return Default.RemainingDays(sub, now) }

func EffectiveStatus(sub Subscription, now time.Time) Status {
	return Default.EffectiveStatus(sub, now)
}

func Pause(sub Subscription, now time.Time) (Subscription, error) { return Default.Pause(sub, now) }

func Resume(sub Subscription, now time.Time) (Subscription, error) { return Default.Resume(sub, now) }

func Cancel(sub Subscription, now time.Time) (Subscription, error) { return Default.Cancel(sub, now) }

func Validate(sub Subscription) error { return Default.Validate(sub) }
