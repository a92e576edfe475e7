package lifecycle

import (
	"errors"
	"fmt"
)

// Status - хранимый статус подписки
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusInactive  Status = "inactive"
)

// Valid проверяет, что статус входит в перечисление
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusPaused, StatusExpired, StatusCancelled, StatusInactive:
		return true
	default:
		return false
	}
}

// IsTerminal - из expired и cancelled выхода нет
func (s Status) IsTerminal() bool {
	return s == StatusExpired || s == StatusCancelled
}

// AllStatuses возвращает все статусы в стабильном порядке (для админки и валидатора)
func AllStatuses() []Status {
	return []Status{StatusActive, StatusPaused, StatusExpired, StatusCancelled, StatusInactive}
}

var (
	// ErrInvalidTransition - операция не разрешена в текущем статусе (ошибка клиента)
	ErrInvalidTransition = errors.New("invalid subscription transition")

	// ErrCorruptState - сохраненные данные нарушают инварианты, угадывать нельзя
	ErrCorruptState = errors.New("corrupt subscription state")
)

// TransitionError описывает отклоненный переход. errors.Is(err, ErrInvalidTransition) == true.
type TransitionError struct {
	Op   string
	From Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s subscription in status %q", e.Op, e.From)
}

func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// CorruptStateError описывает нарушенный инвариант. errors.Is(err, ErrCorruptState) == true.
type CorruptStateError struct {
	Reason string
}

func (e *CorruptStateError) Error() string {
	return "corrupt subscription state: " + e.Reason
}

func (e *CorruptStateError) Unwrap() error {
	return ErrCorruptState
}

// transitions - разрешенные переходы состояния подписки
var transitions = map[Status][]Status{
	StatusActive: {StatusPaused, StatusExpired, StatusCancelled},
	StatusPaused: {StatusActive, StatusCancelled},
}

// CanTransition проверяет переход по таблице
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
