package service

import (
	"errors"
	"fmt"

	"github.com/Freeeeeet/timetable/internal/timetable"
)

// Ошибки сервиса расписания
var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("schedule entry not found")
	ErrConflict   = errors.New("schedule conflict")
	ErrStorage    = errors.New("storage error")
)

// ErrBusy запись менялась конкурентно на каждой попытке, запрос можно повторить
var ErrBusy = errors.New("schedule entry is being modified concurrently")

// ConflictError полный список конфликтующих записей, без усечения
type ConflictError struct {
	Conflicts []timetable.Conflict
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("schedule conflict with %d entries", len(e.Conflicts))
}

// Is позволяет errors.Is(err, ErrConflict)
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// StorageError сбой хранилища; операция не имела эффекта
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Is позволяет errors.Is(err, ErrStorage)
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
