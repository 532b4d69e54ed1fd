package repository

import (
	"context"
	"errors"

	"github.com/Freeeeeet/timetable/internal/model"
)

// ErrExclusionViolation хранилище само отклонило запись по ограничению исключения
var ErrExclusionViolation = errors.New("schedule exclusion constraint violated")

// EntryReader операции чтения записей расписания
// GetByID возвращает (nil, nil), если записи нет
type EntryReader interface {
	GetByID(ctx context.Context, id int64) (*model.ScheduleEntry, error)
	FindOverlapping(ctx context.Context, weekday, startSlot, endSlot int) ([]*model.ScheduleEntry, error)
	List(ctx context.Context, filter model.ScheduleFilter) ([]*model.ScheduleEntry, error)
}

// EntryTx операции внутри транзакции, держащей блокировки ресурсов
type EntryTx interface {
	EntryReader
	Create(ctx context.Context, entry *model.ScheduleEntry) error
	Update(ctx context.Context, entry *model.ScheduleEntry) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// EntryStore хранилище записей расписания
type EntryStore interface {
	EntryReader
	// WithinTx захватывает блокировки lockNames и выполняет fn атомарно:
	// ошибка fn откатывает все изменения, блокировки снимаются на любом выходе
	WithinTx(ctx context.Context, lockNames []string, fn func(tx EntryTx) error) error
}
