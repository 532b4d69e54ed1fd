package httpapi

import (
	"context"
	"strconv"

	"github.com/Freeeeeet/timetable/internal/model"
	"github.com/Freeeeeet/timetable/internal/repository"
	"github.com/Freeeeeet/timetable/internal/repository/memory"
)

func ptr[T any](v T) *T { return &v }

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

// writeDirect пишет записи мимо сервиса, без проверки конфликтов
func writeDirect(store *memory.Store, entries ...*model.ScheduleEntry) error {
	ctx := context.Background()
	return store.WithinTx(ctx, nil, func(tx repository.EntryTx) error {
		for _, e := range entries {
			if err := tx.Create(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}
