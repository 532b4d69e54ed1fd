package timetable

import (
	"sort"

	"github.com/Freeeeeet/timetable/internal/model"
)

// Conflict существующая запись, которая мешает предложенной
type Conflict struct {
	Entry  *model.ScheduleEntry
	Shared []ResourceKey
}

// Violation пара сохранённых записей, нарушающих инвариант
type Violation struct {
	First  *model.ScheduleEntry
	Second *model.ScheduleEntry
	Shared []ResourceKey
}

// IntervalOf возвращает интервал записи
func IntervalOf(e *model.ScheduleEntry) Interval {
	return Interval{
		Weekday: Weekday(e.Weekday),
		Slots:   SlotRange{Start: e.StartSlot, End: e.EndSlot},
	}
}

// ResourcesOf возвращает набор ресурсов записи
func ResourcesOf(e *model.ScheduleEntry) ResourceSet {
	return NewResourceSet(e.ClassID, e.TeacherID, e.RoomID, e.Location)
}

// Detect возвращает все записи из existing, пересекающиеся с proposal по времени и ресурсам
// excludeID = 0 ничего не исключает. Результат отсортирован по ID.
// Функция ничего не решает за вызывающего, только перечисляет конфликты.
func Detect(existing []*model.ScheduleEntry, proposal *model.ScheduleEntry, excludeID int64) []Conflict {
	resources := ResourcesOf(proposal)
	if resources.Empty() {
		return nil
	}
	interval := IntervalOf(proposal)

	var conflicts []Conflict
	for _, e := range existing {
		if excludeID != 0 && e.ID == excludeID {
			continue
		}
		if !interval.Overlaps(IntervalOf(e)) {
			continue
		}
		shared := resources.Intersect(ResourcesOf(e))
		if len(shared) == 0 {
			continue
		}
		conflicts = append(conflicts, Conflict{Entry: e, Shared: shared})
	}

	sort.Slice(conflicts, func(i, j int) bool {
		return conflicts[i].Entry.ID < conflicts[j].Entry.ID
	})
	return conflicts
}

// FindViolations ищет все пары конфликтующих записей в уже сохранённых данных
// Пары упорядочены по (First.ID, Second.ID), First.ID < Second.ID
func FindViolations(entries []*model.ScheduleEntry) []Violation {
	byDay := make(map[int][]*model.ScheduleEntry)
	for _, e := range entries {
		byDay[e.Weekday] = append(byDay[e.Weekday], e)
	}

	var violations []Violation
	for _, day := range byDay {
		sort.Slice(day, func(i, j int) bool {
			if day[i].StartSlot != day[j].StartSlot {
				return day[i].StartSlot < day[j].StartSlot
			}
			return day[i].ID < day[j].ID
		})
		for i, a := range day {
			ra := ResourcesOf(a)
			if ra.Empty() {
				continue
			}
			for _, b := range day[i+1:] {
				// дальше по списку начала только позже
				if b.StartSlot > a.EndSlot {
					break
				}
				shared := ra.Intersect(ResourcesOf(b))
				if len(shared) == 0 {
					continue
				}
				first, second := a, b
				if second.ID < first.ID {
					first, second = second, first
				}
				violations = append(violations, Violation{First: first, Second: second, Shared: shared})
			}
		}
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].First.ID != violations[j].First.ID {
			return violations[i].First.ID < violations[j].First.ID
		}
		return violations[i].Second.ID < violations[j].Second.ID
	})
	return violations
}

// SortChronologically упорядочивает по (weekday, start_slot), затем по ID
func SortChronologically(entries []*model.ScheduleEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Weekday != b.Weekday {
			return a.Weekday < b.Weekday
		}
		if a.StartSlot != b.StartSlot {
			return a.StartSlot < b.StartSlot
		}
		return a.ID < b.ID
	})
}
