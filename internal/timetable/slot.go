package timetable

import (
	"errors"
	"fmt"
)

// Weekday день недели в сетке расписания
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var (
	ErrInvalidWeekday = errors.New("weekday must be between 1 and 7")
	ErrInvalidRange   = errors.New("invalid slot range")
)

// Valid проверяет что день в диапазоне 1..7
func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

var weekdayShort = [...]string{"", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayShort[d]
}

// SlotRange непрерывный блок пар [Start, End], обе границы включительно
type SlotRange struct {
	Start int
	End   int
}

// Validate проверяет диапазон; maxSlot <= 0 отключает проверку верхней границы
func (r SlotRange) Validate(maxSlot int) error {
	if r.Start < 1 {
		return fmt.Errorf("%w: start_slot %d must be >= 1", ErrInvalidRange, r.Start)
	}
	if r.Start > r.End {
		return fmt.Errorf("%w: start_slot %d is after end_slot %d", ErrInvalidRange, r.Start, r.End)
	}
	if maxSlot > 0 && r.End > maxSlot {
		return fmt.Errorf("%w: end_slot %d exceeds last slot %d", ErrInvalidRange, r.End, maxSlot)
	}
	return nil
}

// Overlaps: [1,2] и [3,4] не пересекаются, [1,2] и [2,3] делят пару 2
func (r SlotRange) Overlaps(o SlotRange) bool {
	return r.Start <= o.End && r.End >= o.Start
}

// Contains проверяет что пара входит в диапазон
func (r SlotRange) Contains(slot int) bool {
	return slot >= r.Start && slot <= r.End
}

// Len количество пар в диапазоне
func (r SlotRange) Len() int {
	return r.End - r.Start + 1
}

func (r SlotRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Interval диапазон пар в конкретный день недели
// Занятие никогда не переходит через полночь
type Interval struct {
	Weekday Weekday
	Slots   SlotRange
}

// Validate проверяет день и диапазон пар
func (i Interval) Validate(maxSlot int) error {
	if !i.Weekday.Valid() {
		return fmt.Errorf("%w: got %d", ErrInvalidWeekday, int(i.Weekday))
	}
	return i.Slots.Validate(maxSlot)
}

// Overlaps интервалы в разные дни не пересекаются никогда
func (i Interval) Overlaps(o Interval) bool {
	return i.Weekday == o.Weekday && i.Slots.Overlaps(o.Slots)
}

func (i Interval) String() string {
	return i.Weekday.String() + " " + i.Slots.String()
}
