package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ScheduleEntry еженедельное занятие: курс, ресурсы и диапазон пар в одном дне недели
type ScheduleEntry struct {
	ID        int64     `json:"id"`
	CourseID  int64     `json:"course_id"`
	ClassID   *int64    `json:"class_id"`   // указатель - может быть nil
	TeacherID *int64    `json:"teacher_id"` // указатель - может быть nil
	RoomID    *int64    `json:"room_id"`    // указатель - может быть nil
	Weekday   int       `json:"weekday"`    // 1 = Monday, 7 = Sunday
	StartSlot int       `json:"start_slot"` // номер пары, включительно
	EndSlot   int       `json:"end_slot"`   // номер пары, включительно
	Location  *string   `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// Clone возвращает глубокую копию записи
func (e *ScheduleEntry) Clone() *ScheduleEntry {
	if e == nil {
		return nil
	}
	c := *e
	c.ClassID = cloneInt64(e.ClassID)
	c.TeacherID = cloneInt64(e.TeacherID)
	c.RoomID = cloneInt64(e.RoomID)
	if e.Location != nil {
		loc := *e.Location
		c.Location = &loc
	}
	return &c
}

// SlotLabel возвращает диапазон пар в виде "1-2"
func (e *ScheduleEntry) SlotLabel() string {
	return strconv.Itoa(e.StartSlot) + "-" + strconv.Itoa(e.EndSlot)
}

// ScheduleFilter фильтр списка по равенству ресурсов
type ScheduleFilter struct {
	ClassID   *int64
	TeacherID *int64
	RoomID    *int64
}

// Matches проверяет что запись проходит фильтр
func (f ScheduleFilter) Matches(e *ScheduleEntry) bool {
	return matchID(f.ClassID, e.ClassID) &&
		matchID(f.TeacherID, e.TeacherID) &&
		matchID(f.RoomID, e.RoomID)
}

// Key возвращает стабильный ключ фильтра (используется кешем)
func (f ScheduleFilter) Key() string {
	var sb strings.Builder
	for i, id := range []*int64{f.ClassID, f.TeacherID, f.RoomID} {
		if i > 0 {
			sb.WriteByte(':')
		}
		if id != nil {
			sb.WriteString(strconv.FormatInt(*id, 10))
		} else {
			sb.WriteByte('*')
		}
	}
	return sb.String()
}

// ScheduleChanges частичное обновление записи
// Для nullable полей Set=false означает "не передано", Set=true и Value=nil - явный null
type ScheduleChanges struct {
	CourseID  *int64         `json:"course_id"`
	ClassID   OptionalInt64  `json:"class_id"`
	TeacherID OptionalInt64  `json:"teacher_id"`
	RoomID    OptionalInt64  `json:"room_id"`
	Weekday   *int           `json:"weekday"`
	StartSlot *int           `json:"start_slot"`
	EndSlot   *int           `json:"end_slot"`
	Location  OptionalString `json:"location"`
}

// Apply накладывает изменения на копию записи, исходная запись не меняется
func (c ScheduleChanges) Apply(e *ScheduleEntry) *ScheduleEntry {
	out := e.Clone()
	if c.CourseID != nil {
		out.CourseID = *c.CourseID
	}
	if c.ClassID.Set {
		out.ClassID = cloneInt64(c.ClassID.Value)
	}
	if c.TeacherID.Set {
		out.TeacherID = cloneInt64(c.TeacherID.Value)
	}
	if c.RoomID.Set {
		out.RoomID = cloneInt64(c.RoomID.Value)
	}
	if c.Weekday != nil {
		out.Weekday = *c.Weekday
	}
	if c.StartSlot != nil {
		out.StartSlot = *c.StartSlot
	}
	if c.EndSlot != nil {
		out.EndSlot = *c.EndSlot
	}
	if c.Location.Set {
		if c.Location.Value == nil {
			out.Location = nil
		} else {
			loc := *c.Location.Value
			out.Location = &loc
		}
	}
	return out
}

// OptionalInt64 nullable поле частичного обновления
type OptionalInt64 struct {
	Set   bool
	Value *int64
}

// SetInt64 возвращает заданное значение
func SetInt64(v int64) OptionalInt64 {
	return OptionalInt64{Set: true, Value: &v}
}

// ClearInt64 возвращает явный null
func ClearInt64() OptionalInt64 {
	return OptionalInt64{Set: true}
}

// UnmarshalJSON вызывается только если ключ присутствует в теле, в том числе со значением null
func (o *OptionalInt64) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

// OptionalString nullable строковое поле частичного обновления
type OptionalString struct {
	Set   bool
	Value *string
}

// SetString возвращает заданное значение
func SetString(v string) OptionalString {
	return OptionalString{Set: true, Value: &v}
}

func (o *OptionalString) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func matchID(want, got *int64) bool {
	if want == nil {
		return true
	}
	return got != nil && *got == *want
}
