package timetable

import (
	"sort"
	"strconv"
)

// ResourceKind измерение ресурса, которое нельзя занять дважды
type ResourceKind string

const (
	ResourceClass    ResourceKind = "class"
	ResourceTeacher  ResourceKind = "teacher"
	ResourceRoom     ResourceKind = "room"
	ResourceLocation ResourceKind = "location"
)

// ResourceKey один ресурс занятия
// Для class/teacher/room заполнен ID, для location - Label
type ResourceKey struct {
	Kind  ResourceKind
	ID    int64
	Label string
}

func (k ResourceKey) String() string {
	if k.Kind == ResourceLocation {
		return string(k.Kind) + ":" + k.Label
	}
	return string(k.Kind) + ":" + strconv.FormatInt(k.ID, 10)
}

// ResourceSet набор ресурсов занятия, не больше одного ключа на измерение
type ResourceSet struct {
	keys []ResourceKey
}

// NewResourceSet собирает набор из непустых значений
// Пустая строка location считается отсутствующей, сравнение регистрозависимое
func NewResourceSet(classID, teacherID, roomID *int64, location *string) ResourceSet {
	var keys []ResourceKey
	if classID != nil {
		keys = append(keys, ResourceKey{Kind: ResourceClass, ID: *classID})
	}
	if teacherID != nil {
		keys = append(keys, ResourceKey{Kind: ResourceTeacher, ID: *teacherID})
	}
	if roomID != nil {
		keys = append(keys, ResourceKey{Kind: ResourceRoom, ID: *roomID})
	}
	if location != nil && *location != "" {
		keys = append(keys, ResourceKey{Kind: ResourceLocation, Label: *location})
	}
	return ResourceSet{keys: keys}
}

// Keys возвращает копию ключей
func (s ResourceSet) Keys() []ResourceKey {
	out := make([]ResourceKey, len(s.keys))
	copy(out, s.keys)
	return out
}

// Empty занятие без ресурсов не конфликтует ни с чем
func (s ResourceSet) Empty() bool {
	return len(s.keys) == 0
}

// Get возвращает ключ измерения, если он есть
func (s ResourceSet) Get(kind ResourceKind) (ResourceKey, bool) {
	for _, k := range s.keys {
		if k.Kind == kind {
			return k, true
		}
	}
	return ResourceKey{}, false
}

// Intersect возвращает общие ресурсы двух наборов
func (s ResourceSet) Intersect(o ResourceSet) []ResourceKey {
	var shared []ResourceKey
	for _, k := range s.keys {
		if other, ok := o.Get(k.Kind); ok && other == k {
			shared = append(shared, k)
		}
	}
	return shared
}

// Shares проверяет что наборы пересекаются хотя бы по одному измерению
func (s ResourceSet) Shares(o ResourceSet) bool {
	for _, k := range s.keys {
		if other, ok := o.Get(k.Kind); ok && other == k {
			return true
		}
	}
	return false
}

// LockNames имена блокировок для ресурсов, отсортированы
func (s ResourceSet) LockNames() []string {
	names := make([]string, 0, len(s.keys))
	for _, k := range s.keys {
		names = append(names, k.String())
	}
	sort.Strings(names)
	return names
}
