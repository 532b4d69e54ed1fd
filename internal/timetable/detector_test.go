package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Freeeeeet/timetable/internal/model"
)

func id(v int64) *int64 { return &v }

func str(v string) *string { return &v }

func entry(entryID int64, weekday, start, end int) *model.ScheduleEntry {
	return &model.ScheduleEntry{ID: entryID, CourseID: 1, Weekday: weekday, StartSlot: start, EndSlot: end}
}

func withTeacher(e *model.ScheduleEntry, teacherID int64) *model.ScheduleEntry {
	e.TeacherID = id(teacherID)
	return e
}

func TestResourceSetIntersect(t *testing.T) {
	a := NewResourceSet(id(1), id(2), nil, str("Lab A"))
	b := NewResourceSet(id(9), id(2), id(5), str("Lab A"))

	shared := a.Intersect(b)
	require.Len(t, shared, 2)
	assert.Equal(t, ResourceKey{Kind: ResourceTeacher, ID: 2}, shared[0])
	assert.Equal(t, ResourceKey{Kind: ResourceLocation, Label: "Lab A"}, shared[1])
	assert.True(t, a.Shares(b))
}

func TestResourceSetLocationIsCaseSensitive(t *testing.T) {
	a := NewResourceSet(nil, nil, nil, str("Lab A"))
	b := NewResourceSet(nil, nil, nil, str("lab a"))

	assert.False(t, a.Shares(b))
}

func TestResourceSetEmptyLocationIsAbsent(t *testing.T) {
	s := NewResourceSet(nil, nil, nil, str(""))

	assert.True(t, s.Empty())
	assert.False(t, s.Shares(s))
}

func TestResourceSetSameIDDifferentKind(t *testing.T) {
	// teacher 3 и room 3 - разные ресурсы
	a := NewResourceSet(nil, id(3), nil, nil)
	b := NewResourceSet(nil, nil, id(3), nil)

	assert.False(t, a.Shares(b))
}

func TestResourceSetLockNames(t *testing.T) {
	s := NewResourceSet(id(4), id(2), id(7), str("Hall"))

	assert.Equal(t, []string{"class:4", "location:Hall", "room:7", "teacher:2"}, s.LockNames())
}

func TestDetectScenario(t *testing.T) {
	a := withTeacher(entry(1, 1, 1, 2), 1)
	existing := []*model.ScheduleEntry{a}

	b := withTeacher(entry(0, 1, 2, 3), 1)
	conflicts := Detect(existing, b, 0)
	require.Len(t, conflicts, 1)
	assert.Equal(t, int64(1), conflicts[0].Entry.ID)
	assert.Equal(t, []ResourceKey{{Kind: ResourceTeacher, ID: 1}}, conflicts[0].Shared)

	c := withTeacher(entry(0, 1, 3, 4), 1)
	assert.Empty(t, Detect(existing, c, 0))
}

func TestDetectDifferentWeekday(t *testing.T) {
	existing := []*model.ScheduleEntry{withTeacher(entry(1, 1, 1, 4), 1)}

	assert.Empty(t, Detect(existing, withTeacher(entry(0, 2, 1, 4), 1), 0))
}

func TestDetectResourceLessNeverConflicts(t *testing.T) {
	existing := []*model.ScheduleEntry{entry(1, 1, 1, 4), withTeacher(entry(2, 1, 1, 4), 7)}

	assert.Empty(t, Detect(existing, entry(0, 1, 1, 4), 0))
}

func TestDetectExcludesSelf(t *testing.T) {
	self := withTeacher(entry(5, 3, 2, 3), 1)
	self.RoomID = id(9)

	assert.Empty(t, Detect([]*model.ScheduleEntry{self}, self.Clone(), 5))
	assert.Len(t, Detect([]*model.ScheduleEntry{self}, self.Clone(), 0), 1)
}

func TestDetectReturnsAllConflictsSortedByID(t *testing.T) {
	byRoom := entry(7, 1, 3, 3)
	byRoom.RoomID = id(5)
	byClass := entry(2, 1, 1, 2)
	byClass.ClassID = id(10)
	byLocation := entry(4, 1, 4, 6)
	byLocation.Location = str("Gym")
	unrelated := withTeacher(entry(3, 1, 1, 6), 99)

	proposal := entry(0, 1, 2, 4)
	proposal.ClassID = id(10)
	proposal.RoomID = id(5)
	proposal.Location = str("Gym")

	conflicts := Detect([]*model.ScheduleEntry{byRoom, byClass, byLocation, unrelated}, proposal, 0)
	require.Len(t, conflicts, 3)
	assert.Equal(t, int64(2), conflicts[0].Entry.ID)
	assert.Equal(t, int64(4), conflicts[1].Entry.ID)
	assert.Equal(t, int64(7), conflicts[2].Entry.ID)
	assert.Equal(t, ResourceLocation, conflicts[1].Shared[0].Kind)
}

func TestFindViolations(t *testing.T) {
	entries := []*model.ScheduleEntry{
		withTeacher(entry(3, 1, 2, 3), 1),
		withTeacher(entry(1, 1, 1, 2), 1),
		withTeacher(entry(2, 1, 3, 4), 1),
		withTeacher(entry(4, 2, 1, 2), 1),
		entry(5, 1, 1, 4),
	}

	violations := FindViolations(entries)
	require.Len(t, violations, 2)
	assert.Equal(t, int64(1), violations[0].First.ID)
	assert.Equal(t, int64(3), violations[0].Second.ID)
	assert.Equal(t, int64(2), violations[1].First.ID)
	assert.Equal(t, int64(3), violations[1].Second.ID)
}

func TestSortChronologically(t *testing.T) {
	entries := []*model.ScheduleEntry{
		entry(1, 3, 1, 1),
		entry(2, 1, 5, 6),
		entry(3, 1, 1, 2),
		entry(4, 2, 3, 3),
	}

	SortChronologically(entries)

	var ids []int64
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []int64{3, 2, 4, 1}, ids)
}
