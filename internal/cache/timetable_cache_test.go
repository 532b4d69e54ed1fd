package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetable/internal/model"
)

func newTestCache(t *testing.T) (*TimetableCache, *miniredis.Miniredis) {
	t.Helper()
	m := miniredis.RunT(t)
	c := New(redis.NewClient(&redis.Options{Addr: m.Addr(), MaxRetries: -1}), time.Minute, zap.NewNop())
	t.Cleanup(func() { _ = c.Close() })
	return c, m
}

func sampleEntries() []*model.ScheduleEntry {
	teacher := int64(5)
	return []*model.ScheduleEntry{
		{ID: 1, CourseID: 10, TeacherID: &teacher, Weekday: 1, StartSlot: 1, EndSlot: 2},
		{ID: 2, CourseID: 11, Weekday: 3, StartSlot: 4, EndSlot: 4},
	}
}

func ids(entries []*model.ScheduleEntry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestKeysIncludeGenerationAndFilter(t *testing.T) {
	c, _ := newTestCache(t)

	classID := int64(12)
	assert.Equal(t, "timetable:generation", c.generationKey())
	assert.Equal(t, "timetable:list:3:12:*:*", c.listKey(3, model.ScheduleFilter{ClassID: &classID}))
	assert.NotEqual(t,
		c.listKey(3, model.ScheduleFilter{ClassID: &classID}),
		c.listKey(4, model.ScheduleFilter{ClassID: &classID}))
}

func TestSetThenGet(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	filter := model.ScheduleFilter{}

	_, generation, ok := c.Get(ctx, filter)
	require.False(t, ok)
	assert.Equal(t, int64(0), generation)

	c.Set(ctx, filter, generation, sampleEntries())

	cached, generation, ok := c.Get(ctx, filter)
	require.True(t, ok)
	assert.Equal(t, int64(0), generation)
	assert.Equal(t, []int64{1, 2}, ids(cached))
	require.NotNil(t, cached[0].TeacherID)
	assert.Equal(t, int64(5), *cached[0].TeacherID)

	// другой фильтр - другой ключ
	teacher := int64(5)
	_, _, ok = c.Get(ctx, model.ScheduleFilter{TeacherID: &teacher})
	assert.False(t, ok)
}

func TestSetUnderOldGenerationIsNeverRead(t *testing.T) {
	ctx := context.Background()
	c, m := newTestCache(t)
	filter := model.ScheduleFilter{}

	_, generation, ok := c.Get(ctx, filter)
	require.False(t, ok)

	// запись в расписание случилась между чтением хранилища и Set
	c.Invalidate(ctx)
	c.Set(ctx, filter, generation, sampleEntries())

	_, current, ok := c.Get(ctx, filter)
	assert.False(t, ok)
	assert.Equal(t, int64(1), current)

	value, err := m.Get("timetable:generation")
	require.NoError(t, err)
	assert.Equal(t, "1", value)
}

func TestInvalidateHidesCachedLists(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(t)
	filter := model.ScheduleFilter{}

	c.Set(ctx, filter, 0, sampleEntries())
	_, _, ok := c.Get(ctx, filter)
	require.True(t, ok)

	c.Invalidate(ctx)

	_, generation, ok := c.Get(ctx, filter)
	assert.False(t, ok)
	assert.Equal(t, int64(1), generation)
}

func TestEntriesExpireAfterTTL(t *testing.T) {
	ctx := context.Background()
	c, m := newTestCache(t)
	filter := model.ScheduleFilter{}

	c.Set(ctx, filter, 0, sampleEntries())
	m.FastForward(2 * time.Minute)

	_, _, ok := c.Get(ctx, filter)
	assert.False(t, ok)
}

func TestRedisErrorIsMiss(t *testing.T) {
	ctx := context.Background()
	c, m := newTestCache(t)
	filter := model.ScheduleFilter{}

	c.Set(ctx, filter, 0, sampleEntries())
	m.SetError("LOADING Redis is loading the dataset in memory")

	_, generation, ok := c.Get(ctx, filter)
	assert.False(t, ok)
	assert.Equal(t, int64(-1), generation)

	// Set с отрицательным поколением ничего не пишет
	m.SetError("")
	c.Set(ctx, filter, -1, nil)
	_, _, ok = c.Get(ctx, filter)
	assert.True(t, ok)
}

func TestFailedInvalidateStopsServingUntilRecovered(t *testing.T) {
	ctx := context.Background()
	c, m := newTestCache(t)
	filter := model.ScheduleFilter{}

	c.Set(ctx, filter, 0, sampleEntries())

	// запись закоммичена, но Redis недоступен в момент INCR
	m.SetError("connection refused")
	c.Invalidate(ctx)

	// Redis вернулся, старый список под поколением 0 всё ещё лежит
	m.SetError("")
	old, err := m.Get(c.listKey(0, filter))
	require.NoError(t, err)
	require.NotEmpty(t, old)

	_, generation, ok := c.Get(ctx, filter)
	assert.False(t, ok)
	assert.Equal(t, int64(1), generation)

	// после восстановления кеш снова работает
	c.Set(ctx, filter, generation, sampleEntries()[:1])
	cached, _, ok := c.Get(ctx, filter)
	require.True(t, ok)
	assert.Equal(t, []int64{1}, ids(cached))
}

func TestDirtyCacheSkipsSetWhileRedisIsDown(t *testing.T) {
	ctx := context.Background()
	c, m := newTestCache(t)
	filter := model.ScheduleFilter{}

	m.SetError("connection refused")
	c.Invalidate(ctx)
	m.SetError("")

	// Set со старым поколением, прочитанным до сбоя, отбрасывается
	c.Set(ctx, filter, 0, sampleEntries())
	assert.False(t, m.Exists(c.listKey(0, filter)))
}

func TestInvalidateIgnoresCancelledContext(t *testing.T) {
	c, m := newTestCache(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Invalidate(ctx)

	value, err := m.Get("timetable:generation")
	require.NoError(t, err)
	assert.Equal(t, "1", value)
}
