package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/Freeeeeet/timetable/internal/model"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultPrefix = "timetable"

// TimetableCache кеш списков расписания в Redis
// Каждая запись в расписание увеличивает поколение; ключи старых поколений просто истекают по TTL.
// Если INCR не прошёл, кеш помечается грязным и не отдаёт списки, пока поколение не сдвинется.
type TimetableCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *zap.Logger
	dirty  atomic.Bool
}

// Connect подключается к Redis и проверяет соединение
func Connect(ctx context.Context, addr string, ttl time.Duration, logger *zap.Logger) (*TimetableCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	logger.Info("Connected to Redis", zap.String("addr", addr))
	return New(rdb, ttl, logger), nil
}

// New создаёт кеш поверх готового клиента
func New(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *TimetableCache {
	return &TimetableCache{
		rdb:    rdb,
		ttl:    ttl,
		prefix: defaultPrefix,
		logger: logger,
	}
}

// Get возвращает закешированный список и текущее поколение
// Ошибки Redis считаются промахом: источник правды - хранилище
func (c *TimetableCache) Get(ctx context.Context, filter model.ScheduleFilter) ([]*model.ScheduleEntry, int64, bool) {
	if c.dirty.Load() && !c.bumpGeneration(ctx) {
		return nil, -1, false
	}

	generation, err := c.generation(ctx)
	if err != nil {
		c.logger.Warn("Failed to read cache generation", zap.Error(err))
		return nil, -1, false
	}

	data, err := c.rdb.Get(ctx, c.listKey(generation, filter)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Failed to read cached timetable", zap.Error(err))
		}
		return nil, generation, false
	}

	var entries []*model.ScheduleEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		c.logger.Warn("Failed to decode cached timetable", zap.Error(err))
		return nil, generation, false
	}
	return entries, generation, true
}

// Set сохраняет список под поколением, прочитанным в Get
func (c *TimetableCache) Set(ctx context.Context, filter model.ScheduleFilter, generation int64, entries []*model.ScheduleEntry) {
	if generation < 0 || c.dirty.Load() {
		return
	}

	data, err := json.Marshal(entries)
	if err != nil {
		c.logger.Warn("Failed to encode timetable for cache", zap.Error(err))
		return
	}

	if err := c.rdb.Set(ctx, c.listKey(generation, filter), data, c.ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache timetable", zap.Error(err))
	}
}

// Invalidate делает все закешированные списки недоступными
// Запись уже закоммичена, поэтому отмена запроса не должна помешать сдвинуть поколение
func (c *TimetableCache) Invalidate(ctx context.Context) {
	if err := c.rdb.Incr(context.WithoutCancel(ctx), c.generationKey()).Err(); err != nil {
		c.dirty.Store(true)
		c.logger.Error("Failed to invalidate timetable cache, serving from storage until Redis recovers", zap.Error(err))
		return
	}
	c.dirty.Store(false)
}

// Close закрывает соединение с Redis
func (c *TimetableCache) Close() error {
	return c.rdb.Close()
}

// bumpGeneration повторяет несостоявшийся INCR
func (c *TimetableCache) bumpGeneration(ctx context.Context) bool {
	if err := c.rdb.Incr(ctx, c.generationKey()).Err(); err != nil {
		return false
	}
	c.dirty.Store(false)
	c.logger.Info("Timetable cache invalidated after Redis recovery")
	return true
}

func (c *TimetableCache) generation(ctx context.Context) (int64, error) {
	generation, err := c.rdb.Get(ctx, c.generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return generation, err
}

func (c *TimetableCache) generationKey() string {
	return c.prefix + ":generation"
}

func (c *TimetableCache) listKey(generation int64, filter model.ScheduleFilter) string {
	return c.prefix + ":list:" + strconv.FormatInt(generation, 10) + ":" + filter.Key()
}
