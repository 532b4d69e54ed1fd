package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Freeeeeet/timetable/internal/model"
	"github.com/Freeeeeet/timetable/internal/repository"
	"github.com/Freeeeeet/timetable/internal/repository/keylock"
	"github.com/Freeeeeet/timetable/internal/timetable"
)

var (
	_ repository.EntryStore = (*Store)(nil)
	_ repository.EntryTx    = (*storeTx)(nil)
)

// Store хранит записи расписания в памяти процесса
// Запись транзакции применяется целиком под mu, читатели не видят частичных изменений.
type Store struct {
	mu      sync.RWMutex
	entries map[int64]*model.ScheduleEntry
	nextID  int64
	locks   *keylock.Locker
	now     func() time.Time
}

// NewStore создаёт пустое хранилище
func NewStore() *Store {
	return &Store{
		entries: make(map[int64]*model.ScheduleEntry),
		locks:   keylock.New(),
		now:     time.Now,
	}
}

// GetByID получает копию записи по ID
func (s *Store) GetByID(_ context.Context, id int64) (*model.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok {
		return nil, nil
	}
	return entry.Clone(), nil
}

// FindOverlapping записи того же дня с пересекающимся диапазоном пар
func (s *Store) FindOverlapping(_ context.Context, weekday, startSlot, endSlot int) ([]*model.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return filterOverlapping(s.entries, nil, weekday, startSlot, endSlot), nil
}

// List записи по фильтру в порядке (weekday, start_slot)
func (s *Store) List(_ context.Context, filter model.ScheduleFilter) ([]*model.ScheduleEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return filterList(s.entries, nil, filter), nil
}

// WithinTx захватывает блокировки ресурсов, копит изменения и применяет их одним шагом
func (s *Store) WithinTx(ctx context.Context, lockNames []string, fn func(tx repository.EntryTx) error) error {
	release, err := s.locks.Lock(ctx, lockNames...)
	if err != nil {
		return fmt.Errorf("acquire locks: %w", err)
	}
	defer release()

	tx := &storeTx{store: s, staged: make(map[int64]*model.ScheduleEntry)}
	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, entry := range tx.staged {
		if entry == nil {
			delete(s.entries, id)
			continue
		}
		s.entries[id] = entry
	}
	return nil
}

// storeTx незакоммиченные изменения: nil в staged означает удаление
type storeTx struct {
	store  *Store
	staged map[int64]*model.ScheduleEntry
}

func (t *storeTx) GetByID(_ context.Context, id int64) (*model.ScheduleEntry, error) {
	if entry, ok := t.staged[id]; ok {
		return entry.Clone(), nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	entry, ok := t.store.entries[id]
	if !ok {
		return nil, nil
	}
	return entry.Clone(), nil
}

func (t *storeTx) FindOverlapping(_ context.Context, weekday, startSlot, endSlot int) ([]*model.ScheduleEntry, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	return filterOverlapping(t.store.entries, t.staged, weekday, startSlot, endSlot), nil
}

func (t *storeTx) List(_ context.Context, filter model.ScheduleFilter) ([]*model.ScheduleEntry, error) {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	return filterList(t.store.entries, t.staged, filter), nil
}

func (t *storeTx) Create(_ context.Context, entry *model.ScheduleEntry) error {
	t.store.mu.Lock()
	t.store.nextID++
	entry.ID = t.store.nextID
	t.store.mu.Unlock()

	entry.CreatedAt = t.store.now().UTC()
	t.staged[entry.ID] = entry.Clone()
	return nil
}

func (t *storeTx) Update(ctx context.Context, entry *model.ScheduleEntry) error {
	current, err := t.GetByID(ctx, entry.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return fmt.Errorf("update schedule entry %d: not found", entry.ID)
	}

	updated := entry.Clone()
	updated.CreatedAt = current.CreatedAt
	t.staged[entry.ID] = updated
	return nil
}

func (t *storeTx) Delete(ctx context.Context, id int64) (bool, error) {
	current, err := t.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, nil
	}

	t.staged[id] = nil
	return true, nil
}

// merged снимок committed + staged, вызывать под RLock
func merged(entries, staged map[int64]*model.ScheduleEntry) []*model.ScheduleEntry {
	out := make([]*model.ScheduleEntry, 0, len(entries)+len(staged))
	for id, entry := range entries {
		if _, ok := staged[id]; ok {
			continue
		}
		out = append(out, entry.Clone())
	}
	for _, entry := range staged {
		if entry != nil {
			out = append(out, entry.Clone())
		}
	}
	return out
}

func filterOverlapping(entries, staged map[int64]*model.ScheduleEntry, weekday, startSlot, endSlot int) []*model.ScheduleEntry {
	want := timetable.Interval{
		Weekday: timetable.Weekday(weekday),
		Slots:   timetable.SlotRange{Start: startSlot, End: endSlot},
	}

	var out []*model.ScheduleEntry
	for _, entry := range merged(entries, staged) {
		if want.Overlaps(timetable.IntervalOf(entry)) {
			out = append(out, entry)
		}
	}
	return out
}

func filterList(entries, staged map[int64]*model.ScheduleEntry, filter model.ScheduleFilter) []*model.ScheduleEntry {
	var out []*model.ScheduleEntry
	for _, entry := range merged(entries, staged) {
		if filter.Matches(entry) {
			out = append(out, entry)
		}
	}
	timetable.SortChronologically(out)
	return out
}
