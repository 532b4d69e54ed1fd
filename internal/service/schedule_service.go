package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/Freeeeeet/timetable/internal/model"
	"github.com/Freeeeeet/timetable/internal/repository"
	"github.com/Freeeeeet/timetable/internal/timetable"
	"go.uber.org/zap"
)

// maxLockAttempts сколько раз Update перезахватывает блокировки, если запись поменялась до захвата
const maxLockAttempts = 3

var errLockSetChanged = errors.New("schedule entry changed while acquiring locks")

// ListCache кеш списков расписания
// Get возвращает поколение кеша, прочитанное до обращения к хранилищу;
// Set с устаревшим поколением ничего не испортит, такой ключ больше не читается.
type ListCache interface {
	Get(ctx context.Context, filter model.ScheduleFilter) (entries []*model.ScheduleEntry, generation int64, ok bool)
	Set(ctx context.Context, filter model.ScheduleFilter, generation int64, entries []*model.ScheduleEntry)
	Invalidate(ctx context.Context)
}

// ScheduleService проверяет конфликты и меняет расписание атомарно
type ScheduleService struct {
	store   repository.EntryStore
	cache   ListCache
	maxSlot int
	logger  *zap.Logger
}

// NewScheduleService создаёт сервис; cache может быть nil
func NewScheduleService(store repository.EntryStore, cache ListCache, maxSlot int, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{
		store:   store,
		cache:   cache,
		maxSlot: maxSlot,
		logger:  logger,
	}
}

// Create сохраняет новую запись, если она ни с чем не конфликтует
func (s *ScheduleService) Create(ctx context.Context, candidate *model.ScheduleEntry) (*model.ScheduleEntry, error) {
	entry := normalize(candidate)
	entry.ID = 0

	if err := s.validate(entry); err != nil {
		s.logger.Warn("Schedule entry rejected", zap.Error(err))
		return nil, err
	}

	lockNames := timetable.ResourcesOf(entry).LockNames()
	err := s.store.WithinTx(ctx, lockNames, func(tx repository.EntryTx) error {
		conflicts, err := s.detect(ctx, tx, entry, 0)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &ConflictError{Conflicts: conflicts}
		}
		return tx.Create(ctx, entry)
	})
	if err != nil {
		err = s.classify(ctx, "create schedule entry", entry, 0, err)
		s.logFailure("Failed to create schedule entry", entry, err)
		return nil, err
	}

	s.invalidate(ctx)

	s.logger.Info("Schedule entry created",
		zap.Int64("entry_id", entry.ID),
		zap.Int64("course_id", entry.CourseID),
		zap.Int("weekday", entry.Weekday),
		zap.String("slot", entry.SlotLabel()),
		zap.Strings("resources", lockNames),
	)

	return entry, nil
}

// Update накладывает изменения и перепроверяет запись целиком
// При конфликте запись остаётся без изменений
func (s *ScheduleService) Update(ctx context.Context, id int64, changes model.ScheduleChanges) (*model.ScheduleEntry, error) {
	current, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, &StorageError{Op: "get schedule entry", Err: err}
	}
	if current == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	for attempt := 1; ; attempt++ {
		candidate := normalize(changes.Apply(current))
		if err := s.validate(candidate); err != nil {
			s.logger.Warn("Schedule update rejected", zap.Int64("entry_id", id), zap.Error(err))
			return nil, err
		}

		lockNames := updateLockNames(id, candidate)
		err = s.store.WithinTx(ctx, lockNames, func(tx repository.EntryTx) error {
			locked, err := tx.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if locked == nil {
				return fmt.Errorf("%w: id %d", ErrNotFound, id)
			}

			// запись могла поменяться до захвата блокировок
			merged := normalize(changes.Apply(locked))
			if !slices.Equal(updateLockNames(id, merged), lockNames) {
				current = locked
				return errLockSetChanged
			}
			if err := s.validate(merged); err != nil {
				return err
			}

			conflicts, err := s.detect(ctx, tx, merged, id)
			if err != nil {
				return err
			}
			if len(conflicts) > 0 {
				return &ConflictError{Conflicts: conflicts}
			}

			if err := tx.Update(ctx, merged); err != nil {
				return err
			}
			candidate = merged
			return nil
		})

		if errors.Is(err, errLockSetChanged) && attempt < maxLockAttempts {
			s.logger.Debug("Schedule entry changed before lock, retrying",
				zap.Int64("entry_id", id),
				zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			err = s.classify(ctx, "update schedule entry", candidate, id, err)
			s.logFailure("Failed to update schedule entry", candidate, err)
			return nil, err
		}

		s.invalidate(ctx)

		s.logger.Info("Schedule entry updated",
			zap.Int64("entry_id", id),
			zap.Int("weekday", candidate.Weekday),
			zap.String("slot", candidate.SlotLabel()),
			zap.Strings("locks", lockNames),
		)
		return candidate, nil
	}
}

// Delete удаляет запись без перепроверки: удаление только ослабляет инвариант
func (s *ScheduleService) Delete(ctx context.Context, id int64) error {
	err := s.store.WithinTx(ctx, []string{entryLockName(id)}, func(tx repository.EntryTx) error {
		deleted, err := tx.Delete(ctx, id)
		if err != nil {
			return err
		}
		if !deleted {
			return fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return s.classify(ctx, "delete schedule entry", nil, id, err)
	}

	s.invalidate(ctx)

	s.logger.Info("Schedule entry deleted", zap.Int64("entry_id", id))
	return nil
}

// Get получает запись по ID
func (s *ScheduleService) Get(ctx context.Context, id int64) (*model.ScheduleEntry, error) {
	entry, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, &StorageError{Op: "get schedule entry", Err: err}
	}
	if entry == nil {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return entry, nil
}

// List получает записи по фильтру, всегда в порядке (weekday, start_slot)
func (s *ScheduleService) List(ctx context.Context, filter model.ScheduleFilter) ([]*model.ScheduleEntry, error) {
	var generation int64
	if s.cache != nil {
		entries, gen, ok := s.cache.Get(ctx, filter)
		if ok {
			return entries, nil
		}
		generation = gen
	}

	entries, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, &StorageError{Op: "list schedule entries", Err: err}
	}
	timetable.SortChronologically(entries)

	if s.cache != nil {
		s.cache.Set(ctx, filter, generation, entries)
	}
	return entries, nil
}

// Check возвращает конфликты предложенной записи без изменения данных
// excludeID = 0 ничего не исключает
func (s *ScheduleService) Check(ctx context.Context, candidate *model.ScheduleEntry, excludeID int64) ([]timetable.Conflict, error) {
	entry := normalize(candidate)
	if err := s.validate(entry); err != nil {
		return nil, err
	}

	conflicts, err := s.detect(ctx, s.store, entry, excludeID)
	if err != nil {
		return nil, &StorageError{Op: "check schedule conflicts", Err: err}
	}
	return conflicts, nil
}

// Audit ищет пары записей, нарушающих инвариант (например, после прямого импорта в БД)
func (s *ScheduleService) Audit(ctx context.Context) ([]timetable.Violation, error) {
	entries, err := s.store.List(ctx, model.ScheduleFilter{})
	if err != nil {
		return nil, &StorageError{Op: "audit schedule", Err: err}
	}

	violations := timetable.FindViolations(entries)
	if len(violations) > 0 {
		s.logger.Warn("Schedule invariant violations found",
			zap.Int("entries", len(entries)),
			zap.Int("violations", len(violations)))
	}
	return violations, nil
}

// MaxSlot последняя допустимая пара (0 - без ограничения)
func (s *ScheduleService) MaxSlot() int {
	return s.maxSlot
}

func (s *ScheduleService) detect(ctx context.Context, reader repository.EntryReader, entry *model.ScheduleEntry, excludeID int64) ([]timetable.Conflict, error) {
	// без ресурсов конфликтов не бывает, запрос не нужен
	if timetable.ResourcesOf(entry).Empty() {
		return nil, nil
	}

	existing, err := reader.FindOverlapping(ctx, entry.Weekday, entry.StartSlot, entry.EndSlot)
	if err != nil {
		return nil, fmt.Errorf("find overlapping entries: %w", err)
	}
	return timetable.Detect(existing, entry, excludeID), nil
}

func (s *ScheduleService) validate(entry *model.ScheduleEntry) error {
	if entry.CourseID <= 0 {
		return validationError(errors.New("course_id is required"))
	}
	for name, ref := range map[string]*int64{
		"class_id":   entry.ClassID,
		"teacher_id": entry.TeacherID,
		"room_id":    entry.RoomID,
	} {
		if ref != nil && *ref <= 0 {
			return validationError(fmt.Errorf("%s must be positive", name))
		}
	}
	if err := timetable.IntervalOf(entry).Validate(s.maxSlot); err != nil {
		return validationError(err)
	}
	return nil
}

// classify приводит ошибку транзакции к таксономии сервиса
func (s *ScheduleService) classify(ctx context.Context, op string, entry *model.ScheduleEntry, excludeID int64, err error) error {
	switch {
	case errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound), errors.Is(err, ErrValidation):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	case errors.Is(err, errLockSetChanged):
		return fmt.Errorf("%s: %w after %d attempts", op, ErrBusy, maxLockAttempts)
	case errors.Is(err, repository.ErrExclusionViolation) && entry != nil:
		// ограничение БД сработало раньше детектора: перечитываем конфликты
		conflicts, checkErr := s.detect(ctx, s.store, entry, excludeID)
		if checkErr != nil {
			return &StorageError{Op: op, Err: checkErr}
		}
		return &ConflictError{Conflicts: conflicts}
	default:
		return &StorageError{Op: op, Err: err}
	}
}

// invalidate вызывается после коммита: отмена запроса клиентом не должна оставить кеш устаревшим
func (s *ScheduleService) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(context.WithoutCancel(ctx))
	}
}

func (s *ScheduleService) logFailure(msg string, entry *model.ScheduleEntry, err error) {
	fields := []zap.Field{zap.Error(err)}
	if entry != nil {
		fields = append(fields,
			zap.Int64("entry_id", entry.ID),
			zap.Int("weekday", entry.Weekday),
			zap.String("slot", entry.SlotLabel()))
	}

	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		ids := make([]int64, 0, len(conflictErr.Conflicts))
		for _, c := range conflictErr.Conflicts {
			ids = append(ids, c.Entry.ID)
		}
		s.logger.Info(msg, append(fields, zap.Int64s("conflicting_ids", ids))...)
		return
	}
	if errors.Is(err, ErrStorage) {
		s.logger.Error(msg, fields...)
		return
	}
	s.logger.Warn(msg, fields...)
}

// normalize: пустая строка location эквивалентна отсутствию
func normalize(entry *model.ScheduleEntry) *model.ScheduleEntry {
	out := entry.Clone()
	if out.Location != nil && *out.Location == "" {
		out.Location = nil
	}
	return out
}

func entryLockName(id int64) string {
	return "entry:" + strconv.FormatInt(id, 10)
}

func updateLockNames(id int64, entry *model.ScheduleEntry) []string {
	names := append(timetable.ResourcesOf(entry).LockNames(), entryLockName(id))
	slices.Sort(names)
	return names
}
