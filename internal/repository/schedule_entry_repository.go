package repository

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/timetable/internal/model"
	"github.com/Freeeeeet/timetable/internal/repository/base"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

var (
	_ EntryStore = (*ScheduleEntryRepository)(nil)
	_ EntryTx    = (*entryQueries)(nil)
)

const entryColumns = `id, course_id, class_id, teacher_id, room_id, weekday, start_slot, end_slot, location, created_at`

// ScheduleEntryRepository хранит записи расписания в PostgreSQL
type ScheduleEntryRepository struct {
	base   *base.Repository
	logger *zap.Logger
}

// NewScheduleEntryRepository создаёт новый репозиторий
func NewScheduleEntryRepository(pool *pgxpool.Pool, logger *zap.Logger) *ScheduleEntryRepository {
	return &ScheduleEntryRepository{
		base:   base.NewRepository(pool),
		logger: logger,
	}
}

// WithinTx берёт advisory-блокировки на время транзакции и выполняет fn
// pg_advisory_xact_lock снимается сам при commit/rollback
func (r *ScheduleEntryRepository) WithinTx(ctx context.Context, lockNames []string, fn func(tx EntryTx) error) error {
	return r.base.WithTx(ctx, func(tx pgx.Tx) error {
		for _, name := range lockNames {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, name); err != nil {
				return fmt.Errorf("acquire lock %q: %w", name, err)
			}
		}
		r.logger.Debug("Schedule locks acquired", zap.Strings("locks", lockNames))

		return fn(&entryQueries{q: tx, forUpdate: true})
	})
}

// GetByID получает запись по ID
func (r *ScheduleEntryRepository) GetByID(ctx context.Context, id int64) (*model.ScheduleEntry, error) {
	return r.queries().GetByID(ctx, id)
}

// FindOverlapping записи того же дня с пересекающимся диапазоном пар
func (r *ScheduleEntryRepository) FindOverlapping(ctx context.Context, weekday, startSlot, endSlot int) ([]*model.ScheduleEntry, error) {
	return r.queries().FindOverlapping(ctx, weekday, startSlot, endSlot)
}

// List получает записи по фильтру в порядке (weekday, start_slot)
func (r *ScheduleEntryRepository) List(ctx context.Context, filter model.ScheduleFilter) ([]*model.ScheduleEntry, error) {
	return r.queries().List(ctx, filter)
}

func (r *ScheduleEntryRepository) queries() *entryQueries {
	return &entryQueries{q: r.base.Pool()}
}

// entryQueries запросы поверх пула или транзакции
type entryQueries struct {
	q         base.Querier
	forUpdate bool
}

func (e *entryQueries) GetByID(ctx context.Context, id int64) (*model.ScheduleEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM schedule_entries WHERE id = $1`
	if e.forUpdate {
		query += ` FOR UPDATE`
	}

	entry, err := scanEntry(e.q.QueryRow(ctx, query, id))
	if err != nil {
		if base.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get schedule entry by id: %w", err)
	}
	return entry, nil
}

func (e *entryQueries) FindOverlapping(ctx context.Context, weekday, startSlot, endSlot int) ([]*model.ScheduleEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM schedule_entries
		WHERE weekday = $1
		  AND start_slot <= $3
		  AND end_slot >= $2
		ORDER BY id
	`

	rows, err := e.q.Query(ctx, query, weekday, startSlot, endSlot)
	if err != nil {
		return nil, fmt.Errorf("find overlapping entries: %w", err)
	}
	return collectEntries(rows)
}

func (e *entryQueries) List(ctx context.Context, filter model.ScheduleFilter) ([]*model.ScheduleEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM schedule_entries
		WHERE ($1::bigint IS NULL OR class_id = $1)
		  AND ($2::bigint IS NULL OR teacher_id = $2)
		  AND ($3::bigint IS NULL OR room_id = $3)
		ORDER BY weekday, start_slot, id
	`

	rows, err := e.q.Query(ctx, query, filter.ClassID, filter.TeacherID, filter.RoomID)
	if err != nil {
		return nil, fmt.Errorf("list schedule entries: %w", err)
	}
	return collectEntries(rows)
}

func (e *entryQueries) Create(ctx context.Context, entry *model.ScheduleEntry) error {
	query := `
		INSERT INTO schedule_entries (course_id, class_id, teacher_id, room_id, weekday, start_slot, end_slot, location)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := e.q.QueryRow(
		ctx, query,
		entry.CourseID,
		entry.ClassID,
		entry.TeacherID,
		entry.RoomID,
		entry.Weekday,
		entry.StartSlot,
		entry.EndSlot,
		entry.Location,
	).Scan(&entry.ID, &entry.CreatedAt)

	if err != nil {
		if base.IsExclusionViolation(err) {
			return fmt.Errorf("create schedule entry: %w", ErrExclusionViolation)
		}
		return fmt.Errorf("create schedule entry: %w", err)
	}
	return nil
}

func (e *entryQueries) Update(ctx context.Context, entry *model.ScheduleEntry) error {
	query := `
		UPDATE schedule_entries
		SET course_id = $1, class_id = $2, teacher_id = $3, room_id = $4,
		    weekday = $5, start_slot = $6, end_slot = $7, location = $8
		WHERE id = $9
	`

	affected, err := base.ExecAffected(
		ctx, e.q, query,
		entry.CourseID,
		entry.ClassID,
		entry.TeacherID,
		entry.RoomID,
		entry.Weekday,
		entry.StartSlot,
		entry.EndSlot,
		entry.Location,
		entry.ID,
	)
	if err != nil {
		if base.IsExclusionViolation(err) {
			return fmt.Errorf("update schedule entry: %w", ErrExclusionViolation)
		}
		return fmt.Errorf("update schedule entry: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("update schedule entry %d: not found", entry.ID)
	}
	return nil
}

func (e *entryQueries) Delete(ctx context.Context, id int64) (bool, error) {
	affected, err := base.ExecAffected(ctx, e.q, `DELETE FROM schedule_entries WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete schedule entry: %w", err)
	}
	return affected > 0, nil
}

func scanEntry(row pgx.Row) (*model.ScheduleEntry, error) {
	var entry model.ScheduleEntry
	err := row.Scan(
		&entry.ID,
		&entry.CourseID,
		&entry.ClassID,
		&entry.TeacherID,
		&entry.RoomID,
		&entry.Weekday,
		&entry.StartSlot,
		&entry.EndSlot,
		&entry.Location,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func collectEntries(rows pgx.Rows) ([]*model.ScheduleEntry, error) {
	defer rows.Close()

	var entries []*model.ScheduleEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan schedule entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedule entries: %w", err)
	}
	return entries, nil
}
