package repository_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Freeeeeet/timetable/internal/app"
	"github.com/Freeeeeet/timetable/internal/model"
	"github.com/Freeeeeet/timetable/internal/repository"
	"github.com/Freeeeeet/timetable/internal/service"
)

// Тесты на живой PostgreSQL; таблица schedule_entries очищается перед каждым тестом
const testDSNEnv = "TEST_DB_DSN"

func ptr[T any](v T) *T { return &v }

func newTestRepository(t *testing.T) *repository.ScheduleEntryRepository {
	t.Helper()

	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s is not set", testDSNEnv)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrator, err := app.NewMigrator(pool, "", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, migrator.Run(ctx))
	require.NoError(t, migrator.Close())

	_, err = pool.Exec(ctx, `TRUNCATE schedule_entries RESTART IDENTITY`)
	require.NoError(t, err)

	return repository.NewScheduleEntryRepository(pool, zap.NewNop())
}

func insert(t *testing.T, repo *repository.ScheduleEntryRepository, entries ...*model.ScheduleEntry) {
	t.Helper()
	ctx := context.Background()
	err := repo.WithinTx(ctx, nil, func(tx repository.EntryTx) error {
		for _, e := range entries {
			if err := tx.Create(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func entryIDs(entries []*model.ScheduleEntry) []int64 {
	out := make([]int64, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.ID)
	}
	return out
}

func TestRepositoryCRUD(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	entry := &model.ScheduleEntry{CourseID: 3, TeacherID: ptr(int64(5)), Weekday: 2, StartSlot: 1, EndSlot: 2, Location: ptr("Lab A")}
	insert(t, repo, entry)
	require.NotZero(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	got, err := repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(5), *got.TeacherID)
	assert.Nil(t, got.ClassID)
	assert.Equal(t, "Lab A", *got.Location)

	missing, err := repo.GetByID(ctx, entry.ID+100)
	require.NoError(t, err)
	assert.Nil(t, missing)

	err = repo.WithinTx(ctx, []string{"entry:1"}, func(tx repository.EntryTx) error {
		locked, err := tx.GetByID(ctx, entry.ID)
		if err != nil {
			return err
		}
		locked.TeacherID = nil
		locked.RoomID = ptr(int64(12))
		return tx.Update(ctx, locked)
	})
	require.NoError(t, err)

	got, err = repo.GetByID(ctx, entry.ID)
	require.NoError(t, err)
	assert.Nil(t, got.TeacherID)
	assert.Equal(t, int64(12), *got.RoomID)
	assert.True(t, entry.CreatedAt.Equal(got.CreatedAt))

	var deleted, deletedAgain bool
	require.NoError(t, repo.WithinTx(ctx, nil, func(tx repository.EntryTx) error {
		var err error
		deleted, err = tx.Delete(ctx, entry.ID)
		return err
	}))
	require.NoError(t, repo.WithinTx(ctx, nil, func(tx repository.EntryTx) error {
		var err error
		deletedAgain, err = tx.Delete(ctx, entry.ID)
		return err
	}))
	assert.True(t, deleted)
	assert.False(t, deletedAgain)
}

func TestRepositoryRollbackOnError(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	errAbort := errors.New("abort")
	err := repo.WithinTx(ctx, []string{"room:1"}, func(tx repository.EntryTx) error {
		if err := tx.Create(ctx, &model.ScheduleEntry{CourseID: 1, RoomID: ptr(int64(1)), Weekday: 1, StartSlot: 1, EndSlot: 1}); err != nil {
			return err
		}
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	all, err := repo.List(ctx, model.ScheduleFilter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFindOverlappingPredicate(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	a := &model.ScheduleEntry{CourseID: 1, Weekday: 1, StartSlot: 1, EndSlot: 2}
	b := &model.ScheduleEntry{CourseID: 2, Weekday: 1, StartSlot: 3, EndSlot: 4}
	c := &model.ScheduleEntry{CourseID: 3, Weekday: 2, StartSlot: 1, EndSlot: 4}
	insert(t, repo, a, b, c)

	tests := []struct {
		name                string
		weekday, start, end int
		want                []int64
	}{
		{"touches both at shared slots", 1, 2, 3, []int64{a.ID, b.ID}},
		{"inside first", 1, 1, 1, []int64{a.ID}},
		{"boundary of second", 1, 4, 4, []int64{b.ID}},
		{"after all", 1, 5, 6, []int64{}},
		{"other weekday", 2, 2, 2, []int64{c.ID}},
		{"empty weekday", 3, 1, 14, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindOverlapping(ctx, tt.weekday, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, entryIDs(got))
		})
	}
}

func TestListFilterAndOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	late := &model.ScheduleEntry{CourseID: 1, ClassID: ptr(int64(7)), Weekday: 3, StartSlot: 1, EndSlot: 1}
	early := &model.ScheduleEntry{CourseID: 2, ClassID: ptr(int64(7)), Weekday: 1, StartSlot: 4, EndSlot: 4}
	other := &model.ScheduleEntry{CourseID: 3, ClassID: ptr(int64(8)), Weekday: 1, StartSlot: 1, EndSlot: 1}
	insert(t, repo, late, early, other)

	all, err := repo.List(ctx, model.ScheduleFilter{})
	require.NoError(t, err)
	assert.Equal(t, []int64{other.ID, early.ID, late.ID}, entryIDs(all))

	class7, err := repo.List(ctx, model.ScheduleFilter{ClassID: ptr(int64(7))})
	require.NoError(t, err)
	assert.Equal(t, []int64{early.ID, late.ID}, entryIDs(class7))

	none, err := repo.List(ctx, model.ScheduleFilter{ClassID: ptr(int64(7)), TeacherID: ptr(int64(1))})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExclusionConstraintRejectsOverlap(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	insert(t, repo, &model.ScheduleEntry{CourseID: 1, TeacherID: ptr(int64(5)), Weekday: 3, StartSlot: 2, EndSlot: 3})

	err := repo.WithinTx(ctx, nil, func(tx repository.EntryTx) error {
		return tx.Create(ctx, &model.ScheduleEntry{CourseID: 2, TeacherID: ptr(int64(5)), Weekday: 3, StartSlot: 3, EndSlot: 4})
	})
	assert.ErrorIs(t, err, repository.ErrExclusionViolation)

	// пустая location не ресурс
	insert(t, repo,
		&model.ScheduleEntry{CourseID: 3, Weekday: 4, StartSlot: 1, EndSlot: 1, Location: ptr("")},
		&model.ScheduleEntry{CourseID: 4, Weekday: 4, StartSlot: 1, EndSlot: 1, Location: ptr("")},
	)
}

// blindStore не видит существующих записей внутри транзакции,
// так что запись до ограничения БД доходит без проверки
type blindStore struct {
	*repository.ScheduleEntryRepository
}

func (b blindStore) WithinTx(ctx context.Context, lockNames []string, fn func(tx repository.EntryTx) error) error {
	return b.ScheduleEntryRepository.WithinTx(ctx, lockNames, func(tx repository.EntryTx) error {
		return fn(blindTx{tx})
	})
}

type blindTx struct {
	repository.EntryTx
}

func (blindTx) FindOverlapping(context.Context, int, int, int) ([]*model.ScheduleEntry, error) {
	return nil, nil
}

func TestExclusionViolationBecomesConflict(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	existing := &model.ScheduleEntry{CourseID: 1, RoomID: ptr(int64(12)), Weekday: 5, StartSlot: 1, EndSlot: 2}
	insert(t, repo, existing)

	svc := service.NewScheduleService(blindStore{repo}, nil, 14, zap.NewNop())
	_, err := svc.Create(ctx, &model.ScheduleEntry{CourseID: 2, RoomID: ptr(int64(12)), Weekday: 5, StartSlot: 2, EndSlot: 3})

	require.ErrorIs(t, err, service.ErrConflict)
	var conflictErr *service.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Len(t, conflictErr.Conflicts, 1)
	assert.Equal(t, existing.ID, conflictErr.Conflicts[0].Entry.ID)
}

func TestAdvisoryLocksSerializeCreates(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	svc := service.NewScheduleService(repo, nil, 14, zap.NewNop())

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, err := svc.Create(ctx, &model.ScheduleEntry{
				CourseID: int64(slot), TeacherID: ptr(int64(9)), Weekday: 1, StartSlot: 1, EndSlot: 2,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, service.ErrConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i + 1)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, writers-1, conflicts)
}
