package keylock

import (
	"context"
	"sort"
	"sync"
)

// Locker эксклюзивные блокировки по имени ресурса ("teacher:5", "room:3", ...)
// Записи удаляются из map, когда на них никто не ссылается.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// New создаёт новый Locker
func New() *Locker {
	return &Locker{
		locks: make(map[string]*keyLock),
	}
}

// Lock захватывает все имена в отсортированном порядке (без дедлоков между вызовами)
// Возвращает функцию освобождения; при отмене ctx уже взятые блокировки отпускаются.
func (l *Locker) Lock(ctx context.Context, names ...string) (func(), error) {
	sorted := dedupSorted(names)

	acquired := make([]string, 0, len(sorted))
	release := func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			l.unlock(acquired[i])
		}
	}

	for _, name := range sorted {
		kl := l.ref(name)
		select {
		case kl.sem <- struct{}{}:
			acquired = append(acquired, name)
		case <-ctx.Done():
			l.unref(name)
			release()
			return nil, ctx.Err()
		}
	}

	var once sync.Once
	return func() { once.Do(release) }, nil
}

// Held количество имён, на которые сейчас есть ссылки (для тестов)
func (l *Locker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *Locker) ref(name string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl, ok := l.locks[name]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[name] = kl
	}
	kl.refs++
	return kl
}

func (l *Locker) unref(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kl := l.locks[name]
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, name)
	}
}

func (l *Locker) unlock(name string) {
	l.mu.Lock()
	kl := l.locks[name]
	l.mu.Unlock()

	<-kl.sem
	l.unref(name)
}

func dedupSorted(names []string) []string {
	out := make([]string, 0, len(names))
	out = append(out, names...)
	sort.Strings(out)

	n := 0
	for i, name := range out {
		if i > 0 && name == out[n-1] {
			continue
		}
		out[n] = name
		n++
	}
	return out[:n]
}
