package locks

import "sync"

// SubjectLocks hands out one mutex per subject. Entries are reference counted and removed
// once no goroutine holds or waits on them, so the map does not grow with the subject count.
type SubjectLocks struct {
	mu      sync.Mutex
	entries map[uint]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func New() *SubjectLocks {
	return &SubjectLocks{entries: make(map[uint]*entry)}
}

// Lock blocks until the subject's lock is held and returns the function that releases it.
func (l *SubjectLocks) Lock(subjectID uint) (unlock func()) {
	l.mu.Lock()
	e, ok := l.entries[subjectID]
	if !ok {
		e = &entry{}
		l.entries[subjectID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			l.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(l.entries, subjectID)
			}
			l.mu.Unlock()
		})
	}
}

// With runs fn while holding the subject's lock.
func (l *SubjectLocks) With(subjectID uint, fn func() error) error {
	unlock := l.Lock(subjectID)
	defer unlock()
	return fn()
}

// Len reports how many subjects currently have a held or awaited lock.
func (l *SubjectLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
