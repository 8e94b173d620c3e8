package main

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

// runLock — эксклюзивная неблокирующая блокировка прогона для профиля.
// Держится весь прогон; ОС снимает её сама при завершении процесса,
// включая аварийное.
type runLock struct {
	fl *flock.Flock
}

// acquireRunLock пытается захватить lock-файл в каталоге профиля.
// acquired == false означает, что параллельный прогон ещё работает.
func acquireRunLock(profileDir string) (lock *runLock, acquired bool, err error) {
	fl := flock.New(filepath.Join(profileDir, "run.lock"))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, false, fmt.Errorf("try lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, false, nil
	}
	return &runLock{fl: fl}, true, nil
}

func (l *runLock) Release() {
	_ = l.fl.Unlock()
}
