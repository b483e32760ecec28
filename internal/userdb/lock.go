package userdb

import (
	"errors"
	"fmt"
	"os"
)

// ErrDatabaseLocked indicates another process already holds the user
// database.
var ErrDatabaseLocked = errors.New("user database locked by another process")

// fileLock is an exclusive advisory lock next to the database file. SQLite
// serializes writers within one process; the lock keeps a second pharma-agent
// instance from opening the same database at all.
type fileLock struct {
	f *os.File
}

func acquireLock(dbPath string) (*fileLock, error) {
	f, err := os.OpenFile(dbPath+".lock", os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := lockFile(f); err != nil {
		_ = f.Close()
		return nil, err
	}

	// Best-effort pid marker for troubleshooting a stale lock.
	_ = f.Truncate(0)
	_, _ = f.Seek(0, 0)
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Sync()

	return &fileLock{f: f}, nil
}

func (l *fileLock) release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unlockErr := unlockFile(l.f)
	closeErr := l.f.Close()
	l.f = nil
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
