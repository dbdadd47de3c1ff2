//go:build windows

package vault

import (
	"fmt"
	"os"
)

// lockDataDir opens the lock file. Windows gets no cross-process lock; the
// bbolt databases still refuse a second opener.
func lockDataDir(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	return f, nil
}

// unlockDataDir closes the lock file.
func unlockDataDir(f *os.File) error {
	if f == nil {
		return nil
	}
	return f.Close()
}
