package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// credStore locates, validates and wipes the persisted credential files for
// one number. Deleting them forces a fresh pairing on the next connect.
type credStore struct {
	dir    string
	number string
}

func (s credStore) dbPath() string {
	return filepath.Join(s.dir, s.number+".db")
}

func (s credStore) uri() string {
	return "file:" + s.dbPath() + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(10000)&_pragma=synchronous(FULL)&_pragma=wal_autocheckpoint(100)"
}

func (s credStore) exists() bool {
	_, err := os.Stat(s.dbPath())
	return err == nil
}

// wipe removes the database plus its WAL sidecars. Missing files are fine.
func (s credStore) wipe() error {
	var firstErr error
	for _, suffix := range []string{"", "-shm", "-wal"} {
		if err := os.Remove(s.dbPath() + suffix); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s credStore) open(ctx context.Context, log waLog.Logger) (*sqlstore.Container, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating auth dir: %w", err)
	}
	container, err := sqlstore.New(ctx, "sqlite3", s.uri(), log)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}
	return container, nil
}

// validate reports whether an existing session database holds a registered
// device. A database without one is a leftover from an aborted pairing and
// should be wiped so the next pairing starts clean.
func (s credStore) validate(ctx context.Context, log waLog.Logger) bool {
	if !s.exists() {
		return false
	}
	container, err := s.open(ctx, log)
	if err != nil {
		return false
	}
	defer container.Close()

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		return false
	}
	return device.ID != nil
}
