package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store is the facade over a VM folder's two sqlite3 databases: the
// trigger/watcher store and the separate permission grant store, kept in
// their own files per config.
type Store struct {
	triggersQI *QueryInterceptor
	permsQI    *QueryInterceptor

	triggers    *TriggerStore
	watchers    *WatcherStore
	permissions *PermissionStore
}

// Open opens (creating if missing) triggersFile and permissionsFile under
// folder and runs each one's idempotent schema migration.
func Open(ctx context.Context, folder, triggersFile, permissionsFile string) (*Store, error) {
	triggersQI, err := openDB(ctx, folder, triggersFile, MigrateTriggerStore)
	if err != nil {
		return nil, err
	}

	permsQI, err := openDB(ctx, folder, permissionsFile, MigratePermissionStore)
	if err != nil {
		_ = triggersQI.Close()
		return nil, err
	}

	return &Store{
		triggersQI:  triggersQI,
		permsQI:     permsQI,
		triggers:    NewTriggerStore(triggersQI),
		watchers:    NewWatcherStore(triggersQI),
		permissions: NewPermissionStore(permsQI),
	}, nil
}

func openDB(ctx context.Context, folder, filename string, migrate func(context.Context, *QueryInterceptor) error) (*QueryInterceptor, error) {
	path := filepath.Join(folder, filename)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	qi := NewQueryInterceptor(db)
	if err := migrate(ctx, qi); err != nil {
		_ = qi.Close()
		return nil, fmt.Errorf("store: migrate %s: %w", path, err)
	}
	return qi, nil
}

func (s *Store) Triggers() *TriggerStore       { return s.triggers }
func (s *Store) Watchers() *WatcherStore       { return s.watchers }
func (s *Store) Permissions() *PermissionStore { return s.permissions }

func (s *Store) Close() error {
	err := s.triggersQI.Close()
	if permErr := s.permsQI.Close(); err == nil {
		err = permErr
	}
	return err
}
