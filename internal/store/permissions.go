package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/archipel-project/vmagent/internal/models"
)

// PermissionStore persists the per-VM (subject, action) grant table backing
// the Permission Center.
type PermissionStore struct {
	db *QueryInterceptor
}

func NewPermissionStore(db *QueryInterceptor) *PermissionStore {
	return &PermissionStore{db: db}
}

// Set grants or revokes action for subject.
func (s *PermissionStore) Set(ctx context.Context, subject string, action models.PermissionName, granted bool) error {
	_, err := s.db.ExecContext(ctx, queryUpsertPermission, subject, string(action), granted)
	return err
}

// Check reports whether subject may invoke action. A missing row is treated
// as "not granted" rather than an error — callers seed defaults explicitly
// via Set at permission-creation time.
func (s *PermissionStore) Check(ctx context.Context, subject string, action models.PermissionName) (bool, error) {
	row := s.db.QueryRowContext(ctx, queryGetPermission, subject, string(action))
	var granted bool
	if err := row.Scan(&granted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return granted, nil
}
