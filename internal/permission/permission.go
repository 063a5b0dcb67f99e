// Package permission implements the Permission Center: named-permission
// checks per (subject, action), backed by the per-VM on-disk grant table.
package permission

import (
	"context"
	"sync"

	"github.com/archipel-project/vmagent/internal/models"
	"github.com/archipel-project/vmagent/internal/store"
)

// entry is the static, in-process metadata for one permission name.
// Descriptions are documentation, not grant state, so unlike Granted they
// are never round-tripped through the store.
type entry struct {
	description    string
	defaultGranted bool
}

// Center is the Permission Center for a single VM's agent instance.
type Center struct {
	mu    sync.RWMutex
	store *store.PermissionStore
	meta  map[models.PermissionName]entry
}

func New(s *store.PermissionStore) *Center {
	return &Center{store: s, meta: make(map[models.PermissionName]entry)}
}

// CreatePermission registers name with a description and seeds the
// store with defaultGranted if no row already exists for (subject, name).
// Called once per permission per subject at agent construction.
func (c *Center) CreatePermission(ctx context.Context, subject string, name models.PermissionName, description string, defaultGranted bool) error {
	c.mu.Lock()
	c.meta[name] = entry{description: description, defaultGranted: defaultGranted}
	c.mu.Unlock()

	granted, err := c.store.Check(ctx, subject, name)
	if err != nil {
		return err
	}
	if !granted && defaultGranted {
		return c.store.Set(ctx, subject, name, true)
	}
	return nil
}

// Check reports whether subject may invoke action against this VM.
func (c *Center) Check(ctx context.Context, subject string, action models.PermissionName) (bool, error) {
	return c.store.Check(ctx, subject, action)
}

// Grant sets a permission explicitly, independent of the registered default.
func (c *Center) Grant(ctx context.Context, subject string, action models.PermissionName, granted bool) error {
	return c.store.Set(ctx, subject, action, granted)
}

// Description returns the documentation string registered for name, or ""
// if it was never registered via CreatePermission.
func (c *Center) Description(name models.PermissionName) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.meta[name].description
}

// SeedDefaults registers every permission in the closed set (models.Permissions)
// for subject with defaultGranted, following the convention that a freshly
// constructed VM grants its own owning subject everything. Agent
// construction calls this once before serving requests.
func SeedDefaults(ctx context.Context, c *Center, subject string) error {
	for _, name := range models.Permissions {
		if err := c.CreatePermission(ctx, subject, name, string(name), true); err != nil {
			return err
		}
	}
	return nil
}
