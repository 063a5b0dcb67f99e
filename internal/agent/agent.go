// Package agent implements the VM Control Agent: the Request Router,
// Action Handlers, Event Ingress, Migration Coordinator, Clone Worker, and
// Vocabulary Registrar contract. One Agent
// instance supervises exactly one VM.
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/archipel-project/vmagent/internal/bus"
	"github.com/archipel-project/vmagent/internal/hooks"
	"github.com/archipel-project/vmagent/internal/hypervisor"
	"github.com/archipel-project/vmagent/internal/lockgate"
	"github.com/archipel-project/vmagent/internal/models"
	"github.com/archipel-project/vmagent/internal/permission"
	"github.com/archipel-project/vmagent/internal/presence"
	"github.com/archipel-project/vmagent/internal/store"
	"github.com/archipel-project/vmagent/pkg/scheduler"
)

// Config carries the agent's tunable parameters.
type Config struct {
	BaseFolder        string
	PermissionsDBFile string
	TriggersDBFile    string
	MaxLockTime       time.Duration
	MemoryPollInterval time.Duration
	MemoryPollRetries  int
}

// DefaultConfig mirrors the values the original carries as module-level
// constants.
func DefaultConfig() Config {
	return Config{
		PermissionsDBFile:  "permissions.sqlite3",
		TriggersDBFile:     "triggers.sqlite3",
		MaxLockTime:        30 * time.Second,
		MemoryPollInterval: time.Second,
		MemoryPollRetries:  3,
	}
}

// handlerFunc is the signature every watcher on/off action and every
// chat-vocabulary action must resolve to: a parameterless Action Handler
// invocation.
type handlerFunc func(ctx context.Context) error

// Agent is the per-VM controller. Exported methods are safe for concurrent
// use from its three calling contexts: the bus reader, the driver's
// event-delivery thread, and background tasks.
type Agent struct {
	identity models.Identity
	cfg      Config

	driver    hypervisor.Driver
	bus       bus.Client
	scheduler *scheduler.Scheduler

	lock  *lockgate.Gate
	hooks *hooks.Bus
	perms *permission.Center
	store *store.Store

	handlers map[string]handlerFunc

	mu          sync.Mutex
	domain      hypervisor.Domain
	definition  string
	migrating   bool
	lastStatus  models.LibvirtStatus
	currentShow models.Show
	deregister  func()

	triggers map[string]models.Trigger
	watchers map[string]models.Watcher
}

// New constructs the agent: creates the VM Folder if missing, opens the
// Trigger Store, seeds the Permission Center, and registers the closed
// handler set watchers/vocabulary resolve against. It does not yet connect
// to the hypervisor or the bus — that happens in Authenticate, following
// this controller's lifecycle order: construct, connect bus, authenticate,
// recover triggers, connect domain, publish vCard.
func New(identity models.Identity, cfg Config, driver hypervisor.Driver, busClient bus.Client, sched *scheduler.Scheduler) (*Agent, error) {
	folder := filepath.Join(cfg.BaseFolder, identity.UUID.String())
	if err := os.MkdirAll(folder, 0o700); err != nil {
		return nil, fmt.Errorf("agent: create vm folder: %w", err)
	}

	st, err := store.Open(context.Background(), folder, cfg.TriggersDBFile, cfg.PermissionsDBFile)
	if err != nil {
		return nil, err
	}

	a := &Agent{
		identity:    identity,
		cfg:         cfg,
		driver:      driver,
		bus:         busClient,
		scheduler:   sched,
		lock:        lockgate.New(cfg.MaxLockTime),
		hooks:       hooks.New(),
		store:       st,
		lastStatus:  models.StatusUndefined,
		currentShow: models.ShowExtendedAway,
		triggers:    make(map[string]models.Trigger),
		watchers:    make(map[string]models.Watcher),
	}
	a.perms = permission.New(st.Permissions())
	a.registerHandlers()

	if err := permission.SeedDefaults(context.Background(), a.perms, identity.JID); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("agent: seed permissions: %w", err)
	}

	return a, nil
}

// registerHandlers builds the closed name→Action-Handler registry that
// watcher on/off actions and chat-vocabulary phrases resolve against.
func (a *Agent) registerHandlers() {
	a.handlers = map[string]handlerFunc{
		"create":    func(ctx context.Context) error { _, err := a.Create(ctx); return err },
		"shutdown":  a.Shutdown,
		"destroy":   a.Destroy,
		"reboot":    a.rebootNoPermCheck,
		"suspend":   a.Suspend,
		"resume":    a.Resume,
		"undefine":  a.Undefine,
		"xmldesc":   func(ctx context.Context) error { _, err := a.XMLDesc(ctx); return err },
		"info":      func(ctx context.Context) error { _, err := a.Info(ctx); return err },
		"networkinfo": func(ctx context.Context) error { _, err := a.NetworkInfo(ctx); return err },
	}
}

// Authenticate runs the sequence the core subscribes to the external
// entity layer's authentication hook: recover triggers/watchers,
// connect to the domain, publish the vCard/avatar. vCard publication
// itself is out of scope; only its invocation point is
// honored here.
func (a *Agent) Authenticate(ctx context.Context) error {
	if err := a.recoverTriggersAndWatchers(ctx); err != nil {
		zap.S().Named("agent").Errorw("failed to recover triggers/watchers", "error", err)
	}
	a.connectDomain(ctx)
	a.hooks.Fire(hooks.XMPPConnect, a.identity.JID)
	return nil
}

// connectDomain attempts to (re)establish the Domain Handle, refreshes the
// cached status, and registers the lifecycle callback. A missing domain is
// not an error: it just means the VM is currently undefined.
func (a *Agent) connectDomain(ctx context.Context) {
	dom, err := a.driver.Connect(ctx, a.identity.UUID.String())
	if err != nil {
		a.mu.Lock()
		a.domain = nil
		a.mu.Unlock()
		a.applyPresence(ctx, models.StatusUndefined, presence.PhaseNone)
		return
	}

	a.mu.Lock()
	a.domain = dom
	a.deregister = a.driver.RegisterLifecycleCallback(dom, a.onLifecycleEvent)
	a.mu.Unlock()

	info, err := dom.Info(ctx)
	if err != nil {
		zap.S().Named("agent").Warnw("failed to read domain info on connect", "error", err)
		return
	}
	a.applyPresence(ctx, info.State, presence.PhaseNone)
}

// recoverTriggersAndWatchers replays the Trigger Store: the
// distinguished libvirt_run trigger is seeded if missing, and every
// persisted watcher whose on/off action resolves against the handler
// registry is reinstated; others are logged and skipped.
func (a *Agent) recoverTriggersAndWatchers(ctx context.Context) error {
	triggers, err := a.store.Triggers().LoadAll(ctx)
	if err != nil {
		return err
	}

	a.mu.Lock()
	for _, t := range triggers {
		a.triggers[t.Name] = t
	}
	_, hasRun := a.triggers[models.LibvirtRunTrigger]
	a.mu.Unlock()

	if !hasRun {
		runTrigger := models.Trigger{
			Name:          models.LibvirtRunTrigger,
			Description:   "on iff the domain is running or blocked and not migrating",
			Mode:          models.TriggerModeAuto,
			CheckMethod:   "",
			CheckInterval: -1,
			State:         models.Off,
		}
		if err := a.store.Triggers().Save(ctx, runTrigger); err != nil {
			return err
		}
		a.mu.Lock()
		a.triggers[runTrigger.Name] = runTrigger
		a.mu.Unlock()
	}

	watchers, err := a.store.Watchers().LoadAll(ctx)
	if err != nil {
		return err
	}

	for _, w := range watchers {
		if _, ok := a.handlers[w.OnAction]; w.OnAction != "" && !ok {
			zap.S().Named("agent").Warnw("watcher on-action does not resolve, skipping", "watcher", w.Name, "action", w.OnAction)
			continue
		}
		if _, ok := a.handlers[w.OffAction]; w.OffAction != "" && !ok {
			zap.S().Named("agent").Warnw("watcher off-action does not resolve, skipping", "watcher", w.Name, "action", w.OffAction)
			continue
		}
		a.mu.Lock()
		a.watchers[w.Name] = w
		a.mu.Unlock()
	}

	return nil
}

// AddTrigger and RemoveTrigger implement the Trigger Store's write-through
// mutations.
func (a *Agent) AddTrigger(ctx context.Context, t models.Trigger) error {
	if err := a.store.Triggers().Save(ctx, t); err != nil {
		return err
	}
	a.mu.Lock()
	a.triggers[t.Name] = t
	a.mu.Unlock()
	return nil
}

func (a *Agent) RemoveTrigger(ctx context.Context, name string) error {
	if err := a.store.Triggers().Delete(ctx, name); err != nil {
		return err
	}
	a.mu.Lock()
	delete(a.triggers, name)
	a.mu.Unlock()
	return nil
}

func (a *Agent) AddWatcher(ctx context.Context, w models.Watcher) error {
	if err := a.store.Watchers().Save(ctx, w); err != nil {
		return err
	}
	a.mu.Lock()
	a.watchers[w.Name] = w
	a.mu.Unlock()
	return nil
}

// RemoveWatcher deletes the persisted watcher row and its in-memory entry.
// This package starts no remote observation for watchers, so there is
// nothing further to cancel.
func (a *Agent) RemoveWatcher(ctx context.Context, name string) error {
	if err := a.store.Watchers().Delete(ctx, name); err != nil {
		return err
	}
	a.mu.Lock()
	delete(a.watchers, name)
	a.mu.Unlock()
	return nil
}

// SnapshotTriggers returns a copy of the in-memory trigger table, for the
// diagnostics server's read-only /triggers route.
func (a *Agent) SnapshotTriggers() []models.Trigger {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Trigger, 0, len(a.triggers))
	for _, t := range a.triggers {
		out = append(out, t)
	}
	return out
}

// HasDomain reports whether a Domain Handle is currently established.
func (a *Agent) HasDomain() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.domain != nil
}

// IsMigrating reports the Migration Flag.
func (a *Agent) IsMigrating() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.migrating
}

// Identity exposes the agent's immutable VM identity.
func (a *Agent) Identity() models.Identity { return a.identity }

// Terminate closes the store and deregisters the driver callback. The
// caller (the hypervisor supervisor) is responsible for disconnecting the
// bus session.
func (a *Agent) Terminate(ctx context.Context) error {
	a.hooks.Fire(hooks.VMTerminate, a.identity.JID)

	a.mu.Lock()
	deregister := a.deregister
	a.deregister = nil
	a.mu.Unlock()
	if deregister != nil {
		deregister()
	}

	return a.store.Close()
}

// Free fires HOOK_VM_FREE and returns; the hypervisor supervisor is
// responsible for calling Terminate and removing the VM Folder.
func (a *Agent) Free(ctx context.Context) error {
	a.hooks.Fire(hooks.VMFree, a.identity.JID)
	return nil
}

// Hooks exposes the Hook Bus for external subscription (e.g. metrics).
func (a *Agent) Hooks() *hooks.Bus { return a.hooks }

// applyPresence maps status through the Presence Mapper, publishes the
// result, and updates the libvirt_run trigger. It is the path for every
// presence change except the migration failure branch in runMigration,
// which publishes its literal "Can't migrate." presence directly.
func (a *Agent) applyPresence(ctx context.Context, status models.LibvirtStatus, phase presence.Phase) {
	a.mu.Lock()
	a.lastStatus = status
	p, trigState := presence.Map(status, phase, a.currentShow)
	a.currentShow = p.Show
	a.mu.Unlock()

	if err := a.bus.PublishPresence(ctx, p); err != nil {
		zap.S().Named("agent").Errorw("failed to publish presence", "error", err)
	}

	if phase == presence.PhaseNone {
		a.setLibvirtRunTrigger(ctx, trigState)
	}
}

func (a *Agent) setLibvirtRunTrigger(ctx context.Context, state models.TriggerState) {
	if state == models.TriggerUnchanged {
		return
	}
	a.mu.Lock()
	t, ok := a.triggers[models.LibvirtRunTrigger]
	if !ok {
		a.mu.Unlock()
		return
	}
	newState := models.Off
	if state == models.TriggerOn {
		newState = models.On
	}
	if t.State == newState {
		a.mu.Unlock()
		return
	}
	t.State = newState
	a.triggers[models.LibvirtRunTrigger] = t
	a.mu.Unlock()

	if err := a.store.Triggers().Save(ctx, t); err != nil {
		zap.S().Named("agent").Errorw("failed to persist libvirt_run trigger", "error", err)
	}
}
