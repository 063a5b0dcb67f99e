// Package hypervisor defines the narrow collaborator interfaces the VM
// Control Agent uses to talk to the hypervisor driver library. The driver
// itself — the VM runtime-management binding — is explicitly out of scope
//; this package only carries the boundary the agent programs
// against, plus an in-memory fake good enough for tests.
package hypervisor

import (
	"context"
	"errors"

	"github.com/archipel-project/vmagent/internal/models"
)

// ErrNoSuchDomain is returned by Driver.Connect when the uuid has no
// defined domain, and by Domain operations invoked after the domain was
// undefined out from under the caller.
var ErrNoSuchDomain = errors.New("no such domain")

// Class identifies the driver family. The Migration Coordinator and the
// Event Ingress's synthesis logic both key off it.
type Class string

const (
	ClassQEMU  Class = "qemu"
	ClassXen   Class = "xen"
	ClassOther Class = "other"
)

// Action identifies a mutating operation for the purpose of
// Driver.SynthesizesEvent — some driver classes deliver lifecycle events
// for some actions but not others (real Xen drivers are a documented
// example: create/destroy are native, suspend/resume are not).
type Action int

const (
	ActionCreate Action = iota
	ActionShutdown
	ActionDestroy
	ActionSuspend
	ActionResume
	ActionDefine
	ActionUndefine
)

// EventKind enumerates the lifecycle events the driver delivers
// asynchronously, including the migration-qualified variants the Event
// Ingress always excludes, whether or not is_migrating is set.
type EventKind int

const (
	EventStarted EventKind = iota
	EventStartedByMigration
	EventSuspended
	EventSuspendedByMigration
	EventResumed
	EventResumedByMigration
	EventStopped
	EventStoppedByMigration
	EventCrashed
	EventShutoff
	EventUndefined
	EventDefined
)

// Event is one lifecycle notification delivered by the driver's own thread.
type Event struct {
	Kind   EventKind
	Detail string
}

// LifecycleCallback is invoked on the driver's event-delivery thread.
// Implementations must not assume single-threaded access to agent state;
// internal/agent guards its shared fields with its own mutex, but does not
// serialize callback invocations themselves.
type LifecycleCallback func(ev Event)

// Domain is a connected handle to one running-or-defined VM.
type Domain interface {
	ID(ctx context.Context) (int, error)
	Create(ctx context.Context) error
	Shutdown(ctx context.Context) error
	Destroy(ctx context.Context) error
	Reboot(ctx context.Context) error
	Suspend(ctx context.Context) error
	Resume(ctx context.Context) error
	Undefine(ctx context.Context) error
	XMLDesc(ctx context.Context, secure bool) (string, error)
	Info(ctx context.Context) (models.DomainInfo, error)
	SetMemory(ctx context.Context, kib uint64) error
	SetVCPUs(ctx context.Context, n uint) error
	SetAutostart(ctx context.Context, enabled bool) error
	MaxVCPUs(ctx context.Context) (uint, error)
	InterfaceStats(ctx context.Context, iface string) (models.InterfaceStats, error)
	MigrateToURI(ctx context.Context, uri string, flags MigrateFlags, bandwidth uint64) error
}

// MigrateFlags mirrors the flag bundle a live migration requires:
// peer-to-peer | persist-destination | live, auth=none.
type MigrateFlags struct {
	PeerToPeer         bool
	PersistDestination bool
	Live               bool
}

// Driver is the per-agent connection to the local hypervisor's management
// API — the one external collaborator this package only carries the
// boundary shape for.
type Driver interface {
	Class() Class
	// Connect looks up the domain by uuid. Returns ErrNoSuchDomain if no
	// domain is currently defined with that uuid.
	Connect(ctx context.Context, uuid string) (Domain, error)
	DefineXML(ctx context.Context, xml string) (Domain, error)
	Capabilities(ctx context.Context) (string, error)
	// SynthesizesEvent reports whether the driver fails to deliver a
	// lifecycle event for action, requiring the agent to synthesize one
	// immediately after a successful driver call.
	SynthesizesEvent(action Action) bool
	// RegisterLifecycleCallback arranges for cb to be invoked on the
	// driver's own thread for every lifecycle event concerning domain. The
	// returned func deregisters it.
	RegisterLifecycleCallback(domain Domain, cb LifecycleCallback) (deregister func())
}
