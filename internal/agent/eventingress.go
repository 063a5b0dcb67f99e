package agent

import (
	"context"

	"go.uber.org/zap"

	"github.com/archipel-project/vmagent/internal/bus"
	"github.com/archipel-project/vmagent/internal/hooks"
	"github.com/archipel-project/vmagent/internal/hypervisor"
	"github.com/archipel-project/vmagent/internal/models"
	"github.com/archipel-project/vmagent/internal/presence"
)

// eventMapping is a fixed table from driver event kind to the Event
// Ingress's four consequences: the Libvirt Status that
// drives the Presence Mapper, the hook fired, the change-notification
// label, and the channel it's published on.
//
// HOOK_VM_DESTROY is registered in the closed hook set (internal/hooks) but
// never fired from this table — the original distinguishes shutdown from
// destroy only at the handler level, not in the async
// lifecycle stream, and both shutdown() and destroy() synthesize the same
// "stopped" kind here, matching archipelVirtualMachine.py's on_domain_event
// literally (its STOPPED branch is shared by both callers).
var eventMapping = map[hypervisor.EventKind]struct {
	status  models.LibvirtStatus
	hook    hooks.Name
	label   string
	channel bus.Channel
}{
	hypervisor.EventStarted:   {models.StatusRunning, hooks.VMCreate, "created", bus.ChannelControl},
	hypervisor.EventSuspended: {models.StatusPaused, hooks.VMSuspend, "suspended", bus.ChannelControl},
	hypervisor.EventResumed:   {models.StatusRunning, hooks.VMResume, "resumed", bus.ChannelControl},
	hypervisor.EventStopped:   {models.StatusShutOff, hooks.VMStop, "shutdowned", bus.ChannelControl},
	hypervisor.EventCrashed:   {models.StatusCrashed, hooks.VMCrash, "crashed", bus.ChannelControl},
	hypervisor.EventShutoff:   {models.StatusShutOff, hooks.VMShutoff, "shutoff", bus.ChannelControl},
	hypervisor.EventUndefined: {models.StatusUndefined, hooks.VMUndefine, "undefined", bus.ChannelDefinition},
	// EventDefined's status is resolved dynamically from the driver, not
	// this static table; see onLifecycleEvent.
}

// excludedByMigration is the set of event kinds that must never change
// presence/hooks/changes even outside the is_migrating window — the
// migration-originated variants of otherwise-ordinary lifecycle events.
var excludedByMigration = map[hypervisor.EventKind]bool{
	hypervisor.EventStartedByMigration:   true,
	hypervisor.EventSuspendedByMigration: true,
	hypervisor.EventResumedByMigration:   true,
	hypervisor.EventStoppedByMigration:   true,
}

// onLifecycleEvent is the Event Ingress: it is invoked on the hypervisor
// driver's own event-delivery thread and implements the eight-step
// presence/trigger/notification pipeline.
func (a *Agent) onLifecycleEvent(ev hypervisor.Event) {
	ctx := context.Background()
	log := zap.S().Named("event_ingress")

	// Step 1.
	if a.IsMigrating() {
		log.Infow("event received while migrating, ignoring", "kind", ev.Kind)
		return
	}
	if excludedByMigration[ev.Kind] {
		log.Debugw("ignoring migration-qualified lifecycle event", "kind", ev.Kind)
		return
	}

	defer a.lock.Unlock() // step 8, always, regardless of path taken below

	if ev.Kind == hypervisor.EventDefined {
		a.handleDefinedEvent(ctx)
		return
	}

	m, ok := eventMapping[ev.Kind]
	if !ok {
		log.Warnw("unrecognized lifecycle event kind", "kind", ev.Kind)
		return
	}

	// Step 3.
	a.applyPresence(ctx, m.status, presence.PhaseNone)
	// Step 4.
	if err := a.bus.PublishChange(ctx, m.channel, m.label); err != nil {
		log.Errorw("failed to publish change notification", "error", err)
	}
	// Step 5.
	a.hooks.Fire(m.hook, a.identity.JID, ev.Detail)

	// Step 6.
	if ev.Kind == hypervisor.EventUndefined {
		a.mu.Lock()
		a.domain = nil
		a.definition = ""
		deregister := a.deregister
		a.deregister = nil
		a.mu.Unlock()
		if deregister != nil {
			deregister()
		}
	}

	// Step 7: refresh cached status, skipped for defined/undefined.
	a.refreshStatus(ctx)
}

// handleDefinedEvent implements the "defined" branch separately because its
// Libvirt Status is not a fixed table entry: it reflects whatever the
// driver reports for the freshly defined domain (normally shut-off).
func (a *Agent) handleDefinedEvent(ctx context.Context) {
	status := models.StatusShutOff
	a.mu.Lock()
	dom := a.domain
	a.mu.Unlock()
	if dom != nil {
		if info, err := dom.Info(ctx); err == nil {
			status = info.State
		}
	}

	a.applyPresence(ctx, status, presence.PhaseNone)
	if err := a.bus.PublishChange(ctx, bus.ChannelDefinition, "defined"); err != nil {
		zap.S().Named("event_ingress").Errorw("failed to publish change notification", "error", err)
	}
	a.hooks.Fire(hooks.VMDefine, a.identity.JID)
	// Step 7 is skipped for defined: a resolved open question, preserved
	// literally from the original handling.
}

// refreshStatus re-reads the driver's reported state into lastStatus,
// independent of presence. A failure here (e.g. the
// domain has just been freed) is logged and ignored.
func (a *Agent) refreshStatus(ctx context.Context) {
	a.mu.Lock()
	dom := a.domain
	a.mu.Unlock()
	if dom == nil {
		return
	}
	info, err := dom.Info(ctx)
	if err != nil {
		zap.S().Named("event_ingress").Debugw("failed to refresh status", "error", err)
		return
	}
	a.mu.Lock()
	a.lastStatus = info.State
	a.mu.Unlock()
}
