package models

// TriggerMode distinguishes a trigger whose state is set by explicit action
// (manual) from one the agent derives itself from observed domain state
// (auto) — the distinguished "libvirt_run" trigger is the latter.
type TriggerMode int

const (
	TriggerModeManual TriggerMode = iota
	TriggerModeAuto
)

// OnOff is the on/off state persisted for triggers and watchers.
type OnOff int

const (
	Off OnOff = iota
	On
)

// Trigger is a persisted named condition with an on/off state.
type Trigger struct {
	Name          string
	Description   string
	Mode          TriggerMode
	CheckMethod   string
	CheckInterval int // seconds; -1 means "driven by events, not polled"
	State         OnOff
}

// LibvirtRunTrigger is the name of the distinguished trigger every agent
// seeds, if missing, when it authenticates: on iff the latest observed
// status is running or blocked and the agent is not migrating.
const LibvirtRunTrigger = "libvirt_run"

// Watcher is a persisted subscription to a remote trigger. When State is On
// the agent actively observes TriggerName on TargetJID and invokes OnAction
// or OffAction, resolved against the agent's handler registry, on
// transitions.
type Watcher struct {
	Name        string
	TargetJID   string
	TriggerName string
	OnAction    string
	OffAction   string
	State       OnOff
}

// PermissionEntry records whether a subject (a bus JID, or the wildcard "*")
// may invoke a given action against a VM.
type PermissionEntry struct {
	Subject string
	Action  PermissionName
	Granted bool
}
