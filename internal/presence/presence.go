// Package presence implements the Presence Mapper: the single authoritative
// translation from hypervisor domain state into the (show, status text)
// pair published on the bus and the libvirt_run trigger state. No other
// package may compute a presence value without going through Map.
package presence

import "github.com/archipel-project/vmagent/internal/models"

// Phase overrides the table lookup for the two transient, externally-driven
// states that are not themselves libvirt statuses: migrating and cloning.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseMigrating
	PhaseCloning
)

type entry struct {
	show    models.Show
	text    string
	trigger models.TriggerState
}

var table = map[models.LibvirtStatus]entry{
	models.StatusRunning:            {models.ShowAvailable, "Running", models.TriggerOn},
	models.StatusBlocked:            {models.ShowAvailable, "Running", models.TriggerOn},
	models.StatusPaused:             {models.ShowAway, "Paused", models.TriggerOff},
	models.StatusShutOff:            {models.ShowExtendedAway, "Shutted off", models.TriggerOff},
	models.StatusShutdownInProgress: {models.ShowAvailable, "Shutdowning...", models.TriggerOff},
	models.StatusCrashed:            {models.ShowExtendedAway, "Crashed", models.TriggerOff},
	models.StatusUndefined:          {models.ShowExtendedAway, "Not defined", models.TriggerOff},
}

// Map is the pure function of (libvirt status, migration/clone phase,
// current show) to (presence, trigger state). currentShow is only consulted
// while migrating, where the show is carried over unchanged.
func Map(status models.LibvirtStatus, phase Phase, currentShow models.Show) (models.Presence, models.TriggerState) {
	switch phase {
	case PhaseMigrating:
		return models.Presence{Show: currentShow, Status: "Migrating..."}, models.TriggerUnchanged
	case PhaseCloning:
		return models.Presence{Show: models.ShowDoNotDisturb, Status: "Cloning..."}, models.TriggerUnchanged
	}

	e, ok := table[status]
	if !ok {
		e = table[models.StatusUndefined]
	}
	return models.Presence{Show: e.show, Status: e.text}, e.trigger
}
