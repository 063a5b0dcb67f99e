package presence_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/archipel-project/vmagent/internal/models"
	"github.com/archipel-project/vmagent/internal/presence"
)

func TestMapTable(t *testing.T) {
	cases := []struct {
		status  models.LibvirtStatus
		show    models.Show
		text    string
		trigger models.TriggerState
	}{
		{models.StatusRunning, models.ShowAvailable, "Running", models.TriggerOn},
		{models.StatusBlocked, models.ShowAvailable, "Running", models.TriggerOn},
		{models.StatusPaused, models.ShowAway, "Paused", models.TriggerOff},
		{models.StatusShutOff, models.ShowExtendedAway, "Shutted off", models.TriggerOff},
		{models.StatusShutdownInProgress, models.ShowAvailable, "Shutdowning...", models.TriggerOff},
		{models.StatusCrashed, models.ShowExtendedAway, "Crashed", models.TriggerOff},
		{models.StatusUndefined, models.ShowExtendedAway, "Not defined", models.TriggerOff},
	}

	for _, c := range cases {
		p, trig := presence.Map(c.status, presence.PhaseNone, models.ShowAvailable)
		require.Equal(t, c.show, p.Show, "status %s", c.status)
		require.Equal(t, c.text, p.Status, "status %s", c.status)
		require.Equal(t, c.trigger, trig, "status %s", c.status)
	}
}

func TestMapMigrating(t *testing.T) {
	p, trig := presence.Map(models.StatusRunning, presence.PhaseMigrating, models.ShowAvailable)
	require.Equal(t, models.ShowAvailable, p.Show)
	require.Equal(t, "Migrating...", p.Status)
	require.Equal(t, models.TriggerUnchanged, trig)
}

func TestMapCloning(t *testing.T) {
	p, trig := presence.Map(models.StatusShutOff, presence.PhaseCloning, models.ShowAvailable)
	require.Equal(t, models.ShowDoNotDisturb, p.Show)
	require.Equal(t, "Cloning...", p.Status)
	require.Equal(t, models.TriggerUnchanged, trig)
}
