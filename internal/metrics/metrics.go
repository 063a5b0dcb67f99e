// Package metrics exports the agent's operational gauges and counters for
// the diagnostics server's /metrics route.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/archipel-project/vmagent/internal/hooks"
)

// Collectors bundles the agent's prometheus metrics. One instance is
// created per process and registered against a Registry at startup.
type Collectors struct {
	LockHeld   prometheus.Gauge
	HooksFired *prometheus.CounterVec
	Migrations prometheus.Counter
}

// NewCollectors builds and registers the collectors against reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		LockHeld: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vmagent",
			Name:      "lock_gate_held",
			Help:      "1 if the Lock Gate is currently held, 0 otherwise.",
		}),
		HooksFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vmagent",
			Name:      "hooks_fired_total",
			Help:      "Number of times each named hook has fired.",
		}, []string{"hook"}),
		Migrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vmagent",
			Name:      "migrations_started_total",
			Help:      "Number of live migrations this agent has initiated.",
		}),
	}
	reg.MustRegister(c.LockHeld, c.HooksFired, c.Migrations)
	return c
}

// ObserveLockGate updates the lock-held gauge; wire it to a periodic poll
// of the Lock Gate, since the gate itself has no change-notification hook.
func (c *Collectors) ObserveLockGate(held bool) {
	if held {
		c.LockHeld.Set(1)
		return
	}
	c.LockHeld.Set(0)
}

// SubscribeHookCounters registers a catch-all observer on every closed hook
// name so HooksFired increments without each call site needing to know
// about metrics.
func (c *Collectors) SubscribeHookCounters(bus *hooks.Bus) {
	for _, name := range allHookNames {
		n := name
		bus.Register(n, nil, func(origin string, userInfo any, args ...any) {
			c.HooksFired.WithLabelValues(string(n)).Inc()
		})
	}
}

var allHookNames = []hooks.Name{
	hooks.VMCreate, hooks.VMShutoff, hooks.VMStop, hooks.VMDestroy,
	hooks.VMSuspend, hooks.VMResume, hooks.VMUndefine, hooks.VMDefine,
	hooks.VMInitialize, hooks.VMTerminate, hooks.VMFree, hooks.VMCrash,
	hooks.XMPPConnect, hooks.XMPPDisconnect,
}
