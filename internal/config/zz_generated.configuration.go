// Code generated by hand in the shape github.com/ecordell/optgen would
// produce; keep in sync with config.go's struct fields if they change.

package config

// ConfigurationOption sets one field group on a Configuration under
// construction.
type ConfigurationOption func(*Configuration)

// NewConfigurationWithOptions builds a zero-valued Configuration and
// applies opts, without the struct-tag defaults.
func NewConfigurationWithOptions(opts ...ConfigurationOption) *Configuration {
	c := &Configuration{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewConfigurationWithOptionsAndDefaults builds a Configuration seeded
// with creasty/defaults, then applies opts on top.
func NewConfigurationWithOptionsAndDefaults(opts ...ConfigurationOption) *Configuration {
	c := &Configuration{}
	if err := c.LoadDefaults(); err != nil {
		panic("config: failed to apply defaults: " + err.Error())
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithServer(s Server) ConfigurationOption {
	return func(c *Configuration) { c.Server = s }
}

func WithAgent(a Agent) ConfigurationOption {
	return func(c *Configuration) { c.Agent = a }
}

func WithVirtualMachine(vm VirtualMachine) ConfigurationOption {
	return func(c *Configuration) { c.VirtualMachine = vm }
}

func WithHypervisor(h Hypervisor) ConfigurationOption {
	return func(c *Configuration) { c.Hypervisor = h }
}

func WithBus(b Bus) ConfigurationOption {
	return func(c *Configuration) { c.Bus = b }
}

func WithLogLevel(level string) ConfigurationOption {
	return func(c *Configuration) { c.LogLevel = level }
}

// DebugMap returns a map of every debugmap:"visible" field, suitable for
// structured logging without leaking the bus credential (never stored on
// Configuration itself — it's read from VirtualMachine.PasswordFile at
// startup instead).
func (c *Configuration) DebugMap() map[string]any {
	return map[string]any{
		"server.http_port":                     c.Server.HTTPPort,
		"agent.base_folder":                    c.Agent.BaseFolder,
		"agent.num_workers":                    c.Agent.NumWorkers,
		"agent.max_lock_time":                  c.Agent.MaxLockTime,
		"virtual_machine.uuid":                 c.VirtualMachine.UUID,
		"virtual_machine.jid":                  c.VirtualMachine.JID,
		"virtual_machine.display_name":         c.VirtualMachine.DisplayName,
		"virtual_machine.password_file":        c.VirtualMachine.PasswordFile,
		"virtual_machine.memory_poll_interval": c.VirtualMachine.MemoryPollInterval,
		"virtual_machine.memory_poll_retries":  c.VirtualMachine.MemoryPollRetries,
		"hypervisor.uri":                       c.Hypervisor.URI,
		"bus.host":                             c.Bus.Host,
		"bus.port":                             c.Bus.Port,
		"bus.resource":                         c.Bus.Resource,
		"log_level":                            c.LogLevel,
	}
}
