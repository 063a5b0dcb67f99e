// Package config defines the configuration structure for vmagent.
//
// Configuration is organized into nested sections (Server, Agent,
// VirtualMachine, Hypervisor, Bus) plus a top-level LogLevel. Its
// functional-option helpers live in zz_generated.configuration.go, written
// by hand in the shape optgen would generate.
//
// # Configuration Structure
//
//	Configuration
//	├── Server          - diagnostics HTTP server settings
//	├── Agent           - process-wide agent settings
//	├── VirtualMachine  - identity and tunables of the supervised VM
//	├── Hypervisor      - hypervisor driver connection
//	├── Bus             - messaging-bus connection
//	└── LogLevel        - logging verbosity (default "info")
//
// # Server Configuration
//
//	┌──────────────────┬─────────┬────────────────────────────────────────┐
//	│ Field            │ Default │ Description                            │
//	├──────────────────┼─────────┼────────────────────────────────────────┤
//	│ HTTPPort         │ 8000    │ Diagnostics server listen port         │
//	└──────────────────┴─────────┴────────────────────────────────────────┘
//
// # Agent Configuration
//
//	┌─────────────────────┬────────────────────┬──────────────────────────────────┐
//	│ Field               │ Default            │ Description                      │
//	├─────────────────────┼────────────────────┼──────────────────────────────────┤
//	│ BaseFolder          │ "/var/lib/vmagent" │ Parent of the per-VM folder      │
//	│ NumWorkers          │ 4                  │ Number of scheduler workers      │
//	│ MaxLockTime         │ 30s                │ Lock Gate safety timeout         │
//	└─────────────────────┴────────────────────┴──────────────────────────────────┘
//
// # VirtualMachine Configuration
//
//	┌─────────────────────┬─────────┬──────────────────────────────────────────┐
//	│ Field               │ Default │ Description                              │
//	├─────────────────────┼─────────┼──────────────────────────────────────────┤
//	│ UUID                │ ""      │ VM uuid                                  │
//	│ JID                 │ ""      │ Bus address of the VM                    │
//	│ DisplayName         │ ""      │ VM display name                          │
//	│ PasswordFile        │ ""      │ Path to the file holding the bus password│
//	│ MemoryPollInterval  │ 1s      │ Delay between memory convergence polls   │
//	│ MemoryPollRetries   │ 3       │ Number of memory convergence polls       │
//	└─────────────────────┴─────────┴──────────────────────────────────────────┘
//
// # Hypervisor and Bus Configuration
//
//	┌─────────────────────┬──────────────────┬─────────────────────────────────┐
//	│ Field               │ Default          │ Description                     │
//	├─────────────────────┼──────────────────┼─────────────────────────────────┤
//	│ Hypervisor.URI      │ "qemu:///system" │ Driver connection URI           │
//	│ Bus.Host            │ ""               │ Bus server host                 │
//	│ Bus.Port            │ 5222             │ Bus server port                 │
//	│ Bus.Resource        │ "vmagent"        │ Bus session resource            │
//	└─────────────────────┴──────────────────┴─────────────────────────────────┘
//
// # Option Helpers
//
//   - NewConfigurationWithOptions(...ConfigurationOption) - zero values, then options
//   - NewConfigurationWithOptionsAndDefaults(...ConfigurationOption) - struct-tag defaults, then options
//   - WithServer, WithAgent, WithVirtualMachine, WithHypervisor, WithBus - replace a whole section
//   - WithLogLevel(string) - set LogLevel
//   - DebugMap() - map of every field for debug logging
//
// # Usage Example
//
//	cfg := config.NewConfigurationWithOptionsAndDefaults(
//	    config.WithServer(config.Server{HTTPPort: 8080}),
//	    config.WithLogLevel("debug"),
//	)
//
// # Debug Logging
//
// All fields are tagged with `debugmap:"visible"` and DebugMap lists them
// all:
//
//	log.Info("configuration loaded", zap.Any("config", cfg.DebugMap()))
//
// The bus password is not part of Configuration (only PasswordFile, its
// path, is), so DebugMap never contains it.
package config
