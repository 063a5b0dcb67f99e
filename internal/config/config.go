// Package config defines the configuration structure for vmagent.
//
// Configuration is organized into nested sections (Server, Agent,
// VirtualMachine, Hypervisor, Bus) and exposes functional-option
// constructors in the shape github.com/ecordell/optgen would generate —
// hand-written here since the struct is small enough not to warrant the
// generator.
package config

import (
	"time"

	"github.com/creasty/defaults"
)

// Server carries the local diagnostics HTTP server's settings.
type Server struct {
	HTTPPort int `yaml:"http_port" default:"8000" debugmap:"visible"`
}

// Agent carries the process-wide agent settings.
type Agent struct {
	BaseFolder  string        `yaml:"base_folder" default:"/var/lib/vmagent" debugmap:"visible"`
	NumWorkers  int           `yaml:"num_workers" default:"4" debugmap:"visible"`
	MaxLockTime time.Duration `yaml:"max_lock_time" default:"30s" debugmap:"visible"`
}

// VirtualMachine carries the identity and tunables of the one VM this
// agent instance supervises.
type VirtualMachine struct {
	UUID               string        `yaml:"uuid" debugmap:"visible"`
	JID                string        `yaml:"jid" debugmap:"visible"`
	DisplayName        string        `yaml:"display_name" debugmap:"visible"`
	PasswordFile       string        `yaml:"password_file" debugmap:"visible"`
	MemoryPollInterval time.Duration `yaml:"memory_poll_interval" default:"1s" debugmap:"visible"`
	MemoryPollRetries  int           `yaml:"memory_poll_retries" default:"3" debugmap:"visible"`
}

// Hypervisor carries the local hypervisor driver's connection settings.
type Hypervisor struct {
	URI string `yaml:"uri" default:"qemu:///system" debugmap:"visible"`
}

// Bus carries the messaging-bus connection settings. The bus password is
// not a field here; only its file path is stored, in VirtualMachine.
type Bus struct {
	Host     string `yaml:"host" debugmap:"visible"`
	Port     int    `yaml:"port" default:"5222" debugmap:"visible"`
	Resource string `yaml:"resource" default:"vmagent" debugmap:"visible"`
}

// Configuration is the top-level, on-disk configuration for one vmagent
// process.
type Configuration struct {
	Server         Server         `yaml:"server"`
	Agent          Agent          `yaml:"agent"`
	VirtualMachine VirtualMachine `yaml:"virtual_machine"`
	Hypervisor     Hypervisor     `yaml:"hypervisor"`
	Bus            Bus            `yaml:"bus"`
	LogLevel       string         `yaml:"log_level" default:"info" debugmap:"visible"`
}

// LoadDefaults applies the struct-tag defaults in place, ahead of
// yaml.Unmarshal overriding them.
func (c *Configuration) LoadDefaults() error {
	return defaults.Set(c)
}
