package models

import "github.com/google/uuid"

// Identity is the VM's immutable bus identity, set once at construction.
type Identity struct {
	UUID        uuid.UUID
	JID         string // local part must equal UUID.String()
	DisplayName string
	Password    string
}

// DomainInfo mirrors the driver's info() reply payload.
type DomainInfo struct {
	State       LibvirtStatus
	MaxMem      uint64
	Memory      uint64
	NrVirtCPU   uint
	CPUTimeNS   uint64
	HypervisorJID string
	Autostart   bool
}

// InterfaceStats is one NIC's counters for the networkinfo reply.
type InterfaceStats struct {
	Alias     string
	RxBytes   int64
	RxPackets int64
	RxErrs    int64
	RxDrop    int64
	TxBytes   int64
	TxPackets int64
	TxErrs    int64
	TxDrop    int64
}

// MigrationState tracks the agent's three-step live-migration protocol.
type MigrationState struct {
	InProgress bool
	TargetJID  string
}
