package models

// PermissionName enumerates the fixed, closed set of permission-gated
// actions. No other name may appear in the Permission Center.
type PermissionName string

const (
	PermissionInfo         PermissionName = "info"
	PermissionCreate       PermissionName = "create"
	PermissionShutdown     PermissionName = "shutdown"
	PermissionDestroy      PermissionName = "destroy"
	PermissionReboot       PermissionName = "reboot"
	PermissionSuspend      PermissionName = "suspend"
	PermissionResume       PermissionName = "resume"
	PermissionXMLDesc      PermissionName = "xmldesc"
	PermissionMigrate      PermissionName = "migrate"
	PermissionAutostart    PermissionName = "autostart"
	PermissionMemory       PermissionName = "memory"
	PermissionSetVCPUs     PermissionName = "setvcpus"
	PermissionNetworkInfo  PermissionName = "networkinfo"
	PermissionDefine       PermissionName = "define"
	PermissionUndefine     PermissionName = "undefine"
	PermissionCapabilities PermissionName = "capabilities"
	PermissionFree         PermissionName = "free"
)

// Permissions lists every member of the closed permission-name set, in the
// order new per-VM permission databases are seeded.
var Permissions = []PermissionName{
	PermissionInfo, PermissionCreate, PermissionShutdown, PermissionDestroy,
	PermissionReboot, PermissionSuspend, PermissionResume, PermissionXMLDesc,
	PermissionMigrate, PermissionAutostart, PermissionMemory, PermissionSetVCPUs,
	PermissionNetworkInfo, PermissionDefine, PermissionUndefine,
	PermissionCapabilities, PermissionFree,
}
