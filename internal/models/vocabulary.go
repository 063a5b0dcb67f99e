package models

// VocabularyEntry binds one or more chat phrases to an action handler name
// for the chat-vocabulary surface. Registration itself is an external
// collaborator's concern (internal/bus); this type is the contract the
// agent publishes to it.
type VocabularyEntry struct {
	Phrases    []string
	Handler    string
	Permission PermissionName // empty means no permission check
	Hidden     bool
	Description string
}

// DefaultVocabulary is the phrase→action table carried over from the
// original chat surface.
var DefaultVocabulary = []VocabularyEntry{
	{Phrases: []string{"start", "create", "boot", "play", "run"}, Handler: "create", Permission: PermissionCreate},
	{Phrases: []string{"shutdown", "stop"}, Handler: "shutdown", Permission: PermissionShutdown},
	{Phrases: []string{"destroy"}, Handler: "destroy", Permission: PermissionDestroy},
	{Phrases: []string{"pause", "suspend"}, Handler: "suspend", Permission: PermissionSuspend},
	{Phrases: []string{"resume", "unpause"}, Handler: "resume", Permission: PermissionResume},
	{Phrases: []string{"info", "how are you", "and you"}, Handler: "info", Permission: PermissionInfo},
	{Phrases: []string{"desc", "xml"}, Handler: "xmldesc", Permission: PermissionXMLDesc},
	{Phrases: []string{"net", "stat"}, Handler: "networkinfo", Permission: PermissionNetworkInfo},
	// Restored per the chat-vocabulary asymmetry flagged for review: this
	// reboot phrase now requires the same permission iq_reboot requires.
	{Phrases: []string{"reboot", "restart"}, Handler: "reboot", Permission: PermissionReboot},
}
