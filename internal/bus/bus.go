// Package bus defines the narrow collaborator interfaces the VM Control
// Agent uses to talk to the chat-style messaging bus: inbound typed
// requests, outbound typed replies, presence, change notifications, and
// the chat-vocabulary registration contract. The bus client itself —
// connection, authentication, XML-stanza parsing — is explicitly out of
// scope; this package only carries the boundary shape.
package bus

import (
	"context"

	"github.com/archipel-project/vmagent/internal/models"
)

// Namespace is one of the two typed-request namespaces served on the bus.
type Namespace string

const (
	NamespaceControl    Namespace = "archipel:vm:control"
	NamespaceDefinition Namespace = "archipel:vm:definition"
)

// Channel is a change-notification channel name.
type Channel string

const (
	ChannelControl    Channel = "virtualmachine:control"
	ChannelDefinition Channel = "virtualmachine:definition"
)

// Request is one inbound typed request, already demultiplexed onto its
// namespace by the bus client. Args carries the `archipel` child element's
// attributes: "value" for autostart/memory/setvcpus,
// "hypervisorjid" for migrate.
type Request struct {
	From      string
	Namespace Namespace
	Action    string
	Args      map[string]string
	// Payload is the raw XML body for actions that carry one (define's
	// <domain> element).
	Payload string
}

// ReplyError is a typed "error" envelope.
type ReplyError struct {
	Code      int
	Namespace string // empty unless the error wraps a driver-native code
	Message   string
}

// Reply is a typed "result" envelope, or an "ignore" (no reply at all) when
// Ignore is set, or a typed error when Err is set. Exactly one of
// {Ignore, Err, the payload fields} is meaningful per action.
type Reply struct {
	Ignore   bool
	Err      *ReplyError
	Attrs    map[string]string          // e.g. info's attribute set
	XML      string                     // xmldesc / capabilities body
	Networks []models.InterfaceStats    // networkinfo, one <network> per NIC
}

// Client is the outbound half of the bus boundary: replying to a request
// already routed to a handler, publishing presence/changes, and the
// chat-vocabulary and peer-request surfaces the Migration Coordinator and
// Vocabulary Registrar need.
type Client interface {
	Reply(ctx context.Context, req Request, reply Reply) error
	PublishPresence(ctx context.Context, p models.Presence) error
	PublishChange(ctx context.Context, channel Channel, label string) error
	// Broadcast sends a plain chat message to the VM's associated group,
	// used for the migration-failure diagnostic.
	Broadcast(ctx context.Context, groupJID, message string) error
	// SendPeerRequest issues a control-namespace request to another
	// hypervisor's agent and blocks for its reply — used by the Migration
	// Coordinator's step 2 URI exchange.
	SendPeerRequest(ctx context.Context, targetJID, action string, args map[string]string) (Reply, error)
	// RegisterVocabulary hands the chat-vocabulary phrase table to the
	// external vocabulary registrar; this agent
	// only supplies the contract, not the chat-parsing implementation.
	RegisterVocabulary(entries []models.VocabularyEntry) error
}
