package agent

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/archipel-project/vmagent/internal/bus"
	"github.com/archipel-project/vmagent/internal/models"
	vmerrors "github.com/archipel-project/vmagent/pkg/errors"
)

// actionSpec is the Request Router's static per-action entry: which
// permission gates it, the error code to report on failure or permission
// denial, and whether it's subject to the Lock Gate check.
type actionSpec struct {
	permission models.PermissionName
	code       vmerrors.Code
	mutating   bool
}

var controlActions = map[string]actionSpec{
	"create":      {models.PermissionCreate, vmerrors.VMCreate, true},
	"shutdown":    {models.PermissionShutdown, vmerrors.VMShutdown, true},
	"destroy":     {models.PermissionDestroy, vmerrors.VMDestroy, true},
	"reboot":      {models.PermissionReboot, vmerrors.VMReboot, true},
	"suspend":     {models.PermissionSuspend, vmerrors.VMSuspend, true},
	"resume":      {models.PermissionResume, vmerrors.VMResume, true},
	"migrate":     {models.PermissionMigrate, vmerrors.VMMigrate, true},
	"autostart":   {models.PermissionAutostart, vmerrors.VMAutostart, true},
	"memory":      {models.PermissionMemory, vmerrors.VMMemory, true},
	"setvcpus":    {models.PermissionSetVCPUs, vmerrors.VMInfo, true},
	"info":        {models.PermissionInfo, vmerrors.VMInfo, false},
	"xmldesc":     {models.PermissionXMLDesc, vmerrors.VMXMLDesc, false},
	"networkinfo": {models.PermissionNetworkInfo, vmerrors.VMNetworkInfo, false},
	"free":        {models.PermissionFree, vmerrors.VMFree, false},
}

var definitionActions = map[string]actionSpec{
	"define":       {models.PermissionDefine, vmerrors.VMDefine, true},
	"undefine":     {models.PermissionUndefine, vmerrors.VMUndefine, true},
	"capabilities": {models.PermissionCapabilities, vmerrors.VMHypervisorCapabilities, false},
}

// migratingAllowlistControl and migratingAllowlistDefinition are the
// read-only actions still served while is_migrating.
var migratingAllowlistControl = map[string]bool{"info": true, "xmldesc": true, "networkinfo": true}
var migratingAllowlistDefinition = map[string]bool{"capabilities": true}

// Route is the Request Router's entry point, invoked once per inbound bus
// envelope. ctx should carry the caller's deadline, if any;
// the router itself never imposes one.
func (a *Agent) Route(ctx context.Context, req bus.Request) {
	log := zap.S().Named("router")

	var spec actionSpec
	var ok bool
	var allowlist map[string]bool
	switch req.Namespace {
	case bus.NamespaceControl:
		spec, ok = controlActions[req.Action]
		allowlist = migratingAllowlistControl
	case bus.NamespaceDefinition:
		spec, ok = definitionActions[req.Action]
		allowlist = migratingAllowlistDefinition
	default:
		log.Warnw("unknown namespace, ignoring", "namespace", req.Namespace)
		return
	}
	if !ok {
		log.Debugw("unknown action, ignoring", "namespace", req.Namespace, "action", req.Action)
		return
	}

	granted, err := a.perms.Check(ctx, req.From, spec.permission)
	if err != nil {
		log.Errorw("permission check failed", "error", err)
		return
	}
	if !granted {
		a.reply(ctx, req, bus.Reply{Err: toReplyError(vmerrors.New(spec.code, "permission denied"))})
		return
	}

	if !a.HasDomain() && req.Namespace == bus.NamespaceControl && !allowlist[req.Action] {
		return // no Domain Handle: control actions outside the read-only set get no reply
	}

	if a.IsMigrating() && !allowlist[req.Action] {
		a.reply(ctx, req, bus.Reply{Err: toReplyError(vmerrors.NewMigrating())})
		return
	}

	if spec.mutating && a.lock.Locked() {
		a.reply(ctx, req, bus.Reply{Err: toReplyError(vmerrors.NewLocked())})
		return
	}

	reply := a.dispatch(ctx, req)
	a.reply(ctx, req, reply)
}

func (a *Agent) reply(ctx context.Context, req bus.Request, reply bus.Reply) {
	if reply.Ignore {
		return
	}
	if err := a.bus.Reply(ctx, req, reply); err != nil {
		zap.S().Named("router").Errorw("failed to send reply", "error", err)
	}
}

// dispatch invokes the Action Handler bound to req.Action and translates
// its result into a typed Reply.
func (a *Agent) dispatch(ctx context.Context, req bus.Request) bus.Reply {
	switch req.Action {
	case "create":
		res, err := a.Create(ctx)
		if err != nil {
			return errorReply(err)
		}
		return bus.Reply{Attrs: map[string]string{"id": fmt.Sprintf("%d", res.ID)}}

	case "shutdown":
		if err := a.Shutdown(ctx); err != nil {
			return errorReply(err)
		}
		return bus.Reply{}

	case "destroy":
		if err := a.Destroy(ctx); err != nil {
			return errorReply(err)
		}
		return bus.Reply{}

	case "reboot":
		if err := a.rebootNoPermCheck(ctx); err != nil {
			return errorReply(err)
		}
		return bus.Reply{}

	case "suspend":
		if err := a.Suspend(ctx); err != nil {
			return errorReply(err)
		}
		return bus.Reply{}

	case "resume":
		if err := a.Resume(ctx); err != nil {
			return errorReply(err)
		}
		return bus.Reply{}

	case "migrate":
		if err := a.StartMigration(ctx, req.Args["hypervisorjid"]); err != nil {
			return errorReply(err)
		}
		return bus.Reply{}

	case "autostart":
		enabled := req.Args["value"] == "1" || req.Args["value"] == "true"
		if err := a.SetAutostart(ctx, enabled); err != nil {
			return errorReply(err)
		}
		return bus.Reply{}

	case "memory":
		kib, err := parseUint(req.Args["value"])
		if err != nil {
			return errorReply(vmerrors.New(vmerrors.VMMemory, err.Error()))
		}
		if err := a.SetMemory(ctx, kib); err != nil {
			return errorReply(err)
		}
		return bus.Reply{}

	case "setvcpus":
		n, err := parseUint(req.Args["value"])
		if err != nil {
			return errorReply(vmerrors.New(vmerrors.VMInfo, err.Error()))
		}
		if err := a.SetVCPUs(ctx, uint(n)); err != nil {
			return errorReply(err)
		}
		return bus.Reply{}

	case "info":
		res, err := a.Info(ctx)
		if err != nil {
			return errorReply(err)
		}
		if res == (InfoResult{}) {
			return bus.Reply{Ignore: true}
		}
		return bus.Reply{Attrs: map[string]string{
			"state":         string(res.State),
			"maxMem":        strconv.FormatUint(res.MaxMem, 10),
			"memory":        strconv.FormatUint(res.Memory, 10),
			"nrVirtCpu":     strconv.FormatUint(uint64(res.NrVirtCPU), 10),
			"cpuTime":       strconv.FormatUint(res.CPUTimeNS, 10),
			"autostart":     strconv.FormatBool(res.Autostart),
			"hypervisorjid": res.HypervisorJID,
		}}

	case "xmldesc":
		doc, err := a.XMLDesc(ctx)
		if err != nil {
			return errorReply(err)
		}
		return bus.Reply{XML: doc}

	case "networkinfo":
		stats, err := a.NetworkInfo(ctx)
		if err != nil {
			return errorReply(err)
		}
		if stats == nil {
			return bus.Reply{Ignore: true}
		}
		return bus.Reply{Networks: stats}

	case "free":
		if err := a.Free(ctx); err != nil {
			return errorReply(err)
		}
		return bus.Reply{}

	case "define":
		if err := a.Define(ctx, req.Payload); err != nil {
			return errorReply(err)
		}
		return bus.Reply{XML: req.Payload}

	case "undefine":
		if err := a.Undefine(ctx); err != nil {
			return errorReply(err)
		}
		return bus.Reply{}

	case "capabilities":
		doc, err := a.Capabilities(ctx)
		if err != nil {
			return errorReply(err)
		}
		return bus.Reply{XML: doc}
	}

	return bus.Reply{Ignore: true}
}

func parseUint(s string) (uint64, error) {
	var v uint64
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, fmt.Errorf("invalid numeric value %q", s)
	}
	return v, nil
}

// errorReply translates a handler error into a typed Reply, preserving the
// driver namespace for driver-originated failures.
func errorReply(err error) bus.Reply {
	return bus.Reply{Err: toReplyError(err)}
}

func toReplyError(err error) *bus.ReplyError {
	switch e := err.(type) {
	case *vmerrors.ActionError:
		return &bus.ReplyError{Code: int(e.Code), Namespace: e.Namespace, Message: e.Message}
	case *vmerrors.LockedError:
		return &bus.ReplyError{Code: int(e.Code()), Message: e.Error()}
	case *vmerrors.MigratingError:
		return &bus.ReplyError{Code: int(e.Code()), Message: e.Error()}
	case *vmerrors.IncorrectUUIDError:
		return &bus.ReplyError{Code: int(e.Code()), Message: e.Error()}
	case *vmerrors.NotDefinedError:
		return &bus.ReplyError{Code: int(e.Code()), Message: e.Error()}
	case *vmerrors.CapabilityRefusedError:
		return &bus.ReplyError{Code: int(e.Code()), Message: e.Error()}
	default:
		return &bus.ReplyError{Code: int(vmerrors.VMInfo), Message: err.Error()}
	}
}
