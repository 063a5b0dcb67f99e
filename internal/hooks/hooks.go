// Package hooks implements the Hook Bus: a closed set of named in-process
// events with ordered, failure-isolated subscriber invocation.
package hooks

import (
	"sync"

	"go.uber.org/zap"
)

// Name is a member of the closed hook-name set.
type Name string

const (
	VMCreate       Name = "HOOK_VM_CREATE"
	VMShutoff      Name = "HOOK_VM_SHUTOFF"
	VMStop         Name = "HOOK_VM_STOP"
	VMDestroy      Name = "HOOK_VM_DESTROY"
	VMSuspend      Name = "HOOK_VM_SUSPEND"
	VMResume       Name = "HOOK_VM_RESUME"
	VMUndefine     Name = "HOOK_VM_UNDEFINE"
	VMDefine       Name = "HOOK_VM_DEFINE"
	VMInitialize   Name = "HOOK_VM_INITIALIZE"
	VMTerminate    Name = "HOOK_VM_TERMINATE"
	VMFree         Name = "HOOK_VM_FREE"
	VMCrash        Name = "HOOK_VM_CRASH"
	XMPPConnect    Name = "HOOK_XMPP_CONNECT"
	XMPPDisconnect Name = "HOOK_XMPP_DISCONNECT"
)

// all is the closed set Register validates against.
var all = map[Name]bool{
	VMCreate: true, VMShutoff: true, VMStop: true, VMDestroy: true,
	VMSuspend: true, VMResume: true, VMUndefine: true, VMDefine: true,
	VMInitialize: true, VMTerminate: true, VMFree: true, VMCrash: true,
	XMPPConnect: true, XMPPDisconnect: true,
}

// Callback receives the firing origin, an opaque user-info value supplied
// at registration time, and the hook's fire-time arguments.
type Callback func(origin string, userInfo any, args ...any)

type subscription struct {
	cb       Callback
	userInfo any
}

// Bus dispatches fired hooks to their ordered subscribers. Safe for
// concurrent use; a panicking or erroring subscriber never blocks the rest.
type Bus struct {
	mu   sync.Mutex
	subs map[Name][]subscription
}

func New() *Bus {
	return &Bus{subs: make(map[Name][]subscription)}
}

// Register appends cb to hook's subscriber list. Registering against a name
// outside the closed set is a programmer error and panics, mirroring the
// fixed hook-name set the original enforces at construction.
func (b *Bus) Register(hook Name, userInfo any, cb Callback) {
	if !all[hook] {
		panic("hooks: unknown hook name " + string(hook))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[hook] = append(b.subs[hook], subscription{cb: cb, userInfo: userInfo})
}

// Fire invokes every subscriber of hook, in registration order. A
// subscriber panic is recovered, logged, and does not prevent the remaining
// subscribers from running.
func (b *Bus) Fire(hook Name, origin string, args ...any) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.subs[hook]...)
	b.mu.Unlock()

	for _, s := range subs {
		b.invoke(s, hook, origin, args...)
	}
}

func (b *Bus) invoke(s subscription, hook Name, origin string, args ...any) {
	defer func() {
		if r := recover(); r != nil {
			zap.S().Named("hooks").Errorw("hook subscriber panicked", "hook", hook, "recover", r)
		}
	}()
	s.cb(origin, s.userInfo, args...)
}
