package agent

import (
	"context"
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	vmerrors "github.com/archipel-project/vmagent/pkg/errors"

	"github.com/archipel-project/vmagent/internal/bus"
	"github.com/archipel-project/vmagent/internal/hypervisor"
	"github.com/archipel-project/vmagent/internal/models"
	"github.com/archipel-project/vmagent/internal/presence"
)

// currentDomain returns the live Domain Handle, or nil if none is
// connected.
func (a *Agent) currentDomain() hypervisor.Domain {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.domain
}

func (a *Agent) observedStatus() models.LibvirtStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastStatus
}

// CreateResult is the create handler's payload.
type CreateResult struct {
	ID int
}

// Create acquires the Lock Gate, asks the driver to start the domain, and
// synthesizes the started event when the driver can't deliver one natively.
func (a *Agent) Create(ctx context.Context) (CreateResult, error) {
	dom := a.currentDomain()
	if dom == nil {
		return CreateResult{}, vmerrors.New(vmerrors.VMCreate, "no domain defined")
	}

	a.lock.Lock()
	if err := dom.Create(ctx); err != nil {
		a.lock.Unlock()
		return CreateResult{}, vmerrors.NewDriver(vmerrors.VMCreate, err)
	}
	if a.driver.SynthesizesEvent(hypervisor.ActionCreate) {
		a.onLifecycleEvent(hypervisor.Event{Kind: hypervisor.EventStarted, Detail: "synthesized"})
	}

	id, err := dom.ID(ctx)
	if err != nil {
		id = 0
	}
	return CreateResult{ID: id}, nil
}

// Shutdown acquires the lock, requests a graceful in-guest shutdown, shows
// an intermediate "Shutdowning..." presence if the domain was previously
// running, and synthesizes the stopped event when required.
func (a *Agent) Shutdown(ctx context.Context) error {
	dom := a.currentDomain()
	if dom == nil {
		return vmerrors.New(vmerrors.VMShutdown, "no domain defined")
	}

	prev := a.observedStatus()

	a.lock.Lock()
	if err := dom.Shutdown(ctx); err != nil {
		a.lock.Unlock()
		return vmerrors.NewDriver(vmerrors.VMShutdown, err)
	}

	if prev == models.StatusRunning || prev == models.StatusBlocked {
		a.applyPresence(ctx, models.StatusShutdownInProgress, presence.PhaseNone)
	}
	if a.driver.SynthesizesEvent(hypervisor.ActionShutdown) {
		a.onLifecycleEvent(hypervisor.Event{Kind: hypervisor.EventStopped, Detail: "synthesized"})
	}
	return nil
}

// Destroy acquires the lock, forcibly stops the domain, and synthesizes the
// stopped event when required.
func (a *Agent) Destroy(ctx context.Context) error {
	dom := a.currentDomain()
	if dom == nil {
		return vmerrors.New(vmerrors.VMDestroy, "no domain defined")
	}

	a.lock.Lock()
	if err := dom.Destroy(ctx); err != nil {
		a.lock.Unlock()
		return vmerrors.NewDriver(vmerrors.VMDestroy, err)
	}
	if a.driver.SynthesizesEvent(hypervisor.ActionDestroy) {
		a.onLifecycleEvent(hypervisor.Event{Kind: hypervisor.EventStopped, Detail: "synthesized"})
	}
	return nil
}

// rebootNoPermCheck issues an in-guest reboot. No lifecycle event ever
// confirms it (reboots don't change libvirt status), so unlike the other
// mutating handlers the lock is released here directly rather than by the
// Event Ingress. Named to flag that callers (the router, the vocabulary
// registrar) are each responsible for their own permission check before
// reaching this method — the asymmetry between the router's "reboot"
// action and the chat vocabulary's reboot phrase is resolved by requiring
// the check on both paths; see DESIGN.md.
func (a *Agent) rebootNoPermCheck(ctx context.Context) error {
	dom := a.currentDomain()
	if dom == nil {
		return vmerrors.New(vmerrors.VMReboot, "no domain defined")
	}

	a.lock.Lock()
	defer a.lock.Unlock()
	if err := dom.Reboot(ctx); err != nil {
		return vmerrors.NewDriver(vmerrors.VMReboot, err)
	}
	return nil
}

// Suspend acquires the lock, pauses the domain, and synthesizes the
// suspended event when required.
func (a *Agent) Suspend(ctx context.Context) error {
	dom := a.currentDomain()
	if dom == nil {
		return vmerrors.New(vmerrors.VMSuspend, "no domain defined")
	}

	a.lock.Lock()
	if err := dom.Suspend(ctx); err != nil {
		a.lock.Unlock()
		return vmerrors.NewDriver(vmerrors.VMSuspend, err)
	}
	if a.driver.SynthesizesEvent(hypervisor.ActionSuspend) {
		a.onLifecycleEvent(hypervisor.Event{Kind: hypervisor.EventSuspended, Detail: "synthesized"})
	}
	return nil
}

// Resume acquires the lock, unpauses the domain, and synthesizes the
// resumed event when required.
func (a *Agent) Resume(ctx context.Context) error {
	dom := a.currentDomain()
	if dom == nil {
		return vmerrors.New(vmerrors.VMResume, "no domain defined")
	}

	a.lock.Lock()
	if err := dom.Resume(ctx); err != nil {
		a.lock.Unlock()
		return vmerrors.NewDriver(vmerrors.VMResume, err)
	}
	if a.driver.SynthesizesEvent(hypervisor.ActionResume) {
		a.onLifecycleEvent(hypervisor.Event{Kind: hypervisor.EventResumed, Detail: "synthesized"})
	}
	return nil
}

var (
	uuidTagRe        = regexp.MustCompile(`(?s)<uuid>(.*?)</uuid>`)
	descriptionTagRe = regexp.MustCompile(`(?s)<description>.*?</description>`)
	nameTagRe        = regexp.MustCompile(`(?s)<name>.*?</name>`)
)

// stampDefinition rewrites the description element to "<jid>::::<password>"
// and ensures the name element equals the agent's display name, mirroring
// set_automatic_libvirt_description's literal string surgery rather than a
// round-trip through an XML tree.
func (a *Agent) stampDefinition(xmlDoc string) string {
	description := fmt.Sprintf("<description>%s::::%s</description>", a.identity.JID, a.identity.Password)
	if descriptionTagRe.MatchString(xmlDoc) {
		xmlDoc = descriptionTagRe.ReplaceAllString(xmlDoc, description)
	} else {
		xmlDoc = strings.Replace(xmlDoc, "</domain>", description+"</domain>", 1)
	}

	name := fmt.Sprintf("<name>%s</name>", a.identity.DisplayName)
	if nameTagRe.MatchString(xmlDoc) {
		xmlDoc = nameTagRe.ReplaceAllString(xmlDoc, name)
	} else {
		xmlDoc = strings.Replace(xmlDoc, "</domain>", name+"</domain>", 1)
	}
	return xmlDoc
}

func extractUUID(xmlDoc string) (string, error) {
	m := uuidTagRe.FindStringSubmatch(xmlDoc)
	if m == nil {
		return "", fmt.Errorf("no uuid element found")
	}
	return strings.TrimSpace(m[1]), nil
}

// Define parses and validates domainXML, stamps it with the agent's own
// identity, defines it against the driver, connects the Domain Handle if
// one isn't already established, and synthesizes the defined event when
// required.
func (a *Agent) Define(ctx context.Context, domainXML string) error {
	got, err := extractUUID(domainXML)
	if err != nil {
		return vmerrors.New(vmerrors.VMDefine, err.Error())
	}
	want := a.identity.UUID.String()
	if !strings.EqualFold(got, want) {
		return vmerrors.NewIncorrectUUID(got, want)
	}

	stamped := a.stampDefinition(domainXML)

	dom, err := a.driver.DefineXML(ctx, stamped)
	if err != nil {
		return vmerrors.NewDriver(vmerrors.VMDefine, err)
	}

	a.mu.Lock()
	hadDomain := a.domain != nil
	if !hadDomain {
		a.domain = dom
		a.deregister = a.driver.RegisterLifecycleCallback(dom, a.onLifecycleEvent)
	}
	a.definition = stamped
	a.mu.Unlock()

	if a.driver.SynthesizesEvent(hypervisor.ActionDefine) {
		a.onLifecycleEvent(hypervisor.Event{Kind: hypervisor.EventDefined, Detail: "synthesized"})
	}
	return nil
}

// Undefine removes the domain's persistent definition. A null domain
// succeeds as a no-op.
func (a *Agent) Undefine(ctx context.Context) error {
	dom := a.currentDomain()
	if dom == nil {
		return nil
	}

	if err := dom.Undefine(ctx); err != nil {
		return vmerrors.NewDriver(vmerrors.VMUndefine, err)
	}
	if a.driver.SynthesizesEvent(hypervisor.ActionUndefine) {
		a.onLifecycleEvent(hypervisor.Event{Kind: hypervisor.EventUndefined, Detail: "synthesized"})
	}
	return nil
}

// XMLDesc reads the driver's description with the secure flag set and
// strips the description element, which carries the jid::::password
// credential.
func (a *Agent) XMLDesc(ctx context.Context) (string, error) {
	dom := a.currentDomain()
	if dom == nil {
		return "", vmerrors.NewNotDefined()
	}
	doc, err := dom.XMLDesc(ctx, true)
	if err != nil {
		return "", vmerrors.NewDriver(vmerrors.VMXMLDesc, err)
	}
	return descriptionTagRe.ReplaceAllString(doc, ""), nil
}

// InfoResult is the info handler's payload.
type InfoResult struct {
	State         models.LibvirtStatus
	MaxMem        uint64
	Memory        uint64
	NrVirtCPU     uint
	CPUTimeNS     uint64
	HypervisorJID string
	Autostart     bool
}

// Info reports the domain's current info. Autostart is taken from the same
// Domain.Info call as the other fields; there is no separate autostart
// query, so a failing Info call fails the whole request.
func (a *Agent) Info(ctx context.Context) (InfoResult, error) {
	dom := a.currentDomain()
	if dom == nil {
		return InfoResult{}, nil // ignore reply
	}
	info, err := dom.Info(ctx)
	if err != nil {
		return InfoResult{}, vmerrors.NewDriver(vmerrors.VMInfo, err)
	}
	return InfoResult{
		State:         info.State,
		MaxMem:        info.MaxMem,
		Memory:        info.Memory,
		NrVirtCPU:     info.NrVirtCPU,
		CPUTimeNS:     info.CPUTimeNS,
		HypervisorJID: info.HypervisorJID,
		Autostart:     info.Autostart,
	}, nil
}

// minMemoryKiB is the floor setMemory clamps to.
const minMemoryKiB = 10

// SetMemory clamps the requested value to the floor, applies it, and starts
// a short polling loop that confirms convergence before emitting the
// "memory" change notification.
func (a *Agent) SetMemory(ctx context.Context, kib uint64) error {
	dom := a.currentDomain()
	if dom == nil {
		return vmerrors.New(vmerrors.VMMemory, "no domain defined")
	}
	if kib < minMemoryKiB {
		kib = minMemoryKiB
	}
	if err := dom.SetMemory(ctx, kib); err != nil {
		return vmerrors.NewDriver(vmerrors.VMMemory, err)
	}

	a.scheduler.AddWork(func(workCtx context.Context) (any, error) {
		a.pollMemoryConvergence(workCtx, dom, kib)
		return nil, nil
	})
	return nil
}

// pollMemoryConvergence re-reads info up to MemoryPollRetries times,
// emitting the "memory" notification as soon as requested/current is
// within {0,1} (equal or undershoot), and unconditionally once retries are
// exhausted.
func (a *Agent) pollMemoryConvergence(ctx context.Context, dom hypervisor.Domain, requestedKiB uint64) {
	log := zap.S().Named("agent")
	for attempt := 0; attempt < a.cfg.MemoryPollRetries; attempt++ {
		time.Sleep(a.cfg.MemoryPollInterval)
		info, err := dom.Info(ctx)
		if err != nil {
			log.Warnw("memory poll failed to read domain info", "error", err)
			continue
		}
		if info.Memory != 0 {
			ratio := requestedKiB / info.Memory
			if ratio == 0 || ratio == 1 {
				a.notifyMemory(ctx)
				return
			}
		}
	}
	a.notifyMemory(ctx)
}

func (a *Agent) notifyMemory(ctx context.Context) {
	if err := a.bus.PublishChange(ctx, bus.ChannelControl, "memory"); err != nil {
		zap.S().Named("agent").Errorw("failed to publish memory change", "error", err)
	}
}

// SetVCPUs acquires the lock, rejects requests above the driver's reported
// maximum, applies the change, and pushes both change notifications the
// original fires for this action.
func (a *Agent) SetVCPUs(ctx context.Context, n uint) error {
	dom := a.currentDomain()
	if dom == nil {
		return vmerrors.New(vmerrors.VMInfo, "no domain defined")
	}

	a.lock.Lock()
	defer a.lock.Unlock()

	maxVCPUs, err := dom.MaxVCPUs(ctx)
	if err != nil {
		return vmerrors.NewDriver(vmerrors.VMInfo, err)
	}
	if n > maxVCPUs {
		return vmerrors.New(vmerrors.VMInfo, fmt.Sprintf("maximum vCPU is %d", maxVCPUs))
	}
	if err := dom.SetVCPUs(ctx, n); err != nil {
		return vmerrors.NewDriver(vmerrors.VMInfo, err)
	}

	if err := a.bus.PublishChange(ctx, bus.ChannelControl, "nvcpu"); err != nil {
		zap.S().Named("agent").Errorw("failed to publish nvcpu control change", "error", err)
	}
	if err := a.bus.PublishChange(ctx, bus.ChannelDefinition, "nvcpu"); err != nil {
		zap.S().Named("agent").Errorw("failed to publish nvcpu definition change", "error", err)
	}
	return nil
}

// SetAutostart forwards to the driver with no special notification.
func (a *Agent) SetAutostart(ctx context.Context, enabled bool) error {
	dom := a.currentDomain()
	if dom == nil {
		return vmerrors.New(vmerrors.VMAutostart, "no domain defined")
	}
	if err := dom.SetAutostart(ctx, enabled); err != nil {
		return vmerrors.NewDriver(vmerrors.VMAutostart, err)
	}
	return nil
}

// interfaceElementRe finds each <interface ...>...</interface> block so its
// target dev alias can be extracted without a full XML tree round-trip.
var interfaceElementRe = regexp.MustCompile(`(?s)<interface[^>]*>(.*?)</interface>`)

type interfaceTarget struct {
	Dev string `xml:"dev,attr"`
}
type interfaceShape struct {
	Target interfaceTarget `xml:"target"`
}

// NetworkInfo parses the domain's current XML, enumerates its interface
// devices, and collects per-interface counters keyed by alias.
func (a *Agent) NetworkInfo(ctx context.Context) ([]models.InterfaceStats, error) {
	dom := a.currentDomain()
	if dom == nil {
		return nil, nil // ignore reply
	}
	doc, err := dom.XMLDesc(ctx, false)
	if err != nil {
		return nil, vmerrors.NewDriver(vmerrors.VMNetworkInfo, err)
	}

	var stats []models.InterfaceStats
	for _, block := range interfaceElementRe.FindAllStringSubmatch(doc, -1) {
		var shape interfaceShape
		if err := xml.Unmarshal([]byte("<interface>"+block[1]+"</interface>"), &shape); err != nil {
			continue
		}
		if shape.Target.Dev == "" {
			continue
		}
		s, err := dom.InterfaceStats(ctx, shape.Target.Dev)
		if err != nil {
			zap.S().Named("agent").Warnw("failed to read interface stats", "iface", shape.Target.Dev, "error", err)
			continue
		}
		s.Alias = shape.Target.Dev
		stats = append(stats, s)
	}
	return stats, nil
}

// Capabilities returns the parent hypervisor's cached capabilities document.
func (a *Agent) Capabilities(ctx context.Context) (string, error) {
	doc, err := a.driver.Capabilities(ctx)
	if err != nil {
		return "", vmerrors.NewDriver(vmerrors.VMHypervisorCapabilities, err)
	}
	return doc, nil
}
