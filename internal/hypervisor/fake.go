package hypervisor

import (
	"context"
	"encoding/xml"
	"fmt"
	"sync"

	"github.com/archipel-project/vmagent/internal/models"
)

type domainXMLUUID struct {
	UUID string `xml:"uuid"`
}

func extractUUID(domainXML string) (string, error) {
	var d domainXMLUUID
	if err := xml.Unmarshal([]byte(domainXML), &d); err != nil {
		return "", fmt.Errorf("hypervisor: parse domain xml: %w", err)
	}
	if d.UUID == "" {
		return "", fmt.Errorf("hypervisor: domain xml has no uuid element")
	}
	return d.UUID, nil
}

// FakeDriver is an in-memory Driver good enough to drive internal/agent's
// test suite without a real libvirt connection.
type FakeDriver struct {
	mu sync.Mutex

	class        Class
	synthesize   map[Action]bool
	capabilities string

	domains map[string]*FakeDomain // keyed by uuid
	cbs     map[*FakeDomain][]LifecycleCallback
}

func NewFakeDriver(class Class) *FakeDriver {
	return &FakeDriver{
		class:        class,
		synthesize:   map[Action]bool{},
		capabilities: "<capabilities/>",
		domains:      map[string]*FakeDomain{},
		cbs:          map[*FakeDomain][]LifecycleCallback{},
	}
}

func (d *FakeDriver) Class() Class { return d.class }

func (d *FakeDriver) SetSynthesize(action Action, v bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.synthesize[action] = v
}

func (d *FakeDriver) SynthesizesEvent(action Action) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.synthesize[action]
}

func (d *FakeDriver) SetCapabilities(xml string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.capabilities = xml
}

func (d *FakeDriver) Capabilities(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.capabilities, nil
}

func (d *FakeDriver) Connect(ctx context.Context, uuid string) (Domain, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	dom, ok := d.domains[uuid]
	if !ok {
		return nil, ErrNoSuchDomain
	}
	return dom, nil
}

// Seed installs a domain under uuid, as if it had already been defined,
// for tests that start from an already-defined VM.
func (d *FakeDriver) Seed(uuid string, dom *FakeDomain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.domains[uuid] = dom
}

func (d *FakeDriver) DefineXML(ctx context.Context, xml string) (Domain, error) {
	uuid, err := extractUUID(xml)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	dom, ok := d.domains[uuid]
	if !ok {
		dom = &FakeDomain{uuid: uuid, maxVCPUs: 8}
		d.domains[uuid] = dom
	}
	dom.mu.Lock()
	dom.xml = xml
	dom.info.State = models.StatusShutOff
	dom.mu.Unlock()
	return dom, nil
}

func (d *FakeDriver) RegisterLifecycleCallback(domain Domain, cb LifecycleCallback) func() {
	fd := domain.(*FakeDomain)
	d.mu.Lock()
	d.cbs[fd] = append(d.cbs[fd], cb)
	idx := len(d.cbs[fd]) - 1
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if idx < len(d.cbs[fd]) {
			d.cbs[fd][idx] = nil
		}
	}
}

// Emit delivers ev to every still-registered callback for domain,
// simulating the driver's own event-delivery thread.
func (d *FakeDriver) Emit(domain Domain, ev Event) {
	fd := domain.(*FakeDomain)
	d.mu.Lock()
	cbs := append([]LifecycleCallback(nil), d.cbs[fd]...)
	d.mu.Unlock()

	for _, cb := range cbs {
		if cb != nil {
			cb(ev)
		}
	}
}

// FakeDomain is a trivial in-memory Domain implementation.
type FakeDomain struct {
	mu       sync.Mutex
	uuid     string
	xml      string
	info     models.DomainInfo
	maxVCPUs uint
	ifaces   map[string]models.InterfaceStats
}

func (d *FakeDomain) ID(ctx context.Context) (int, error) { return 1, nil }

func (d *FakeDomain) Create(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info.State = models.StatusRunning
	return nil
}

func (d *FakeDomain) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info.State = models.StatusShutdownInProgress
	return nil
}

func (d *FakeDomain) Destroy(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info.State = models.StatusShutOff
	return nil
}

func (d *FakeDomain) Reboot(ctx context.Context) error { return nil }

func (d *FakeDomain) Suspend(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info.State = models.StatusPaused
	return nil
}

func (d *FakeDomain) Resume(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info.State = models.StatusRunning
	return nil
}

func (d *FakeDomain) Undefine(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info.State = models.StatusUndefined
	return nil
}

func (d *FakeDomain) XMLDesc(ctx context.Context, secure bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.xml, nil
}

func (d *FakeDomain) Info(ctx context.Context) (models.DomainInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.info, nil
}

func (d *FakeDomain) SetMemory(ctx context.Context, kib uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info.Memory = kib
	return nil
}

func (d *FakeDomain) SetVCPUs(ctx context.Context, n uint) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info.NrVirtCPU = n
	return nil
}

func (d *FakeDomain) SetAutostart(ctx context.Context, enabled bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.info.Autostart = enabled
	return nil
}

func (d *FakeDomain) MaxVCPUs(ctx context.Context) (uint, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxVCPUs, nil
}

func (d *FakeDomain) SetIfaceStats(name string, stats models.InterfaceStats) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ifaces == nil {
		d.ifaces = map[string]models.InterfaceStats{}
	}
	d.ifaces[name] = stats
}

func (d *FakeDomain) InterfaceStats(ctx context.Context, iface string) (models.InterfaceStats, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.ifaces[iface], nil
}

func (d *FakeDomain) MigrateToURI(ctx context.Context, uri string, flags MigrateFlags, bandwidth uint64) error {
	return nil
}
