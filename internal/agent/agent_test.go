package agent_test

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archipel-project/vmagent/internal/agent"
	"github.com/archipel-project/vmagent/internal/bus"
	"github.com/archipel-project/vmagent/internal/hooks"
	"github.com/archipel-project/vmagent/internal/hypervisor"
	"github.com/archipel-project/vmagent/internal/models"
	vmerrors "github.com/archipel-project/vmagent/pkg/errors"
	"github.com/archipel-project/vmagent/pkg/scheduler"
)

// harness wires one Agent against fake hypervisor/bus collaborators, the
// boundary this package treats as external.
type harness struct {
	agent    *agent.Agent
	driver   *hypervisor.FakeDriver
	client   *bus.FakeClient
	sched    *scheduler.Scheduler
	identity models.Identity
	dom      *hypervisor.FakeDomain
}

func domainXML(vmUUID uuid.UUID) string {
	return fmt.Sprintf("<domain><uuid>%s</uuid><name>x</name></domain>", vmUUID.String())
}

// newHarness builds an agent whose domain is already defined (shut-off)
// before construction, mirroring scenario 1's starting condition.
func newHarness(baseFolder string) *harness {
	vmUUID := uuid.New()
	identity := models.Identity{
		UUID:        vmUUID,
		JID:         vmUUID.String() + "@hypervisor",
		DisplayName: "test-vm",
		Password:    "s3cret",
	}
	return newHarnessFor(identity, baseFolder)
}

// newHarnessFor is newHarness with an explicit identity, so a test can
// rebuild an agent against the same VM folder to exercise restart recovery.
func newHarnessFor(identity models.Identity, baseFolder string) *harness {
	vmUUID := identity.UUID
	driver := hypervisor.NewFakeDriver(hypervisor.ClassQEMU)
	dom, err := driver.DefineXML(context.Background(), domainXML(vmUUID))
	Expect(err).NotTo(HaveOccurred())

	client := bus.NewFakeClient()
	sched := scheduler.NewScheduler(2)

	cfg := agent.DefaultConfig()
	cfg.BaseFolder = baseFolder
	cfg.MaxLockTime = 50 * time.Millisecond
	cfg.MemoryPollInterval = 5 * time.Millisecond
	cfg.MemoryPollRetries = 1

	a, err := agent.New(identity, cfg, driver, client, sched)
	Expect(err).NotTo(HaveOccurred())

	return &harness{
		agent:    a,
		driver:   driver,
		client:   client,
		sched:    sched,
		identity: identity,
		dom:      dom.(*hypervisor.FakeDomain),
	}
}

func (h *harness) close() {
	_ = h.agent.Terminate(context.Background())
	h.sched.Close()
}

var _ = Describe("Agent", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("runs the start flow: authenticate, create, started event confirms presence and fires the create hook", func() {
		h := newHarness(GinkgoT().TempDir())
		defer h.close()

		Expect(h.agent.Authenticate(ctx)).To(Succeed())
		Expect(h.client.Presences).NotTo(BeEmpty())
		last := h.client.Presences[len(h.client.Presences)-1]
		Expect(last.Show).To(Equal(models.ShowExtendedAway))
		Expect(last.Status).To(Equal("Shutted off"))

		var created bool
		h.agent.Hooks().Register(hooks.VMCreate, nil, func(origin string, userInfo any, args ...any) {
			created = true
		})

		h.agent.Route(ctx, bus.Request{
			From:      h.identity.JID,
			Namespace: bus.NamespaceControl,
			Action:    "create",
		})
		reply := h.client.LastReply()
		Expect(reply.Err).To(BeNil())
		Expect(reply.Attrs["id"]).To(Equal("1"))

		// The fake QEMU-class driver does not synthesize events (native
		// delivery), so the test plays the driver's own event-delivery
		// thread explicitly.
		h.driver.Emit(h.dom, hypervisor.Event{Kind: hypervisor.EventStarted})

		Eventually(func() models.Presence {
			return h.client.Presences[len(h.client.Presences)-1]
		}).Should(Equal(models.Presence{Show: models.ShowAvailable, Status: "Running"}))
		Expect(created).To(BeTrue())
	})

	It("rejects an overlapping mutating request with VM_LOCKED and makes no driver call", func() {
		h := newHarness(GinkgoT().TempDir())
		defer h.close()
		Expect(h.agent.Authenticate(ctx)).To(Succeed())

		h.agent.Route(ctx, bus.Request{From: h.identity.JID, Namespace: bus.NamespaceControl, Action: "create"})
		Expect(h.client.LastReply().Err).To(BeNil())

		// The started event hasn't been delivered yet: the Lock Gate is
		// still held, so a second mutating request must be rejected
		// without touching the driver.
		h.agent.Route(ctx, bus.Request{From: h.identity.JID, Namespace: bus.NamespaceControl, Action: "shutdown"})
		reply := h.client.LastReply()
		Expect(reply.Err).NotTo(BeNil())
		Expect(reply.Err.Code).To(Equal(int(vmerrors.VMLocked)))

		info, err := h.dom.Info(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.State).To(Equal(models.StatusRunning)) // create() applied, shutdown() never reached it
	})

	It("auto-releases the Lock Gate after the safety timeout so a later request can proceed", func() {
		h := newHarness(GinkgoT().TempDir())
		defer h.close()
		Expect(h.agent.Authenticate(ctx)).To(Succeed())

		h.agent.Route(ctx, bus.Request{From: h.identity.JID, Namespace: bus.NamespaceControl, Action: "create"})
		Expect(h.client.LastReply().Err).To(BeNil())

		// No started event is ever delivered; only the safety timer can
		// clear the lock.
		Eventually(func() *bus.ReplyError {
			h.agent.Route(ctx, bus.Request{From: h.identity.JID, Namespace: bus.NamespaceControl, Action: "shutdown"})
			return h.client.LastReply().Err
		}, time.Second, 10*time.Millisecond).Should(BeNil())
	})

	It("rejects mutating requests while migrating but still serves read-only ones", func() {
		h := newHarness(GinkgoT().TempDir())
		defer h.close()
		Expect(h.agent.Authenticate(ctx)).To(Succeed())
		h.agent.Route(ctx, bus.Request{From: h.identity.JID, Namespace: bus.NamespaceControl, Action: "create"})
		Expect(h.client.LastReply().Err).To(BeNil())
		h.driver.Emit(h.dom, hypervisor.Event{Kind: hypervisor.EventStarted})
		Eventually(h.agent.IsMigrating).Should(BeFalse())

		h.client.PeerReply = bus.Reply{Attrs: map[string]string{"uri": "qemu+tcp://peer/system"}}
		Expect(h.agent.StartMigration(ctx, "peer@otherhost")).To(Succeed())
		Expect(h.agent.IsMigrating()).To(BeTrue())

		h.agent.Route(ctx, bus.Request{From: h.identity.JID, Namespace: bus.NamespaceControl, Action: "shutdown"})
		reply := h.client.LastReply()
		Expect(reply.Err).NotTo(BeNil())
		Expect(reply.Err.Code).To(Equal(int(vmerrors.VMMigrating)))

		h.agent.Route(ctx, bus.Request{From: h.identity.JID, Namespace: bus.NamespaceControl, Action: "info"})
		Expect(h.client.LastReply().Err).To(BeNil())
	})

	It("refuses migration from a non-QEMU driver without setting the migration flag", func() {
		vmUUID := uuid.New()
		identity := models.Identity{UUID: vmUUID, JID: vmUUID.String() + "@hv", DisplayName: "x", Password: "p"}
		driver := hypervisor.NewFakeDriver(hypervisor.ClassOther)
		client := bus.NewFakeClient()
		sched := scheduler.NewScheduler(1)
		defer sched.Close()

		cfg := agent.DefaultConfig()
		cfg.BaseFolder = GinkgoT().TempDir()
		a, err := agent.New(identity, cfg, driver, client, sched)
		Expect(err).NotTo(HaveOccurred())
		defer a.Terminate(ctx)

		err = a.StartMigration(ctx, "peer@otherhost")
		Expect(err).To(HaveOccurred())
		Expect(a.IsMigrating()).To(BeFalse())
	})

	It("rejects a define whose uuid does not match the agent's own", func() {
		h := newHarness(GinkgoT().TempDir())
		defer h.close()

		err := h.agent.Define(ctx, domainXML(uuid.New()))
		Expect(err).To(HaveOccurred())
		var uuidErr *vmerrors.IncorrectUUIDError
		Expect(err).To(BeAssignableToTypeOf(uuidErr))
	})

	It("stamps description and name on a matching define, and strips description from xmldesc", func() {
		h := newHarness(GinkgoT().TempDir())
		defer h.close()

		err := h.agent.Define(ctx, domainXML(h.identity.UUID))
		Expect(err).NotTo(HaveOccurred())

		doc, err := h.agent.XMLDesc(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(doc).NotTo(ContainSubstring("<description>"))

		raw, err := h.dom.XMLDesc(ctx, true)
		Expect(err).NotTo(HaveOccurred())
		Expect(raw).To(ContainSubstring(fmt.Sprintf("<description>%s::::%s</description>", h.identity.JID, h.identity.Password)))
		Expect(raw).To(ContainSubstring("<name>" + h.identity.DisplayName + "</name>"))
	})

	It("round-trips define then undefine back to extended-away/not-defined with no domain handle", func() {
		h := newHarness(GinkgoT().TempDir())
		defer h.close()
		Expect(h.agent.Authenticate(ctx)).To(Succeed())

		Expect(h.agent.Define(ctx, domainXML(h.identity.UUID))).To(Succeed())
		Expect(h.agent.Undefine(ctx)).To(Succeed())
		h.driver.Emit(h.dom, hypervisor.Event{Kind: hypervisor.EventUndefined})

		Eventually(func() models.Presence {
			return h.client.Presences[len(h.client.Presences)-1]
		}).Should(Equal(models.Presence{Show: models.ShowExtendedAway, Status: "Not defined"}))
		Expect(h.agent.HasDomain()).To(BeFalse())
	})

	It("treats undefine on a null domain as a no-op success", func() {
		vmUUID := uuid.New()
		identity := models.Identity{UUID: vmUUID, JID: vmUUID.String() + "@hv", DisplayName: "x", Password: "p"}
		driver := hypervisor.NewFakeDriver(hypervisor.ClassQEMU) // no domain seeded
		client := bus.NewFakeClient()
		sched := scheduler.NewScheduler(1)
		defer sched.Close()

		cfg := agent.DefaultConfig()
		cfg.BaseFolder = GinkgoT().TempDir()
		a, err := agent.New(identity, cfg, driver, client, sched)
		Expect(err).NotTo(HaveOccurred())
		defer a.Terminate(ctx)

		Expect(a.HasDomain()).To(BeFalse())
		Expect(a.Undefine(ctx)).To(Succeed())
	})

	It("recovers persisted triggers across a restart", func() {
		folder := GinkgoT().TempDir()
		vmUUID := uuid.New()
		identity := models.Identity{UUID: vmUUID, JID: vmUUID.String() + "@hv", DisplayName: "test-vm", Password: "s3cret"}

		h1 := newHarnessFor(identity, folder)
		Expect(h1.agent.AddTrigger(ctx, models.Trigger{
			Name:        "custom",
			Description: "a recovered trigger",
			Mode:        models.TriggerModeManual,
			State:       models.On,
		})).To(Succeed())
		Expect(h1.agent.Terminate(ctx)).To(Succeed())
		h1.sched.Close()

		h2 := newHarnessFor(identity, folder)
		defer h2.close()
		Expect(h2.agent.Authenticate(ctx)).To(Succeed())

		var found bool
		for _, t := range h2.agent.SnapshotTriggers() {
			if t.Name == "custom" {
				found = true
				Expect(t.State).To(Equal(models.On))
			}
		}
		Expect(found).To(BeTrue())
	})
})
