package lockgate_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archipel-project/vmagent/internal/lockgate"
)

var _ = Describe("Gate", func() {
	It("reports locked after Lock and unlocked after Unlock", func() {
		g := lockgate.New(time.Minute)
		Expect(g.Locked()).To(BeFalse())

		g.Lock()
		Expect(g.Locked()).To(BeTrue())

		g.Unlock()
		Expect(g.Locked()).To(BeFalse())
	})

	It("auto-releases after the safety timeout", func() {
		g := lockgate.New(50 * time.Millisecond)
		g.Lock()
		Expect(g.Locked()).To(BeTrue())

		Eventually(g.Locked, time.Second, 10*time.Millisecond).Should(BeFalse())
	})

	It("cancels the safety timer on an early unlock", func() {
		g := lockgate.New(50 * time.Millisecond)
		g.Lock()
		g.Unlock()

		Consistently(g.Locked, 100*time.Millisecond, 10*time.Millisecond).Should(BeFalse())
	})
})
