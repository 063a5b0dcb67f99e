package hooks_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/archipel-project/vmagent/internal/hooks"
)

var _ = Describe("Bus", func() {
	It("invokes subscribers in registration order", func() {
		b := hooks.New()
		var order []int

		b.Register(hooks.VMCreate, nil, func(origin string, userInfo any, args ...any) {
			order = append(order, 1)
		})
		b.Register(hooks.VMCreate, nil, func(origin string, userInfo any, args ...any) {
			order = append(order, 2)
		})

		b.Fire(hooks.VMCreate, "agent")
		Expect(order).To(Equal([]int{1, 2}))
	})

	It("isolates a panicking subscriber from the rest", func() {
		b := hooks.New()
		ran := false

		b.Register(hooks.VMDestroy, nil, func(origin string, userInfo any, args ...any) {
			panic("boom")
		})
		b.Register(hooks.VMDestroy, nil, func(origin string, userInfo any, args ...any) {
			ran = true
		})

		Expect(func() { b.Fire(hooks.VMDestroy, "agent") }).NotTo(Panic())
		Expect(ran).To(BeTrue())
	})

	It("panics on an unknown hook name", func() {
		b := hooks.New()
		Expect(func() {
			b.Register(hooks.Name("HOOK_NOT_REAL"), nil, func(string, any, ...any) {})
		}).To(Panic())
	})
})
