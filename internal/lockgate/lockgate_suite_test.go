package lockgate_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestLockgate(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Lock Gate Suite")
}
