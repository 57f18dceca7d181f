package boundscheck_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestBoundscheck(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "boundscheck Suite")
}
