package boundscheck_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/secureir/boundscheck"
)

var _ = Describe("Configuration", func() {
	var configuration boundscheck.Config
	BeforeEach(func() {
		configuration = boundscheck.NewConfig()
	})

	Context("when created with defaults", func() {
		It("should name the verifier runtime signals", func() {
			errorFn, err := configuration.GetGlobal(boundscheck.ErrorFn)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(errorFn).Should(Equal("verifier.error"))

			markerFn, err := configuration.GetGlobal(boundscheck.MarkerFn)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(markerFn).Should(Equal("verifier.memsafe"))
		})

		It("should recognize the common allocation and bulk-memory names", func() {
			allocFns, err := configuration.GetGlobal(boundscheck.AllocFns)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(allocFns).Should(Equal("malloc"))

			memcpyFns, err := configuration.GetGlobal(boundscheck.MemcpyFns)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(memcpyFns).Should(ContainSubstring("llvm.memcpy"))
		})

		It("should leave inline-all disabled", func() {
			Expect(configuration.IsGlobalEnabled(boundscheck.InlineAll)).Should(BeFalse())
		})
	})

	Context("when loading from disk", func() {
		It("should parse global settings of type string", func() {
			config := `
			{
				"globals": {
					"inline-all": "true",
					"error-fn": "my.error"
				}
			}`
			cfg := boundscheck.NewConfig()
			_, err := cfg.ReadFrom(strings.NewReader(config))
			Expect(err).ShouldNot(HaveOccurred())

			Expect(cfg.IsGlobalEnabled(boundscheck.InlineAll)).Should(BeTrue())
			value, err := cfg.GetGlobal(boundscheck.ErrorFn)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(value).Should(Equal("my.error"))
		})

		It("should parse global settings of other types", func() {
			config := `
			{
				"globals": {
					"inline-all": true
				}
			}`
			cfg := boundscheck.NewConfig()
			_, err := cfg.ReadFrom(strings.NewReader(config))
			Expect(err).ShouldNot(HaveOccurred())

			value, err := cfg.GetGlobal(boundscheck.InlineAll)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(value).Should(Equal("true"))
		})

		It("should return an error for invalid input", func() {
			invalidBuffer := bytes.NewBuffer([]byte{0xc0, 0xff, 0xee})
			_, err := configuration.ReadFrom(invalidBuffer)
			Expect(err).Should(HaveOccurred())

			emptyBuffer := bytes.NewBuffer([]byte{})
			_, err = configuration.ReadFrom(emptyBuffer)
			Expect(err).Should(HaveOccurred())
		})
	})

	Context("when saving to disk", func() {
		It("should round-trip the configuration", func() {
			configuration.SetGlobal(boundscheck.AllocFns, "malloc,xmalloc")

			buffer := bytes.NewBuffer([]byte{})
			nbytes, err := configuration.WriteTo(buffer)
			Expect(int(nbytes)).ShouldNot(BeZero())
			Expect(err).ShouldNot(HaveOccurred())

			reloaded := boundscheck.NewConfig()
			_, err = reloaded.ReadFrom(bytes.NewReader(buffer.Bytes()))
			Expect(err).ShouldNot(HaveOccurred())
			value, err := reloaded.GetGlobal(boundscheck.AllocFns)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(value).Should(Equal("malloc,xmalloc"))
		})
	})

	Context("when overriding global options", func() {
		It("should store and report the new value", func() {
			configuration.SetGlobal(boundscheck.InlineAll, "enabled")
			Expect(configuration.IsGlobalEnabled(boundscheck.InlineAll)).Should(BeTrue())

			value, err := configuration.GetGlobal(boundscheck.InlineAll)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(value).Should(Equal("enabled"))
		})

		It("should report missing options as an error", func() {
			_, err := configuration.GetGlobal(boundscheck.GlobalOption("no-such-option"))
			Expect(err).Should(HaveOccurred())
		})
	})
})
