package text_test

import (
	"bytes"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/secureir/boundscheck"
	"github.com/secureir/boundscheck/report/text"
)

func TestText(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Text Writer Suite")
}

var _ = Describe("Text Writer", func() {
	newData := func(unable int) *boundscheck.ReportInfo {
		return boundscheck.NewReportInfo("kernel.ir", &boundscheck.Metrics{
			ChecksAdded:       4,
			ChecksUnable:      unable,
			FuncsInstrumented: 1,
		})
	}

	Context("when writing text reports", func() {
		It("should render the run summary", func() {
			buf := new(bytes.Buffer)
			err := text.WriteReport(buf, newData(0), false)
			Expect(err).ShouldNot(HaveOccurred())

			out := buf.String()
			Expect(out).To(ContainSubstring("kernel.ir"))
			Expect(out).To(ContainSubstring("Functions instrumented: 1"))
			Expect(out).To(ContainSubstring("Checks added: 4"))
			Expect(out).To(ContainSubstring("Coverage: FULL"))
		})

		It("should render with color enabled", func() {
			buf := new(bytes.Buffer)
			err := text.WriteReport(buf, newData(1), true)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(buf.String()).To(ContainSubstring("Coverage: PARTIAL"))
		})
	})
})
