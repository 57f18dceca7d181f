package boundscheck_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/secureir/boundscheck"
)

var _ = Describe("ReportInfo", func() {
	Describe("NewReportInfo", func() {
		It("should carry the module name and metrics", func() {
			metrics := &boundscheck.Metrics{
				ChecksAdded:       7,
				FuncsInstrumented: 3,
			}

			report := boundscheck.NewReportInfo("kernel.ir", metrics)
			Expect(report).ShouldNot(BeNil())
			Expect(report.Module).Should(Equal("kernel.ir"))
			Expect(report.Stats).Should(Equal(metrics))
			Expect(report.RunID).ShouldNot(BeEmpty())
			Expect(report.GeneratedAt).ShouldNot(BeZero())
		})

		It("should mark a clean run as a full guarantee", func() {
			report := boundscheck.NewReportInfo("m", &boundscheck.Metrics{ChecksAdded: 1})
			Expect(report.Partial).Should(BeFalse())
		})

		It("should mark unresolved sites as a partial guarantee", func() {
			report := boundscheck.NewReportInfo("m", &boundscheck.Metrics{ChecksUnable: 1})
			Expect(report.Partial).Should(BeTrue())
		})
	})

	Describe("Metrics", func() {
		It("should accumulate across merges", func() {
			total := &boundscheck.Metrics{ChecksAdded: 1, FuncsInstrumented: 1}
			total.Merge(boundscheck.Metrics{ChecksAdded: 2, ChecksSkipped: 1, ChecksUnable: 3, FuncsInstrumented: 1})

			Expect(total.ChecksAdded).Should(Equal(3))
			Expect(total.ChecksSkipped).Should(Equal(1))
			Expect(total.ChecksUnable).Should(Equal(3))
			Expect(total.FuncsInstrumented).Should(Equal(2))
		})
	})
})
