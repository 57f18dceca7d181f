package report

import (
	"bytes"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gopkg.in/yaml.v3"

	"github.com/secureir/boundscheck"
)

func createReportInfo(unable int) *boundscheck.ReportInfo {
	stats := &boundscheck.Metrics{
		ChecksAdded:       12,
		ChecksSkipped:     3,
		ChecksUnable:      unable,
		FuncsInstrumented: 2,
	}
	info := boundscheck.NewReportInfo("demo.ir", stats)
	info.RunID = "00000000-0000-0000-0000-000000000000"
	info.GeneratedAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return info
}

var _ = Describe("Formatter", func() {
	Context("when formatting in json", func() {
		It("should round-trip the report info", func() {
			data := createReportInfo(0)
			buf := new(bytes.Buffer)
			err := CreateReport(buf, "json", false, data)
			Expect(err).ShouldNot(HaveOccurred())

			var decoded boundscheck.ReportInfo
			err = json.Unmarshal(buf.Bytes(), &decoded)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(decoded.Module).To(Equal("demo.ir"))
			Expect(decoded.Stats.ChecksAdded).To(Equal(12))
			Expect(decoded.Partial).To(BeFalse())
		})
	})

	Context("when formatting in yaml", func() {
		It("should round-trip the report info", func() {
			data := createReportInfo(1)
			buf := new(bytes.Buffer)
			err := CreateReport(buf, "yaml", false, data)
			Expect(err).ShouldNot(HaveOccurred())

			var decoded boundscheck.ReportInfo
			err = yaml.Unmarshal(buf.Bytes(), &decoded)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(decoded.Stats.ChecksUnable).To(Equal(1))
			Expect(decoded.Partial).To(BeTrue())
		})
	})

	Context("when formatting in text", func() {
		It("should report full coverage for a clean run", func() {
			data := createReportInfo(0)
			buf := new(bytes.Buffer)
			err := CreateReport(buf, "text", false, data)
			Expect(err).ShouldNot(HaveOccurred())

			out := buf.String()
			Expect(out).To(ContainSubstring("demo.ir"))
			Expect(out).To(ContainSubstring("Coverage: FULL"))
			Expect(out).To(ContainSubstring("Checks added: 12"))
		})

		It("should flag partial coverage when checks were unable", func() {
			data := createReportInfo(2)
			buf := new(bytes.Buffer)
			err := CreateReport(buf, "text", false, data)
			Expect(err).ShouldNot(HaveOccurred())

			out := buf.String()
			Expect(out).To(ContainSubstring("Coverage: PARTIAL"))
			Expect(out).To(ContainSubstring("Checks unable: 2"))
		})

		It("should default to text for an empty format", func() {
			data := createReportInfo(0)
			buf := new(bytes.Buffer)
			err := CreateReport(buf, "", false, data)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(buf.String()).To(ContainSubstring("Coverage: FULL"))
		})
	})

	Context("when the format is unknown", func() {
		It("should return an error", func() {
			data := createReportInfo(0)
			buf := new(bytes.Buffer)
			err := CreateReport(buf, "sarif", false, data)
			Expect(err).Should(HaveOccurred())
		})
	})
})
